package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), Filename)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Ollama.URL != want.Ollama.URL {
		t.Errorf("ollama.url = %q, want %q", cfg.Ollama.URL, want.Ollama.URL)
	}
	if cfg.Snip != want.Snip {
		t.Errorf("snip = %+v, want %+v", cfg.Snip, want.Snip)
	}
	if cfg.Audio.Volume != 1 || !cfg.Audio.Cues {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if !cfg.Hotkey.Enabled {
		t.Error("hotkey should default to enabled")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"ollama": {"url": "http://gpu-box:11434"},
		"snip": {"timeout": "30s"},
		"log": {"debug": true}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.URL != "http://gpu-box:11434" {
		t.Errorf("ollama.url = %q", cfg.Ollama.URL)
	}
	if cfg.Snip.Timeout != 30*time.Second {
		t.Errorf("snip.timeout = %v", cfg.Snip.Timeout)
	}
	if cfg.Snip.Interval != 500*time.Millisecond {
		t.Errorf("snip.interval = %v, want default", cfg.Snip.Interval)
	}
	if !cfg.Log.Debug {
		t.Error("log.debug not applied")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"ollama": {"url": "http://from-file:1"}, "audio": {"volume": 0.5}}`)
	t.Setenv("ASKOCR_OLLAMA__URL", "http://from-env:2")
	t.Setenv("ASKOCR_SNIP__GRACE", "250ms")
	t.Setenv("ASKOCR_HOTKEY__ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.URL != "http://from-env:2" {
		t.Errorf("ollama.url = %q", cfg.Ollama.URL)
	}
	if cfg.Snip.Grace != 250*time.Millisecond {
		t.Errorf("snip.grace = %v", cfg.Snip.Grace)
	}
	if cfg.Hotkey.Enabled {
		t.Error("hotkey.enabled should be false")
	}
	if cfg.Audio.Volume != 0.5 {
		t.Errorf("audio.volume = %v, want file value", cfg.Audio.Volume)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty url", `{"ollama": {"url": ""}}`, "ollama.url is required"},
		{"relative url", `{"ollama": {"url": "localhost"}}`, "ollama.url must be an absolute URL"},
		{"zero interval", `{"snip": {"interval": "0s"}}`, "snip.interval out of range"},
		{"loud", `{"audio": {"volume": 3}}`, "audio.volume out of range"},
		{"missing script", `{"helper": {"script": "/does/not/exist.py"}}`, "helper.script: file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadBadJSON(t *testing.T) {
	_, err := Load(writeConfig(t, `{"ollama": `))
	if err == nil || !strings.Contains(err.Error(), "loading") {
		t.Fatalf("err = %v", err)
	}
}

func TestKeyFor(t *testing.T) {
	tests := map[string]string{
		"Config.Snip.Interval": "snip.interval",
		"Config.Ollama.URL":    "ollama.url",
		"Config.Log.Path":      "log.path",
	}
	for in, want := range tests {
		if got := keyFor(in); got != want {
			t.Errorf("keyFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	if got := DefaultPath(); filepath.Base(got) != Filename {
		t.Errorf("DefaultPath() = %q", got)
	}
}
