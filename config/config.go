// Package config loads settings from built-in defaults, an optional JSON
// file and ASKOCR_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix = "ASKOCR_"
	Filename  = "config.json"
)

type Config struct {
	Helper HelperConfig `koanf:"helper"`
	Ollama OllamaConfig `koanf:"ollama"`
	Snip   SnipConfig   `koanf:"snip"`
	Audio  AudioConfig  `koanf:"audio"`
	Hotkey HotkeyConfig `koanf:"hotkey"`
	Log    LogConfig    `koanf:"log"`
}

type HelperConfig struct {
	// Python and Script are tried before the built-in search paths.
	Python string `koanf:"python"`
	Script string `koanf:"script" validate:"omitempty,file"`
	// Dirs are extra base directories searched for python_backend/.
	Dirs []string `koanf:"dirs"`
	// Downloader is tried before the built-in search for the music
	// downloader script.
	Downloader string `koanf:"downloader" validate:"omitempty,file"`
	// MusicDir is where download-music saves tracks by default.
	MusicDir string `koanf:"music_dir"`
}

type OllamaConfig struct {
	URL string `koanf:"url" validate:"required,url"`
}

type SnipConfig struct {
	Grace    time.Duration `koanf:"grace" validate:"min=0"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

type AudioConfig struct {
	Volume float32 `koanf:"volume" validate:"min=0,max=2"`
	Cues   bool    `koanf:"cues"`
}

type HotkeyConfig struct {
	Enabled bool `koanf:"enabled"`
}

type LogConfig struct {
	Path  string `koanf:"path"`
	Debug bool   `koanf:"debug"`
}

func Default() Config {
	return Config{
		Ollama: OllamaConfig{URL: "http://localhost:11434"},
		Snip: SnipConfig{
			Grace:    time.Second,
			Interval: 500 * time.Millisecond,
			Timeout:  60 * time.Second,
		},
		Audio:  AudioConfig{Volume: 1, Cues: true},
		Hotkey: HotkeyConfig{Enabled: true},
	}
}

// DefaultPath is config.json in the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return Filename
	}
	return filepath.Join(dir, "askocr", Filename)
}

// Load layers defaults, the JSON file at path (skipped when it does not
// exist) and the environment. Nested keys use a double underscore in env
// names: ASKOCR_SNIP__TIMEOUT=30s sets snip.timeout.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), json.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate reports the first invalid field with its config key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	fe := verrs[0]
	key := keyFor(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("config: %s is required", key)
	case "url":
		return fmt.Errorf("config: %s must be an absolute URL, got %q", key, fe.Value())
	case "file":
		return fmt.Errorf("config: %s: file not found: %v", key, fe.Value())
	case "gt", "min", "max":
		return fmt.Errorf("config: %s out of range (%s=%s), got %v", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("config: %s failed %q validation", key, fe.Tag())
}

var keyNames = map[string]string{
	"Helper": "helper", "Ollama": "ollama", "Snip": "snip", "Audio": "audio",
	"Hotkey": "hotkey", "Log": "log",
	"URL": "url", "Script": "script", "Downloader": "downloader", "Grace": "grace", "Interval": "interval",
	"Timeout": "timeout", "Volume": "volume",
}

// keyFor turns "Config.Snip.Interval" into "snip.interval".
func keyFor(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		if k, ok := keyNames[p]; ok {
			parts[i] = k
		} else {
			parts[i] = strings.ToLower(p)
		}
	}
	return strings.Join(parts, ".")
}
