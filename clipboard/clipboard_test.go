package clipboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDataURL(t *testing.T) {
	got := DataURL([]byte("\x89PNG"))
	if got != "data:image/png;base64,iVBORw==" {
		t.Errorf("DataURL = %q", got)
	}
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestCleanupLatestScreenshot(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "old.png"), now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "new.png"), now.Add(-2*time.Second))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	removed, err := CleanupLatestScreenshot(dir, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(removed) != "new.png" {
		t.Errorf("removed = %q, want new.png", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "old.png")); err != nil {
		t.Error("old screenshot should be kept")
	}

	// Only the hour-old file remains, which is outside the window.
	removed, err = CleanupLatestScreenshot(dir, 10*time.Second)
	if err != nil || removed != "" {
		t.Errorf("second cleanup = %q, %v; want nothing", removed, err)
	}
}

func TestCleanupLatestScreenshotMissingDir(t *testing.T) {
	removed, err := CleanupLatestScreenshot(filepath.Join(t.TempDir(), "nope"), time.Minute)
	if err != nil || removed != "" {
		t.Errorf("got %q, %v", removed, err)
	}
}

func stubTool(t *testing.T, fn func(name string, args ...string) ([]byte, error)) {
	t.Helper()
	orig := runTool
	runTool = func(_ context.Context, name string, args ...string) ([]byte, error) { return fn(name, args...) }
	t.Cleanup(func() { runTool = orig })
}

func TestReadImagePNGRejectsNonPNG(t *testing.T) {
	stubTool(t, func(string, ...string) ([]byte, error) { return []byte("GIF89a..."), nil })
	if _, err := ReadImagePNG(context.Background()); !errors.Is(err, ErrNoImage) {
		t.Errorf("err = %v, want ErrNoImage", err)
	}
}

type fakeClipboard struct {
	mu     sync.Mutex
	text   string
	writes []string
}

func (f *fakeClipboard) read() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, nil
}

func (f *fakeClipboard) write(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = s
	f.writes = append(f.writes, s)
	return nil
}

func stubSelection(t *testing.T, fc *fakeClipboard, copyFn func() error) {
	t.Helper()
	origR, origW, origC := readText, writeText, sendCopy
	readText, writeText, sendCopy = fc.read, fc.write, copyFn
	t.Cleanup(func() { readText, writeText, sendCopy = origR, origW, origC })
}

func TestSelectedText(t *testing.T) {
	fc := &fakeClipboard{text: "previous"}
	stubSelection(t, fc, func() error {
		time.AfterFunc(100*time.Millisecond, func() { fc.write("selected words") })
		return nil
	})

	got, err := SelectedText(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "selected words" {
		t.Errorf("SelectedText = %q", got)
	}
	if text, _ := fc.read(); text != "previous" {
		t.Errorf("clipboard = %q, want restored", text)
	}
	if fc.writes[0] != "" {
		t.Errorf("first write = %q, want clear", fc.writes[0])
	}
}

func TestSelectedTextNothingSelected(t *testing.T) {
	fc := &fakeClipboard{text: "keep me"}
	stubSelection(t, fc, func() error { return nil })

	start := time.Now()
	got, err := SelectedText(context.Background())
	if err != nil || got != "" {
		t.Errorf("got %q, %v; want empty", got, err)
	}
	if time.Since(start) < time.Second {
		t.Error("should wait the full second for the copy to land")
	}
	if text, _ := fc.read(); text != "keep me" {
		t.Errorf("clipboard = %q, want restored", text)
	}
}

func TestSelectedTextKeyboardError(t *testing.T) {
	fc := &fakeClipboard{text: "keep me"}
	stubSelection(t, fc, func() error { return errors.New("uinput device not found") })

	_, err := SelectedText(context.Background())
	if err == nil || !strings.Contains(err.Error(), "uinput") {
		t.Errorf("err = %v", err)
	}
	if text, _ := fc.read(); text != "keep me" {
		t.Errorf("clipboard = %q, want restored", text)
	}
}
