package snip

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"askocr/cancel"
)

var testPNG = []byte("\x89PNG\r\n\x1a\nfake")

type fakeClipboard struct {
	mu        sync.Mutex
	readyAt   time.Time
	cleared   int
	samples   int
	checkErr  error
	neverFill bool
}

func (f *fakeClipboard) Clear() error {
	f.mu.Lock()
	f.cleared++
	f.mu.Unlock()
	return nil
}

func (f *fakeClipboard) HasImage(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples++
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return !f.neverFill && time.Now().After(f.readyAt), nil
}

func (f *fakeClipboard) ReadImagePNG(context.Context) ([]byte, error) { return testPNG, nil }

func fastCapturer(fc *fakeClipboard) *Capturer {
	return &Capturer{
		Launch:    func(context.Context) error { return nil },
		Clipboard: fc,
		Grace:     20 * time.Millisecond,
		Interval:  20 * time.Millisecond,
		Timeout:   500 * time.Millisecond,
	}
}

func TestCaptureSuccess(t *testing.T) {
	fc := &fakeClipboard{readyAt: time.Now().Add(100 * time.Millisecond)}
	c := fastCapturer(fc)

	dir := t.TempDir()
	dup := filepath.Join(dir, "Screenshot 1.png")
	if err := os.WriteFile(dup, testPNG, 0644); err != nil {
		t.Fatal(err)
	}
	c.ScreenshotsDir = dir

	res, err := c.Capture(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || !strings.HasPrefix(res.ImageData, "data:image/png;base64,") {
		t.Fatalf("result = %+v", res)
	}
	if fc.cleared != 1 {
		t.Errorf("clipboard cleared %d times, want 1", fc.cleared)
	}
	if _, err := os.Stat(dup); !errors.Is(err, os.ErrNotExist) {
		t.Error("duplicate screenshot should be removed")
	}
}

func TestCaptureTimeout(t *testing.T) {
	fc := &fakeClipboard{neverFill: true}
	c := fastCapturer(fc)
	c.Timeout = 150 * time.Millisecond

	res, err := c.Capture(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error != timeoutMessage {
		t.Errorf("result = %+v", res)
	}
	if fc.samples < 2 {
		t.Errorf("samples = %d, expected repeated polling", fc.samples)
	}
}

func TestCaptureClipboardErrorsKeepPolling(t *testing.T) {
	fc := &fakeClipboard{checkErr: errors.New("xclip: exit status 1")}
	c := fastCapturer(fc)
	c.Timeout = 100 * time.Millisecond

	res, err := c.Capture(context.Background(), nil)
	if err != nil || res.Success {
		t.Errorf("got %+v, %v", res, err)
	}
}

func TestCaptureCancelled(t *testing.T) {
	fc := &fakeClipboard{neverFill: true}
	c := fastCapturer(fc)
	c.Timeout = 10 * time.Second
	tok := cancel.New()
	time.AfterFunc(80*time.Millisecond, tok.Cancel)

	start := time.Now()
	res, err := c.Capture(context.Background(), tok)
	if err != nil || res.Success {
		t.Errorf("got %+v, %v", res, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("cancel took %v", time.Since(start))
	}
}

func TestCaptureLaunchFailure(t *testing.T) {
	fc := &fakeClipboard{}
	c := fastCapturer(fc)
	c.Launch = func(context.Context) error { return errNoTool }

	if _, err := c.Capture(context.Background(), nil); !errors.Is(err, errNoTool) {
		t.Errorf("err = %v, want errNoTool", err)
	}
	if fc.samples != 0 {
		t.Error("should not poll when the tool did not start")
	}
}

func TestCapturePreCancelledToken(t *testing.T) {
	fc := &fakeClipboard{}
	c := fastCapturer(fc)
	launched := false
	c.Launch = func(context.Context) error { launched = true; return nil }
	tok := cancel.New()
	tok.Cancel()

	if _, err := c.Capture(context.Background(), tok); !errors.Is(err, cancel.ErrCancelled) {
		t.Errorf("err = %v", err)
	}
	if launched || fc.cleared != 0 {
		t.Error("nothing should happen for a cancelled token")
	}
}

func TestStartFirstNoTool(t *testing.T) {
	err := startFirst(context.Background(), []toolCmd{{"askocr-definitely-missing-tool", nil}})
	if !errors.Is(err, errNoTool) {
		t.Errorf("err = %v", err)
	}
}
