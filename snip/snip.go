// Package snip captures a screen region with the platform's snipping tool
// and waits for the image to land on the clipboard.
package snip

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"askocr/cancel"
	"askocr/clipboard"
	"askocr/log"
	"askocr/poll"
)

const (
	DefaultGrace    = time.Second
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 60 * time.Second

	// A file in the screenshots directory younger than this is assumed to be
	// the tool's copy of the capture we just read from the clipboard.
	duplicateWindow = 10 * time.Second
)

const timeoutMessage = "timed out waiting for screenshot or cancelled"

type Result struct {
	Success   bool   `json:"success"`
	ImageData string `json:"image_data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Clipboard is the part of the clipboard the capturer needs.
type Clipboard interface {
	Clear() error
	HasImage(ctx context.Context) (bool, error)
	ReadImagePNG(ctx context.Context) ([]byte, error)
}

type systemClipboard struct{}

func (systemClipboard) Clear() error { return clipboard.Clear() }

func (systemClipboard) HasImage(ctx context.Context) (bool, error) { return clipboard.HasImage(ctx) }

func (systemClipboard) ReadImagePNG(ctx context.Context) ([]byte, error) {
	return clipboard.ReadImagePNG(ctx)
}

// Launcher starts the interactive snipping UI and returns without waiting
// for the user.
type Launcher func(ctx context.Context) error

type Capturer struct {
	Launch    Launcher
	Clipboard Clipboard
	Grace     time.Duration
	Interval  time.Duration
	Timeout   time.Duration
	// ScreenshotsDir is cleaned of the tool's duplicate file after a
	// successful capture. Empty disables cleanup.
	ScreenshotsDir string
}

// New returns a capturer using the system clipboard, the platform launcher
// and the default timings.
func New() *Capturer {
	dir, err := clipboard.ScreenshotsDir()
	if err != nil {
		log.Warnf("screenshots dir: %v", err)
	}
	return &Capturer{
		Launch:         PlatformLauncher(),
		Clipboard:      systemClipboard{},
		Grace:          DefaultGrace,
		Interval:       DefaultInterval,
		Timeout:        DefaultTimeout,
		ScreenshotsDir: dir,
	}
}

// Capture clears the clipboard, launches the snipping tool and polls for an
// image. Failing to start the tool is an error; every other outcome is a
// Result.
func (c *Capturer) Capture(ctx context.Context, tok *cancel.Token) (Result, error) {
	if err := tok.Err(); err != nil {
		return Result{}, err
	}
	if err := c.Clipboard.Clear(); err != nil {
		log.Warnf("snip: %v", err)
	}
	if err := c.Launch(ctx); err != nil {
		return Result{}, fmt.Errorf("launch snipping tool: %w", err)
	}
	log.Info("snip: waiting for capture")

	var png []byte
	w := poll.Watcher{
		Name:     "snip",
		Grace:    c.Grace,
		Interval: c.Interval,
		Timeout:  c.Timeout,
		Token:    tok,
	}
	check := func(ctx context.Context) (bool, error) {
		ok, err := c.Clipboard.HasImage(ctx)
		if err != nil || !ok {
			return false, err
		}
		data, err := c.Clipboard.ReadImagePNG(ctx)
		if err != nil {
			return false, err
		}
		png = data
		return true, nil
	}
	cleanup := func() {
		if c.ScreenshotsDir == "" {
			return
		}
		removed, err := clipboard.CleanupLatestScreenshot(c.ScreenshotsDir, duplicateWindow)
		if err != nil {
			log.Warnf("snip: %v", err)
		} else if removed != "" {
			log.Debugf("snip: removed duplicate %s", removed)
		}
	}

	switch out := w.Wait(ctx, check, cleanup); out {
	case poll.Succeeded:
		log.Infof("snip: captured %d bytes", len(png))
		return Result{Success: true, ImageData: clipboard.DataURL(png)}, nil
	default:
		log.Infof("snip: %s", out)
		return Result{Error: timeoutMessage}, nil
	}
}

var errNoTool = errors.New("no snipping tool found")

type toolCmd struct {
	name string
	args []string
}

// startFirst starts the first available command and reaps it in the
// background.
func startFirst(ctx context.Context, cmds []toolCmd) error {
	var errs []error
	for _, tc := range cmds {
		path, err := exec.LookPath(tc.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cmd := exec.Command(path, tc.args...)
		if err := cmd.Start(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tc.name, err))
			continue
		}
		log.Debugf("snip: started %s", tc.name)
		go cmd.Wait()
		return nil
	}
	return fmt.Errorf("%w: %w", errNoTool, errors.Join(errs...))
}
