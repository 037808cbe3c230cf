package clipboard

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"

	"askocr/log"
	"askocr/poll"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// linux creates a uinput device that the compositor needs a moment to pick up.
const uinputSettle = 200 * time.Millisecond

func initKeys() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr == nil && runtime.GOOS == "linux" {
			time.Sleep(uinputSettle)
		}
	})
	return kbErr
}

// sendCopy presses the platform copy shortcut in the focused window.
var sendCopy = func() error {
	if err := initKeys(); err != nil {
		return fmt.Errorf("keyboard events: %w", err)
	}
	kb.Clear()
	kb.SetKeys(keybd_event.VK_C)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

// Text access used by SelectedText; replaced in tests.
var (
	readText  = Read
	writeText = Copy
)

// SelectedText copies the focused window's selection by pressing the copy
// shortcut, waits up to one second for the clipboard to fill, and restores
// the previous clipboard text. It returns "" when nothing was selected.
func SelectedText(ctx context.Context) (string, error) {
	previous, prevErr := readText()
	if err := writeText(""); err != nil {
		return "", fmt.Errorf("clear clipboard: %w", err)
	}
	defer func() {
		if prevErr == nil {
			if err := writeText(previous); err != nil {
				log.Warnf("restore clipboard: %v", err)
			}
		}
	}()

	if err := sendCopy(); err != nil {
		return "", err
	}

	var text string
	w := poll.Watcher{Name: "selection", Interval: 50 * time.Millisecond, Timeout: time.Second}
	out := w.Wait(ctx, func(context.Context) (bool, error) {
		s, err := readText()
		if err != nil {
			return false, err
		}
		text = s
		return s != "", nil
	}, nil)
	if out == poll.Cancelled {
		return "", ctx.Err()
	}
	return text, nil
}
