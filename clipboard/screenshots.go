package clipboard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ScreenshotsDir is where the OS snipping tools save a copy of each capture.
func ScreenshotsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Pictures", "Screenshots"), nil
}

// CleanupLatestScreenshot removes the newest regular file in dir if it was
// written within maxAge, so a capture that was only wanted on the clipboard
// does not pile up on disk. It returns the removed path, or "" when nothing
// qualified. A missing dir is not an error.
func CleanupLatestScreenshot(dir string, maxAge time.Duration) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read screenshots dir: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" || time.Since(newestMod) > maxAge {
		return "", nil
	}
	if err := os.Remove(newest); err != nil {
		return "", fmt.Errorf("remove duplicate screenshot: %w", err)
	}
	return newest, nil
}
