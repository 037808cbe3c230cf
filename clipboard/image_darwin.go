//go:build darwin

package clipboard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func hasImage(ctx context.Context) (bool, error) {
	out, err := runTool(ctx, "osascript", "-e", "clipboard info")
	if err != nil {
		return false, err
	}
	s := string(out)
	return strings.Contains(s, "PNGf") || strings.Contains(s, "TIFF"), nil
}

func readImagePNG(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "askocr-clip-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "clip.png")

	_, err = runTool(ctx, "osascript",
		"-e", fmt.Sprintf("set f to open for access POSIX file %q with write permission", path),
		"-e", "write (the clipboard as «class PNGf») to f",
		"-e", "close access f",
	)
	if err != nil {
		return nil, ErrNoImage
	}
	return os.ReadFile(path)
}
