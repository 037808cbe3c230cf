// Package clipboard reads and writes the system clipboard: text through
// atotto/clipboard, images through the platform's command-line tools.
package clipboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	cb "github.com/atotto/clipboard"
)

// ErrNoImage is returned by ReadImagePNG when the clipboard holds no image.
var ErrNoImage = errors.New("no image on clipboard")

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// Clear replaces the clipboard content with an empty string, which also
// drops any image.
func Clear() error {
	if err := cb.WriteAll(""); err != nil {
		return fmt.Errorf("clear clipboard: %w", err)
	}
	return nil
}

// HasImage reports whether the clipboard currently holds an image.
func HasImage(ctx context.Context) (bool, error) {
	return hasImage(ctx)
}

// ReadImagePNG returns the clipboard image as PNG bytes.
func ReadImagePNG(ctx context.Context) ([]byte, error) {
	data, err := readImagePNG(ctx)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, pngMagic) {
		return nil, ErrNoImage
	}
	return data, nil
}

// DataURL encodes PNG bytes as a data:image/png;base64 URL.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

const toolTimeout = 5 * time.Second

// runTool runs a clipboard helper binary and returns its stdout. Tests
// replace it.
var runTool = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
