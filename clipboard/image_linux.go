//go:build linux

package clipboard

import (
	"context"
	"os"
	"strings"
)

func wayland() bool { return os.Getenv("WAYLAND_DISPLAY") != "" }

func hasImage(ctx context.Context) (bool, error) {
	var out []byte
	var err error
	if wayland() {
		out, err = runTool(ctx, "wl-paste", "--list-types")
	} else {
		out, err = runTool(ctx, "xclip", "-selection", "clipboard", "-t", "TARGETS", "-o")
	}
	if err != nil {
		return false, err
	}
	return strings.Contains(string(out), "image/png"), nil
}

func readImagePNG(ctx context.Context) ([]byte, error) {
	if wayland() {
		return runTool(ctx, "wl-paste", "--no-newline", "--type", "image/png")
	}
	return runTool(ctx, "xclip", "-selection", "clipboard", "-t", "image/png", "-o")
}
