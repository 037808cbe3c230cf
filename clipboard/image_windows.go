//go:build windows

package clipboard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func powershell(ctx context.Context, script string) ([]byte, error) {
	return runTool(ctx, "powershell", "-NoProfile", "-NonInteractive", "-STA", "-Command",
		"Add-Type -AssemblyName System.Windows.Forms; Add-Type -AssemblyName System.Drawing; "+script)
}

func hasImage(ctx context.Context) (bool, error) {
	out, err := powershell(ctx, "[System.Windows.Forms.Clipboard]::ContainsImage()")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(string(out)), "true"), nil
}

func readImagePNG(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "askocr-clip-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "clip.png")

	script := fmt.Sprintf(
		"$img = [System.Windows.Forms.Clipboard]::GetImage(); if ($img -eq $null) { exit 2 }; $img.Save('%s', [System.Drawing.Imaging.ImageFormat]::Png)",
		strings.ReplaceAll(path, "'", "''"))
	if _, err := powershell(ctx, script); err != nil {
		return nil, ErrNoImage
	}
	return os.ReadFile(path)
}
