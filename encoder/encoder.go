// Package encoder writes interleaved 16-bit PCM as FLAC or WAV. The convert
// command uses it to re-encode decoded audio files.
package encoder

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder consumes interleaved samples. Write may buffer; Close flushes and
// finalizes the container.
type Encoder interface {
	Write(samples []int16) error
	Close() error
	TotalFrames() uint64
}

// ForPath picks the container from the output file extension.
func ForPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".flac":
		return "flac", nil
	case ".wav":
		return "wav", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want .flac or .wav)", ext)
	}
}
