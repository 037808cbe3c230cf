// Package audio plays files and cue tones on a dedicated output thread.
// Commands are posted from any goroutine to an Engine, whose worker is the
// only code that touches the output device.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format describes decoded PCM: interleaved float32 samples in [-1, 1].
type Format struct {
	SampleRate int
	Channels   int
}

// Source is a decoded, optionally seekable sample stream. Read fills dst
// with whole frames and returns io.EOF once the stream is exhausted.
type Source interface {
	Format() Format
	Read(dst []float32) (int, error)
	Seek(pos time.Duration) error
	Close() error
}

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNotSeekable       = errors.New("source is not seekable")
)

// Decoder opens and decodes the file at path.
type Decoder func(path string) (Source, error)

// DecodeFile sniffs the file header and picks the WAV, FLAC or MP3 decoder,
// falling back to the extension when the header is inconclusive.
func DecodeFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	head := make([]byte, 12)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	var src Source
	switch kind := sniff(head, path); kind {
	case "wav":
		src, err = newWAV(f)
	case "flac":
		src, err = newFLAC(f)
	case "mp3":
		src, err = newMP3(f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return src, nil
}

func sniff(head []byte, path string) string {
	switch {
	case len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return "wav"
	case len(head) >= 4 && string(head[:4]) == "fLaC":
		return "flac"
	case len(head) >= 3 && string(head[:3]) == "ID3":
		return "mp3"
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return "mp3"
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "wav"
	case ".flac":
		return "flac"
	case ".mp3":
		return "mp3"
	}
	return ""
}

// memSource plays samples held in memory. Cue tones use it.
type memSource struct {
	format  Format
	samples []float32
	pos     int
}

func newMemSource(f Format, samples []float32) *memSource {
	return &memSource{format: f, samples: samples}
}

func (m *memSource) Format() Format { return m.format }

func (m *memSource) Read(dst []float32) (int, error) {
	if m.pos >= len(m.samples) {
		return 0, io.EOF
	}
	n := len(dst) - len(dst)%m.format.Channels
	n = copy(dst[:n], m.samples[m.pos:])
	m.pos += n
	return n, nil
}

func (m *memSource) Seek(pos time.Duration) error {
	frame := int(pos.Seconds() * float64(m.format.SampleRate))
	m.pos = min(max(frame*m.format.Channels, 0), len(m.samples))
	return nil
}

func (m *memSource) Close() error { return nil }
