package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// wavSource decodes uncompressed PCM WAV (8, 16, 24 or 32 bit).
type wavSource struct {
	f          *os.File
	format     Format
	bits       int
	blockAlign int
	dataStart  int64
	dataLen    int64
	read       int64
	raw        []byte
}

func newWAV(f *os.File) (*wavSource, error) {
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return nil, fmt.Errorf("wav header: %w", err)
	}
	w := &wavSource{f: f}
	var haveFmt bool
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return nil, errors.New("wav: no data chunk")
		}
		id := string(hdr[:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:]))
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("wav: short fmt chunk")
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(f, buf); err != nil {
				return nil, fmt.Errorf("wav fmt: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(buf[0:])
			if audioFormat != 1 && audioFormat != 0xFFFE {
				return nil, fmt.Errorf("%w: wav encoding %d", ErrUnsupportedFormat, audioFormat)
			}
			w.format.Channels = int(binary.LittleEndian.Uint16(buf[2:]))
			w.format.SampleRate = int(binary.LittleEndian.Uint32(buf[4:]))
			w.blockAlign = int(binary.LittleEndian.Uint16(buf[12:]))
			w.bits = int(binary.LittleEndian.Uint16(buf[14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("wav: data before fmt")
			}
			pos, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, err
			}
			w.dataStart = pos
			w.dataLen = size
			if err := w.validate(); err != nil {
				return nil, err
			}
			return w, nil
		default:
			if _, err := f.Seek(size+size%2, io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	}
}

func (w *wavSource) validate() error {
	switch w.bits {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, w.bits)
	}
	if w.format.Channels <= 0 || w.format.SampleRate <= 0 || w.blockAlign != w.format.Channels*w.bits/8 {
		return errors.New("wav: inconsistent fmt chunk")
	}
	return nil
}

func (w *wavSource) Format() Format { return w.format }

func (w *wavSource) Read(dst []float32) (int, error) {
	frames := len(dst) / w.format.Channels
	remaining := (w.dataLen - w.read) / int64(w.blockAlign)
	if remaining <= 0 {
		return 0, io.EOF
	}
	frames = int(min(int64(frames), remaining))
	need := frames * w.blockAlign
	if cap(w.raw) < need {
		w.raw = make([]byte, need)
	}
	raw := w.raw[:need]
	n, err := io.ReadFull(w.f, raw)
	n -= n % w.blockAlign
	w.read += int64(n)

	bps := w.bits / 8
	samples := n / bps
	for i := 0; i < samples; i++ {
		b := raw[i*bps:]
		switch w.bits {
		case 8:
			dst[i] = (float32(b[0]) - 128) / 128
		case 16:
			dst[i] = float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		case 24:
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			dst[i] = float32(v) / (1 << 23)
		case 32:
			dst[i] = float32(int32(binary.LittleEndian.Uint32(b))) / (1 << 31)
		}
	}
	if err != nil && samples == 0 {
		return 0, io.EOF
	}
	return samples, nil
}

func (w *wavSource) Seek(pos time.Duration) error {
	frame := int64(pos.Seconds() * float64(w.format.SampleRate))
	off := min(max(frame*int64(w.blockAlign), 0), w.dataLen)
	if _, err := w.f.Seek(w.dataStart+off, io.SeekStart); err != nil {
		return err
	}
	w.read = off
	return nil
}

func (w *wavSource) Close() error { return w.f.Close() }
