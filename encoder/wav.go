package encoder

import (
	"encoding/binary"
	"fmt"
	"io"
)

const wavHeaderSize = 44

// WAVEncoder writes 16-bit PCM WAV. The header sizes are patched on Close,
// so the writer must be seekable.
type WAVEncoder struct {
	w           io.WriteSeeker
	rate        int
	channels    int
	dataBytes   uint32
	totalFrames uint64
	buf         []byte
}

func NewWAV(w io.WriteSeeker, sampleRate, channels int) (*WAVEncoder, error) {
	if channels < 1 {
		return nil, fmt.Errorf("wav: %d channels", channels)
	}
	e := &WAVEncoder{w: w, rate: sampleRate, channels: channels}
	if _, err := w.Write(e.header()); err != nil {
		return nil, fmt.Errorf("writing wav header: %w", err)
	}
	return e, nil
}

func (e *WAVEncoder) header() []byte {
	h := make([]byte, wavHeaderSize)
	blockAlign := e.channels * BitsPerSample / 8
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 36+e.dataBytes)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], uint16(e.channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(e.rate))
	binary.LittleEndian.PutUint32(h[28:], uint32(e.rate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:], BitsPerSample)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], e.dataBytes)
	return h
}

func (e *WAVEncoder) Write(samples []int16) error {
	need := len(samples) * 2
	if cap(e.buf) < need {
		e.buf = make([]byte, need)
	}
	b := e.buf[:need]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("writing wav data: %w", err)
	}
	e.dataBytes += uint32(need)
	e.totalFrames += uint64(len(samples) / e.channels)
	return nil
}

func (e *WAVEncoder) Close() error {
	if _, err := e.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	if _, err := e.w.Write(e.header()); err != nil {
		return fmt.Errorf("patching wav header: %w", err)
	}
	_, err := e.w.Seek(0, io.SeekEnd)
	return err
}

func (e *WAVEncoder) TotalFrames() uint64 { return e.totalFrames }
