package audio

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo.
const mp3BytesPerFrame = 4

type mp3Source struct {
	f   *os.File
	dec *mp3.Decoder
	raw []byte
}

func newMP3(f *os.File) (*mp3Source, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	return &mp3Source{f: f, dec: dec}, nil
}

func (s *mp3Source) Format() Format {
	return Format{SampleRate: s.dec.SampleRate(), Channels: 2}
}

func (s *mp3Source) Read(dst []float32) (int, error) {
	frames := len(dst) / 2
	need := frames * mp3BytesPerFrame
	if need == 0 {
		return 0, nil
	}
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	raw := s.raw[:need]
	n, err := io.ReadFull(s.dec, raw)
	n -= n % mp3BytesPerFrame
	for i := 0; i < n/2; i++ {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}
	if n == 0 && err != nil {
		return 0, io.EOF
	}
	return n / 2, nil
}

func (s *mp3Source) Seek(pos time.Duration) error {
	frame := int64(max(pos.Seconds(), 0) * float64(s.dec.SampleRate()))
	off := frame * mp3BytesPerFrame
	if l := s.dec.Length(); l > 0 && off > l {
		off = l
	}
	_, err := s.dec.Seek(off, io.SeekStart)
	return err
}

func (s *mp3Source) Close() error { return s.f.Close() }
