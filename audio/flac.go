package audio

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/mewkiz/flac"
)

type flacSource struct {
	f      *os.File
	stream *flac.Stream
	format Format
	scale  float32

	block []float32 // decoded, interleaved samples of the current frame
	pos   int
}

func newFLAC(f *os.File) (*flacSource, error) {
	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, err
	}
	info := stream.Info
	if info.NChannels == 0 || info.SampleRate == 0 || info.BitsPerSample == 0 {
		return nil, errors.New("flac: invalid stream info")
	}
	return &flacSource{
		f:      f,
		stream: stream,
		format: Format{SampleRate: int(info.SampleRate), Channels: int(info.NChannels)},
		scale:  1 / float32(int64(1)<<(info.BitsPerSample-1)),
	}, nil
}

func (s *flacSource) Format() Format { return s.format }

func (s *flacSource) Read(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.format.Channels
	n := 0
	for n < want {
		if s.pos >= len(s.block) {
			if err := s.next(); err != nil {
				if n > 0 {
					return n, nil
				}
				return 0, err
			}
		}
		c := copy(dst[n:want], s.block[s.pos:])
		s.pos += c
		n += c
	}
	return n, nil
}

func (s *flacSource) next() error {
	fr, err := s.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return err
	}
	ch := s.format.Channels
	frames := int(fr.BlockSize)
	if cap(s.block) < frames*ch {
		s.block = make([]float32, frames*ch)
	}
	s.block = s.block[:frames*ch]
	for c := 0; c < ch && c < len(fr.Subframes); c++ {
		samples := fr.Subframes[c].Samples
		for i := 0; i < frames && i < len(samples); i++ {
			s.block[i*ch+c] = float32(samples[i]) * s.scale
		}
	}
	s.pos = 0
	return nil
}

func (s *flacSource) Seek(pos time.Duration) error {
	sample := uint64(max(pos.Seconds(), 0) * float64(s.format.SampleRate))
	if total := s.stream.Info.NSamples; total > 0 && sample >= total {
		sample = total - 1
	}
	if _, err := s.stream.Seek(sample); err != nil {
		return err
	}
	s.block = s.block[:0]
	s.pos = 0
	return nil
}

func (s *flacSource) Close() error {
	s.stream.Close()
	return s.f.Close()
}
