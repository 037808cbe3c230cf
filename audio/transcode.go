package audio

import (
	"errors"
	"io"
	"math"
)

// PCMWriter accepts interleaved 16-bit samples, as the encoder package's
// FLAC and WAV writers do.
type PCMWriter interface {
	Write(samples []int16) error
}

// Transcode copies src into w at the source's own rate and channel count.
// It returns the number of frames written.
func Transcode(src Source, w PCMWriter) (int, error) {
	ch := src.Format().Channels
	if ch < 1 {
		ch = 1
	}
	buf := make([]float32, 4096*ch)
	out := make([]int16, len(buf))
	frames := 0
	for {
		n, err := src.Read(buf)
		if n > 0 {
			for i, v := range buf[:n] {
				out[i] = pcm16(v)
			}
			if werr := w.Write(out[:n]); werr != nil {
				return frames, werr
			}
			frames += n / ch
		}
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
	}
}

// pcm16 inverts the decoders' s/32768 scaling exactly, unlike the mixer's
// toInt16 which favours symmetric clipping.
func pcm16(v float32) int16 {
	x := math.Round(float64(v) * 32768)
	switch {
	case x > math.MaxInt16:
		return math.MaxInt16
	case x < math.MinInt16:
		return math.MinInt16
	}
	return int16(x)
}
