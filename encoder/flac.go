package encoder

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

type FlacEncoder struct {
	enc         *flac.Encoder
	rate        int
	channels    int
	layout      frame.Channels
	pending     []int16
	totalFrames uint64
}

// NewFlac starts a FLAC stream on w. When w is an io.WriteSeeker, Close
// back-fills the sample count and checksum.
func NewFlac(w io.Writer, sampleRate, channels int) (*FlacEncoder, error) {
	var layout frame.Channels
	switch channels {
	case 1:
		layout = frame.ChannelsMono
	case 2:
		layout = frame.ChannelsLR
	default:
		return nil, fmt.Errorf("flac: %d channels not supported", channels)
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &FlacEncoder{enc: enc, rate: sampleRate, channels: channels, layout: layout}, nil
}

func (e *FlacEncoder) Write(samples []int16) error {
	e.pending = append(e.pending, samples...)
	blockSamples := BlockSize * e.channels
	for len(e.pending) >= blockSamples {
		if err := e.writeBlock(e.pending[:blockSamples]); err != nil {
			return err
		}
		e.pending = e.pending[blockSamples:]
	}
	return nil
}

func (e *FlacEncoder) writeBlock(block []int16) error {
	n := len(block) / e.channels
	subframes := make([]*frame.Subframe, e.channels)
	for ch := range subframes {
		samples := make([]int32, n)
		for i := range samples {
			samples[i] = int32(block[i*e.channels+ch])
		}
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  n,
		}
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    uint32(e.rate),
			Channels:      e.layout,
			BitsPerSample: BitsPerSample,
		},
		Subframes: subframes,
	}
	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(n)
	return nil
}

func (e *FlacEncoder) Close() error {
	if n := len(e.pending) - len(e.pending)%e.channels; n > 0 {
		if err := e.writeBlock(e.pending[:n]); err != nil {
			return err
		}
	}
	e.pending = nil
	return e.enc.Close()
}

func (e *FlacEncoder) TotalFrames() uint64 { return e.totalFrames }
