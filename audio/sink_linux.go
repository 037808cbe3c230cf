//go:build linux

package audio

import (
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseSink struct {
	*Mixer
	client *pulse.Client
	stream *pulse.PlaybackStream
}

// OpenDefaultSink connects to the PulseAudio (or PipeWire-pulse) server and
// starts a stereo playback stream fed by a Mixer.
func OpenDefaultSink() (Sink, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("askocr"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	m := NewMixer()
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		m.Fill(buf)
		return len(buf), nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(OutputRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("pulse playback: %w", err)
	}
	stream.Start()
	return &pulseSink{Mixer: m, client: c, stream: stream}, nil
}

func (s *pulseSink) Close() error {
	s.Mixer.Clear()
	s.stream.Stop()
	s.stream.Close()
	s.client.Close()
	return nil
}
