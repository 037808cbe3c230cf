//go:build !linux

package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/gen2brain/malgo"
)

type malgoSink struct {
	*Mixer
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// OpenDefaultSink opens the default miniaudio playback device fed by a
// Mixer.
func OpenDefaultSink() (Sink, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo context: %w", err)
	}
	m := NewMixer()

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = OutputChannels
	config.SampleRate = OutputRate

	var scratch []int16
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			n := int(frameCount) * OutputChannels
			if cap(scratch) < n {
				scratch = make([]int16, n)
			}
			buf := scratch[:n]
			m.Fill(buf)
			for i, s := range buf {
				binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
			}
		},
	}
	dev, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("malgo device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("malgo start: %w", err)
	}
	return &malgoSink{Mixer: m, ctx: ctx, device: dev}, nil
}

func (s *malgoSink) Close() error {
	s.Mixer.Clear()
	s.device.Uninit()
	s.ctx.Uninit()
	s.ctx.Free()
	return nil
}
