package audio

import (
	"math"
	"testing"
	"time"
)

func ramp(frames, channels int) []float32 {
	out := make([]float32, frames*channels)
	for i := range frames {
		for c := range channels {
			out[i*channels+c] = float32(i) / float32(frames) * 0.5
		}
	}
	return out
}

func drain(m *Mixer, frames int) []int16 {
	out := make([]int16, frames*OutputChannels)
	m.Fill(out)
	return out
}

func TestMixerMonoToStereo(t *testing.T) {
	m := NewMixer()
	m.Append(newMemSource(Format{SampleRate: OutputRate, Channels: 1}, []float32{0.5, -0.5, 0.25}))

	out := drain(m, 4)
	want := []int16{16383, 16383, -16383, -16383, 8191, 8191, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
	if !m.Empty() {
		t.Error("finished source should be dequeued")
	}
}

func TestMixerResamples(t *testing.T) {
	m := NewMixer()
	const frames = 2205 // 100ms at 22.05kHz
	m.Append(newMemSource(Format{SampleRate: 22050, Channels: 2}, ramp(frames, 2)))

	out := drain(m, 8000)
	produced := 0
	for i := 0; i < len(out); i += 2 {
		if out[i] != 0 || out[i+1] != 0 {
			produced = i/2 + 1
		}
	}
	if math.Abs(float64(produced-frames*2)) > 3 {
		t.Errorf("produced %d frames, want about %d", produced, frames*2)
	}
	// Interpolated frames sit between their neighbours.
	if !(out[2] > out[0] && out[2] < out[4]) {
		t.Errorf("not interpolated: %v", out[:6])
	}
}

func TestMixerPauseAndVolume(t *testing.T) {
	m := NewMixer()
	m.Append(newMemSource(Format{SampleRate: OutputRate, Channels: 1}, []float32{0.5, 0.5, 0.5, 0.5}))

	m.Pause()
	if out := drain(m, 2); out[0] != 0 || m.Empty() {
		t.Error("paused mixer should output silence and keep its queue")
	}
	m.Play()
	m.SetVolume(0.5)
	if out := drain(m, 1); out[0] != toInt16(0.25) {
		t.Errorf("sample = %d, want %d", out[0], toInt16(0.25))
	}
	m.SetVolume(5)
	if m.Volume() != maxVolume {
		t.Errorf("volume = %v, want clamped to %v", m.Volume(), maxVolume)
	}
	m.SetVolume(-1)
	if m.Volume() != 0 {
		t.Errorf("volume = %v, want 0", m.Volume())
	}
}

func TestMixerNaNVolumeMutes(t *testing.T) {
	m := NewMixer()
	m.Append(newMemSource(Format{SampleRate: OutputRate, Channels: 1}, []float32{0.5, 0.5}))
	m.SetVolume(float32(math.NaN()))
	if v := m.Volume(); v != 0 {
		t.Fatalf("volume = %v, want 0", v)
	}
	if out := drain(m, 1); out[0] != 0 || out[1] != 0 {
		t.Errorf("frame = %v, want silence", out)
	}
	m.SetVolume(1)
	if out := drain(m, 1); out[0] != toInt16(0.5) {
		t.Errorf("sample = %d after unmute, want %d", out[0], toInt16(0.5))
	}
}

func TestMixerQueueAdvances(t *testing.T) {
	m := NewMixer()
	one := Format{SampleRate: OutputRate, Channels: 1}
	m.Append(newMemSource(one, []float32{0.5}))
	m.Append(newMemSource(one, []float32{-0.5}))

	out := drain(m, 3)
	if out[0] <= 0 || out[2] >= 0 || out[4] != 0 {
		t.Errorf("out = %v", out)
	}
}

func TestMixerSeekAndClear(t *testing.T) {
	m := NewMixer()
	if err := m.Seek(time.Second); err == nil {
		t.Error("seek on empty mixer should fail")
	}
	samples := make([]float32, OutputRate*2)
	samples[OutputRate] = 0.75
	m.Append(newMemSource(Format{SampleRate: OutputRate, Channels: 1}, samples))
	if err := m.Seek(time.Second); err != nil {
		t.Fatal(err)
	}
	if out := drain(m, 1); out[0] != toInt16(0.75) {
		t.Errorf("after seek sample = %d", out[0])
	}
	m.Clear()
	if !m.Empty() {
		t.Error("Clear should empty the queue")
	}
}

func TestToInt16Clamps(t *testing.T) {
	if toInt16(1.5) != 32767 || toInt16(-3) != -32768 || toInt16(0) != 0 {
		t.Error("toInt16 clamp failed")
	}
}
