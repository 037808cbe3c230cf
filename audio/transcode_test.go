package audio

import (
	"errors"
	"testing"
)

type pcmBuffer struct {
	samples []int16
	fail    error
}

func (b *pcmBuffer) Write(s []int16) error {
	if b.fail != nil {
		return b.fail
	}
	b.samples = append(b.samples, s...)
	return nil
}

func TestTranscodeLossless(t *testing.T) {
	samples := pcm(10000, 2)
	samples[0], samples[1] = 32767, -32768
	src, err := DecodeFile(writeFixture(t, "in.wav", 16000, 2, samples))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	var out pcmBuffer
	frames, err := Transcode(src, &out)
	if err != nil {
		t.Fatal(err)
	}
	if frames != 10000 {
		t.Errorf("frames = %d, want 10000", frames)
	}
	if len(out.samples) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(out.samples), len(samples))
	}
	for i := range samples {
		if out.samples[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, out.samples[i], samples[i])
		}
	}
}

func TestTranscodeWriterError(t *testing.T) {
	src, err := DecodeFile(writeFixture(t, "in.flac", 8000, 1, pcm(100, 1)))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	boom := errors.New("disk full")
	if _, err := Transcode(src, &pcmBuffer{fail: boom}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestPCM16Clamps(t *testing.T) {
	tests := map[float32]int16{0: 0, 1.5: 32767, -1: -32768, -2: -32768, 0.5: 16384}
	for in, want := range tests {
		if got := pcm16(in); got != want {
			t.Errorf("pcm16(%v) = %d, want %d", in, got, want)
		}
	}
}
