package encoder

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
)

func sine(frames, channels int) []int16 {
	out := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		s := int16(math.Sin(2*math.Pi*440*float64(i)/44100) * 12000)
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = s
		}
	}
	return out
}

func TestFlacRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.flac")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := NewFlac(f, 44100, 2)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	samples := sine(BlockSize*2+100, 2)
	for i := 0; i < len(samples); i += 3000 {
		if err := enc.Write(samples[i:min(i+3000, len(samples))]); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.Close()
	if enc.TotalFrames() != BlockSize*2+100 {
		t.Errorf("TotalFrames = %d", enc.TotalFrames())
	}

	stream, err := flac.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	defer stream.Close()
	if stream.Info.SampleRate != 44100 || stream.Info.NChannels != 2 {
		t.Errorf("info = %+v", stream.Info)
	}
	var got []int16
	for {
		fr, err := stream.ParseNext()
		if err != nil {
			break
		}
		for i := 0; i < int(fr.BlockSize); i++ {
			got = append(got, int16(fr.Subframes[0].Samples[i]), int16(fr.Subframes[1].Samples[i]))
		}
	}
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	for i := range got {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestFlacRejectsSurround(t *testing.T) {
	if _, err := NewFlac(&bytes.Buffer{}, 48000, 6); err == nil {
		t.Error("expected error for 6 channels")
	}
}

func TestFlacEmpty(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewFlac(&buf, 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("fLaC")) {
		t.Error("output does not start with FLAC magic")
	}
}

func TestWAVHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := NewWAV(f, 22050, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Write(sine(1000, 1)); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != wavHeaderSize+2000 {
		t.Fatalf("file size = %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("bad magic")
	}
	if got := binary.LittleEndian.Uint32(data[40:]); got != 2000 {
		t.Errorf("data size = %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:]); got != 22050 {
		t.Errorf("sample rate = %d", got)
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path, want string
		err        bool
	}{
		{"a.FLAC", "flac", false},
		{"dir/b.wav", "wav", false},
		{"c.mp3", "", true},
	}
	for _, tt := range tests {
		got, err := ForPath(tt.path)
		if got != tt.want || (err != nil) != tt.err {
			t.Errorf("ForPath(%q) = %q, %v", tt.path, got, err)
		}
	}
}
