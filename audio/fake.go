package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FakeSink records every call the engine makes. It keeps the same queue and
// pause state as a Mixer but never touches a device.
type FakeSink struct {
	mu     sync.Mutex
	calls  []string
	queue  []Source
	paused bool
	volume float32
	closed bool
}

func NewFakeSink() *FakeSink { return &FakeSink{volume: 1} }

func (f *FakeSink) record(s string) {
	f.calls = append(f.calls, s)
}

func (f *FakeSink) Append(src Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, src)
	f.record("append")
}

func (f *FakeSink) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	f.record("play")
}

func (f *FakeSink) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.record("pause")
}

func (f *FakeSink) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *FakeSink) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.queue {
		s.Close()
	}
	f.queue = nil
	f.record("clear")
}

func (f *FakeSink) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0
}

func (f *FakeSink) SetVolume(v float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = min(max(v, 0), maxVolume)
	f.record(fmt.Sprintf("volume %.2f", f.volume))
}

func (f *FakeSink) Seek(pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("seek " + pos.String())
	if len(f.queue) == 0 {
		return errNothingPlaying
	}
	return f.queue[0].Seek(pos)
}

func (f *FakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.record("close")
	return nil
}

// Drain empties the queue as if playback had reached the end.
func (f *FakeSink) Drain() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = nil
}

// Calls returns the recorded call log.
func (f *FakeSink) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeSink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeSink) Volume() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

// FakeDecoder returns one second of silence for any path, except paths
// containing "missing", which fail like an absent file.
func FakeDecoder(path string) (Source, error) {
	if strings.Contains(path, "missing") {
		return nil, fmt.Errorf("open %s: %w", path, errors.ErrUnsupported)
	}
	return newMemSource(Format{SampleRate: OutputRate, Channels: 2}, make([]float32, OutputRate*2)), nil
}
