package audio

import "time"

// Sink is an output queue owned by the engine worker. Device sinks embed a
// Mixer and add the device lifecycle.
type Sink interface {
	Append(src Source)
	Play()
	Pause()
	Paused() bool
	Clear()
	Empty() bool
	SetVolume(v float32)
	Seek(pos time.Duration) error
	Close() error
}

// SinkFactory opens the output device. The engine calls it on its worker
// thread.
type SinkFactory func() (Sink, error)
