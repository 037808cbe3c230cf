package audio

import (
	"fmt"
	"time"
)

// Command is one request to the audio worker.
type Command interface {
	fmt.Stringer
	command()
}

// Play decodes the file and replaces whatever is playing.
type Play struct{ Path string }

type Pause struct{}

type Resume struct{}

// Stop clears the queue.
type Stop struct{}

// SetVolume sets the linear gain; the sink clamps it.
type SetVolume struct{ Level float32 }

// Seek moves the current source to an absolute position in seconds.
type Seek struct{ Seconds float64 }

// PlayCue plays a short feedback tone when nothing else is playing.
type PlayCue struct{ Cue Cue }

func (Play) command()      {}
func (Pause) command()     {}
func (Resume) command()    {}
func (Stop) command()      {}
func (SetVolume) command() {}
func (Seek) command()      {}
func (PlayCue) command()   {}

func (c Play) String() string      { return "play " + c.Path }
func (Pause) String() string       { return "pause" }
func (Resume) String() string      { return "resume" }
func (Stop) String() string        { return "stop" }
func (c SetVolume) String() string { return fmt.Sprintf("volume %.2f", c.Level) }
func (c Seek) String() string      { return fmt.Sprintf("seek %s", c.Position()) }
func (c PlayCue) String() string   { return "cue " + c.Cue.String() }

func (c Seek) Position() time.Duration {
	return time.Duration(c.Seconds * float64(time.Second))
}
