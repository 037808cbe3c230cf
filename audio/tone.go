package audio

import "math"

// Cue is a built-in feedback tone.
type Cue int

const (
	CueStart Cue = iota
	CueDone
	CueError
)

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueDone:
		return "done"
	case CueError:
		return "error"
	}
	return "unknown"
}

const (
	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Done: medium pitch, slightly longer
	doneFreq   = 900
	doneVolume = 0.5
	doneDecay  = 40

	// Error: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// CueSource renders the cue as a mono in-memory source.
func CueSource(c Cue) Source {
	var samples []float32
	switch c {
	case CueStart:
		samples = tick(OutputRate, startFreq, 0.2, startVolume, startDecay)
	case CueDone:
		samples = tick(OutputRate, doneFreq, 0.2, doneVolume, doneDecay)
	default:
		samples = doubleBeep(OutputRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	}
	return newMemSource(Format{SampleRate: OutputRate, Channels: 1}, samples)
}

func tick(rate int, freq, duration, volume, decay float64) []float32 {
	n := int(float64(rate) * duration)
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(rate)
		out[i] = float32(math.Sin(2*math.Pi*freq*t) * volume * math.Exp(-t*decay))
	}
	return out
}

func doubleBeep(rate int, freq, beepDur, gapDur, volume, decay float64) []float32 {
	beep := tick(rate, freq, beepDur, volume, decay)
	gap := make([]float32, int(float64(rate)*gapDur))
	out := make([]float32, 0, len(beep)*2+len(gap))
	out = append(out, beep...)
	out = append(out, gap...)
	return append(out, beep...)
}
