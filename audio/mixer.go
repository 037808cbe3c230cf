package audio

import (
	"errors"
	"sync"
	"time"
)

// Output format shared by every device sink.
const (
	OutputRate     = 44100
	OutputChannels = 2
)

const maxVolume = 2.0

var errNothingPlaying = errors.New("nothing playing")

// Mixer is the software half of a sink: a queue of sources played one after
// another, resampled to OutputRate stereo, with pause and volume. Device
// sinks pull from it on their callback thread through Fill.
type Mixer struct {
	mu     sync.Mutex
	queue  []*voice
	paused bool
	volume float32
}

func NewMixer() *Mixer {
	return &Mixer{volume: 1}
}

func (m *Mixer) Append(src Source) {
	m.mu.Lock()
	m.queue = append(m.queue, newVoice(src))
	m.mu.Unlock()
}

func (m *Mixer) Play() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *Mixer) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *Mixer) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Clear drops and closes every queued source.
func (m *Mixer) Clear() {
	m.mu.Lock()
	q := m.queue
	m.queue = nil
	m.mu.Unlock()
	for _, v := range q {
		v.src.Close()
	}
}

func (m *Mixer) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) == 0
}

// SetVolume sets the linear gain, clamped to [0, 2]. NaN mutes.
func (m *Mixer) SetVolume(v float32) {
	if v != v {
		v = 0
	}
	v = min(max(v, 0), maxVolume)
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
}

func (m *Mixer) Volume() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Seek repositions the source that is currently playing.
func (m *Mixer) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return errNothingPlaying
	}
	return m.queue[0].seek(pos)
}

// Fill writes len(out)/2 stereo frames. Silence is written while paused or
// when the queue is empty; finished sources are closed and dequeued.
func (m *Mixer) Fill(out []int16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i+1 < len(out); i += OutputChannels {
		var f [2]float32
		for !m.paused && len(m.queue) > 0 {
			var ok bool
			if f, ok = m.queue[0].frame(); ok {
				break
			}
			m.queue[0].src.Close()
			m.queue[0] = nil
			m.queue = m.queue[1:]
		}
		out[i] = toInt16(f[0] * m.volume)
		out[i+1] = toInt16(f[1] * m.volume)
	}
}

func toInt16(v float32) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	}
	return int16(v * 32767)
}

// voice walks one source, mapping its channels to stereo and linearly
// resampling to OutputRate.
type voice struct {
	src      Source
	channels int
	step     float64

	buf    []float32
	bufPos int
	bufLen int
	eof    bool

	primed  bool
	drained bool
	cur     [2]float32
	nxt     [2]float32
	frac    float64
}

func newVoice(src Source) *voice {
	f := src.Format()
	ch := max(f.Channels, 1)
	rate := f.SampleRate
	if rate <= 0 {
		rate = OutputRate
	}
	return &voice{
		src:      src,
		channels: ch,
		step:     float64(rate) / OutputRate,
		buf:      make([]float32, 1024*ch),
	}
}

// sourceFrame returns the next input frame mapped to stereo.
func (v *voice) sourceFrame() ([2]float32, bool) {
	for tries := 0; v.bufPos+v.channels > v.bufLen; tries++ {
		if v.eof || tries == 3 {
			return [2]float32{}, false
		}
		n, err := v.src.Read(v.buf)
		v.bufPos, v.bufLen = 0, n-n%v.channels
		if err != nil {
			v.eof = true
		}
	}
	s := v.buf[v.bufPos : v.bufPos+v.channels]
	v.bufPos += v.channels
	if v.channels == 1 {
		return [2]float32{s[0], s[0]}, true
	}
	return [2]float32{s[0], s[1]}, true
}

// frame returns the next output frame, false once the source is exhausted.
func (v *voice) frame() ([2]float32, bool) {
	if !v.primed {
		first, ok := v.sourceFrame()
		if !ok {
			return [2]float32{}, false
		}
		v.cur = first
		if v.nxt, ok = v.sourceFrame(); !ok {
			v.nxt, v.drained = first, true
		}
		v.primed = true
	}
	for v.frac >= 1 {
		if v.drained {
			return [2]float32{}, false
		}
		v.cur = v.nxt
		next, ok := v.sourceFrame()
		if !ok {
			next, v.drained = v.cur, true
		}
		v.nxt = next
		v.frac--
	}
	t := float32(v.frac)
	out := [2]float32{
		v.cur[0] + (v.nxt[0]-v.cur[0])*t,
		v.cur[1] + (v.nxt[1]-v.cur[1])*t,
	}
	v.frac += v.step
	return out, true
}

func (v *voice) seek(pos time.Duration) error {
	if err := v.src.Seek(pos); err != nil {
		return err
	}
	v.bufPos, v.bufLen = 0, 0
	v.eof, v.primed, v.drained = false, false, false
	v.frac = 0
	return nil
}
