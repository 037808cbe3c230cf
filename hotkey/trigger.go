package hotkey

import (
	"sync"
	"time"
)

type Gesture int

const (
	// Tap is a press released before the hold threshold.
	Tap Gesture = iota
	// Hold fires as soon as the key has been down for the threshold.
	Hold
)

func (g Gesture) String() string {
	if g == Hold {
		return "hold"
	}
	return "tap"
}

// Trigger turns raw key edges from a Hotkey into gestures. A tap requests a
// screen capture (or cancels the one in flight); a hold grabs the current
// text selection instead.
type Trigger struct {
	out  chan Gesture
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewTrigger starts reading hk. Presses that arrive within cooldown of the
// previous gesture are ignored.
func NewTrigger(hk Hotkey, holdAfter, cooldown time.Duration) *Trigger {
	t := &Trigger{
		out:  make(chan Gesture, 1),
		done: make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run(hk, holdAfter, cooldown)
	return t
}

// Gestures is closed once the Trigger is closed.
func (t *Trigger) Gestures() <-chan Gesture { return t.out }

// Close stops the reader goroutine. It does not unregister hk.
func (t *Trigger) Close() {
	t.once.Do(func() { close(t.done) })
	t.wg.Wait()
}

func (t *Trigger) run(hk Hotkey, holdAfter, cooldown time.Duration) {
	defer t.wg.Done()
	defer close(t.out)
	var last time.Time
	for {
		select {
		case <-t.done:
			return
		case <-hk.Keydown():
		}

		if !last.IsZero() && time.Since(last) < cooldown {
			// Swallow the matching release so it is not read as the next
			// press's keyup.
			select {
			case <-hk.Keyup():
			case <-t.done:
				return
			}
			continue
		}

		timer := time.NewTimer(holdAfter)
		var g Gesture
		select {
		case <-timer.C:
			g = Hold
		case <-hk.Keyup():
			timer.Stop()
			g = Tap
		case <-t.done:
			timer.Stop()
			return
		}

		last = time.Now()
		select {
		case t.out <- g:
		case <-t.done:
			return
		}

		if g == Hold {
			select {
			case <-hk.Keyup():
			case <-t.done:
				return
			}
		}
	}
}
