// Package poll waits for a condition that some other program will make true
// (an image appearing on the clipboard, a file being written) by sampling it
// at a fixed interval within a time budget.
package poll

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"askocr/cancel"
	"askocr/log"
)

type Outcome int

const (
	Waiting Outcome = iota
	Succeeded
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Waiting:
		return "waiting"
	case Succeeded:
		return "succeeded"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Check samples the condition. An error counts as "not yet".
type Check func(ctx context.Context) (bool, error)

type Watcher struct {
	Name     string
	Grace    time.Duration // initial wait before the first sample
	Interval time.Duration
	Timeout  time.Duration // total budget, measured from the call to Wait
	Token    *cancel.Token

	// TraceEvery is how many attempts pass between trace lines; 0 means 5.
	TraceEvery int
}

// Wait sleeps Grace, then samples check every Interval until it reports
// true, the budget is spent, ctx is done or Token is cancelled. cleanup runs
// once, after a successful sample and before Wait returns.
func (w Watcher) Wait(ctx context.Context, check Check, cleanup func()) Outcome {
	start := time.Now()
	deadline := start.Add(w.Timeout)
	every := w.TraceEvery
	if every <= 0 {
		every = 5
	}
	trace := rate.Sometimes{Every: every}

	if w.Grace > 0 && !w.sleep(ctx, w.Grace) {
		return Cancelled
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil || w.Token.Cancelled() {
			return Cancelled
		}
		ok, err := check(ctx)
		if err != nil {
			log.Debugf("%s: sample %d: %v", w.name(), attempt, err)
		}
		if ok && err == nil {
			if cleanup != nil {
				cleanup()
			}
			return Succeeded
		}
		trace.Do(func() { log.PollTrace(w.name(), attempt, time.Since(start)) })

		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Infof("%s: timed out after %d attempts (%s)", w.name(), attempt, time.Since(start).Round(time.Millisecond))
			return TimedOut
		}
		if !w.sleep(ctx, min(w.Interval, remaining)) {
			return Cancelled
		}
	}
}

// Notifier is a native completion signal. Fire is delivered at most once.
type Notifier interface {
	Fire() <-chan struct{}
}

// WaitNotify waits for n to fire instead of sampling, with the same budget,
// cancellation and cleanup rules as Wait. A fire with confirm returning
// false is ignored and waiting continues.
func (w Watcher) WaitNotify(ctx context.Context, n Notifier, confirm Check, cleanup func()) Outcome {
	if w.Token.Cancelled() {
		return Cancelled
	}
	timer := time.NewTimer(w.Timeout)
	defer timer.Stop()

	var tokenPoll <-chan time.Time
	if w.Token != nil {
		t := time.NewTicker(tokenInterval(w.Interval))
		defer t.Stop()
		tokenPoll = t.C
	}

	fire := n.Fire()
	for {
		select {
		case <-ctx.Done():
			return Cancelled
		case <-timer.C:
			log.Infof("%s: timed out waiting for notification", w.name())
			return TimedOut
		case <-tokenPoll:
			if w.Token.Cancelled() {
				return Cancelled
			}
		case _, open := <-fire:
			if !open {
				fire = nil
			}
			if confirm != nil {
				if ok, err := confirm(ctx); !ok || err != nil {
					continue
				}
			}
			if cleanup != nil {
				cleanup()
			}
			return Succeeded
		}
	}
}

func tokenInterval(d time.Duration) time.Duration {
	if d <= 0 || d > 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	return d
}

func (w Watcher) name() string {
	if w.Name == "" {
		return "poll"
	}
	return w.Name
}

// sleep waits d, returning false when ctx or the token ends the wait early.
func (w Watcher) sleep(ctx context.Context, d time.Duration) bool {
	if w.Token == nil {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}
	end := time.Now().Add(d)
	for {
		if w.Token.Cancelled() {
			return false
		}
		left := time.Until(end)
		if left <= 0 {
			return true
		}
		t := time.NewTimer(min(left, tokenInterval(w.Interval)))
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}
