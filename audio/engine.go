package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"askocr/events"
	"askocr/log"
)

// State is the payload of player-state events, emitted after every command
// the worker executes.
type State struct {
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
	Paused  bool   `json:"paused"`
	Playing bool   `json:"playing"`
	Error   string `json:"error,omitempty"`
}

// Engine owns one worker goroutine, locked to its OS thread, which opens the
// sink and is its only user. Commands run strictly in the order they were
// accepted.
type Engine struct {
	open   SinkFactory
	decode Decoder
	notify events.Sink

	mu     sync.Mutex
	queue  []Command
	closed bool // no more Sends accepted
	dead   bool // worker has exited
	err    error
	wake   chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

type Option func(*Engine)

// WithEvents reports player state to s.
func WithEvents(s events.Sink) Option {
	return func(e *Engine) { e.notify = s }
}

// NewEngine starts the worker. A sink that fails to open kills the worker;
// later Sends are dropped and Err reports why.
func NewEngine(open SinkFactory, decode Decoder, opts ...Option) *Engine {
	if decode == nil {
		decode = DecodeFile
	}
	e := &Engine{
		open:   open,
		decode: decode,
		notify: events.Discard,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	go e.run()
	return e
}

// Send queues cmd. It returns false, and drops the command, once the engine
// is closed or its worker has exited; it never blocks on the worker.
func (e *Engine) Send(cmd Command) bool {
	e.mu.Lock()
	if e.closed || e.dead {
		e.mu.Unlock()
		log.Debugf("audio: dropped %s", cmd)
		return false
	}
	e.queue = append(e.queue, cmd)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting commands, lets the worker finish what is queued,
// closes the sink and waits for the worker to exit.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		select {
		case e.wake <- struct{}{}:
		default:
		}
	})
	<-e.done
}

// Done is closed when the worker has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Err reports why the worker died, or nil.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// next blocks for the next command. A tick from the optional channel makes
// it return a nil command so the worker can look at the sink.
func (e *Engine) next(tick <-chan time.Time) (Command, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) == 0 {
		if e.closed {
			return nil, false
		}
		e.mu.Unlock()
		select {
		case <-e.wake:
		case <-tick:
			e.mu.Lock()
			return nil, true
		}
		e.mu.Lock()
	}
	cmd := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return cmd, true
}

func (e *Engine) die(err error) {
	e.mu.Lock()
	e.dead = true
	e.err = err
	e.queue = nil
	e.mu.Unlock()
	log.Errorf("audio worker stopped: %v", err)
}

func (e *Engine) run() {
	defer close(e.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	sink, err := e.open()
	if err != nil {
		e.die(fmt.Errorf("open sink: %w", err))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.die(fmt.Errorf("panic: %v", r))
		}
		if err := sink.Close(); err != nil {
			log.Warnf("audio: close sink: %v", err)
		}
	}()

	// While a file is queued the worker wakes periodically to report when
	// the sink has drained.
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	var current string
	for {
		var tick <-chan time.Time
		if current != "" {
			tick = ticker.C
		}
		cmd, ok := e.next(tick)
		if !ok {
			return
		}
		if cmd == nil {
			if sink.Empty() {
				e.notify.Emit(events.Event{Name: events.PlayerState, Payload: State{Command: "ended", Path: current}})
				current = ""
			}
			continue
		}
		st := e.exec(sink, cmd)
		switch cmd.(type) {
		case Play:
			if st.Error == "" {
				current = st.Path
			}
		case Stop:
			current = ""
		}
	}
}

// drainPoll is how often the worker checks for the end of playback.
const drainPoll = 200 * time.Millisecond

func (e *Engine) exec(sink Sink, cmd Command) State {
	st := State{Command: cmd.String()}
	var cmdErr error

	switch c := cmd.(type) {
	case Play:
		st.Path = c.Path
		src, err := e.decode(c.Path)
		if err != nil {
			cmdErr = err
			break
		}
		if !sink.Empty() {
			sink.Clear()
		}
		sink.Append(src)
		sink.Play()
	case Pause:
		if !sink.Paused() {
			sink.Pause()
		}
	case Resume:
		if sink.Paused() {
			sink.Play()
		}
	case Stop:
		sink.Clear()
	case SetVolume:
		sink.SetVolume(c.Level)
	case Seek:
		if err := sink.Seek(c.Position()); err != nil {
			log.Debugf("audio: %s: %v", c, err)
		}
	case PlayCue:
		if sink.Empty() {
			sink.Append(CueSource(c.Cue))
			sink.Play()
		}
	default:
		cmdErr = errors.New("unknown command")
	}

	log.PlayerCommand(cmd.String(), cmdErr)
	if cmdErr != nil {
		st.Error = cmdErr.Error()
	}
	st.Paused = sink.Paused()
	st.Playing = !sink.Empty() && !st.Paused
	e.notify.Emit(events.Event{Name: events.PlayerState, Payload: st})
	return st
}
