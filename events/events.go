// Package events is the boundary through which progress and results reach
// the UI. Producers call Emit from any goroutine; the UI drains a Bus from
// its own single goroutine.
package events

import (
	"encoding/json"
	"sync"

	"askocr/log"
)

const (
	OllamaProgress = "ollama-progress"
	ModelDownload  = "model-download"
	TaskResult     = "task-result"
	SnipResult     = "snip-result"
	PlayerState    = "player-state"
	OllamaInstall  = "ollama-install-progress"
)

type Event struct {
	Name    string
	Payload any
}

// Progress is the payload of every progress-style event.
type Progress struct {
	Operation  string  `json:"operation"`
	Status     string  `json:"status"`
	Percent    float64 `json:"progress"`
	Downloaded uint64  `json:"downloaded_bytes"`
	Total      uint64  `json:"total_bytes"`
	Error      string  `json:"error,omitempty"`
	Done       bool    `json:"done,omitempty"`
}

// Result is the payload of task-result and snip-result events.
type Result struct {
	Operation string          `json:"operation"`
	Action    string          `json:"action"`
	Success   bool            `json:"success"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type Sink interface {
	Emit(Event)
}

type Func func(Event)

func (f Func) Emit(ev Event) { f(ev) }

var Discard Sink = Func(func(Event) {})

type multi []Sink

func (m multi) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Multi fans every event out to all sinks, in argument order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Bus delivers events to one consumer in emission order. Emit blocks while
// the buffer is full rather than dropping, so progress is never reordered or
// lost; after Close, Emit discards.
type Bus struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewBus(size int) *Bus {
	return &Bus{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

func (b *Bus) Emit(ev Event) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.ch <- ev:
	case <-b.done:
	}
}

func (b *Bus) Events() <-chan Event { return b.ch }

func (b *Bus) Done() <-chan struct{} { return b.done }

func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

type logSink struct{}

// LogSink writes every event to the diagnostics log at debug level.
func LogSink() Sink { return logSink{} }

func (logSink) Emit(ev Event) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		log.Warnf("event %s: %v", ev.Name, err)
		return
	}
	log.Debugf("event %s %s", ev.Name, data)
}

// Recorder keeps every emitted event; used by tests and the headless CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Progress returns the Progress payloads in emission order.
func (r *Recorder) Progress() []Progress {
	var out []Progress
	for _, ev := range r.Events() {
		if p, ok := ev.Payload.(Progress); ok {
			out = append(out, p)
		}
	}
	return out
}
