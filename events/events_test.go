package events

import (
	"sync"
	"testing"
	"time"
)

func TestBusPreservesOrder(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	const n = 100
	go func() {
		for i := range n {
			bus.Emit(Event{Name: ModelDownload, Payload: i})
		}
	}()

	for want := range n {
		select {
		case ev := <-bus.Events():
			if got := ev.Payload.(int); got != want {
				t.Fatalf("event %d out of order: got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func TestBusEmitAfterCloseDoesNotBlock(t *testing.T) {
	bus := NewBus(0)
	bus.Close()
	bus.Close()

	done := make(chan struct{})
	go func() {
		bus.Emit(Event{Name: TaskResult})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked after Close")
	}
}

func TestBusCloseUnblocksPendingEmit(t *testing.T) {
	bus := NewBus(0)
	done := make(chan struct{})
	go func() {
		bus.Emit(Event{Name: TaskResult})
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pending Emit not released by Close")
	}
}

func TestMultiFanOut(t *testing.T) {
	var a, b Recorder
	s := Multi(&a, nil, &b)
	s.Emit(Event{Name: SnipResult, Payload: Result{Success: true}})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("fan-out counts = %d, %d; want 1, 1", len(a.Events()), len(b.Events()))
	}
}

func TestRecorderProgress(t *testing.T) {
	var r Recorder
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Emit(Event{Name: OllamaProgress, Payload: Progress{Status: "pulling", Percent: 50}})
		r.Emit(Event{Name: TaskResult, Payload: Result{}})
		r.Emit(Event{Name: OllamaProgress, Payload: Progress{Status: "success", Percent: 100}})
	}()
	wg.Wait()

	p := r.Progress()
	if len(p) != 2 || p[0].Status != "pulling" || p[1].Status != "success" {
		t.Errorf("Progress() = %+v", p)
	}
}

func TestFuncAndDiscard(t *testing.T) {
	var got string
	Func(func(ev Event) { got = ev.Name }).Emit(Event{Name: PlayerState})
	if got != PlayerState {
		t.Errorf("got %q", got)
	}
	Discard.Emit(Event{Name: PlayerState})
	LogSink().Emit(Event{Name: PlayerState, Payload: Progress{}})
}
