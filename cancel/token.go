// Package cancel provides cooperative stop flags for classes of long-running
// operations (model downloads, helper jobs, captures).
package cancel

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCancelled is returned by executors that observed a cancelled token at
// one of their checkpoints.
var ErrCancelled = errors.New("operation cancelled")

// Token is a shared stop flag. Checks are advisory: setting the flag never
// interrupts work already running, it only affects the next checkpoint.
// The zero value is a live (not cancelled) token.
type Token struct {
	flag atomic.Bool
}

func New() *Token { return &Token{} }

func (t *Token) Reset() { t.flag.Store(false) }

func (t *Token) Cancel() { t.flag.Store(true) }

// Cancelled reports whether Cancel was called since the last Reset. A nil
// token is never cancelled.
func (t *Token) Cancelled() bool {
	return t != nil && t.flag.Load()
}

// Err returns ErrCancelled when the token is set, nil otherwise.
func (t *Token) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Class names a kind of operation that can be cancelled as a group.
type Class string

const (
	ClassModelDownload Class = "model-download"
	ClassHelper        Class = "helper"
	ClassCapture       Class = "capture"
	ClassSelection     Class = "selection"
)

// Classes lists every class, for callers that act on all of them.
var Classes = []Class{ClassModelDownload, ClassHelper, ClassCapture, ClassSelection}

type key struct {
	class Class
	id    string
}

// Registry hands out one token per operation. Each operation gets its own
// flag, so cancelling one download leaves a concurrent one of the same class
// running; CancelClass covers the "cancel everything of this kind" case.
type Registry struct {
	mu     sync.Mutex
	tokens map[key]*Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[key]*Token)}
}

// Acquire returns a reset token registered under (class, id). Acquiring an id
// that is still registered resets and reuses its token.
func (r *Registry) Acquire(class Class, id string) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{class, id}
	t, ok := r.tokens[k]
	if !ok {
		t = New()
		r.tokens[k] = t
	}
	t.Reset()
	return t
}

func (r *Registry) Release(class Class, id string) {
	r.mu.Lock()
	delete(r.tokens, key{class, id})
	r.mu.Unlock()
}

// Cancel sets the token for (class, id). It reports false when no such
// operation is registered.
func (r *Registry) Cancel(class Class, id string) bool {
	r.mu.Lock()
	t, ok := r.tokens[key{class, id}]
	r.mu.Unlock()
	if ok {
		t.Cancel()
	}
	return ok
}

// CancelClass sets every registered token of the class and returns how many
// were set.
func (r *Registry) CancelClass(class Class) int {
	r.mu.Lock()
	var hit []*Token
	for k, t := range r.tokens {
		if k.class == class {
			hit = append(hit, t)
		}
	}
	r.mu.Unlock()
	for _, t := range hit {
		t.Cancel()
	}
	return len(hit)
}

// Active returns the ids of registered operations of the class.
func (r *Registry) Active(class Class) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for k := range r.tokens {
		if k.class == class {
			ids = append(ids, k.id)
		}
	}
	return ids
}
