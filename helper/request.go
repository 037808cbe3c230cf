package helper

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Request is one helper invocation: an action, its positional operands and
// an optional options document passed as the last argument. Values are
// immutable; With* methods return copies.
type Request struct {
	id       string
	action   string
	operands []string
	options  []byte
	// bare requests leave the action out of argv; it only names the task
	// in logs.
	bare bool
}

func NewRequest(action string, operands ...string) Request {
	return Request{
		id:       uuid.NewString(),
		action:   action,
		operands: append([]string(nil), operands...),
	}
}

// NewBareRequest is for single-purpose scripts that take their operands
// directly, without an action word.
func NewBareRequest(action string, operands ...string) Request {
	r := NewRequest(action, operands...)
	r.bare = true
	return r
}

// WithOptions returns a copy carrying v serialized as JSON.
func (r Request) WithOptions(v any) (Request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s options: %w", r.action, err)
	}
	r.operands = append([]string(nil), r.operands...)
	r.options = data
	return r, nil
}

// WithID returns a copy with a caller-chosen operation id.
func (r Request) WithID(id string) Request {
	r.operands = append([]string(nil), r.operands...)
	r.id = id
	return r
}

func (r Request) ID() string     { return r.id }
func (r Request) Action() string { return r.action }

func (r Request) Operands() []string {
	return append([]string(nil), r.operands...)
}

func (r Request) Options() json.RawMessage {
	if r.options == nil {
		return nil
	}
	return append(json.RawMessage(nil), r.options...)
}

// Argv is the positional argument vector after the script path.
func (r Request) Argv() []string {
	argv := make([]string, 0, len(r.operands)+2)
	if !r.bare {
		argv = append(argv, r.action)
	}
	argv = append(argv, r.operands...)
	if r.options != nil {
		argv = append(argv, string(r.options))
	}
	return argv
}

// Result is what one completed helper process produced.
type Result struct {
	Success bool
	Payload json.RawMessage
	Error   string

	kind error
}

// Err is nil for a successful result, otherwise a *ResultError wrapping
// ErrExecution or ErrParse.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &ResultError{Kind: r.kind, Msg: r.Error}
}

// Decode unmarshals a successful result's payload into T.
func Decode[T any](r Result) (T, error) {
	var v T
	if err := r.Err(); err != nil {
		return v, err
	}
	if err := json.Unmarshal(r.Payload, &v); err != nil {
		return v, &ResultError{Kind: ErrParse, Msg: fmt.Sprintf("parse failure: %v: %s", err, r.Payload)}
	}
	return v, nil
}
