// Package stream reads newline-delimited JSON progress records from a
// long-running HTTP response and forwards them in arrival order.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Record is one decoded progress line. Completed and Total are nil when the
// line did not carry them.
type Record struct {
	Status    string  `json:"status"`
	Digest    string  `json:"digest,omitempty"`
	Completed *uint64 `json:"completed,omitempty"`
	Total     *uint64 `json:"total,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Percent is completed/total*100 when both are known and total is
// positive, otherwise 0.
func (r Record) Percent() float64 {
	if r.Completed == nil || r.Total == nil || *r.Total == 0 {
		return 0
	}
	return float64(*r.Completed) / float64(*r.Total) * 100
}

func (r Record) Done() bool { return r.Status == "success" }

// parseLine decodes a single line. ok is false for blank lines and lines
// that are not a JSON object.
func parseLine(line []byte) (rec Record, ok bool) {
	if !gjson.ValidBytes(line) || !gjson.ParseBytes(line).IsObject() {
		return Record{}, false
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

var (
	ErrNetwork = errors.New("network failure")
	ErrRemote  = errors.New("remote failure")
)

// NetworkError covers connect failures, non-2xx statuses and body read
// errors.
type NetworkError struct {
	Status int // 0 when no response was received
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", ErrNetwork, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrNetwork, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// RemoteError is a record that reported an error in-band.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return fmt.Sprintf("%s: %s", ErrRemote, e.Msg) }

func (e *RemoteError) Unwrap() error { return ErrRemote }
