package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"askocr/cancel"
	"askocr/log"
)

// Update is what a Handler receives for each forwarded record.
type Update struct {
	Record
	Percent float64
	// Failed marks the terminal update produced by an in-band error.
	Failed bool
}

type Handler interface {
	Handle(Update)
}

type HandlerFunc func(Update)

func (f HandlerFunc) Handle(u Update) { f(u) }

const defaultChunk = 32 * 1024

// Runner executes streamed requests. The zero value uses
// http.DefaultClient.
type Runner struct {
	Client    *http.Client
	ChunkSize int
}

func (r *Runner) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

// Run sends req and forwards every complete record to h until the body
// ends, a record reports an error, the token is cancelled or ctx is done.
// Blank and unparsable lines are skipped. A final line without a trailing
// newline is still parsed at EOF.
func (r *Runner) Run(ctx context.Context, tok *cancel.Token, req *http.Request, h Handler) error {
	if err := tok.Err(); err != nil {
		return err
	}
	resp, err := r.client().Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", cancel.ErrCancelled, ctx.Err())
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return &NetworkError{Status: resp.StatusCode, Err: errors.New(msg)}
	}

	size := r.ChunkSize
	if size <= 0 {
		size = defaultChunk
	}
	buf := make([]byte, size)
	var pending []byte
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := pending[:i]
				stop, err := r.forward(tok, line, h)
				pending = pending[i+1:]
				if stop {
					return err
				}
			}
		}
		if rerr == io.EOF {
			if len(bytes.TrimSpace(pending)) > 0 {
				if stop, err := r.forward(tok, pending, h); stop {
					return err
				}
			}
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", cancel.ErrCancelled, ctx.Err())
			}
			return &NetworkError{Err: rerr}
		}
	}
}

func (r *Runner) forward(tok *cancel.Token, line []byte, h Handler) (bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false, nil
	}
	rec, ok := parseLine(line)
	if !ok {
		log.Debugf("stream: skipping unparsable line: %.200s", line)
		return false, nil
	}
	if tok.Cancelled() {
		return true, cancel.ErrCancelled
	}
	if rec.Error != "" {
		h.Handle(Update{Record: rec, Failed: true})
		return true, &RemoteError{Msg: rec.Error}
	}
	h.Handle(Update{Record: rec, Percent: rec.Percent()})
	return false, nil
}
