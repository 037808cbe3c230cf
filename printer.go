package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"golang.org/x/term"

	"askocr/audio"
	"askocr/events"
)

// printer is the event sink for one-shot CLI commands. On a terminal
// progress redraws a single line; otherwise a line is printed per status
// change.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	tty    bool
	failed bool
	inline bool
	status map[string]string
	last   map[string]events.Result
	ended  chan string
}

func newPrinter(w io.Writer, tty bool) *printer {
	return &printer{
		w:      w,
		tty:    tty,
		status: make(map[string]string),
		last:   make(map[string]events.Result),
		ended:  make(chan string, 1),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) Emit(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch v := ev.Payload.(type) {
	case events.Progress:
		p.progress(v)
	case events.Result:
		p.result(v)
	case audio.State:
		p.player(v)
	}
}

func (p *printer) progress(pr events.Progress) {
	line := progressLine(pr)
	if p.tty && !pr.Done && pr.Error == "" {
		fmt.Fprintf(p.w, "\r\033[K%s", line)
		p.inline = true
		return
	}
	if !p.tty && p.status[pr.Operation] == pr.Status && !pr.Done {
		return
	}
	p.status[pr.Operation] = pr.Status
	p.endInline()
	fmt.Fprintln(p.w, line)
}

func (p *printer) endInline() {
	if p.inline {
		fmt.Fprintln(p.w)
		p.inline = false
	}
}

func progressLine(pr events.Progress) string {
	if pr.Error != "" {
		return fmt.Sprintf("%s: error: %s", pr.Operation, pr.Error)
	}
	if pr.Total > 0 {
		return fmt.Sprintf("%s: %s %5.1f%% (%s / %s)", pr.Operation, pr.Status, pr.Percent,
			formatBytes(pr.Downloaded), formatBytes(pr.Total))
	}
	return fmt.Sprintf("%s: %s", pr.Operation, pr.Status)
}

func (p *printer) result(r events.Result) {
	p.endInline()
	p.last[r.Action] = r
	if !r.Success {
		p.failed = true
		fmt.Fprintf(p.w, "✗ %s failed: %s\n", r.Action, r.Error)
		return
	}
	fmt.Fprintf(p.w, "✓ %s\n", r.Action)
	if len(r.Payload) == 0 {
		return
	}
	out := pretty.Pretty(elideImage(r.Payload))
	if p.tty {
		out = pretty.Color(out, nil)
	}
	p.w.Write(out)
}

func (p *printer) player(st audio.State) {
	switch {
	case st.Error != "":
		p.endInline()
		p.failed = true
		fmt.Fprintf(p.w, "player: %s: %s\n", st.Command, st.Error)
	case st.Command == "ended":
		select {
		case p.ended <- st.Path:
		default:
		}
	}
}

// elideImage replaces a capture's data URL with its size; nobody wants a
// megabyte of base64 in the terminal.
func elideImage(payload []byte) []byte {
	img := gjson.GetBytes(payload, "image_data")
	if !img.Exists() {
		return payload
	}
	out, err := sjson.SetBytes(payload, "image_data", fmt.Sprintf("<%s data URL>", formatBytes(uint64(len(img.String())))))
	if err != nil {
		return payload
	}
	return out
}

func (p *printer) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Last returns the most recent result for action.
func (p *printer) Last(action string) (events.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.last[action]
	return r, ok
}

// Ended receives the path of each file that finished playing.
func (p *printer) Ended() <-chan string { return p.ended }

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
