package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"askocr/cancel"
	"askocr/events"
	"askocr/log"
)

// Downloader fetches an installer into a directory, reporting progress as
// ollama-install-progress events.
type Downloader struct {
	Client *http.Client
	Sink   events.Sink
	// SHA256 is the expected hex digest; empty skips verification.
	SHA256 string
}

// Fetch downloads url into dir and returns the installer's path. The file
// is written to a temp name and renamed into place only once complete and
// verified.
func (d Downloader) Fetch(ctx context.Context, tok *cancel.Token, url, dir string) (string, error) {
	if err := tok.Err(); err != nil {
		return "", err
	}
	sink := d.Sink
	if sink == nil {
		sink = events.Discard
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".askocr-ollama-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // no-op after the rename

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		tmpFile.Close()
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		tmpFile.Close()
		if ctx.Err() != nil {
			return "", cancel.ErrCancelled
		}
		return "", fmt.Errorf("download installer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tmpFile.Close()
		return "", fmt.Errorf("download installer: %s", resp.Status)
	}

	sink.Emit(events.Event{Name: events.OllamaInstall, Payload: events.Progress{
		Operation: "ollama", Status: "downloading",
	}})

	hasher := sha256.New()
	src := &progressReader{r: resp.Body, tok: tok, sink: sink, total: resp.ContentLength, last: -1}
	if _, err := io.Copy(io.MultiWriter(tmpFile, hasher), src); err != nil {
		tmpFile.Close()
		if tok.Cancelled() || ctx.Err() != nil {
			return "", cancel.ErrCancelled
		}
		return "", fmt.Errorf("write installer: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("write installer: %w", err)
	}
	actualHash := hex.EncodeToString(hasher.Sum(nil))
	log.Infof("installer %s sha256=%s (%d bytes)", url, actualHash, src.read)

	if d.SHA256 != "" && actualHash != d.SHA256 {
		return "", fmt.Errorf("checksum mismatch: got %s, want %s", short(actualHash), short(d.SHA256))
	}

	dest := filepath.Join(dir, path.Base(req.URL.Path))
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("install download: %w", err)
	}
	sink.Emit(events.Event{Name: events.OllamaInstall, Payload: events.Progress{
		Operation: "ollama", Status: "downloaded", Percent: 100,
		Downloaded: uint64(src.read), Total: uint64(max(src.total, src.read)), Done: true,
	}})
	return dest, nil
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// progressReader emits an event each time the whole-percent value changes
// and fails the copy once the token is cancelled.
type progressReader struct {
	r     io.Reader
	tok   *cancel.Token
	sink  events.Sink
	total int64
	read  int64
	last  int
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.tok.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct != p.last {
			p.last = pct
			p.sink.Emit(events.Event{Name: events.OllamaInstall, Payload: events.Progress{
				Operation:  "ollama",
				Status:     "downloading",
				Percent:    float64(pct),
				Downloaded: uint64(p.read),
				Total:      uint64(p.total),
			}})
		}
	}
	return n, err
}
