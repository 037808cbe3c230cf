// Package ollama manages models on a local Ollama server: streamed pulls
// with progress events, listing, deletion and one-shot generation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"askocr/cancel"
	"askocr/events"
	"askocr/log"
	"askocr/stream"
)

const DefaultURL = "http://localhost:11434"

type Client struct {
	base   *url.URL
	http   *http.Client
	api    *api.Client
	runner *stream.Runner
}

// New builds a client for the server at rawURL. A nil hc uses
// http.DefaultClient.
func New(rawURL string, hc *http.Client) (*Client, error) {
	if rawURL == "" {
		rawURL = DefaultURL
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url %q: %w", rawURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama url %q: scheme and host required", rawURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		base:   base,
		http:   hc,
		api:    api.NewClient(base, hc),
		runner: &stream.Runner{Client: hc},
	}, nil
}

func (c *Client) URL() string { return c.base.String() }

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// Pull downloads model, emitting an ollama-progress event per streamed
// record. It returns when the stream ends, on the first in-band error (after
// emitting it as a failed progress event), or on cancellation.
func (c *Client) Pull(ctx context.Context, tok *cancel.Token, model string, sink events.Sink) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("pull: empty model name")
	}
	body, err := json.Marshal(pullRequest{Name: model, Stream: true})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("api", "pull").String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	log.Infof("pull started: model=%s", model)
	h := stream.HandlerFunc(func(u stream.Update) {
		p := progressFor(model, u)
		if !u.Failed {
			log.PullProgress(model, u.Status, p.Downloaded, p.Total)
		}
		sink.Emit(events.Event{Name: events.OllamaProgress, Payload: p})
	})
	if err := c.runner.Run(ctx, tok, req, h); err != nil {
		log.Warnf("pull failed: model=%s err=%v", model, err)
		return fmt.Errorf("pull %s: %w", model, err)
	}
	log.Infof("pull finished: model=%s", model)
	return nil
}

// progressFor maps a streamed update to the UI payload. Byte counts are only
// reported when the record carries a positive total.
func progressFor(model string, u stream.Update) events.Progress {
	p := events.Progress{
		Operation: model,
		Status:    u.Status,
		Error:     u.Error,
		Done:      u.Done(),
	}
	if u.Failed {
		p.Status = "error"
		return p
	}
	if u.Completed != nil && u.Total != nil && *u.Total > 0 {
		p.Percent = u.Percent
		p.Downloaded = *u.Completed
		p.Total = *u.Total
	}
	return p
}

type Model struct {
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	Digest        string `json:"digest"`
	Family        string `json:"family,omitempty"`
	ParameterSize string `json:"parameter_size,omitempty"`
	Quantization  string `json:"quantization_level,omitempty"`
}

func (c *Client) List(ctx context.Context) ([]Model, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	models := make([]Model, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, Model{
			Name:          m.Name,
			Size:          m.Size,
			Digest:        m.Digest,
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
			Quantization:  m.Details.QuantizationLevel,
		})
	}
	return models, nil
}

func (c *Client) Delete(ctx context.Context, model string) error {
	if err := c.api.Delete(ctx, &api.DeleteRequest{Model: model}); err != nil {
		return fmt.Errorf("delete %s: %w", model, err)
	}
	log.Infof("model deleted: %s", model)
	return nil
}

// Generate runs a non-streamed completion and returns the full response
// text.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	streamOff := false
	var out strings.Builder
	err := c.api.Generate(ctx, &api.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: &streamOff,
	}, func(r api.GenerateResponse) error {
		out.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", model, err)
	}
	return out.String(), nil
}

// Installed reports whether the server answers and has at least one model.
func (c *Client) Installed(ctx context.Context) (bool, error) {
	models, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	return len(models) > 0, nil
}
