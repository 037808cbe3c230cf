package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"askocr/cancel"
	"askocr/events"
	"askocr/stream"
)

func newServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestPullEmitsProgress(t *testing.T) {
	var gotBody pullRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"pulling 6a0746a1ec1a","digest":"sha256:6a07","total":0,"completed":0}`)
		fmt.Fprintln(w, `{"status":"pulling 6a0746a1ec1a","digest":"sha256:6a07","total":400,"completed":100}`)
		fmt.Fprintln(w, `{"status":"verifying sha256 digest"}`)
		fmt.Fprint(w, `{"status":"success"}`)
	})
	c := newServer(t, mux)

	var rec events.Recorder
	if err := c.Pull(context.Background(), nil, "qwen2.5:3b", &rec); err != nil {
		t.Fatal(err)
	}
	if gotBody.Name != "qwen2.5:3b" || !gotBody.Stream {
		t.Errorf("request body = %+v", gotBody)
	}

	evs := rec.Events()
	if len(evs) != 5 {
		t.Fatalf("got %d events, want 5", len(evs))
	}
	for _, ev := range evs {
		if ev.Name != events.OllamaProgress {
			t.Errorf("event name = %q", ev.Name)
		}
	}
	ps := rec.Progress()
	if ps[1].Percent != 0 || ps[1].Total != 0 {
		t.Errorf("zero total should report no progress: %+v", ps[1])
	}
	if ps[2].Percent != 25 || ps[2].Downloaded != 100 || ps[2].Total != 400 {
		t.Errorf("progress = %+v, want 25%% of 400", ps[2])
	}
	if ps[0].Operation != "qwen2.5:3b" {
		t.Errorf("operation = %q", ps[0].Operation)
	}
	if !ps[4].Done {
		t.Error("final event should be done")
	}
}

func TestPullRemoteError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	c := newServer(t, mux)

	var rec events.Recorder
	err := c.Pull(context.Background(), nil, "nope", &rec)
	if !errors.Is(err, stream.ErrRemote) {
		t.Fatalf("err = %v, want ErrRemote", err)
	}
	ps := rec.Progress()
	if len(ps) != 2 {
		t.Fatalf("got %d events, want 2", len(ps))
	}
	if ps[1].Status != "error" || !strings.Contains(ps[1].Error, "file does not exist") {
		t.Errorf("terminal event = %+v", ps[1])
	}
}

func TestPullCancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"a"}`)
	})
	c := newServer(t, mux)
	tok := cancel.New()
	tok.Cancel()

	err := c.Pull(context.Background(), tok, "m", events.Discard)
	if !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestPullEmptyName(t *testing.T) {
	c, err := New("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Pull(context.Background(), nil, "  ", events.Discard); err == nil {
		t.Error("expected error for empty model name")
	}
	if c.URL() != DefaultURL {
		t.Errorf("URL() = %q", c.URL())
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"localhost:11434/x", "://bad"} {
		if _, err := New(u, nil); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}

func TestListDeleteGenerate(t *testing.T) {
	var deleted, prompt string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[
			{"name":"llama3.2:1b","model":"llama3.2:1b","size":1300000000,"digest":"abc","details":{"family":"llama","parameter_size":"1.2B","quantization_level":"Q8_0"}},
			{"name":"qwen2.5:7b","model":"qwen2.5:7b","size":4700000000,"digest":"def","details":{"family":"qwen2"}}
		]}`)
	})
	mux.HandleFunc("DELETE /api/delete", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		deleted = req.Model
	})
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Prompt
		fmt.Fprintf(w, `{"model":%q,"response":"ffmpeg -i {input} {output}","done":true}`+"\n", req.Model)
	})
	c := newServer(t, mux)
	ctx := context.Background()

	models, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0].Family != "llama" || models[0].Quantization != "Q8_0" {
		t.Fatalf("models = %+v", models)
	}
	if ok, err := c.Installed(ctx); err != nil || !ok {
		t.Errorf("Installed() = %v, %v", ok, err)
	}

	if err := c.Delete(ctx, "llama3.2:1b"); err != nil {
		t.Fatal(err)
	}
	if deleted != "llama3.2:1b" {
		t.Errorf("deleted = %q", deleted)
	}

	cmd, model, err := c.SuggestFFmpeg(ctx, "convert to mp3")
	if err != nil {
		t.Fatal(err)
	}
	if model != "qwen2.5:7b" {
		t.Errorf("model = %q, want qwen2.5:7b", model)
	}
	if cmd != "ffmpeg -i {input} {output}" {
		t.Errorf("cmd = %q", cmd)
	}
	if !strings.HasSuffix(prompt, "convert to mp3") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestDeleteMissingModel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/delete", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'x' not found"}`)
	})
	c := newServer(t, mux)
	if err := c.Delete(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
}

func TestBestModel(t *testing.T) {
	tests := []struct {
		name      string
		installed []string
		want      string
	}{
		{"preferred order wins", []string{"mistral:7b", "llama3.1:8b", "deepseek-r1:7b"}, "deepseek-r1:7b"},
		{"family prefix", []string{"gemma:2b", "llama3.2:3b"}, "llama3.2:3b"},
		{"first installed", []string{"gemma:2b", "phi3"}, "gemma:2b"},
		{"nothing installed", nil, FallbackModel},
	}
	for _, tt := range tests {
		var models []Model
		for _, n := range tt.installed {
			models = append(models, Model{Name: n})
		}
		if got := BestModel(models, DefaultPreference); got != tt.want {
			t.Errorf("%s: BestModel = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractCommand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```bash\nffmpeg -i {input} -vn {output}\n```", "ffmpeg -i {input} -vn {output}"},
		{"Here you go:\n  ffprobe -v error {input}\nDone.", "ffprobe -v error {input}"},
		{"  no command here\nsecond", "no command here"},
	}
	for _, tt := range tests {
		if got := ExtractCommand(tt.in); got != tt.want {
			t.Errorf("ExtractCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
