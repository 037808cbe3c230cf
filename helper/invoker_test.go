package helper

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"askocr/cancel"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls atomic.Int32
	name  string
	args  []string
	out   Output
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string) (Output, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.name = name
	f.args = append([]string(nil), args...)
	f.mu.Unlock()
	return f.out, f.err
}

var testPaths = Paths{Interpreter: "/venv/bin/python3", Script: "/app/python_backend/audio_ai_helper.py"}

func TestInvokeRoundTrip(t *testing.T) {
	doc := `{"success":true,"text":"hello","segments":[{"start":0,"end":1.5,"text":"hello"}]}`
	fr := &fakeRunner{out: Output{Stdout: []byte(doc + "\n")}}
	inv := NewWithPaths(testPaths, fr)

	res, err := inv.Invoke(context.Background(), nil, NewRequest("transcribe", "a.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Error != "" {
		t.Fatalf("result = %+v, want success", res)
	}
	if string(res.Payload) != doc {
		t.Errorf("payload = %s, want %s", res.Payload, doc)
	}

	var got, want map[string]any
	if err := json.Unmarshal(res.Payload, &got); err != nil {
		t.Fatal(err)
	}
	_ = json.Unmarshal([]byte(doc), &want)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded payload = %v, want %v", got, want)
	}
}

func TestInvokeSpawnFailureShortCircuit(t *testing.T) {
	loc := Locator{
		Exists:   func(string) bool { return false },
		LookPath: func(string) (string, error) { return "", errors.New("not in PATH") },
	}
	c := Candidates{
		Interpreters: []string{"/nope/python3", "../.venv/bin/python3"},
		Command:      "python3",
		Scripts:      []string{"/nope/audio_ai_helper.py"},
	}
	fr := &fakeRunner{}
	inv := New(loc, c, fr)

	for range 3 {
		_, err := inv.Invoke(context.Background(), nil, NewRequest("check-models"))
		if !errors.Is(err, ErrSpawn) {
			t.Fatalf("err = %v, want ErrSpawn", err)
		}
		var se *SpawnError
		if !errors.As(err, &se) || se.What != "interpreter" {
			t.Errorf("err = %#v, want interpreter SpawnError", err)
		}
	}
	if n := fr.calls.Load(); n != 0 {
		t.Errorf("runner called %d times, want 0", n)
	}
}

func TestInvokeMissingScriptShortCircuit(t *testing.T) {
	loc := Locator{
		Exists:   func(p string) bool { return p == "/venv/bin/python3" },
		LookPath: func(string) (string, error) { return "", errors.New("unused") },
	}
	fr := &fakeRunner{}
	inv := New(loc, Candidates{Interpreters: []string{"/venv/bin/python3"}, Scripts: []string{"/missing.py"}}, fr)

	_, err := inv.Invoke(context.Background(), nil, NewRequest("check-models"))
	var se *SpawnError
	if !errors.As(err, &se) || se.What != "script" {
		t.Fatalf("err = %v, want script SpawnError", err)
	}
	if fr.calls.Load() != 0 {
		t.Error("runner should not be called")
	}
}

func TestInvokeNonZeroExit(t *testing.T) {
	fr := &fakeRunner{out: Output{Stdout: []byte("partial"), Stderr: []byte("Traceback: boom"), ExitCode: 1}}
	inv := NewWithPaths(testPaths, fr)

	res, err := inv.Invoke(context.Background(), nil, NewRequest("denoise", "in.wav", "out.wav", "ffmpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "Traceback: boom") || !strings.Contains(res.Error, "partial") {
		t.Errorf("error %q should contain stderr and stdout", res.Error)
	}
	if strings.Index(res.Error, "Traceback") > strings.Index(res.Error, "partial") {
		t.Errorf("stderr should precede stdout in %q", res.Error)
	}
	if !errors.Is(res.Err(), ErrExecution) {
		t.Errorf("Err() = %v, want ErrExecution", res.Err())
	}
}

func TestInvokeParseFailure(t *testing.T) {
	for _, stdout := range []string{"Loading model...\n{\"success\":true}", "", "[1,2,3]", "{broken"} {
		fr := &fakeRunner{out: Output{Stdout: []byte(stdout)}}
		inv := NewWithPaths(testPaths, fr)

		res, err := inv.Invoke(context.Background(), nil, NewRequest("check-models"))
		if err != nil {
			t.Fatal(err)
		}
		if res.Success {
			t.Errorf("stdout %q: expected parse failure", stdout)
			continue
		}
		if !strings.HasPrefix(res.Error, "parse failure") || !strings.Contains(res.Error, stdout) {
			t.Errorf("stdout %q: error = %q", stdout, res.Error)
		}
		if !errors.Is(res.Err(), ErrParse) {
			t.Errorf("stdout %q: Err() = %v, want ErrParse", stdout, res.Err())
		}
	}
}

func TestInvokeCancelledTokenSkipsSpawn(t *testing.T) {
	fr := &fakeRunner{out: Output{Stdout: []byte(`{}`)}}
	inv := NewWithPaths(testPaths, fr)
	tok := cancel.New()
	tok.Cancel()

	_, err := inv.Invoke(context.Background(), tok, DownloadRequest("small"))
	if !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if fr.calls.Load() != 0 {
		t.Error("runner should not be called for a cancelled token")
	}

	tok.Reset()
	if _, err := inv.Invoke(context.Background(), tok, DownloadRequest("small")); err != nil {
		t.Fatalf("after Reset: %v", err)
	}
	if fr.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", fr.calls.Load())
	}
}

func TestInvokeArgv(t *testing.T) {
	fr := &fakeRunner{out: Output{Stdout: []byte(`{"success":true}`)}}
	inv := NewWithPaths(testPaths, fr)

	req, err := TranscribeRequest("/tmp/a b.wav", TranscribeOptions{Language: "de"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inv.Invoke(context.Background(), nil, req); err != nil {
		t.Fatal(err)
	}

	if fr.name != testPaths.Interpreter {
		t.Errorf("interpreter = %q", fr.name)
	}
	want := []string{testPaths.Script, "transcribe", "/tmp/a b.wav", `{"model":"base","format":"srt","language":"de"}`}
	if !reflect.DeepEqual(fr.args, want) {
		t.Errorf("args = %q, want %q", fr.args, want)
	}
}

func TestInvokeConcurrent(t *testing.T) {
	fr := &fakeRunner{out: Output{Stdout: []byte(`{"whisper_models":["base"]}`)}}
	ai := NewAudioAI(NewWithPaths(testPaths, fr))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := ai.CheckModels(context.Background())
			if err == nil && (len(st.WhisperModels) != 1 || st.WhisperModels[0] != "base") {
				err = errors.New("unexpected status")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if fr.calls.Load() != 20 {
		t.Errorf("calls = %d, want 20", fr.calls.Load())
	}
}

func TestDecodeTypedResults(t *testing.T) {
	fr := &fakeRunner{out: Output{Stdout: []byte(`{"success":true,"full_text":"hi","speakers":["SPEAKER_00"],"num_speakers":1,"speakers_data":{"SPEAKER_00":{"words":1}}}`)}}
	ai := NewAudioAI(NewWithPaths(testPaths, fr))

	res, err := ai.TranscribeDiarized(context.Background(), nil, "talk.wav", DiarizeOptions{MaxSpeakers: 3})
	if err != nil {
		t.Fatal(err)
	}
	if res.FullText != "hi" || res.NumSpeakers != 1 || len(res.Speakers) != 1 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(fr.args[len(fr.args)-1], `"max_speakers":3`) {
		t.Errorf("options arg = %s", fr.args[len(fr.args)-1])
	}

	// Wrong shape for the target type surfaces as a parse failure.
	fr.out = Output{Stdout: []byte(`{"whisper_models":"base"}`)}
	if _, err := ai.CheckModels(context.Background()); !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestDownloadRequest(t *testing.T) {
	tests := []struct {
		model string
		want  []string
	}{
		{"small", []string{"download-whisper", "small"}},
		{ModelDiarization, []string{"download-diarization"}},
		{ModelDenoiser, []string{"download-denoiser"}},
	}
	for _, tt := range tests {
		if got := DownloadRequest(tt.model).Argv(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DownloadRequest(%q).Argv() = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestRequestImmutable(t *testing.T) {
	ops := []string{"a.wav"}
	req := NewRequest("transcribe", ops...)
	ops[0] = "mutated"
	if req.Operands()[0] != "a.wav" {
		t.Error("request shares caller's operand slice")
	}
	req.Operands()[0] = "mutated"
	if req.Operands()[0] != "a.wav" {
		t.Error("Operands() exposes internal slice")
	}

	withOpts, err := req.WithOptions(map[string]int{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	if req.Options() != nil {
		t.Error("WithOptions modified the original")
	}
	if string(withOpts.Options()) != `{"n":1}` {
		t.Errorf("options = %s", withOpts.Options())
	}
	if withOpts.ID() != req.ID() || req.ID() == "" {
		t.Error("WithOptions should keep the id")
	}
}

func TestResolveOrder(t *testing.T) {
	existing := map[string]bool{"/b/python3": true, "/c/python3": true, "/s2.py": true}
	loc := Locator{
		Exists:   func(p string) bool { return existing[p] },
		LookPath: func(string) (string, error) { return "/usr/bin/python3", nil },
	}

	p, err := loc.Resolve(Candidates{
		Interpreters: []string{"/a/python3", "/b/python3", "/c/python3"},
		Command:      "python3",
		Scripts:      []string{"/s1.py", "/s2.py"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Interpreter != "/b/python3" || p.Script != "/s2.py" {
		t.Errorf("paths = %+v", p)
	}

	p, err = loc.Resolve(Candidates{Command: "python3", Scripts: []string{"/s2.py"}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Interpreter != "/usr/bin/python3" {
		t.Errorf("PATH fallback = %q", p.Interpreter)
	}
}

func TestDefaultCandidates(t *testing.T) {
	c := DefaultCandidates([]string{"/app/bin"}, ScriptName, []string{"/opt/py"}, []string{"/opt/helper.py"})
	if c.Interpreters[0] != "/opt/py" || c.Scripts[0] != "/opt/helper.py" {
		t.Errorf("extras should come first: %v / %v", c.Interpreters[:1], c.Scripts[:1])
	}
	want := filepath.Join("/app", "python_backend", ScriptName)
	found := false
	for _, s := range c.Scripts {
		if s == want {
			found = true
		}
	}
	if !found {
		t.Errorf("scripts %v missing %s", c.Scripts, want)
	}
	if c.Command == "" {
		t.Error("expected a PATH fallback command")
	}
}

func writeScript(t *testing.T, body string) Paths {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "helper.sh")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return Paths{Interpreter: "/bin/sh", Script: path}
}

func TestExecRunnerRoundTrip(t *testing.T) {
	p := writeScript(t, `printf '{"action":"%s","operand":"%s"}\n' "$1" "$2"`)
	inv := NewWithPaths(p, ExecRunner{})

	res, err := inv.Invoke(context.Background(), nil, NewRequest("check-models", "x"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || string(res.Payload) != `{"action":"check-models","operand":"x"}` {
		t.Errorf("result = %+v (payload %s)", res, res.Payload)
	}
}

func TestExecRunnerExitFailure(t *testing.T) {
	p := writeScript(t, "echo out-text\necho err-text >&2\nexit 3\n")
	inv := NewWithPaths(p, ExecRunner{})

	res, err := inv.Invoke(context.Background(), nil, NewRequest("denoise"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || !strings.Contains(res.Error, "err-text") || !strings.Contains(res.Error, "out-text") {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(res.Error, "exit 3") {
		t.Errorf("error %q should include exit status", res.Error)
	}
}

func TestExecRunnerContextKillsChild(t *testing.T) {
	p := writeScript(t, "exec sleep 10\n")
	inv := NewWithPaths(p, ExecRunner{})

	ctx, cancelFn := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelFn()
	start := time.Now()
	_, err := inv.Invoke(ctx, nil, NewRequest("download-whisper", "large"))
	if !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("child was not killed on context cancellation")
	}
}

func TestExecRunnerMissingInterpreter(t *testing.T) {
	inv := NewWithPaths(Paths{Interpreter: filepath.Join(t.TempDir(), "no-python"), Script: "x.py"}, ExecRunner{})
	_, err := inv.Invoke(context.Background(), nil, NewRequest("check-models"))
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("err = %v, want ErrSpawn", err)
	}
}
