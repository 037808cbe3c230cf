package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"askocr/audio"
	"askocr/cancel"
	"askocr/events"
	"askocr/helper"
	"askocr/hotkey"
	"askocr/log"
	"askocr/ollama"
	"askocr/snip"
)

type audioService interface {
	CheckModels(ctx context.Context) (helper.ModelStatus, error)
	Download(ctx context.Context, tok *cancel.Token, req helper.Request) (helper.DownloadResult, error)
	Transcribe(ctx context.Context, tok *cancel.Token, path string, opts helper.TranscribeOptions) (helper.TranscriptionResult, error)
	TranscribeDiarized(ctx context.Context, tok *cancel.Token, path string, opts helper.DiarizeOptions) (helper.DiarizationResult, error)
	Denoise(ctx context.Context, tok *cancel.Token, in, out, method string) (helper.FileResult, error)
	ExtractSpeaker(ctx context.Context, tok *cancel.Token, audioPath string, opts helper.ExtractOptions) (helper.FileResult, error)
}

type musicService interface {
	Download(ctx context.Context, tok *cancel.Token, url, dir string) (helper.MusicResult, error)
}

type ffmpegService interface {
	Run(ctx context.Context, tok *cancel.Token, command, in, out string) (helper.FFmpegResult, error)
}

type modelService interface {
	Pull(ctx context.Context, tok *cancel.Token, model string, sink events.Sink) error
	List(ctx context.Context) ([]ollama.Model, error)
	Delete(ctx context.Context, model string) error
	SuggestFFmpeg(ctx context.Context, request string) (cmd, model string, err error)
}

type capturer interface {
	Capture(ctx context.Context, tok *cancel.Token) (snip.Result, error)
}

type player interface {
	Send(cmd audio.Command) bool
}

// App dispatches user actions to the executors. Every long-running action
// gets its own operation id, cancellation token and context, runs on its
// own goroutine and reports through the event sink.
type App struct {
	ai       audioService
	music    musicService
	ffmpeg   ffmpegService
	models   modelService
	capture  capturer
	player   player
	selected func(ctx context.Context) (string, error)
	install  installFunc
	sink     events.Sink
	cues     bool

	tokens *cancel.Registry

	mu    sync.Mutex
	tasks map[string]*task

	wg       sync.WaitGroup
	finished atomic.Int64
}

type task struct {
	class  cancel.Class
	action string
	stop   context.CancelFunc
}

// Deps collects the App's collaborators. Nil members disable the actions
// that need them.
type Deps struct {
	AI       audioService
	Music    musicService
	FFmpeg   ffmpegService
	Models   modelService
	Capture  capturer
	Player   player
	Selected func(ctx context.Context) (string, error)
	Install  installFunc
	Sink     events.Sink
	Cues     bool
}

// installFunc downloads and runs the Ollama installer, returning where it
// was saved.
type installFunc func(ctx context.Context, tok *cancel.Token, sink events.Sink) (string, error)

func NewApp(d Deps) *App {
	sink := d.Sink
	if sink == nil {
		sink = events.Discard
	}
	return &App{
		ai:       d.AI,
		music:    d.Music,
		ffmpeg:   d.FFmpeg,
		models:   d.Models,
		capture:  d.Capture,
		player:   d.Player,
		selected: d.Selected,
		install:  d.Install,
		sink:     sink,
		cues:     d.Cues,
		tokens:   cancel.NewRegistry(),
		tasks:    make(map[string]*task),
	}
}

type taskFunc func(ctx context.Context, tok *cancel.Token) (any, error)

// start runs fn on a new goroutine and returns its operation id. The result
// is published as event name unless the operation was cancelled, in which
// case it is dropped.
func (a *App) start(parent context.Context, class cancel.Class, action, name string, fn taskFunc) string {
	id := uuid.NewString()
	tok := a.tokens.Acquire(class, id)
	ctx, stop := context.WithCancel(parent)

	a.mu.Lock()
	a.tasks[id] = &task{class: class, action: action, stop: stop}
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.finish(class, id)

		begin := time.Now()
		v, err := fn(ctx, tok)
		if tok.Cancelled() {
			log.Infof("%s %s cancelled after %s, result dropped", action, id, time.Since(begin).Round(time.Millisecond))
			return
		}
		a.sink.Emit(events.Event{Name: name, Payload: resultFor(id, action, v, err)})
	}()
	return id
}

func (a *App) finish(class cancel.Class, id string) {
	a.mu.Lock()
	t := a.tasks[id]
	delete(a.tasks, id)
	a.mu.Unlock()
	if t != nil {
		t.stop()
	}
	a.tokens.Release(class, id)
	a.finished.Add(1)
}

// resultFor flattens an executor's return into a task-result payload. A
// payload carrying its own success/error fields (helper and snip results)
// decides the outcome.
func resultFor(id, action string, v any, err error) events.Result {
	res := events.Result{Operation: id, Action: action}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	data, merr := json.Marshal(v)
	if merr != nil {
		res.Error = fmt.Sprintf("encode result: %v", merr)
		return res
	}
	res.Payload = data
	res.Success = true
	if s := gjson.GetBytes(data, "success"); s.Exists() {
		res.Success = s.Bool()
	}
	if !res.Success {
		res.Error = gjson.GetBytes(data, "error").String()
	}
	return res
}

// Cancel cancels one operation: its token is flagged and its context
// cancelled, which kills a running helper process or aborts a download.
func (a *App) Cancel(id string) bool {
	a.mu.Lock()
	t, ok := a.tasks[id]
	a.mu.Unlock()
	if !ok {
		return false
	}
	a.tokens.Cancel(t.class, id)
	t.stop()
	log.Infof("cancel %s %s", t.action, id)
	return true
}

// CancelClass cancels every running operation of class.
func (a *App) CancelClass(class cancel.Class) int {
	n := a.tokens.CancelClass(class)
	a.mu.Lock()
	for _, t := range a.tasks {
		if t.class == class {
			t.stop()
		}
	}
	a.mu.Unlock()
	if n > 0 {
		log.Infof("cancelled %d %s operation(s)", n, class)
	}
	return n
}

func (a *App) CancelAll() int {
	n := 0
	for _, c := range cancel.Classes {
		n += a.CancelClass(c)
	}
	return n
}

// Running lists the operation ids of class still in flight.
func (a *App) Running(class cancel.Class) []string {
	return a.tokens.Active(class)
}

// Wait blocks until every started operation has finished.
func (a *App) Wait() { a.wg.Wait() }

// Finished is the number of operations that have completed or been
// cancelled.
func (a *App) Finished() int { return int(a.finished.Load()) }

// Shutdown cancels everything in flight and waits for it to unwind.
func (a *App) Shutdown() {
	a.CancelAll()
	a.Wait()
}

// PullModel downloads an Ollama model, streaming ollama-progress events.
func (a *App) PullModel(ctx context.Context, model string) string {
	return a.start(ctx, cancel.ClassModelDownload, "pull", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.models == nil {
			return nil, errUnavailable("ollama")
		}
		if err := a.models.Pull(ctx, tok, model, a.sink); err != nil {
			return nil, err
		}
		return map[string]string{"model": model}, nil
	})
}

// InstallOllama downloads and installs the Ollama runtime, streaming
// ollama-install-progress events.
func (a *App) InstallOllama(ctx context.Context) string {
	return a.start(ctx, cancel.ClassModelDownload, "install-ollama", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.install == nil {
			return nil, errUnavailable("installer")
		}
		path, err := a.install(ctx, tok, a.sink)
		if err != nil {
			return nil, err
		}
		return map[string]string{"installer": path}, nil
	})
}

// DownloadHelperModel fetches a whisper, diarization or denoiser model
// through the helper. The helper reports no byte counts, so progress is a
// start and an end event.
func (a *App) DownloadHelperModel(ctx context.Context, model string) string {
	return a.start(ctx, cancel.ClassModelDownload, "download", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.ai == nil {
			return nil, errUnavailable("audio helper")
		}
		a.sink.Emit(events.Event{Name: events.ModelDownload, Payload: events.Progress{
			Operation: model, Status: "downloading",
		}})
		res, err := a.ai.Download(ctx, tok, helper.DownloadRequest(model))
		end := events.Progress{Operation: model, Status: "success", Percent: 100, Done: true}
		switch {
		case err != nil:
			end = events.Progress{Operation: model, Status: "error", Error: err.Error(), Done: true}
		case !res.Success:
			end = events.Progress{Operation: model, Status: "error", Error: res.Error, Done: true}
		}
		if !tok.Cancelled() {
			a.sink.Emit(events.Event{Name: events.ModelDownload, Payload: end})
		}
		return res, err
	})
}

func (a *App) CheckModels(ctx context.Context) string {
	return a.start(ctx, cancel.ClassHelper, "check-models", events.TaskResult, func(ctx context.Context, _ *cancel.Token) (any, error) {
		if a.ai == nil {
			return nil, errUnavailable("audio helper")
		}
		return a.ai.CheckModels(ctx)
	})
}

func (a *App) Transcribe(ctx context.Context, path string, opts helper.TranscribeOptions) string {
	return a.start(ctx, cancel.ClassHelper, "transcribe", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.ai == nil {
			return nil, errUnavailable("audio helper")
		}
		return a.ai.Transcribe(ctx, tok, path, opts)
	})
}

func (a *App) Diarize(ctx context.Context, path string, opts helper.DiarizeOptions) string {
	return a.start(ctx, cancel.ClassHelper, "transcribe-diarize", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.ai == nil {
			return nil, errUnavailable("audio helper")
		}
		return a.ai.TranscribeDiarized(ctx, tok, path, opts)
	})
}

func (a *App) Denoise(ctx context.Context, in, out, method string) string {
	return a.start(ctx, cancel.ClassHelper, "denoise", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.ai == nil {
			return nil, errUnavailable("audio helper")
		}
		return a.ai.Denoise(ctx, tok, in, out, method)
	})
}

// ExtractSpeaker exports subtitles for every speaker of a diarization, or
// one speaker's audio when opts names a speaker and audioPath is set.
func (a *App) ExtractSpeaker(ctx context.Context, audioPath string, opts helper.ExtractOptions) string {
	return a.start(ctx, cancel.ClassHelper, "extract-speaker", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.ai == nil {
			return nil, errUnavailable("audio helper")
		}
		return a.ai.ExtractSpeaker(ctx, tok, audioPath, opts)
	})
}

// RunFFmpeg runs an ffmpeg command line, typically one from Suggest, with
// {input} and {output} filled in.
func (a *App) RunFFmpeg(ctx context.Context, command, in, out string) string {
	return a.start(ctx, cancel.ClassHelper, "ffmpeg", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.ffmpeg == nil {
			return nil, errUnavailable("ffmpeg")
		}
		return a.ffmpeg.Run(ctx, tok, command, in, out)
	})
}

// DownloadMusic fetches the tracks behind url into dir.
func (a *App) DownloadMusic(ctx context.Context, url, dir string) string {
	return a.start(ctx, cancel.ClassHelper, "download-music", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.music == nil {
			return nil, errUnavailable("music downloader")
		}
		return a.music.Download(ctx, tok, url, dir)
	})
}

// Suggest asks the best installed model for an ffmpeg command.
func (a *App) Suggest(ctx context.Context, request string) string {
	return a.start(ctx, cancel.ClassHelper, "suggest", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.models == nil {
			return nil, errUnavailable("ollama")
		}
		cmd, model, err := a.models.SuggestFFmpeg(ctx, request)
		if err != nil {
			return nil, err
		}
		return map[string]string{"command": cmd, "model": model}, nil
	})
}

// Snip runs an interactive region capture. Capture cues play when enabled.
func (a *App) Snip(ctx context.Context) string {
	return a.start(ctx, cancel.ClassCapture, "snip", events.SnipResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.capture == nil {
			return nil, errUnavailable("snipping tool")
		}
		a.cue(audio.CueStart)
		res, err := a.capture.Capture(ctx, tok)
		if tok.Cancelled() {
			return res, err
		}
		if err != nil || !res.Success {
			a.cue(audio.CueError)
		} else {
			a.cue(audio.CueDone)
		}
		return res, err
	})
}

// Selection grabs the focused window's selected text.
func (a *App) Selection(ctx context.Context) string {
	return a.start(ctx, cancel.ClassSelection, "selection", events.TaskResult, func(ctx context.Context, tok *cancel.Token) (any, error) {
		if a.selected == nil {
			return nil, errUnavailable("selection")
		}
		if err := tok.Err(); err != nil {
			return nil, err
		}
		text, err := a.selected(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"text": text}, nil
	})
}

// HandleGesture maps hotkey gestures to actions: a tap starts a capture or
// cancels the one in flight, a hold grabs the selection. A selection grab
// in flight does not count as a capture.
func (a *App) HandleGesture(ctx context.Context, g hotkey.Gesture) string {
	switch g {
	case hotkey.Hold:
		return a.Selection(ctx)
	default:
		if a.CancelClass(cancel.ClassCapture) > 0 {
			return ""
		}
		return a.Snip(ctx)
	}
}

func (a *App) cue(c audio.Cue) {
	if a.cues && a.player != nil {
		a.player.Send(audio.PlayCue{Cue: c})
	}
}

// Player commands are fire-and-forget; false means the engine is gone.

func (a *App) Play(path string) bool        { return a.send(audio.Play{Path: path}) }
func (a *App) Pause() bool                  { return a.send(audio.Pause{}) }
func (a *App) Resume() bool                 { return a.send(audio.Resume{}) }
func (a *App) Stop() bool                   { return a.send(audio.Stop{}) }
func (a *App) SetVolume(level float32) bool { return a.send(audio.SetVolume{Level: level}) }
func (a *App) Seek(seconds float64) bool    { return a.send(audio.Seek{Seconds: seconds}) }

func (a *App) send(cmd audio.Command) bool {
	if a.player == nil {
		return false
	}
	return a.player.Send(cmd)
}

// Models and DeleteModel are quick calls made inline by the caller.

func (a *App) Models(ctx context.Context) ([]ollama.Model, error) {
	if a.models == nil {
		return nil, errUnavailable("ollama")
	}
	return a.models.List(ctx)
}

func (a *App) DeleteModel(ctx context.Context, model string) error {
	if a.models == nil {
		return errUnavailable("ollama")
	}
	return a.models.Delete(ctx, model)
}

type errUnavailable string

func (e errUnavailable) Error() string { return string(e) + " is not available" }
