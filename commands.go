package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tidwall/gjson"

	"askocr/audio"
	"askocr/cancel"
	"askocr/clipboard"
	"askocr/doctor"
	"askocr/encoder"
	"askocr/events"
	"askocr/helper"
	"askocr/hotkey"
	"askocr/install"
	"askocr/ollama"
)

type command struct {
	name    string
	args    string
	help    string
	minArgs int
	// player starts the audio engine.
	player bool
	// ownsOutput commands draw their own output instead of the event
	// printer.
	ownsOutput bool
	// bus commands drain events from env.bus themselves.
	bus bool
	run func(e *env, args []string) int
}

var commandList = []command{
	{name: "ui", args: "[audio-file]", help: "Interactive terminal UI (default)", player: true, ownsOutput: true, bus: true, run: runUI},
	{name: "models", help: "List installed Ollama models", run: runModels},
	{name: "pull", args: "<model>", help: "Download an Ollama model", minArgs: 1, run: runPull},
	{name: "rm", args: "<model>", help: "Delete an Ollama model", minArgs: 1, run: runRemove},
	{name: "install-ollama", help: "Download and install Ollama", run: runInstallOllama},
	{name: "suggest", args: "<request...>", help: "Ask the local model for an ffmpeg command", minArgs: 1, run: runSuggest},
	{name: "ffmpeg", args: "<in> <out> <command>", help: "Run an ffmpeg command, filling {input} and {output}", minArgs: 3, run: runFFmpeg},
	{name: "check-models", help: "Show which helper models are installed", run: runCheckModels},
	{name: "download", args: "<whisper-model|diarization|denoiser>", help: "Download a helper model", minArgs: 1, run: runDownload},
	{name: "transcribe", args: "<file>", help: "Transcribe an audio file", minArgs: 1, run: runTranscribe},
	{name: "diarize", args: "<file> [result.json]", help: "Transcribe with speaker labels", minArgs: 1, run: runDiarize},
	{name: "export", args: "<result.json> [audio-file]", help: "Export speaker subtitles, or one speaker's audio with -speaker", minArgs: 1, run: runExport},
	{name: "denoise", args: "<in> <out>", help: "Remove background noise", minArgs: 2, run: runDenoise},
	{name: "download-music", args: "<url> [dir]", help: "Download tracks with the music downloader", minArgs: 1, run: runDownloadMusic},
	{name: "snip", args: "[out.png]", help: "Capture a screen region", player: true, run: runSnip},
	{name: "selection", help: "Print the focused window's selected text", run: runSelection},
	{name: "play", args: "<file>", help: "Play a WAV, FLAC or MP3 file", minArgs: 1, player: true, run: runPlay},
	{name: "convert", args: "<in> <out.flac|out.wav>", help: "Re-encode an audio file", minArgs: 2, run: runConvert},
	{name: "doctor", help: "Run system diagnostics", ownsOutput: true, run: runDoctor},
	{name: "script", help: "Headless mode driven by commands on stdin", player: true, run: runScript},
}

var commands = map[string]command{}

func init() {
	for _, c := range commandList {
		commands[c.name] = c
	}
}

func runModels(e *env, _ []string) int {
	models, err := e.app.Models(e.ctx)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	if len(models) == 0 {
		fmt.Fprintln(e.stdout, "No models installed. Try: askocr pull llama3.2")
		return 0
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tPARAMS\tQUANT")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, formatBytes(uint64(m.Size)), m.ParameterSize, m.Quantization)
	}
	tw.Flush()
	return 0
}

func runPull(e *env, args []string) int {
	e.app.PullModel(e.ctx, args[0])
	return e.wait()
}

func runRemove(e *env, args []string) int {
	if err := e.app.DeleteModel(e.ctx, args[0]); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.stdout, "deleted %s\n", args[0])
	return 0
}

func runInstallOllama(e *env, _ []string) int {
	if msg, ok := ollamaPresent(e.ctx, install.DefaultDetector().Find, e.ollama, e.cfg.Ollama.URL); ok {
		fmt.Fprintln(e.stdout, msg)
		return 0
	}
	e.app.InstallOllama(e.ctx)
	return e.wait()
}

// ollamaPresent reports a usable Ollama: a local binary, or a server at
// url that already has models.
func ollamaPresent(ctx context.Context, find func() (string, bool), c *ollama.Client, url string) (string, bool) {
	if bin, ok := find(); ok {
		return "Ollama is already installed at " + bin, true
	}
	if c == nil {
		return "", false
	}
	if ok, err := c.Installed(ctx); err == nil && ok {
		return "An Ollama server at " + url + " is already serving models", true
	}
	return "", false
}

// installOllama is the App's installer: fetch the platform installer into
// the user cache directory, then run it.
func installOllama(ctx context.Context, tok *cancel.Token, sink events.Sink) (string, error) {
	url, err := install.DownloadURL(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	path, err := install.Downloader{Sink: sink}.Fetch(ctx, tok, url, filepath.Join(dir, "askocr"))
	if err != nil {
		return "", err
	}
	if err := tok.Err(); err != nil {
		return "", err
	}
	sink.Emit(events.Event{Name: events.OllamaInstall, Payload: events.Progress{Operation: "ollama", Status: "installing"}})
	if err := install.NewInstaller(runtime.GOOS).Install(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

func runSuggest(e *env, args []string) int {
	e.app.Suggest(e.ctx, joinArgs(args))
	return e.wait()
}

// runFFmpeg takes the command as one argument, as suggest prints it; extra
// arguments are joined onto it.
func runFFmpeg(e *env, args []string) int {
	e.app.RunFFmpeg(e.ctx, joinArgs(args[2:]), args[0], args[1])
	return e.wait()
}

func runCheckModels(e *env, _ []string) int {
	e.app.CheckModels(e.ctx)
	return e.wait()
}

func runDownload(e *env, args []string) int {
	e.app.DownloadHelperModel(e.ctx, args[0])
	return e.wait()
}

func runTranscribe(e *env, args []string) int {
	e.app.Transcribe(e.ctx, args[0], helper.TranscribeOptions{
		Model:    e.opts.whisper,
		Format:   e.opts.format,
		Language: e.opts.lang,
	})
	return e.wait()
}

func runDiarize(e *env, args []string) int {
	e.app.Diarize(e.ctx, args[0], helper.DiarizeOptions{
		Model:       e.opts.whisper,
		Language:    e.opts.lang,
		NumSpeakers: e.opts.speakers,
	})
	code := e.wait()
	if code != 0 || len(args) < 2 {
		return code
	}
	return e.saveResult("transcribe-diarize", args[1])
}

// saveResult writes the last payload of action to path.
func (e *env) saveResult(action, path string) int {
	res, ok := e.out.Last(action)
	if !ok || !res.Success {
		return 1
	}
	if err := os.WriteFile(path, res.Payload, 0o644); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.stdout, "saved %s\n", path)
	return 0
}

func runExport(e *env, args []string) int {
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	var audioPath string
	if len(args) > 1 {
		audioPath = args[1]
	}
	opts, err := exportOptions(args[0], data, audioPath, e.opts.speaker, e.opts.sentences)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	e.app.ExtractSpeaker(e.ctx, audioPath, opts)
	return e.wait()
}

// exportOptions turns a saved diarization into export options. Output goes
// next to the result file and is named after it.
func exportOptions(resultPath string, data []byte, audioPath, speaker string, sentences bool) (helper.ExtractOptions, error) {
	var diar helper.DiarizationResult
	if err := json.Unmarshal(data, &diar); err != nil {
		return helper.ExtractOptions{}, fmt.Errorf("%s: %w", resultPath, err)
	}
	if !diar.Success {
		return helper.ExtractOptions{}, fmt.Errorf("%s is not a successful diarization", resultPath)
	}
	dir := filepath.Dir(resultPath)
	base := strings.TrimSuffix(filepath.Base(resultPath), filepath.Ext(resultPath))
	opts := helper.ExtractOptions{Diarization: diar}

	if speaker == "" {
		if audioPath != "" {
			return helper.ExtractOptions{}, errors.New("-speaker is required to export audio")
		}
		opts.OutputDir, opts.BaseName = dir, base
		return opts, nil
	}
	if len(diar.Speakers) > 0 && !slices.Contains(diar.Speakers, speaker) {
		return helper.ExtractOptions{}, fmt.Errorf("unknown speaker %q (have %s)", speaker, strings.Join(diar.Speakers, ", "))
	}
	ext := ".srt"
	if audioPath != "" {
		ext = ".mp3"
		opts.PerSentence = sentences
	}
	opts.Speaker = speaker
	opts.OutputPath = filepath.Join(dir, base+"_"+speaker+ext)
	return opts, nil
}

func runDenoise(e *env, args []string) int {
	e.app.Denoise(e.ctx, args[0], args[1], e.opts.method)
	return e.wait()
}

func runDownloadMusic(e *env, args []string) int {
	dir := e.cfg.Helper.MusicDir
	if len(args) > 1 {
		dir = args[1]
	}
	if dir == "" {
		dir = defaultMusicDir()
	}
	e.app.DownloadMusic(e.ctx, args[0], dir)
	return e.wait()
}

func defaultMusicDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "askocr-music"
	}
	return filepath.Join(home, "Music", "askocr")
}

func runSnip(e *env, args []string) int {
	e.app.Snip(e.ctx)
	code := e.wait()
	if code != 0 || len(args) == 0 {
		return code
	}
	res, ok := e.out.Last("snip")
	if !ok || !res.Success {
		return 1
	}
	png, err := decodeDataURL(gjson.GetBytes(res.Payload, "image_data").String())
	if err == nil {
		err = os.WriteFile(args[0], png, 0o644)
	}
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.stdout, "saved %s\n", args[0])
	return 0
}

func decodeDataURL(s string) ([]byte, error) {
	_, data, ok := strings.Cut(s, ";base64,")
	if !ok {
		return nil, errors.New("not a base64 data URL")
	}
	return base64.StdEncoding.DecodeString(data)
}

func runSelection(e *env, _ []string) int {
	e.app.Selection(e.ctx)
	return e.wait()
}

func runPlay(e *env, args []string) int {
	if _, err := os.Stat(args[0]); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	if !e.app.Play(args[0]) {
		fmt.Fprintf(e.stderr, "Error: audio output unavailable: %v\n", e.engine.Err())
		return 1
	}
	fmt.Fprintf(e.stdout, "playing %s (Ctrl+C to stop)\n", args[0])
	select {
	case <-e.out.Ended():
		return 0
	case <-e.engine.Done():
		fmt.Fprintf(e.stderr, "Error: audio output stopped: %v\n", e.engine.Err())
		return 1
	case <-e.ctx.Done():
		e.app.Stop()
		return 130
	}
}

func runConvert(e *env, args []string) int {
	in, out := args[0], args[1]
	if err := convert(in, out); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.stdout, "wrote %s\n", out)
	return 0
}

func convert(in, out string) (err error) {
	kind, err := encoder.ForPath(out)
	if err != nil {
		return err
	}
	src, err := audio.DecodeFile(in)
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(out)
		}
	}()

	format := src.Format()
	var enc encoder.Encoder
	switch kind {
	case "flac":
		enc, err = encoder.NewFlac(f, format.SampleRate, format.Channels)
	default:
		enc, err = encoder.NewWAV(f, format.SampleRate, format.Channels)
	}
	if err != nil {
		return err
	}
	if _, err := audio.Transcode(src, enc); err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	return enc.Close()
}

func runDoctor(e *env, _ []string) int {
	sources := doctor.Sources{
		HelperPaths: func() (string, string, error) {
			p, err := e.ai.Invoker().Paths()
			return p.Interpreter, p.Script, err
		},
		HelperModels: func(ctx context.Context) ([]string, bool, bool, error) {
			st, err := e.ai.CheckModels(ctx)
			return st.WhisperModels, st.DiarizationInstalled, st.DenoiserInstalled, err
		},
		HelperEnv: func(ctx context.Context) (doctor.HelperEnv, error) {
			info, err := e.ai.DebugEnv(ctx)
			return doctor.HelperEnv{
				Python:       info.Executable,
				Version:      info.Version,
				Whisper:      info.WhisperInstalled,
				WhisperError: info.WhisperError,
			}, err
		},
		OllamaBinary: install.DefaultDetector().Find,
		OllamaModels: func(ctx context.Context) ([]string, error) {
			models, err := e.ollama.List(ctx)
			names := make([]string, len(models))
			for i, m := range models {
				names[i] = m.Name
			}
			return names, err
		},
		ReadText: clipboard.Read,
		HasImage: clipboard.HasImage,
		OpenAudio: func() (func() error, error) {
			s, err := audio.OpenDefaultSink()
			if err != nil {
				return nil, err
			}
			return s.Close, nil
		},
		Hotkey: hotkey.Diagnose,
	}
	return doctor.Run(e.ctx, e.stdout, doctor.Standard(sources))
}

// Capture hotkey timing. A press held longer than holdAfter grabs the
// selection; presses within cooldown of the last gesture are ignored.
const (
	holdAfter = 350 * time.Millisecond
	cooldown  = 300 * time.Millisecond
)
