package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"askocr/audio"
	"askocr/clipboard"
	"askocr/config"
	"askocr/events"
	"askocr/helper"
	"askocr/log"
	"askocr/ollama"
	"askocr/shutdown"
	"askocr/snip"
)

var version = "dev"

// options are the command-line flags. They come before the command:
// askocr [flags] <command> [args].
type options struct {
	configPath string
	logPath    string
	debug      bool
	ollamaURL  string
	whisper    string
	format     string
	lang       string
	speakers   int
	speaker    string
	sentences  bool
	method     string
	volume     float64
	noCues     bool
	noHotkey   bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	o := &options{}
	fs := flag.NewFlagSet("askocr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", config.DefaultPath(), "Config file (JSON)")
	fs.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.BoolVar(&o.debug, "debug", false, "Log debug events")
	fs.StringVar(&o.ollamaURL, "ollama", "", "Ollama server URL (overrides config)")
	fs.StringVar(&o.whisper, "whisper", "base", "Whisper model for transcribe/diarize")
	fs.StringVar(&o.format, "format", "srt", "Transcript format: srt, vtt, txt or json")
	fs.StringVar(&o.lang, "lang", "", "Language code for transcription (e.g., en, de). Empty = auto-detect")
	fs.IntVar(&o.speakers, "speakers", 0, "Number of speakers for diarize (0 = detect)")
	fs.StringVar(&o.speaker, "speaker", "", "Speaker label for export (e.g., SPEAKER_00). Empty = subtitles for all speakers")
	fs.BoolVar(&o.sentences, "sentences", false, "Export a speaker's audio as one file per sentence")
	fs.StringVar(&o.method, "method", "denoiser", "Denoise method")
	fs.Float64Var(&o.volume, "volume", -1, "Playback volume 0-2 (overrides config)")
	fs.BoolVar(&o.noCues, "nocues", false, "Disable capture sound cues")
	fs.BoolVar(&o.noHotkey, "nohotkey", false, "Do not register the global capture hotkey")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return o, fs, nil
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "Usage: askocr [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commandList {
		fmt.Fprintf(w, "  %-34s %s\n", c.name+" "+c.args, c.help)
	}
	fmt.Fprintf(w, "\nFlags:\n")
	fs.PrintDefaults()
}

// loadConfig layers CLI flags over the config file and environment.
func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.ollamaURL != "" {
		cfg.Ollama.URL = o.ollamaURL
	}
	if o.logPath != "" {
		cfg.Log.Path = o.logPath
	}
	if o.debug {
		cfg.Log.Debug = true
	}
	if o.volume >= 0 {
		cfg.Audio.Volume = float32(o.volume)
	}
	if o.noCues {
		cfg.Audio.Cues = false
	}
	if o.noHotkey {
		cfg.Hotkey.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogging(cfg *config.Config, stderr io.Writer) {
	logPath, err := log.ResolveDir(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: failed to resolve log directory: %v\n", err)
		return
	}
	log.SetDir(logPath)
	log.SetDebug(cfg.Log.Debug)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(stderr, "Warning: could not create log directory: %v\n", err)
		return
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(stderr, "Warning: could not init logging: %v\n", err)
		return
	}
	log.SessionStart(version)
}

// env is what a command runs with.
type env struct {
	ctx    context.Context
	cfg    *config.Config
	opts   *options
	stdout io.Writer
	stderr io.Writer
	app    *App
	out    *printer
	bus    *events.Bus
	ai     *helper.AudioAI
	music  *helper.Music
	ollama *ollama.Client
	engine *audio.Engine
}

func run(args []string, stdout, stderr io.Writer) int {
	o, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.version {
		fmt.Fprintf(stdout, "askocr %s\n", version)
		return 0
	}

	name := fs.Arg(0)
	if name == "" {
		name = "ui"
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", name)
		usage(stderr, fs)
		return 2
	}
	cmdArgs := fs.Args()
	if len(cmdArgs) > 0 {
		cmdArgs = cmdArgs[1:]
	}
	if len(cmdArgs) < cmd.minArgs {
		fmt.Fprintf(stderr, "Usage: askocr %s %s\n", cmd.name, cmd.args)
		return 2
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	initLogging(cfg, stderr)
	defer log.Close()

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	e := &env{ctx: ctx, cfg: cfg, opts: o, stdout: stdout, stderr: stderr}
	if err := e.build(cmd); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer e.close()

	code := cmd.run(e, cmdArgs)
	log.SessionEnd(e.app.Finished())
	return code
}

// build wires the executors. The audio engine is only started for commands
// that play sound.
func (e *env) build(cmd command) error {
	var sink events.Sink = events.LogSink()
	if !cmd.ownsOutput {
		e.out = newPrinter(e.stdout, isTerminal(e.stdout))
		sink = events.Multi(sink, e.out)
	}
	if cmd.bus {
		e.bus = events.NewBus(256)
		sink = events.Multi(sink, e.bus)
	}

	inv := helper.New(helper.DefaultLocator(), helperCandidates(e.cfg), helper.ExecRunner{})
	e.ai = helper.NewAudioAI(inv)
	e.music = helper.NewMusic(helper.New(helper.DefaultLocator(), musicCandidates(e.cfg), helper.ExecRunner{}))

	oc, err := ollama.New(e.cfg.Ollama.URL, nil)
	if err != nil {
		return err
	}
	e.ollama = oc

	capt := snip.New()
	capt.Grace = e.cfg.Snip.Grace
	capt.Interval = e.cfg.Snip.Interval
	capt.Timeout = e.cfg.Snip.Timeout

	deps := Deps{
		AI:       e.ai,
		Music:    e.music,
		FFmpeg:   helper.NewFFmpeg(helper.ExecRunner{}),
		Models:   oc,
		Capture:  capt,
		Selected: clipboard.SelectedText,
		Install:  installOllama,
		Sink:     sink,
		Cues:     e.cfg.Audio.Cues,
	}
	if cmd.player {
		e.engine = audio.NewEngine(audio.OpenDefaultSink, audio.DecodeFile, audio.WithEvents(sink))
		e.engine.Send(audio.SetVolume{Level: e.cfg.Audio.Volume})
		deps.Player = e.engine
	}
	e.app = NewApp(deps)
	return nil
}

func (e *env) close() {
	// Nobody drains the bus once the command returns.
	if e.bus != nil {
		e.bus.Close()
	}
	e.app.Shutdown()
	if e.engine != nil {
		e.engine.Close()
	}
}

func helperCandidates(cfg *config.Config) helper.Candidates {
	return scriptCandidates(cfg, helper.ScriptName, cfg.Helper.Script)
}

// musicCandidates finds the downloader the same way, with the same
// interpreter preference.
func musicCandidates(cfg *config.Config) helper.Candidates {
	return scriptCandidates(cfg, helper.MusicScriptName, cfg.Helper.Downloader)
}

func scriptCandidates(cfg *config.Config, name, override string) helper.Candidates {
	var interps, scripts []string
	if cfg.Helper.Python != "" {
		interps = append(interps, cfg.Helper.Python)
	}
	if override != "" {
		scripts = append(scripts, override)
	}
	dirs := append(append([]string(nil), cfg.Helper.Dirs...), helper.SearchDirs()...)
	return helper.DefaultCandidates(dirs, name, interps, scripts)
}

// wait blocks until the command's operations finish, then reports whether
// all of them succeeded. An interrupt cancels them first.
func (e *env) wait() int {
	done := make(chan struct{})
	go func() {
		e.app.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-e.ctx.Done():
		fmt.Fprintln(e.stderr, "\nInterrupted, cancelling...")
		e.app.CancelAll()
		<-done
		return 130
	}
	if e.out != nil && e.out.Failed() {
		return 1
	}
	return 0
}

func joinArgs(args []string) string { return strings.Join(args, " ") }
