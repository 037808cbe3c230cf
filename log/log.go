package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	appName  = "askocr"
	diagName = "diagnostics_log.txt"
)

var (
	diagLog  zerolog.Logger
	diagOut  io.WriteCloser
	logMu    sync.Mutex
	logReady bool
	debug    bool
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: ASKOCR_LOG_PATH environment variable
	if envPath := os.Getenv("ASKOCR_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetDebug enables Debugf output. Must be called before Init.
func SetDebug(on bool) {
	debug = on
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	diagOut = &lumberjack.Logger{
		Filename:   filepath.Join(dir, diagName),
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     28,
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagOut,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", os.Getpid()).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagOut != nil {
		diagOut.Close()
		diagOut = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func TaskStart(op, action string, args int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("op", op).
		Str("action", action).
		Int("args", args).
		Msg("task_start")
}

func TaskEnd(op, action string, success bool, elapsed time.Duration, errMsg string) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if !success {
		ev = diagLog.Warn()
	}
	ev = ev.Str("op", op).
		Str("action", action).
		Bool("success", success).
		Float64("elapsed_ms", float64(elapsed.Microseconds())/1000)
	if errMsg != "" {
		ev = ev.Str("error", errMsg)
	}
	ev.Msg("task_end")
}

func PullProgress(model, status string, completed, total uint64) {
	if !logReady {
		return
	}
	diagLog.Debug().
		Str("model", model).
		Str("status", status).
		Uint64("completed", completed).
		Uint64("total", total).
		Msg("pull_progress")
}

func PollTrace(what string, attempt int, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("what", what).
		Int("attempt", attempt).
		Float64("elapsed_s", elapsed.Seconds()).
		Msg("poll")
}

func PlayerCommand(cmd string, err error) {
	if !logReady {
		return
	}
	if err != nil {
		diagLog.Error().Str("cmd", cmd).Err(err).Msg("player")
		return
	}
	diagLog.Debug().Str("cmd", cmd).Msg("player")
}

func SessionStart(version string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("version", version).
		Msg("session_start")
}

func SessionEnd(tasks int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("tasks", tasks).
		Msg("session_end")
}
