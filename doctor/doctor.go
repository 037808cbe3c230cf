// Package doctor runs system diagnostics for the external pieces askocr
// depends on: the audio helper, Ollama, the clipboard, audio output and the
// global hotkey.
package doctor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Check is one diagnostic. Run returns a short detail line on success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
	// Optional checks report WARN instead of FAIL and do not affect the
	// exit code.
	Optional bool
}

const checkTimeout = 15 * time.Second

// Run executes checks in order and returns an exit code (0=all pass, 1=any
// required check failed).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "askocr doctor - system diagnostics")
	fmt.Fprintln(w, "==================================")

	allPass := true
	for i, c := range checks {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.Name)

		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		detail, err := run(cctx, c)
		cancel()

		switch {
		case err == nil:
			fmt.Fprintf(w, "  PASS: %s\n", detail)
		case c.Optional:
			fmt.Fprintf(w, "  WARN: %v\n", err)
		default:
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			allPass = false
		}
		if ctx.Err() != nil {
			fmt.Fprintln(w, "\nInterrupted")
			return 1
		}
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func run(ctx context.Context, c Check) (detail string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()
	return c.Run(ctx)
}

// HelperEnv is what the helper reports about its interpreter.
type HelperEnv struct {
	Python       string
	Version      string
	Whisper      bool
	WhisperError string
}

// Sources are the system calls the standard checks make.
type Sources struct {
	HelperPaths  func() (interpreter, script string, err error)
	HelperModels func(ctx context.Context) (whisper []string, diarization, denoiser bool, err error)
	HelperEnv    func(ctx context.Context) (HelperEnv, error)
	OllamaBinary func() (string, bool)
	OllamaModels func(ctx context.Context) ([]string, error)
	ReadText     func() (string, error)
	HasImage     func(ctx context.Context) (bool, error)
	OpenAudio    func() (close func() error, err error)
	Hotkey       func() (string, error)
}

// Standard builds the default check list from sources. Nil sources are
// skipped.
func Standard(p Sources) []Check {
	var checks []Check
	if p.HelperPaths != nil {
		checks = append(checks, Check{Name: "Audio helper", Run: func(ctx context.Context) (string, error) {
			interp, script, err := p.HelperPaths()
			if err != nil {
				return "", err
			}
			if p.HelperModels == nil {
				return fmt.Sprintf("%s %s", interp, script), nil
			}
			whisper, diar, den, err := p.HelperModels(ctx)
			if err != nil {
				return "", fmt.Errorf("helper found at %s but check-models failed: %w", script, err)
			}
			return fmt.Sprintf("%s; whisper models: %s; diarization: %s; denoiser: %s",
				script, listOrNone(whisper), yesNo(diar), yesNo(den)), nil
		}})
	}
	if p.HelperEnv != nil {
		checks = append(checks, Check{Name: "Python environment", Optional: true, Run: func(ctx context.Context) (string, error) {
			env, err := p.HelperEnv(ctx)
			if err != nil {
				return "", err
			}
			version, _, _ := strings.Cut(env.Version, " ")
			detail := fmt.Sprintf("%s (python %s)", env.Python, version)
			if !env.Whisper {
				return "", fmt.Errorf("%s: whisper is not importable: %s", detail, env.WhisperError)
			}
			return detail + "; whisper importable", nil
		}})
	}
	if p.OllamaBinary != nil || p.OllamaModels != nil {
		checks = append(checks, Check{Name: "Ollama", Run: func(ctx context.Context) (string, error) {
			var detail []string
			if p.OllamaBinary != nil {
				bin, ok := p.OllamaBinary()
				if !ok {
					return "", fmt.Errorf("ollama is not installed (run: askocr install-ollama)")
				}
				detail = append(detail, bin)
			}
			if p.OllamaModels != nil {
				models, err := p.OllamaModels(ctx)
				if err != nil {
					return "", fmt.Errorf("server not reachable: %w", err)
				}
				detail = append(detail, fmt.Sprintf("%d model(s): %s", len(models), listOrNone(models)))
			}
			return strings.Join(detail, "; "), nil
		}})
	}
	if p.ReadText != nil {
		checks = append(checks, Check{Name: "Clipboard text", Run: func(context.Context) (string, error) {
			text, err := p.ReadText()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("read %d bytes", len(text)), nil
		}})
	}
	if p.HasImage != nil {
		checks = append(checks, Check{Name: "Clipboard images", Optional: true, Run: func(ctx context.Context) (string, error) {
			ok, err := p.HasImage(ctx)
			if err != nil {
				return "", err
			}
			if ok {
				return "image on clipboard", nil
			}
			return "image tool available (clipboard holds no image)", nil
		}})
	}
	if p.OpenAudio != nil {
		checks = append(checks, Check{Name: "Audio output", Run: func(context.Context) (string, error) {
			closeFn, err := p.OpenAudio()
			if err != nil {
				return "", err
			}
			if err := closeFn(); err != nil {
				return "", fmt.Errorf("close: %w", err)
			}
			return "default output device opened", nil
		}})
	}
	if p.Hotkey != nil {
		checks = append(checks, Check{Name: "Global hotkey", Optional: true, Run: func(context.Context) (string, error) {
			return p.Hotkey()
		}})
	}
	return checks
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
