package helper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"

	"askocr/cancel"
	"askocr/log"
)

// ErrForbidden rejects commands that mention a file-deleting or
// disk-formatting verb anywhere in their text.
var ErrForbidden = errors.New("command contains forbidden patterns")

var forbiddenPatterns = []string{"rm ", "del ", "format ", "rmdir ", "rd "}

type FFmpegResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FFmpegArgs vets a generated ffmpeg command line and splits it into the
// arguments after the program name, with {input} and {output} filled in.
// Shell operators end the command and are rejected.
func FFmpegArgs(command, in, out string) ([]string, error) {
	lower := strings.ToLower(command)
	for _, p := range forbiddenPatterns {
		if strings.Contains(lower, p) {
			return nil, ErrForbidden
		}
	}
	p := shellwords.NewParser()
	words, err := p.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("shell operators are not allowed: %q", command[p.Position:])
	}
	if len(words) == 0 || !isFFmpeg(words[0]) {
		return nil, errors.New("not an ffmpeg command")
	}
	args := words[1:]
	for i, a := range args {
		a = strings.ReplaceAll(a, "{input}", in)
		args[i] = strings.ReplaceAll(a, "{output}", out)
	}
	return args, nil
}

func isFFmpeg(word string) bool {
	base := strings.ToLower(filepath.Base(word))
	return base == "ffmpeg" || base == "ffmpeg.exe"
}

// FFmpeg runs vetted ffmpeg command lines. The program named in the command
// is ignored; Bin (default "ffmpeg" from PATH) always runs.
type FFmpeg struct {
	Bin    string
	Runner Runner
}

func NewFFmpeg(runner Runner) *FFmpeg {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpeg{Bin: "ffmpeg", Runner: runner}
}

// Run executes command. A rejected command is an unsuccessful result, like
// a non-zero exit; the error return is kept for spawn failures and
// cancellation.
func (f *FFmpeg) Run(ctx context.Context, tok *cancel.Token, command, in, out string) (FFmpegResult, error) {
	args, err := FFmpegArgs(command, in, out)
	if err != nil {
		return FFmpegResult{Error: err.Error()}, nil
	}
	if err := tok.Err(); err != nil {
		return FFmpegResult{}, err
	}
	args = append([]string{"-nostdin", "-hide_banner"}, args...)

	id := uuid.NewString()
	log.TaskStart(id, "ffmpeg", len(args))
	start := time.Now()
	o, err := f.Runner.Run(ctx, f.Bin, args)
	if err != nil {
		log.TaskEnd(id, "ffmpeg", false, time.Since(start), err.Error())
		return FFmpegResult{}, err
	}

	res := FFmpegResult{Success: o.ExitCode == 0, Output: tail(o.Stderr, 2000)}
	if !res.Success {
		res.Error = fmt.Sprintf("ffmpeg exited with %d: %s", o.ExitCode, lastLine(o.Stderr))
	}
	log.TaskEnd(id, "ffmpeg", res.Success, time.Since(start), res.Error)
	return res, nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

func lastLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
