// Package helper runs one-shot external helper processes (the python audio
// backend) and maps their exit status and stdout to a Result.
package helper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"askocr/cancel"
	"askocr/log"
)

// Output is what a finished child process left behind.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner starts one child process and waits for it. A non-nil error means
// the process never ran to completion on its own: it could not be started
// (*SpawnError) or ctx killed it.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (Output, error)
}

type ExecRunner struct {
	Dir string
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, name string, args []string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	// Grandchildren holding stdout open must not keep Wait blocked after a kill.
	cmd.WaitDelay = 2 * time.Second
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return out, fmt.Errorf("%w: %w", cancel.ErrCancelled, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		if out.ExitCode == 0 {
			out.ExitCode = -1
		}
		return out, nil
	}
	return out, &SpawnError{What: "command", Path: name, Err: err}
}

// Invoker is stateless apart from the paths resolved once at construction;
// Invoke is safe for concurrent use and each call owns its child process.
type Invoker struct {
	paths  Paths
	err    error
	runner Runner
}

// New resolves the interpreter and script once. A resolution failure is
// kept and returned by every Invoke without touching the runner.
func New(loc Locator, c Candidates, runner Runner) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	paths, err := loc.Resolve(c)
	if err != nil {
		log.Warnf("helper resolution failed: %v", err)
	} else {
		log.Infof("helper resolved: interpreter=%s script=%s", paths.Interpreter, paths.Script)
	}
	return &Invoker{paths: paths, err: err, runner: runner}
}

// NewWithPaths skips discovery, for callers that resolved paths themselves.
func NewWithPaths(p Paths, runner Runner) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Invoker{paths: p, runner: runner}
}

func (inv *Invoker) Paths() (Paths, error) { return inv.paths, inv.err }

// Invoke runs the helper for req. The returned error is reserved for
// failures where no result exists: spawn failure, a token that was already
// cancelled, or ctx cancellation killing the child. Everything the helper
// itself reports comes back as a Result.
func (inv *Invoker) Invoke(ctx context.Context, tok *cancel.Token, req Request) (Result, error) {
	if inv.err != nil {
		return Result{}, inv.err
	}
	if err := tok.Err(); err != nil {
		return Result{}, err
	}

	argv := append([]string{inv.paths.Script}, req.Argv()...)
	log.TaskStart(req.ID(), req.Action(), len(argv)-1)
	start := time.Now()

	out, err := inv.runner.Run(ctx, inv.paths.Interpreter, argv)
	if err != nil {
		log.TaskEnd(req.ID(), req.Action(), false, time.Since(start), err.Error())
		return Result{}, err
	}

	res := interpret(out)
	log.TaskEnd(req.ID(), req.Action(), res.Success, time.Since(start), res.Error)
	return res, nil
}

func interpret(out Output) Result {
	if out.ExitCode != 0 {
		msg := strings.TrimSpace(string(out.Stderr) + "\n" + string(out.Stdout))
		return Result{
			Error: fmt.Sprintf("command failed (exit %d): %s", out.ExitCode, msg),
			kind:  ErrExecution,
		}
	}
	doc := bytes.TrimSpace(out.Stdout)
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return Result{
			Error: "parse failure: " + string(out.Stdout),
			kind:  ErrParse,
		}
	}
	return Result{Success: true, Payload: append([]byte(nil), doc...)}
}
