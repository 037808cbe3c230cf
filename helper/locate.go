package helper

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Candidates lists where to look for the interpreter and the helper script,
// in priority order.
type Candidates struct {
	Interpreters []string
	Command      string // bare interpreter name tried via PATH last
	Scripts      []string
}

// Paths is the outcome of a successful resolution.
type Paths struct {
	Interpreter string
	Script      string
}

// Locator checks the filesystem. Both hooks are replaceable for tests.
type Locator struct {
	Exists   func(path string) bool
	LookPath func(file string) (string, error)
}

func DefaultLocator() Locator {
	return Locator{Exists: fileExists, LookPath: exec.LookPath}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Resolve picks the first existing interpreter candidate, else Command via
// PATH, and the first existing script. Anything missing is a *SpawnError.
func (l Locator) Resolve(c Candidates) (Paths, error) {
	var p Paths
	for _, cand := range c.Interpreters {
		if l.Exists(cand) {
			p.Interpreter = cand
			break
		}
	}
	if p.Interpreter == "" {
		if c.Command == "" {
			return Paths{}, &SpawnError{What: "interpreter"}
		}
		path, err := l.LookPath(c.Command)
		if err != nil {
			return Paths{}, &SpawnError{What: "interpreter", Path: c.Command, Err: err}
		}
		p.Interpreter = path
	}

	for _, cand := range c.Scripts {
		if l.Exists(cand) {
			p.Script = cand
			break
		}
	}
	if p.Script == "" {
		return Paths{}, &SpawnError{What: "script"}
	}
	return p, nil
}

// DefaultCandidates builds the search lists for a helper script that lives
// in a python_backend directory next to (or above) one of baseDirs, with an
// optional virtualenv beside it. extraInterpreters and extraScripts are
// tried first.
func DefaultCandidates(baseDirs []string, script string, extraInterpreters, extraScripts []string) Candidates {
	c := Candidates{
		Interpreters: append([]string(nil), extraInterpreters...),
		Scripts:      append([]string(nil), extraScripts...),
		Command:      "python3",
	}
	venvPython := filepath.Join(".venv", "bin", "python3")
	if runtime.GOOS == "windows" {
		venvPython = filepath.Join(".venv", "Scripts", "python.exe")
		c.Command = "python"
	}
	for _, base := range baseDirs {
		if base == "" {
			continue
		}
		for _, up := range []string{".", "..", filepath.Join("..", "..")} {
			root := filepath.Join(base, up)
			c.Interpreters = append(c.Interpreters,
				filepath.Join(root, venvPython),
				filepath.Join(root, "python_backend", venvPython),
			)
			c.Scripts = append(c.Scripts, filepath.Join(root, "python_backend", script))
		}
	}
	return c
}

// SearchDirs returns the working directory and the executable's directory.
func SearchDirs() []string {
	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}
