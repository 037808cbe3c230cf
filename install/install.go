// Package install finds, downloads and installs the Ollama runtime.
package install

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// MinVersion is the oldest Ollama whose pull endpoint streams the
// completed/total fields progress depends on.
const MinVersion = "0.1.30"

type semver struct {
	major, minor, patch int
}

func parseSemver(v string) (semver, error) {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return semver{}, fmt.Errorf("invalid semver: %q", v)
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return semver{}, fmt.Errorf("invalid semver: %q", v)
		}
		out[i] = n
	}
	return semver{out[0], out[1], out[2]}, nil
}

func (s semver) less(o semver) bool {
	if s.major != o.major {
		return s.major < o.major
	}
	if s.minor != o.minor {
		return s.minor < o.minor
	}
	return s.patch < o.patch
}

var versionRE = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[0-9A-Za-z.]+)?`)

// ParseVersion pulls the version out of `ollama --version` output such as
// "ollama version is 0.5.7".
func ParseVersion(out string) (string, error) {
	v := versionRE.FindString(out)
	if v == "" {
		return "", fmt.Errorf("no version in %q", strings.TrimSpace(out))
	}
	return v, nil
}

// Supported reports whether version is at least MinVersion.
func Supported(version string) bool {
	cur, err := parseSemver(version)
	if err != nil {
		return false
	}
	min, _ := parseSemver(MinVersion)
	return !cur.less(min)
}

// Detector looks for an installed Ollama binary.
type Detector struct {
	LookPath func(string) (string, error)
	Exists   func(string) bool
	GOOS     string
	Home     string
}

func DefaultDetector() Detector {
	home, _ := os.UserHomeDir()
	return Detector{
		LookPath: exec.LookPath,
		Exists: func(p string) bool {
			_, err := os.Stat(p)
			return err == nil
		},
		GOOS: runtime.GOOS,
		Home: home,
	}
}

func (d Detector) knownPaths() []string {
	switch d.GOOS {
	case "windows":
		paths := []string{
			`C:\Program Files\Ollama\ollama.exe`,
			`C:\Program Files (x86)\Ollama\ollama.exe`,
		}
		if d.Home != "" {
			paths = append([]string{filepath.Join(d.Home, "AppData", "Local", "Programs", "Ollama", "ollama.exe")}, paths...)
		}
		return paths
	case "darwin":
		paths := []string{"/Applications/Ollama.app", "/usr/local/bin/ollama"}
		if d.Home != "" {
			paths = append(paths, filepath.Join(d.Home, "Applications", "Ollama.app"))
		}
		return paths
	default:
		return []string{"/usr/local/bin/ollama", "/usr/bin/ollama", "/opt/ollama/ollama"}
	}
}

// Find returns the ollama binary on PATH, else the first known install
// location that exists.
func (d Detector) Find() (string, bool) {
	if p, err := d.LookPath("ollama"); err == nil {
		return p, true
	}
	for _, p := range d.knownPaths() {
		if d.Exists(p) {
			return p, true
		}
	}
	return "", false
}

// DownloadURL is the official installer for the platform.
func DownloadURL(goos, goarch string) (string, error) {
	switch goos {
	case "windows":
		return "https://ollama.com/download/OllamaSetup.exe", nil
	case "darwin":
		if goarch == "arm64" {
			return "https://ollama.com/download/Ollama-darwin-arm64.zip", nil
		}
		return "https://ollama.com/download/Ollama-darwin.zip", nil
	case "linux":
		return "https://ollama.com/install.sh", nil
	}
	return "", fmt.Errorf("no Ollama installer for %s/%s", goos, goarch)
}
