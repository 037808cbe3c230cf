package install

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"askocr/log"
)

// Installer runs a downloaded Ollama installer for one platform.
type Installer struct {
	GOOS string
	// Run executes one command and returns its combined output.
	Run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func NewInstaller(goos string) Installer {
	return Installer{GOOS: goos, Run: execRun}
}

// Install runs the installer at path and starts the service where the
// platform allows. Failing to start the service is logged, not returned.
func (in Installer) Install(ctx context.Context, path string) error {
	switch in.GOOS {
	case "windows":
		if out, err := in.Run(ctx, path, "/SILENT", "/NORESTART"); err != nil {
			return installErr(err, out)
		}
		in.bestEffort(ctx, "net", "start", "ollama")
	case "darwin":
		if out, err := in.Run(ctx, "unzip", "-o", path, "-d", "/Applications"); err != nil {
			return installErr(err, out)
		}
		in.bestEffort(ctx, "open", "-a", "Ollama")
	case "linux":
		if out, err := in.Run(ctx, "sh", path); err != nil {
			return installErr(err, out)
		}
		in.bestEffort(ctx, "systemctl", "--user", "start", "ollama")
	default:
		return fmt.Errorf("cannot install Ollama on %s", in.GOOS)
	}
	log.Infof("ollama installed from %s", filepath.Base(path))
	return nil
}

func (in Installer) bestEffort(ctx context.Context, name string, args ...string) {
	if out, err := in.Run(ctx, name, args...); err != nil {
		log.Warnf("%s %s: %v: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
}

func installErr(err error, out []byte) error {
	if msg := strings.TrimSpace(string(out)); msg != "" {
		return fmt.Errorf("installation failed: %w: %s", err, msg)
	}
	return fmt.Errorf("installation failed: %w", err)
}
