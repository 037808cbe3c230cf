//go:build !windows && !darwin

package snip

import "context"

func PlatformLauncher() Launcher {
	return func(ctx context.Context) error {
		return startFirst(ctx, []toolCmd{
			{"gnome-screenshot", []string{"-a", "-c"}},
			{"spectacle", []string{"-r", "-b", "-c", "-n"}},
			{"flameshot", []string{"gui", "-c"}},
		})
	}
}
