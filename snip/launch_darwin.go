//go:build darwin

package snip

import "context"

func PlatformLauncher() Launcher {
	return func(ctx context.Context) error {
		return startFirst(ctx, []toolCmd{{"screencapture", []string{"-i", "-c"}}})
	}
}
