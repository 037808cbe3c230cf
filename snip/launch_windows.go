//go:build windows

package snip

import "context"

func PlatformLauncher() Launcher {
	return func(ctx context.Context) error {
		return startFirst(ctx, []toolCmd{
			{"snippingtool", []string{"/clip"}},
			{"explorer", []string{"ms-screenclip:"}},
		})
	}
}
