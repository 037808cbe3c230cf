//go:build !linux && !darwin && !windows

package clipboard

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("clipboard images not supported on this platform")

func hasImage(context.Context) (bool, error) { return false, errUnsupported }

func readImagePNG(context.Context) ([]byte, error) { return nil, errUnsupported }
