package hotkey

// Combo is the capture shortcut on every platform.
const Combo = "Ctrl+Shift+S"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
