package hotkey

import "encoding/binary"

// Linux input_event layout on 64-bit: 16 bytes of timeval, then
// type, code and value.
const inputEventSize = 24

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keyS       = 31
)

type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

func decodeEvent(b []byte) inputEvent {
	return inputEvent{
		Type:  binary.LittleEndian.Uint16(b[16:]),
		Code:  binary.LittleEndian.Uint16(b[18:]),
		Value: int32(binary.LittleEndian.Uint32(b[20:])),
	}
}

type edge int

const (
	edgeNone edge = iota
	edgeDown
	edgeUp
)

// comboState tracks modifier state for one device and reports when the
// Ctrl+Shift+S chord goes down or comes back up. Autorepeat (value 2)
// leaves state untouched.
type comboState struct {
	ctrl, shift, key bool
}

func (s *comboState) feed(ev inputEvent) edge {
	if ev.Type != evKey {
		return edgeNone
	}
	pressed := ev.Value == keyPress
	released := ev.Value == keyRelease

	switch ev.Code {
	case keyLCtrl, keyRCtrl:
		s.ctrl = pressed || (!released && s.ctrl)
	case keyLShift, keyRShift:
		s.shift = pressed || (!released && s.shift)
	case keyS:
		if pressed && !s.key && s.ctrl && s.shift {
			s.key = true
			return edgeDown
		}
		if released && s.key {
			s.key = false
			return edgeUp
		}
	}
	return edgeNone
}
