package input

// Virtual key codes as reported by the desktop keyboard hook.
const (
	VKShiftLeft  uint16 = 0xA0
	VKShiftRight uint16 = 0xA1
	VKCtrlLeft   uint16 = 0xA2
	VKCtrlRight  uint16 = 0xA3
	VKAltLeft    uint16 = 0xA4
	VKAltRight   uint16 = 0xA5

	VKF1  uint16 = 0x70
	VKF12 uint16 = 0x7B

	VK0 uint16 = 0x30
	VK9 uint16 = 0x39
	VKA uint16 = 0x41
	VKZ uint16 = 0x5A
)

type modifier int

const (
	modNone modifier = iota
	modCtrl
	modShift
	modAlt
)

func modifierOf(code uint16) modifier {
	switch code {
	case VKCtrlLeft, VKCtrlRight:
		return modCtrl
	case VKShiftLeft, VKShiftRight:
		return modShift
	case VKAltLeft, VKAltRight:
		return modAlt
	}
	return modNone
}

// baseOf returns the token base for a printable or function key.
func baseOf(code uint16) (base string, function bool, ok bool) {
	switch {
	case code >= VKF1 && code <= VKF12:
		return fkeyNames[code-VKF1], true, true
	case code >= VK0 && code <= VK9:
		return string(rune('0' + code - VK0)), false, true
	case code >= VKA && code <= VKZ:
		return string(rune('a' + code - VKA)), false, true
	}
	return "", false, false
}

var fkeyNames = [...]string{"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12"}
