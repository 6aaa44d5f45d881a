package input

// Tracker converts raw key-code transitions into canonical tokens. It keeps
// the set of keys currently held and the ctrl/shift/alt flags.
//
// Tracker is not safe for concurrent use; each capture stream owns one.
type Tracker struct {
	down  map[uint16]struct{}
	ctrl  bool
	shift bool
	alt   bool
}

// NewTracker returns a tracker with no keys held.
func NewTracker() *Tracker {
	return &Tracker{down: make(map[uint16]struct{})}
}

// Record registers a key transition and returns the token it produces, if any.
//
// A press for a key that is already held is dropped, which filters OS
// auto-repeat. Modifier keys update the flags and never emit. Function keys
// emit F<n> without modifier prefixes or release marker, on press and on
// release alike. Prefixes are taken from the flags at
// the moment of the event, for releases as well as presses, so a release
// can carry different prefixes than its press.
func (t *Tracker) Record(code uint16, pressed bool) (Token, bool) {
	if pressed {
		if _, held := t.down[code]; held {
			return Token{}, false
		}
		t.down[code] = struct{}{}
	} else {
		delete(t.down, code)
	}

	switch modifierOf(code) {
	case modCtrl:
		t.ctrl = pressed
		return Token{}, false
	case modShift:
		t.shift = pressed
		return Token{}, false
	case modAlt:
		t.alt = pressed
		return Token{}, false
	}

	base, function, ok := baseOf(code)
	if !ok {
		return Token{}, false
	}
	if function {
		return Token{Base: base}, true
	}
	return Token{
		Release: !pressed,
		Ctrl:    t.ctrl,
		Shift:   t.shift,
		Alt:     t.alt,
		Base:    base,
	}, true
}

// Held reports whether code is currently down.
func (t *Tracker) Held(code uint16) bool {
	_, ok := t.down[code]
	return ok
}
