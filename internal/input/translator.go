package input

import "vtouch/internal/protocol"

// Mouse buttons in raw events.
const (
	ButtonLeft  = 1
	ButtonRight = 2
)

// Translator turns raw hook events from one capture stream into protocol
// messages. Repeated pointer positions are suppressed and only button presses
// are forwarded.
type Translator struct {
	keys  *Tracker
	lastX int
	lastY int
	moved bool
}

// NewTranslator returns a translator with fresh key state.
func NewTranslator() *Translator {
	return &Translator{keys: NewTracker()}
}

// Translate converts ev, reporting false when it produces nothing.
func (tr *Translator) Translate(ev protocol.RawEvent) (protocol.Message, bool) {
	switch ev.Type {
	case protocol.RawKey:
		tok, ok := tr.keys.Record(ev.KeyCode, ev.Pressed)
		if !ok {
			return protocol.Message{}, false
		}
		return protocol.Key(tok.String()), true

	case protocol.RawPointerMove:
		if tr.moved && ev.X == tr.lastX && ev.Y == tr.lastY {
			return protocol.Message{}, false
		}
		tr.moved = true
		tr.lastX, tr.lastY = ev.X, ev.Y
		return protocol.Move(ev.X, ev.Y), true

	case protocol.RawPointerBtn:
		if !ev.Pressed {
			return protocol.Message{}, false
		}
		switch ev.Button {
		case ButtonLeft:
			return protocol.Click(false, ev.X, ev.Y), true
		case ButtonRight:
			return protocol.Click(true, ev.X, ev.Y), true
		}
	}
	return protocol.Message{}, false
}
