package device

import (
	"sort"

	"vtouch/internal/touch"
)

// OpKind is a per-contact change decoded from a frame.
type OpKind int

const (
	OpDown OpKind = iota + 1
	OpMove
	OpUp
)

// ContactOp is one contact change in panel coordinates.
type ContactOp struct {
	Kind     OpKind
	Slot     int
	X, Y     int32
	Pressure int32
}

type contact struct {
	x, y, pressure int32
	active         bool
	down, up       bool
	changed        bool
}

// FrameDecoder folds type-B multitouch events into contact operations for
// transports that speak in contacts rather than events.
type FrameDecoder struct {
	slot     int
	contacts map[int]*contact
}

// NewFrameDecoder returns a decoder with no active contacts.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{contacts: make(map[int]*contact)}
}

func (d *FrameDecoder) current() *contact {
	c, ok := d.contacts[d.slot]
	if !ok {
		c = &contact{}
		d.contacts[d.slot] = c
	}
	return c
}

// Feed consumes one event. At SYN_REPORT it returns the operations of the
// completed frame in slot order.
func (d *FrameDecoder) Feed(ev touch.Event) []ContactOp {
	switch ev.Type {
	case touch.EvAbs:
		switch ev.Code {
		case touch.AbsMTSlot:
			d.slot = int(ev.Value)
		case touch.AbsMTTrackingID:
			c := d.current()
			if ev.Value == touch.TrackingIDNone {
				c.up = c.active || c.down
				c.down = false
			} else if !c.active {
				c.down = true
				c.up = false
			}
		case touch.AbsMTPositionX:
			c := d.current()
			c.x, c.changed = ev.Value, true
		case touch.AbsMTPositionY:
			c := d.current()
			c.y, c.changed = ev.Value, true
		case touch.AbsMTPressure:
			c := d.current()
			c.pressure, c.changed = ev.Value, true
		}
	case touch.EvSyn:
		if ev.Code == touch.SynReport {
			return d.flush()
		}
	}
	return nil
}

// Decode feeds every event and collects the resulting operations.
func (d *FrameDecoder) Decode(events []touch.Event) []ContactOp {
	var ops []ContactOp
	for _, ev := range events {
		ops = append(ops, d.Feed(ev)...)
	}
	return ops
}

func (d *FrameDecoder) flush() []ContactOp {
	slots := make([]int, 0, len(d.contacts))
	for s := range d.contacts {
		slots = append(slots, s)
	}
	sort.Ints(slots)

	var ops []ContactOp
	for _, s := range slots {
		c := d.contacts[s]
		op := ContactOp{Slot: s, X: c.x, Y: c.y, Pressure: c.pressure}
		switch {
		case c.up:
			op.Kind = OpUp
			delete(d.contacts, s)
		case c.down:
			op.Kind = OpDown
			c.active = true
		case c.changed && c.active:
			op.Kind = OpMove
		default:
			c.changed = false
			continue
		}
		c.down, c.up, c.changed = false, false, false
		ops = append(ops, op)
	}
	return ops
}
