// Package action decodes configured touch actions and resolves key tokens to
// them.
package action

import (
	"fmt"

	"vtouch/internal/touch"
)

// Kind identifies an action variant.
type Kind int

const (
	KindClick Kind = iota + 1
	KindSwipe
	KindSwipeDirection
	KindSwipeArea
	KindPad
	KindTouchStart
	KindTouchEnd
)

// Action is a closed set of touch gestures. Values are immutable.
type Action interface {
	Kind() Kind
	String() string
	isAction()
}

// Click taps at a normalized point.
type Click struct{ X, Y float64 }

// Swipe drags between two normalized points.
type Swipe struct{ X0, Y0, X1, Y1 float64 }

// SwipeDirection drags from a normalized point by a direction scaled to a
// quarter of the shorter screen side.
type SwipeDirection struct{ X, Y, DX, DY float64 }

// SwipeArea drags from a normalized point along the current aim vector.
type SwipeArea struct{ X, Y float64 }

// Pad is a virtual joystick centred at a normalized point. Radius is the
// stick travel as a fraction of the shorter screen side.
type Pad struct{ X, Y, Radius float64 }

// TouchStart puts a contact down in a slot. It is produced by the reactor,
// never parsed from configuration.
type TouchStart struct {
	Slot touch.Slot
	X, Y float64
}

// TouchEnd lifts the contact held in a slot.
type TouchEnd struct {
	Slot touch.Slot
}

// DefaultPadRadius applies when a pad omits its radius.
const DefaultPadRadius = 0.05

// PadOwner is the slot owner key of the joystick contact.
const PadOwner = "pad"

// Args is dispatch-time context captured when an action is enqueued.
type Args struct {
	AimX, AimY float64
}

func (Click) Kind() Kind          { return KindClick }
func (Swipe) Kind() Kind          { return KindSwipe }
func (SwipeDirection) Kind() Kind { return KindSwipeDirection }
func (SwipeArea) Kind() Kind      { return KindSwipeArea }
func (Pad) Kind() Kind            { return KindPad }
func (TouchStart) Kind() Kind     { return KindTouchStart }
func (TouchEnd) Kind() Kind       { return KindTouchEnd }

func (Click) isAction()          {}
func (Swipe) isAction()          {}
func (SwipeDirection) isAction() {}
func (SwipeArea) isAction()      {}
func (Pad) isAction()            {}
func (TouchStart) isAction()     {}
func (TouchEnd) isAction()       {}

func (a Click) String() string { return fmt.Sprintf("click %g %g", a.X, a.Y) }

func (a Swipe) String() string {
	return fmt.Sprintf("swipe %g %g %g %g", a.X0, a.Y0, a.X1, a.Y1)
}

func (a SwipeDirection) String() string {
	return fmt.Sprintf("swipe_direction %g %g %g %g", a.X, a.Y, a.DX, a.DY)
}

func (a SwipeArea) String() string { return fmt.Sprintf("swipe_area %g %g", a.X, a.Y) }

func (a Pad) String() string { return fmt.Sprintf("pad %g %g %g", a.X, a.Y, a.Radius) }

func (a TouchStart) String() string {
	return fmt.Sprintf("touch_start slot=%d %g %g", a.Slot.Index, a.X, a.Y)
}

func (a TouchEnd) String() string { return fmt.Sprintf("touch_end slot=%d", a.Slot.Index) }
