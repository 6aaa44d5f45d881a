package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/action"
	"vtouch/internal/touch"
)

// SynthSlot is the contact used to synthesize taps and swipes on transports
// without native gestures. It lies outside the allocator's pool; panels with
// fewer contacts get their highest slot instead.
const SynthSlot = touch.MaxSlots + 1

// Options tunes a Controller.
type Options struct {
	SwipeDuration time.Duration
	PadRadius     float64
	// SwipeStep is the interval between synthesized swipe motions.
	SwipeStep time.Duration
}

type padContact struct {
	slot   touch.Slot
	cx, cy float64
}

// Controller executes actions against a transport. It implements the
// executor's Handler.
type Controller struct {
	t     Transport
	geo   Geometry
	opts  Options
	sleep func(time.Duration)

	mu  sync.Mutex
	pad *padContact
}

// NewController returns a controller for t with display geometry geo.
func NewController(t Transport, geo Geometry, opts Options) *Controller {
	if opts.SwipeDuration <= 0 {
		opts.SwipeDuration = 20 * time.Millisecond
	}
	if opts.PadRadius <= 0 {
		opts.PadRadius = action.DefaultPadRadius
	}
	if opts.SwipeStep <= 0 {
		opts.SwipeStep = 8 * time.Millisecond
	}
	return &Controller{t: t, geo: geo, opts: opts, sleep: time.Sleep}
}

// Geometry returns the display geometry.
func (c *Controller) Geometry() Geometry { return c.geo }

// Close closes the transport.
func (c *Controller) Close() error { return c.t.Close() }

// Move steers the pad contact along the aim vector (x, y). Without a pad
// contact down it does nothing.
func (c *Controller) Move(x, y float64) error {
	c.mu.Lock()
	pad := c.pad
	c.mu.Unlock()
	if pad == nil {
		return nil
	}

	w, h := c.geo.DisplaySize()
	reach := c.opts.PadRadius * float64(c.geo.MinExtent())
	dx := pad.cx*float64(w) + x*reach
	dy := pad.cy*float64(h) + y*reach
	nx, ny := c.geo.Normalized(dx, dy)

	px, py := c.geo.Panel(nx, ny)
	return c.t.Emit(touch.Motion(pad.slot.Index, px, py))
}

// Execute performs one discrete action.
func (c *Controller) Execute(a action.Action, args action.Args) error {
	switch a := a.(type) {
	case action.Click:
		return c.tap(a.X, a.Y)

	case action.Swipe:
		return c.swipe(a.X0, a.Y0, a.X1, a.Y1)

	case action.SwipeDirection:
		return c.swipeBy(a.X, a.Y, a.DX, a.DY)

	case action.SwipeArea:
		return c.swipeBy(a.X, a.Y, args.AimX, args.AimY)

	case action.TouchStart:
		px, py := c.geo.Panel(a.X, a.Y)
		if err := c.t.Emit(touch.Down(a.Slot, px, py, int32(c.geo.Pressure))); err != nil {
			return err
		}
		if a.Slot.Owner == action.PadOwner {
			c.mu.Lock()
			c.pad = &padContact{slot: a.Slot, cx: a.X, cy: a.Y}
			c.mu.Unlock()
		}
		return nil

	case action.TouchEnd:
		c.mu.Lock()
		if c.pad != nil && c.pad.slot.Index == a.Slot.Index {
			c.pad = nil
		}
		c.mu.Unlock()
		return c.t.Emit(touch.Up(a.Slot.Index))

	case action.Pad:
		return fmt.Errorf("pad %s is a contact, not a gesture", a)
	}
	return fmt.Errorf("unsupported action %T", a)
}

func (c *Controller) tap(nx, ny float64) error {
	if g, ok := c.t.(Gesturer); ok {
		x, y := c.geo.Display(nx, ny)
		return g.Tap(x, y)
	}
	slot := c.synthSlot()
	px, py := c.geo.Panel(nx, ny)
	if err := c.t.Emit(touch.Down(slot, px, py, int32(c.geo.Pressure))); err != nil {
		return err
	}
	return c.t.Emit(touch.Up(slot.Index))
}

func (c *Controller) swipe(x0, y0, x1, y1 float64) error {
	if g, ok := c.t.(Gesturer); ok {
		ax, ay := c.geo.Display(x0, y0)
		bx, by := c.geo.Display(x1, y1)
		return g.Swipe(ax, ay, bx, by, c.opts.SwipeDuration)
	}

	slot := c.synthSlot()
	px, py := c.geo.Panel(x0, y0)
	if err := c.t.Emit(touch.Down(slot, px, py, int32(c.geo.Pressure))); err != nil {
		return err
	}

	steps := int(c.opts.SwipeDuration / c.opts.SwipeStep)
	if steps < 1 {
		steps = 1
	}
	pause := c.opts.SwipeDuration / time.Duration(steps)
	for i := 1; i <= steps; i++ {
		f := float64(i) / float64(steps)
		px, py = c.geo.Panel(x0+(x1-x0)*f, y0+(y1-y0)*f)
		c.sleep(pause)
		if err := c.t.Emit(touch.Motion(slot.Index, px, py)); err != nil {
			if upErr := c.t.Emit(touch.Up(slot.Index)); upErr != nil {
				log.WithError(upErr).WithField("slot", slot.Index).Debug("Controller: failed to lift swipe contact")
			}
			return err
		}
	}
	return c.t.Emit(touch.Up(slot.Index))
}

// swipeBy swipes from (x, y) by the direction (dx, dy) scaled to a quarter of
// the shorter display side.
func (c *Controller) swipeBy(x, y, dx, dy float64) error {
	w, h := c.geo.DisplaySize()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: display size unknown", ErrTransport)
	}
	reach := float64(c.geo.MinExtent()) / 4
	x1 := x + dx*reach/float64(w)
	y1 := y + dy*reach/float64(h)
	if math.IsNaN(x1) || math.IsNaN(y1) {
		return fmt.Errorf("%w: bad swipe direction", ErrTransport)
	}
	log.Debugf("Controller: swipe from (%.3f,%.3f) by (%.3f,%.3f)", x, y, dx, dy)
	return c.swipe(x, y, clamp01(x1), clamp01(y1))
}

func (c *Controller) synthSlot() touch.Slot {
	index := SynthSlot
	if n := c.geo.MaxContacts; n > 0 && index >= n {
		index = n - 1
	}
	return touch.Slot{
		Index:      index,
		Occupied:   true,
		TrackingID: touch.TrackingID("synthetic"),
		Owner:      "synthetic",
	}
}
