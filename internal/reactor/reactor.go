// Package reactor turns input messages into touch commands. It owns the
// calibration window, the pointer state and the joystick contact.
package reactor

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/action"
	"vtouch/internal/calib"
	"vtouch/internal/executor"
	"vtouch/internal/hotkey"
	"vtouch/internal/input"
	"vtouch/internal/protocol"
	"vtouch/internal/touch"
)

// Enqueuer accepts commands for the device worker.
type Enqueuer interface {
	Enqueue(c executor.Command) bool
}

// Options configures a Reactor.
type Options struct {
	// Window is the initial calibration; nil starts uncalibrated.
	Window *calib.Window
	// Anchor is the player position in normalized window space.
	Anchor    calib.Point
	Mapper    *action.Mapper
	Allocator *touch.Allocator
	// Hotkeys receives the calibration chords; nil creates a private manager.
	Hotkeys *hotkey.Manager
}

// Pointer is the last known pointer position.
type Pointer struct {
	X, Y   int
	NX, NY float64
	Inside bool
}

// Status is a point-in-time view for the status API and tray.
type Status struct {
	Calibrated bool         `json:"calibrated"`
	Window     calib.Rect   `json:"window"`
	Anchor     calib.Point  `json:"anchor"`
	Pointer    Pointer      `json:"pointer"`
	AimX       float64      `json:"aim_x"`
	AimY       float64      `json:"aim_y"`
	Slots      []touch.Slot `json:"slots"`
	Messages   uint64       `json:"messages"`
	Enqueued   uint64       `json:"enqueued"`
	Dropped    uint64       `json:"dropped"`
}

// Reactor consumes messages one at a time. Handle must only be called from a
// single goroutine; Status may be called from any.
type Reactor struct {
	window  *calib.Window
	anchor  calib.Point
	mapper  *action.Mapper
	slots   *touch.Allocator
	hotkeys *hotkey.Manager
	queue   Enqueuer

	pointer    Pointer
	aimX, aimY float64

	mu       sync.RWMutex
	snapshot Status

	messages atomic.Uint64
	enqueued atomic.Uint64
	dropped  atomic.Uint64
}

// New wires a reactor to queue and registers the calibration chords.
func New(opts Options, queue Enqueuer) (*Reactor, error) {
	r := &Reactor{
		window:  opts.Window,
		anchor:  opts.Anchor,
		mapper:  opts.Mapper,
		slots:   opts.Allocator,
		hotkeys: opts.Hotkeys,
		queue:   queue,
	}
	if r.window == nil {
		r.window = &calib.Window{}
	}
	if r.mapper == nil {
		m, err := action.NewMapper(nil)
		if err != nil {
			return nil, err
		}
		r.mapper = m
	}
	if r.slots == nil {
		r.slots = touch.NewAllocator()
	}
	if r.hotkeys == nil {
		r.hotkeys = hotkey.NewManager()
	}

	if _, err := r.hotkeys.Register(hotkey.MarkTopLeft, r.markTopLeft); err != nil {
		return nil, err
	}
	if _, err := r.hotkeys.Register(hotkey.MarkBottomRight, r.markBottomRight); err != nil {
		return nil, err
	}
	r.publish()
	return r, nil
}

// Run handles messages until the exit sentinel, a closed channel or ctx
// cancellation.
func (r *Reactor) Run(ctx context.Context, in <-chan protocol.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				return nil
			}
			if !r.Handle(m) {
				log.Info("Reactor: exit received")
				return nil
			}
		}
	}
}

// Handle processes one message. It returns false for the exit sentinel.
func (r *Reactor) Handle(m protocol.Message) bool {
	r.messages.Add(1)
	defer r.publish()

	switch m.Kind {
	case protocol.KindExit:
		return false
	case protocol.KindMove, protocol.KindLeft, protocol.KindRight:
		r.handlePointer(m)
	case protocol.KindKey:
		r.handleKey(m.Token)
	}
	return true
}

func (r *Reactor) handlePointer(m protocol.Message) {
	r.pointer.X, r.pointer.Y = m.X, m.Y

	p, inside := r.window.ToNormalized(m.X, m.Y)
	r.pointer.Inside = inside
	if !inside {
		log.Debugf("Reactor: pointer (%d,%d) outside calibration", m.X, m.Y)
		return
	}
	r.pointer.NX, r.pointer.NY = p.X, p.Y
	r.aimX, r.aimY = calib.Aim(r.anchor, p)
	r.enqueue(executor.Move{X: r.aimX, Y: r.aimY})

	switch m.Kind {
	case protocol.KindLeft:
		r.handleButton(action.KeyLeftButton)
	case protocol.KindRight:
		r.handleButton(action.KeyRightButton)
	}
}

func (r *Reactor) handleButton(key string) {
	if a, ok := r.mapper.Lookup(key); ok {
		r.dispatch(a)
		return
	}
	if key == action.KeyRightButton {
		if pad, _, ok := r.mapper.Pad(); ok {
			r.startPad(pad)
		}
	}
}

func (r *Reactor) handleKey(token string) {
	tok, err := input.ParseToken(token)
	if err != nil {
		log.Debugf("Reactor: ignoring token %q: %v", token, err)
		return
	}
	if r.hotkeys.Dispatch(tok) {
		return
	}
	if tok.Release {
		return
	}

	a, ok := r.mapper.Resolve(tok)
	if !ok {
		log.Debugf("Reactor: no action for %s", tok)
		return
	}
	r.dispatch(a)
}

func (r *Reactor) dispatch(a action.Action) {
	if _, ok := a.(action.Pad); ok {
		r.stopPad()
		return
	}
	r.enqueue(executor.Discrete{
		Action: a,
		Args:   action.Args{AimX: r.aimX, AimY: r.aimY},
	})
}

func (r *Reactor) startPad(pad action.Pad) {
	if _, held := r.slots.Lookup(action.PadOwner); held {
		return
	}
	slot, ok := r.slots.Request(action.PadOwner)
	if !ok {
		r.dropped.Add(1)
		log.Warn("Reactor: no free touch slot for pad")
		return
	}
	log.WithField("slot", slot.Index).Debug("Reactor: pad down")
	r.enqueue(executor.Discrete{Action: action.TouchStart{Slot: slot, X: pad.X, Y: pad.Y}})
}

func (r *Reactor) stopPad() {
	slot, ok := r.slots.Release(action.PadOwner)
	if !ok {
		return
	}
	log.WithField("slot", slot.Index).Debug("Reactor: pad up")
	r.enqueue(executor.Discrete{Action: action.TouchEnd{Slot: slot}})
}

func (r *Reactor) enqueue(c executor.Command) {
	if !r.queue.Enqueue(c) {
		r.dropped.Add(1)
		return
	}
	r.enqueued.Add(1)
}

func (r *Reactor) markTopLeft() {
	r.window.MarkTopLeft(r.pointer.X, r.pointer.Y)
	log.Infof("Reactor: top-left corner set to (%d,%d)", r.pointer.X, r.pointer.Y)
	r.logCalibration()
}

func (r *Reactor) markBottomRight() {
	r.window.MarkBottomRight(r.pointer.X, r.pointer.Y)
	log.Infof("Reactor: bottom-right corner set to (%d,%d)", r.pointer.X, r.pointer.Y)
	r.logCalibration()
}

func (r *Reactor) logCalibration() {
	w, h := r.window.Size()
	if r.window.Calibrated() {
		log.WithFields(log.Fields{"width": w, "height": h}).Info("Reactor: window calibrated")
	}
}

func (r *Reactor) publish() {
	s := Status{
		Calibrated: r.window.Calibrated(),
		Window:     r.window.Rect(),
		Anchor:     r.anchor,
		Pointer:    r.pointer,
		AimX:       r.aimX,
		AimY:       r.aimY,
	}
	r.mu.Lock()
	r.snapshot = s
	r.mu.Unlock()
}

// Status returns the latest snapshot.
func (r *Reactor) Status() Status {
	r.mu.RLock()
	s := r.snapshot
	r.mu.RUnlock()

	s.Slots = r.slots.Active()
	s.Messages = r.messages.Load()
	s.Enqueued = r.enqueued.Load()
	s.Dropped = r.dropped.Load()
	return s
}
