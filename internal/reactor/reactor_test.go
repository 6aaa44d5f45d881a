package reactor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtouch/internal/action"
	"vtouch/internal/calib"
	"vtouch/internal/executor"
	"vtouch/internal/protocol"
	"vtouch/internal/touch"
)

type fakeQueue struct {
	cmds   []executor.Command
	closed bool
}

func (q *fakeQueue) Enqueue(c executor.Command) bool {
	if q.closed {
		return false
	}
	q.cmds = append(q.cmds, c)
	return true
}

func (q *fakeQueue) moves() []executor.Move {
	var out []executor.Move
	for _, c := range q.cmds {
		if m, ok := c.(executor.Move); ok {
			out = append(out, m)
		}
	}
	return out
}

func (q *fakeQueue) discretes() []action.Action {
	var out []action.Action
	for _, c := range q.cmds {
		if d, ok := c.(executor.Discrete); ok {
			out = append(out, d.Action)
		}
	}
	return out
}

func newReactor(t *testing.T, keys map[string]string, window *calib.Window) (*Reactor, *fakeQueue) {
	t.Helper()
	m, err := action.NewMapper(keys)
	require.NoError(t, err)
	q := &fakeQueue{}
	r, err := New(Options{
		Window: window,
		Anchor: calib.Point{X: 0.5, Y: 0.5},
		Mapper: m,
	}, q)
	require.NoError(t, err)
	return r, q
}

func calibrated() *calib.Window {
	return calib.NewWindow(calib.Rect{Left: 100, Top: 100, Right: 500, Bottom: 400})
}

func TestPointerOutsideNeverMoves(t *testing.T) {
	r, q := newReactor(t, nil, nil)

	// Uncalibrated: nothing is queued, but the pointer is still tracked.
	r.Handle(protocol.Move(300, 250))
	assert.Empty(t, q.cmds)
	assert.Equal(t, 300, r.Status().Pointer.X)

	r2, q2 := newReactor(t, nil, calibrated())
	for _, m := range []protocol.Message{
		protocol.Move(100, 250), // on the left edge
		protocol.Move(50, 50),
		protocol.Move(500, 250),
		protocol.Click(false, 600, 600),
	} {
		r2.Handle(m)
	}
	assert.Empty(t, q2.cmds)
	assert.False(t, r2.Status().Pointer.Inside)
}

func TestPointerInsideQueuesAim(t *testing.T) {
	r, q := newReactor(t, nil, calibrated())

	r.Handle(protocol.Move(500-1, 250)) // right of the anchor
	require.Len(t, q.moves(), 1)
	assert.InDelta(t, 1.0, q.moves()[0].X, 1e-9)
	assert.InDelta(t, 0.0, q.moves()[0].Y, 1e-9)

	r.Handle(protocol.Move(300, 250)) // on the anchor
	assert.Equal(t, executor.Move{}, q.moves()[1])
}

func TestCalibrationHotkeys(t *testing.T) {
	r, q := newReactor(t, map[string]string{"i": "click 0.1 0.1"}, nil)

	r.Handle(protocol.Move(100, 100))
	r.Handle(protocol.Key("CSAi"))
	r.Handle(protocol.Key("!CSAi"))
	r.Handle(protocol.Move(500, 400))
	r.Handle(protocol.Key("CSAo"))

	st := r.Status()
	require.True(t, st.Calibrated)
	assert.Equal(t, calib.Rect{Left: 100, Top: 100, Right: 500, Bottom: 400}, st.Window)
	assert.Empty(t, q.cmds, "calibration chords never reach the action table")

	r.Handle(protocol.Move(300, 250))
	assert.InDelta(t, 0.5, r.Status().Pointer.NX, 1e-9)
	assert.Len(t, q.moves(), 1)
}

func TestKeysResolveToDiscretes(t *testing.T) {
	r, q := newReactor(t, map[string]string{
		"a":  "click 0.1 0.2",
		"Ca": "swipe 0 0 1 1",
		"e":  "swipe_area 0.5 0.5",
	}, calibrated())

	r.Handle(protocol.Key("a"))
	r.Handle(protocol.Key("!a"))
	r.Handle(protocol.Key("Ca"))
	r.Handle(protocol.Key("Sa"))
	r.Handle(protocol.Key("z"))
	r.Handle(protocol.Key("not-a-token"))

	assert.Equal(t, []action.Action{
		action.Click{X: 0.1, Y: 0.2},
		action.Swipe{X0: 0, Y0: 0, X1: 1, Y1: 1},
		action.Click{X: 0.1, Y: 0.2},
	}, q.discretes())

	r.Handle(protocol.Move(300, 100+1))
	r.Handle(protocol.Key("e"))
	last := q.cmds[len(q.cmds)-1].(executor.Discrete)
	assert.Equal(t, action.SwipeArea{X: 0.5, Y: 0.5}, last.Action)
	assert.InDelta(t, -1.0, last.Args.AimY, 1e-9, "aim captured at enqueue time")
}

func TestMouseButtonMappings(t *testing.T) {
	r, q := newReactor(t, map[string]string{"L": "click 0.9 0.9"}, calibrated())

	r.Handle(protocol.Click(false, 300, 250))
	require.Len(t, q.cmds, 2)
	assert.IsType(t, executor.Move{}, q.cmds[0])
	assert.Equal(t, action.Click{X: 0.9, Y: 0.9}, q.cmds[1].(executor.Discrete).Action)

	// Right click with neither R nor a pad configured only aims.
	r.Handle(protocol.Click(true, 300, 250))
	assert.Len(t, q.cmds, 3)
}

func TestPadLifecycle(t *testing.T) {
	alloc := touch.NewAllocator()
	m, err := action.NewMapper(map[string]string{"q": "pad 0.2 0.7"})
	require.NoError(t, err)
	q := &fakeQueue{}
	r, err := New(Options{Window: calibrated(), Anchor: calib.Point{X: 0.5, Y: 0.5}, Mapper: m, Allocator: alloc}, q)
	require.NoError(t, err)

	r.Handle(protocol.Click(true, 300, 250))
	r.Handle(protocol.Click(true, 310, 250))
	starts := q.discretes()
	require.Len(t, starts, 1, "second right click keeps the existing contact")
	start := starts[0].(action.TouchStart)
	assert.Equal(t, action.PadOwner, start.Slot.Owner)
	assert.Equal(t, 0.2, start.X)
	assert.Len(t, r.Status().Slots, 1)

	r.Handle(protocol.Key("q"))
	end := q.discretes()[1].(action.TouchEnd)
	assert.Equal(t, start.Slot.Index, end.Slot.Index)
	assert.Empty(t, alloc.Active())

	// Pad key with no contact down does nothing.
	r.Handle(protocol.Key("q"))
	assert.Len(t, q.discretes(), 2)
}

func TestPadSlotExhaustionDrops(t *testing.T) {
	alloc := touch.NewAllocator()
	for i := 0; i < touch.MaxSlots; i++ {
		_, ok := alloc.Request(fmt.Sprintf("finger-%d", i))
		require.True(t, ok)
	}
	m, err := action.NewMapper(map[string]string{"q": "pad 0.2 0.7"})
	require.NoError(t, err)
	q := &fakeQueue{}
	r, err := New(Options{Window: calibrated(), Mapper: m, Allocator: alloc}, q)
	require.NoError(t, err)

	r.Handle(protocol.Click(true, 300, 250))
	assert.Empty(t, q.discretes())
	assert.Equal(t, uint64(1), r.Status().Dropped)
}

func TestRunStopsOnExit(t *testing.T) {
	r, q := newReactor(t, map[string]string{"a": "click 0 0"}, calibrated())

	in := make(chan protocol.Message, 4)
	in <- protocol.Key("a")
	in <- protocol.Exit()
	in <- protocol.Key("a")

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), in) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reactor did not stop")
	}
	assert.Len(t, q.discretes(), 1)
	assert.Equal(t, uint64(2), r.Status().Messages)
}

func TestRunHonoursContext(t *testing.T) {
	r, _ := newReactor(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, make(chan protocol.Message))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClosedQueueCountsDrops(t *testing.T) {
	r, q := newReactor(t, map[string]string{"a": "click 0 0"}, calibrated())
	q.closed = true
	r.Handle(protocol.Key("a"))
	assert.Equal(t, uint64(1), r.Status().Dropped)
	assert.Zero(t, r.Status().Enqueued)
}
