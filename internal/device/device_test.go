package device

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtouch/internal/action"
	"vtouch/internal/config"
	"vtouch/internal/touch"
)

const geteventOutput = `add device 1: /dev/input/event4
  name:     "gpio-keys"
  events:
    KEY (0001): KEY_VOLUMEDOWN        KEY_VOLUMEUP
add device 2: /dev/input/event2
  name:     "fts_ts"
  events:
    KEY (0001): BTN_TOUCH
    ABS (0003): ABS_MT_SLOT           : value 0, min 0, max 9, fuzz 0, flat 0, resolution 0
                ABS_MT_TOUCH_MAJOR    : value 0, min 0, max 255, fuzz 0, flat 0, resolution 0
                ABS_MT_POSITION_X     : value 0, min 0, max 1079, fuzz 0, flat 0, resolution 0
                ABS_MT_POSITION_Y     : value 0, min 0, max 2399, fuzz 0, flat 0, resolution 0
                ABS_MT_TRACKING_ID    : value 0, min 0, max 65535, fuzz 0, flat 0, resolution 0
                ABS_MT_PRESSURE       : value 0, min 0, max 255, fuzz 0, flat 0, resolution 0
  input props:
    INPUT_PROP_DIRECT
`

type fakeRunner struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+key)
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	return []byte(f.replies[key]), nil
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestParsers(t *testing.T) {
	assert.Equal(t, []string{"R58M123", "192.168.1.20:5555"}, ParseDevices(
		"List of devices attached\nR58M123\tdevice\nemulator-5554\toffline\n192.168.1.20:5555\tdevice\n\n"))

	nodes := ParseGetevent(geteventOutput)
	require.Len(t, nodes, 1)
	assert.Equal(t, InputNode{Path: "/dev/input/event2", Name: "fts_ts", MaxX: 1079, MaxY: 2399, MaxPressure: 255, MaxSlot: 9}, nodes[0])

	w, h, err := ParseWMSize("Physical size: 1080x2400\n")
	require.NoError(t, err)
	assert.Equal(t, [2]int{1080, 2400}, [2]int{w, h})

	w, h, err = ParseWMSize("Physical size: 1080x2400\nOverride size: 720x1600\n")
	require.NoError(t, err)
	assert.Equal(t, [2]int{720, 1600}, [2]int{w, h})

	_, _, err = ParseWMSize("error: no devices")
	assert.ErrorIs(t, err, ErrScreenSize)
	assert.ErrorIs(t, err, ErrDiscovery)
}

func adbDevice() config.Device {
	return config.Device{
		Transport:        config.TransportADB,
		ADBPath:          "adb",
		CommandTimeoutMS: 1000,
		SwipeDurationMS:  20,
		Rotation:         1,
	}
}

func TestOpenADB(t *testing.T) {
	r := newFakeRunner()
	r.replies["connect 10.0.0.5:5555"] = "connected to 10.0.0.5:5555\n"
	r.replies["devices"] = "List of devices attached\nR58M123\tdevice\n"
	r.replies["-s R58M123 shell getevent -pl"] = geteventOutput
	r.replies["-s R58M123 shell wm size"] = "Physical size: 1080x2400\n"

	dev := adbDevice()
	dev.IPPort = "10.0.0.5:5555"
	tr, geo, err := Open(dev, r, nil)
	require.NoError(t, err)

	adb, ok := tr.(*ADB)
	require.True(t, ok)
	assert.Equal(t, "R58M123", adb.Serial())
	assert.Equal(t, Geometry{Width: 1080, Height: 2400, PanelMaxX: 1079, PanelMaxY: 2399, Rotation: 1, Pressure: 50, MaxContacts: 10}, geo)

	require.NoError(t, adb.Emit(touch.Up(0)))
	calls := r.Calls()
	assert.Equal(t, "adb -s R58M123 shell sendevent /dev/input/event2 3 47 0;sendevent /dev/input/event2 3 57 -1;sendevent /dev/input/event2 0 0 0", calls[len(calls)-1])
}

func TestOpenADBFailures(t *testing.T) {
	r := newFakeRunner()
	r.replies["devices"] = "List of devices attached\n\n"
	_, _, err := Open(adbDevice(), r, nil)
	assert.ErrorIs(t, err, ErrNoDevice)

	r.replies["devices"] = "List of devices attached\nA\tdevice\nB\tdevice\n"
	_, _, err = Open(adbDevice(), r, nil)
	assert.ErrorIs(t, err, ErrNoDevice, "two devices and nobody to ask")

	r.replies["-s B shell getevent -pl"] = "add device 1: /dev/input/event0\n  name: \"keys\"\n"
	_, _, err = Open(adbDevice(), r, func(_ string, opts []string) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrNoTouchNode)

	r.replies["-s B shell getevent -pl"] = geteventOutput
	r.fail["-s B shell wm size"] = errors.New("exit status 1")
	_, _, err = Open(adbDevice(), r, func(_ string, opts []string) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrScreenSize)

	dev := adbDevice()
	dev.Serial = "B"
	dev.PanelWidth, dev.PanelHeight = 800, 1280
	_, geo, err := Open(dev, r, nil)
	require.NoError(t, err)
	assert.Equal(t, 800, geo.Width)
	assert.Equal(t, config.DefaultPressure, geo.Pressure)

	zero := 0
	dev.Pressure = &zero
	_, geo, err = Open(dev, r, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, geo.Pressure)
}

func TestADBGestures(t *testing.T) {
	r := newFakeRunner()
	a := NewADB(r, "adb", "S1", "/dev/input/event2", time.Second)

	require.NoError(t, a.Tap(10, 20))
	require.NoError(t, a.Swipe(1, 2, 3, 4, 20*time.Millisecond))
	assert.Equal(t, []string{
		"adb -s S1 shell input tap 10 20",
		"adb -s S1 shell input swipe 1 2 3 4 20",
	}, r.Calls())

	r.fail["-s S1 shell input tap 0 0"] = errors.New("device offline")
	assert.ErrorIs(t, a.Tap(0, 0), ErrTransport)

	assert.NoError(t, NewADB(r, "adb", "S1", "", 0).Emit(nil))
	assert.ErrorIs(t, NewADB(r, "adb", "S1", "", 0).Emit(touch.Up(1)), ErrTransport)
}

func TestGeometryRotation(t *testing.T) {
	g := Geometry{Width: 1000, Height: 2000}
	px, py := g.Panel(0.25, 0.75)
	assert.Equal(t, [2]int32{250, 1500}, [2]int32{px, py})

	g.Rotation = 1
	w, h := g.DisplaySize()
	assert.Equal(t, [2]int{2000, 1000}, [2]int{w, h})
	assert.Equal(t, 1000, g.MinExtent())
	px, py = g.Panel(0.25, 0.75)
	assert.Equal(t, [2]int32{250, 500}, [2]int32{px, py})

	g.Rotation = 2
	px, py = g.Panel(0.25, 0.75)
	assert.Equal(t, [2]int32{750, 500}, [2]int32{px, py})

	g.Rotation = 3
	px, py = g.Panel(0.25, 0.75)
	assert.Equal(t, [2]int32{750, 1500}, [2]int32{px, py})

	g = Geometry{Width: 1080, Height: 2400, PanelMaxX: 4095, PanelMaxY: 4095}
	px, py = g.Panel(1.2, -1)
	assert.Equal(t, [2]int32{4095, 0}, [2]int32{px, py})

	x, y := g.Display(0.5, 0.5)
	assert.Equal(t, [2]int{540, 1200}, [2]int{x, y})
}

func TestFrameDecoder(t *testing.T) {
	d := NewFrameDecoder()
	s := touch.Slot{Index: 2, TrackingID: 7}

	assert.Equal(t, []ContactOp{{Kind: OpDown, Slot: 2, X: 10, Y: 20, Pressure: 50}},
		d.Decode(touch.Down(s, 10, 20, 50)))
	assert.Equal(t, []ContactOp{{Kind: OpMove, Slot: 2, X: 11, Y: 21, Pressure: 50}},
		d.Decode(touch.Motion(2, 11, 21)))
	assert.Empty(t, d.Decode([]touch.Event{touch.Sync()}))
	assert.Equal(t, []ContactOp{{Kind: OpUp, Slot: 2, X: 11, Y: 21, Pressure: 50}},
		d.Decode(touch.Up(2)))

	// A motion for a slot that never went down is ignored.
	assert.Empty(t, d.Decode(touch.Motion(4, 1, 1)))
}

func TestMinitouch(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		server.Write([]byte("v 1\n^ 10 1079 2399 255\n$ 4242\n"))
	}()

	m, err := NewMinitouch(client)
	require.NoError(t, err)
	assert.Equal(t, Banner{Version: 1, MaxContacts: 10, MaxX: 1079, MaxY: 2399, MaxPressure: 255, PID: 4242}, m.Banner())

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(server)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var events []touch.Event
	events = append(events, touch.Down(touch.Slot{Index: 0, TrackingID: 1}, 100, 200, 0)...)
	events = append(events, touch.Motion(0, 110, 210)...)
	events = append(events, touch.Up(0)...)
	require.NoError(t, m.Emit(events))

	var got []string
	for i := 0; i < 6; i++ {
		select {
		case l := <-lines:
			got = append(got, l)
		case <-time.After(2 * time.Second):
			t.Fatalf("only got %v", got)
		}
	}
	assert.Equal(t, []string{"d 0 100 200 50", "c", "m 0 110 210 50", "c", "u 0", "c"}, got)
	require.NoError(t, m.Close())
}

func TestReadBannerErrors(t *testing.T) {
	_, err := ReadBanner(bufio.NewReader(strings.NewReader("v 1\n")))
	assert.ErrorIs(t, err, ErrTransport)

	_, err = ReadBanner(bufio.NewReader(strings.NewReader("v 1\n^ x\n$ 1\n")))
	assert.ErrorIs(t, err, ErrTransport)
}

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestSerialHIDReports(t *testing.T) {
	port := &bufCloser{}
	h, err := NewSerialHID(port, 1080, 2400)
	require.NoError(t, err)

	res := port.Next(hidReportSize)
	assert.Equal(t, byte(0xF4), res[0])
	assert.Equal(t, byte(hidActionResolution), res[1])
	assert.Equal(t, uint32(1080), binary.LittleEndian.Uint32(res[3:7]))
	assert.Equal(t, uint32(2400), binary.LittleEndian.Uint32(res[7:11]))

	require.NoError(t, h.Emit(touch.Down(touch.Slot{Index: 3, TrackingID: 9}, 500, 600, 0)))
	down := port.Next(hidReportSize)
	assert.Equal(t, []byte{0xF4, hidActionDown, 3}, down[:3])
	assert.Equal(t, uint32(500), binary.LittleEndian.Uint32(down[3:7]))

	require.NoError(t, h.Emit(touch.Up(3)))
	up := port.Next(hidReportSize)
	assert.Equal(t, []byte{0xF4, hidActionUp, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0}, up)
	assert.Zero(t, port.Len())

	require.NoError(t, h.Close())
	assert.True(t, port.closed)
}

func TestEvdevPacking(t *testing.T) {
	data, err := packEvents([]touch.Event{touch.SelectSlot(1), touch.Sync()})
	require.NoError(t, err)
	require.Len(t, data, 2*inputEventSize)

	rec := data[:inputEventSize]
	assert.Equal(t, touch.EvAbs, binary.LittleEndian.Uint16(rec[16:18]))
	assert.Equal(t, touch.AbsMTSlot, binary.LittleEndian.Uint16(rec[18:20]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(rec[20:24]))

	node := &bufCloser{}
	e := NewEvdev(node, "/dev/input/event9")
	require.NoError(t, e.Emit(touch.Up(0)))
	assert.Equal(t, 3*inputEventSize, node.Len())
}

type recordingTransport struct {
	events [][]touch.Event
	taps   [][2]int
	swipes [][5]int
}

func (r *recordingTransport) Emit(evs []touch.Event) error {
	r.events = append(r.events, evs)
	return nil
}

func (r *recordingTransport) Close() error { return nil }

type gestureTransport struct {
	recordingTransport
}

func (g *gestureTransport) Tap(x, y int) error {
	g.taps = append(g.taps, [2]int{x, y})
	return nil
}

func (g *gestureTransport) Swipe(x0, y0, x1, y1 int, d time.Duration) error {
	g.swipes = append(g.swipes, [5]int{x0, y0, x1, y1, int(d.Milliseconds())})
	return nil
}

func TestControllerNativeGestures(t *testing.T) {
	tr := &gestureTransport{}
	c := NewController(tr, Geometry{Width: 1000, Height: 2000, Rotation: 1}, Options{})

	require.NoError(t, c.Execute(action.Click{X: 0.5, Y: 0.25}, action.Args{}))
	assert.Equal(t, [][2]int{{1000, 250}}, tr.taps)

	require.NoError(t, c.Execute(action.Swipe{X0: 0, Y0: 0, X1: 1, Y1: 1}, action.Args{}))
	require.NoError(t, c.Execute(action.SwipeDirection{X: 0.5, Y: 0.5, DX: 1, DY: 0}, action.Args{}))
	require.NoError(t, c.Execute(action.SwipeArea{X: 0.5, Y: 0.5}, action.Args{AimX: 0, AimY: -1}))
	assert.Equal(t, [][5]int{
		{0, 0, 2000, 1000, 20},
		{1000, 500, 1250, 500, 20},
		{1000, 500, 1000, 250, 20},
	}, tr.swipes)

	assert.Error(t, c.Execute(action.Pad{X: 0.5, Y: 0.5, Radius: 0.1}, action.Args{}))
}

func TestControllerSynthesizedTap(t *testing.T) {
	tr := &recordingTransport{}
	c := NewController(tr, Geometry{Width: 1000, Height: 2000, Pressure: 30}, Options{})

	require.NoError(t, c.Execute(action.Click{X: 0.5, Y: 0.5}, action.Args{}))
	require.Len(t, tr.events, 2)
	assert.Equal(t, touch.SelectSlot(SynthSlot), tr.events[0][0])
	assert.Contains(t, tr.events[0], touch.PositionX(500))
	assert.Contains(t, tr.events[0], touch.Pressure(30))
	assert.Equal(t, touch.Up(SynthSlot), tr.events[1])
}

func TestControllerSynthesizedSwipe(t *testing.T) {
	tr := &recordingTransport{}
	c := NewController(tr, Geometry{Width: 1000, Height: 1000}, Options{SwipeDuration: 40 * time.Millisecond, SwipeStep: 10 * time.Millisecond})
	var slept time.Duration
	c.sleep = func(d time.Duration) { slept += d }

	require.NoError(t, c.Execute(action.Swipe{X0: 0, Y0: 0, X1: 1, Y1: 0}, action.Args{}))
	require.Len(t, tr.events, 6, "down, four motions, up")
	assert.Equal(t, touch.Motion(SynthSlot, 1000, 0), tr.events[4])
	assert.Equal(t, 40*time.Millisecond, slept)
}

func TestControllerSynthesizedSlotFitsPanel(t *testing.T) {
	tr := &recordingTransport{}
	c := NewController(tr, Geometry{Width: 1000, Height: 2000, MaxContacts: 5}, Options{})

	require.NoError(t, c.Execute(action.Click{X: 0.5, Y: 0.5}, action.Args{}))
	require.Len(t, tr.events, 2)
	assert.Equal(t, touch.SelectSlot(4), tr.events[0][0])
	assert.Len(t, tr.events[0], 5, "zero pressure omits the pressure axis")
	assert.Equal(t, touch.Up(4), tr.events[1])

	tr = &recordingTransport{}
	c = NewController(tr, Geometry{Width: 1000, Height: 2000, MaxContacts: 10}, Options{})
	require.NoError(t, c.Execute(action.Click{X: 0.5, Y: 0.5}, action.Args{}))
	assert.Equal(t, touch.SelectSlot(SynthSlot), tr.events[0][0])
}

// failingTransport accepts the first ok reports and rejects the rest.
type failingTransport struct {
	ok    int
	calls int
}

func (f *failingTransport) Emit(evs []touch.Event) error {
	f.calls++
	if f.calls > f.ok {
		return errors.New("link down")
	}
	return nil
}

func (f *failingTransport) Close() error { return nil }

func TestControllerSwipeFailureLogsLift(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(level)

	tr := &failingTransport{ok: 1}
	c := NewController(tr, Geometry{Width: 1000, Height: 1000}, Options{})
	c.sleep = func(time.Duration) {}

	err := c.Execute(action.Swipe{X0: 0, Y0: 0, X1: 1, Y1: 0}, action.Args{})
	require.EqualError(t, err, "link down")
	assert.Equal(t, 3, tr.calls, "down, failed motion, attempted lift")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.DebugLevel, entry.Level)
	assert.Equal(t, "Controller: failed to lift swipe contact", entry.Message)
	assert.Equal(t, SynthSlot, entry.Data["slot"])
}

func TestControllerPadContact(t *testing.T) {
	tr := &recordingTransport{}
	c := NewController(tr, Geometry{Width: 1000, Height: 2000, Pressure: 50}, Options{PadRadius: 0.1})

	// No contact yet: moves are dropped.
	require.NoError(t, c.Move(1, 0))
	assert.Empty(t, tr.events)

	slot := touch.Slot{Index: 0, Occupied: true, TrackingID: touch.TrackingID(action.PadOwner), Owner: action.PadOwner}
	require.NoError(t, c.Execute(action.TouchStart{Slot: slot, X: 0.5, Y: 0.5}, action.Args{}))
	assert.Equal(t, touch.Down(slot, 500, 1000, 50), tr.events[0])

	require.NoError(t, c.Move(1, 0))
	assert.Equal(t, touch.Motion(0, 600, 1000), tr.events[1])

	require.NoError(t, c.Move(0, -1))
	assert.Equal(t, touch.Motion(0, 500, 900), tr.events[2])

	require.NoError(t, c.Execute(action.TouchEnd{Slot: slot}, action.Args{}))
	assert.Equal(t, touch.Up(0), tr.events[3])

	require.NoError(t, c.Move(1, 0))
	assert.Len(t, tr.events, 4)
}
