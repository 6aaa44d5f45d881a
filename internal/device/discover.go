package device

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/config"
)

// InputNode is a multitouch-capable input device on the phone.
type InputNode struct {
	Path        string
	Name        string
	MaxX, MaxY  int
	MaxPressure int
	MaxSlot     int
}

// Target is the result of discovery: which device, which node, and the
// natural display size.
type Target struct {
	Serial        string
	Node          InputNode
	Width, Height int
}

var (
	addDeviceRe = regexp.MustCompile(`^add device \d+:\s*(\S+)`)
	nameRe      = regexp.MustCompile(`^\s*name:\s*"(.*)"`)
	absRe       = regexp.MustCompile(`(ABS_MT_[A-Z_]+)\s*:\s*value\s+-?\d+,\s*min\s+(-?\d+),\s*max\s+(-?\d+)`)
	sizeRe      = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)
)

// ParseDevices extracts serials in the "device" state from "adb devices".
func ParseDevices(out string) []string {
	var serials []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials
}

// ParseGetevent returns the nodes in "getevent -pl" output that expose
// ABS_MT_SLOT.
func ParseGetevent(out string) []InputNode {
	var (
		nodes   []InputNode
		cur     *InputNode
		hasSlot bool
	)
	finish := func() {
		if cur != nil && hasSlot {
			nodes = append(nodes, *cur)
		}
		cur, hasSlot = nil, false
	}

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if m := addDeviceRe.FindStringSubmatch(line); m != nil {
			finish()
			cur = &InputNode{Path: m[1]}
			continue
		}
		if cur == nil {
			continue
		}
		if m := nameRe.FindStringSubmatch(line); m != nil {
			cur.Name = m[1]
			continue
		}
		m := absRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		hi, _ := strconv.Atoi(m[3])
		switch m[1] {
		case "ABS_MT_SLOT":
			hasSlot = true
			cur.MaxSlot = hi
		case "ABS_MT_POSITION_X":
			cur.MaxX = hi
		case "ABS_MT_POSITION_Y":
			cur.MaxY = hi
		case "ABS_MT_PRESSURE":
			cur.MaxPressure = hi
		}
	}
	finish()
	return nodes
}

// ParseWMSize reads "wm size" output. An override size wins over the
// physical size.
func ParseWMSize(out string) (int, int, error) {
	var w, h int
	for _, m := range sizeRe.FindAllStringSubmatch(out, -1) {
		mw, _ := strconv.Atoi(m[2])
		mh, _ := strconv.Atoi(m[3])
		if m[1] == "Override" || w == 0 {
			w, h = mw, mh
		}
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrScreenSize, strings.TrimSpace(out))
	}
	return w, h, nil
}

// Discovery locates an adb device and its touch node.
type Discovery struct {
	Runner  Runner
	Path    string
	Timeout time.Duration
	Choose  config.Chooser
}

// NewDiscovery builds a Discovery from device settings.
func NewDiscovery(r Runner, dev config.Device, choose config.Chooser) *Discovery {
	if r == nil {
		r = ExecRunner{}
	}
	timeout := dev.CommandTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Discovery{Runner: r, Path: dev.ADBPath, Timeout: timeout, Choose: choose}
}

// Connect runs "adb connect" for network devices.
func (d *Discovery) Connect(ipPort string) error {
	out, err := adbCommand(d.Runner, d.Path, d.Timeout, "connect", ipPort)
	if err != nil {
		return fmt.Errorf("%w: adb connect %s: %v", ErrNoDevice, ipPort, err)
	}
	if !strings.Contains(out, "connected to") {
		return fmt.Errorf("%w: adb connect %s: %s", ErrNoDevice, ipPort, strings.TrimSpace(out))
	}
	log.Printf("Discovery: %s", strings.TrimSpace(out))
	return nil
}

// Devices lists attached serials.
func (d *Discovery) Devices() ([]string, error) {
	out, err := adbCommand(d.Runner, d.Path, d.Timeout, "devices")
	if err != nil {
		return nil, fmt.Errorf("%w: adb devices: %v", ErrNoDevice, err)
	}
	return ParseDevices(out), nil
}

// TouchNodes lists the multitouch nodes of serial.
func (d *Discovery) TouchNodes(serial string) ([]InputNode, error) {
	out, err := adbCommand(d.Runner, d.Path, d.Timeout, "-s", serial, "shell", "getevent -pl")
	if err != nil {
		return nil, fmt.Errorf("%w: getevent: %v", ErrNoTouchNode, err)
	}
	return ParseGetevent(out), nil
}

// ScreenSize returns the natural display size of serial.
func (d *Discovery) ScreenSize(serial string) (int, int, error) {
	out, err := adbCommand(d.Runner, d.Path, d.Timeout, "-s", serial, "shell", "wm size")
	if err != nil {
		return 0, 0, fmt.Errorf("%w: wm size: %v", ErrScreenSize, err)
	}
	return ParseWMSize(out)
}

// Find resolves the device, node and display size for dev.
func (d *Discovery) Find(dev config.Device) (Target, error) {
	if dev.IPPort != "" {
		if err := d.Connect(dev.IPPort); err != nil {
			return Target{}, err
		}
	}

	serials, err := d.Devices()
	if err != nil {
		return Target{}, err
	}
	serial, err := d.pick("Select a device", dev.Serial, serials, ErrNoDevice)
	if err != nil {
		return Target{}, err
	}
	t := Target{Serial: serial}

	nodes, err := d.TouchNodes(serial)
	if err != nil {
		return Target{}, err
	}
	paths := make([]string, len(nodes))
	for i, n := range nodes {
		paths[i] = n.Path
	}
	path, err := d.pick("Select a touch node", dev.Event, paths, ErrNoTouchNode)
	if err != nil {
		return Target{}, err
	}
	t.Node = InputNode{Path: path}
	for _, n := range nodes {
		if n.Path == path {
			t.Node = n
		}
	}

	if dev.PanelWidth > 0 && dev.PanelHeight > 0 {
		t.Width, t.Height = dev.PanelWidth, dev.PanelHeight
	} else if t.Width, t.Height, err = d.ScreenSize(serial); err != nil {
		return Target{}, err
	}

	log.WithFields(log.Fields{
		"serial": t.Serial,
		"node":   t.Node.Path,
		"name":   t.Node.Name,
		"width":  t.Width,
		"height": t.Height,
	}).Info("Discovery: device ready")
	return t, nil
}

// pick chooses want from options, the single option, or asks.
func (d *Discovery) pick(title, want string, options []string, notFound error) (string, error) {
	if want != "" {
		for _, o := range options {
			if o == want {
				return o, nil
			}
		}
		if notFound == ErrNoTouchNode {
			// A configured node need not advertise ABS_MT_SLOT to be writable.
			return want, nil
		}
		return "", fmt.Errorf("%w: %q not among %v", notFound, want, options)
	}

	switch len(options) {
	case 0:
		return "", notFound
	case 1:
		return options[0], nil
	}
	if d.Choose == nil {
		return "", fmt.Errorf("%w: %d candidates, none selected", notFound, len(options))
	}
	idx, err := d.Choose(title, options)
	if err != nil {
		return "", fmt.Errorf("%w: %v", notFound, err)
	}
	if idx < 0 || idx >= len(options) {
		return "", fmt.Errorf("%w: choice %d out of range", notFound, idx)
	}
	return options[idx], nil
}
