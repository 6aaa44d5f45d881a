package device

import (
	"fmt"
	"net"
	"strconv"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/config"
)

// Open discovers the device described by dev and returns a ready transport
// with its geometry. Every failure wraps ErrDiscovery.
func Open(dev config.Device, r Runner, choose config.Chooser) (Transport, Geometry, error) {
	geo := Geometry{Rotation: dev.Rotation, Pressure: dev.ContactPressure()}

	switch dev.Transport {
	case config.TransportADB:
		d := NewDiscovery(r, dev, choose)
		t, err := d.Find(dev)
		if err != nil {
			return nil, Geometry{}, err
		}
		geo.Width, geo.Height = t.Width, t.Height
		geo.PanelMaxX, geo.PanelMaxY = t.Node.MaxX, t.Node.MaxY
		geo.Pressure = capPressure(dev.ContactPressure(), t.Node.MaxPressure)
		geo.MaxContacts = contactsOf(t.Node)
		return NewADB(d.Runner, dev.ADBPath, t.Serial, t.Node.Path, dev.CommandTimeout()), geo, nil

	case config.TransportMinitouch:
		addr := dev.Address
		if addr == "" {
			// Reach minitouch on the device through an adb port forward.
			if err := forwardMinitouch(r, dev); err != nil {
				return nil, Geometry{}, err
			}
			addr = "127.0.0.1"
		}
		m, err := DialMinitouch(net.JoinHostPort(addr, strconv.Itoa(dev.Port)), dev.CommandTimeout())
		if err != nil {
			return nil, Geometry{}, err
		}
		b := m.Banner()
		geo.PanelMaxX, geo.PanelMaxY = b.MaxX, b.MaxY
		geo.Width, geo.Height = panelOr(dev, b.MaxX+1, b.MaxY+1)
		geo.Pressure = capPressure(dev.ContactPressure(), b.MaxPressure)
		geo.MaxContacts = b.MaxContacts
		return m, geo, nil

	case config.TransportSerial:
		if dev.PanelWidth <= 0 || dev.PanelHeight <= 0 {
			return nil, Geometry{}, fmt.Errorf("%w: serial transport needs panel_width and panel_height", ErrScreenSize)
		}
		h, err := OpenSerialHID(dev.Address, dev.Baud, dev.PanelWidth, dev.PanelHeight)
		if err != nil {
			return nil, Geometry{}, err
		}
		geo.Width, geo.Height = dev.PanelWidth, dev.PanelHeight
		geo.Pressure = 0
		return h, geo, nil

	case config.TransportEvdev:
		if dev.Event == "" {
			return nil, Geometry{}, fmt.Errorf("%w: evdev transport needs device.event", ErrNoTouchNode)
		}
		e, node, err := OpenEvdev(dev.Event)
		if err != nil {
			return nil, Geometry{}, err
		}
		geo.PanelMaxX, geo.PanelMaxY = node.MaxX, node.MaxY
		geo.Width, geo.Height = panelOr(dev, node.MaxX+1, node.MaxY+1)
		geo.Pressure = capPressure(dev.ContactPressure(), node.MaxPressure)
		geo.MaxContacts = contactsOf(node)
		log.WithFields(log.Fields{"node": node.Path, "maxX": node.MaxX, "maxY": node.MaxY}).Info("Evdev: opened")
		return e, geo, nil
	}
	return nil, Geometry{}, fmt.Errorf("%w: unknown transport %q", ErrDiscovery, dev.Transport)
}

// contactsOf returns the slot count of n, or zero when the node does not
// report ABS_MT_SLOT.
func contactsOf(n InputNode) int {
	if n.MaxSlot <= 0 {
		return 0
	}
	return n.MaxSlot + 1
}

func forwardMinitouch(r Runner, dev config.Device) error {
	if r == nil {
		r = ExecRunner{}
	}
	args := []string{"forward", "tcp:" + strconv.Itoa(dev.Port), "localabstract:minitouch"}
	if dev.Serial != "" {
		args = append([]string{"-s", dev.Serial}, args...)
	}
	if _, err := adbCommand(r, dev.ADBPath, dev.CommandTimeout(), args...); err != nil {
		return fmt.Errorf("%w: adb forward: %v", ErrNoDevice, err)
	}
	return nil
}

func panelOr(dev config.Device, w, h int) (int, int) {
	if dev.PanelWidth > 0 && dev.PanelHeight > 0 {
		return dev.PanelWidth, dev.PanelHeight
	}
	return w, h
}

func capPressure(want, limit int) int {
	if limit > 0 && want > limit {
		return limit
	}
	return want
}

// Listing describes one attached adb device for --list-devices.
type Listing struct {
	Serial        string
	Nodes         []InputNode
	Width, Height int
	Err           error
}

// List enumerates adb devices with their touch nodes and screen sizes.
func List(dev config.Device, r Runner) ([]Listing, error) {
	d := NewDiscovery(r, dev, nil)
	if dev.IPPort != "" {
		if err := d.Connect(dev.IPPort); err != nil {
			log.WithError(err).Warn("Discovery: connect failed")
		}
	}
	serials, err := d.Devices()
	if err != nil {
		return nil, err
	}

	out := make([]Listing, 0, len(serials))
	for _, s := range serials {
		l := Listing{Serial: s}
		l.Nodes, l.Err = d.TouchNodes(s)
		if l.Err == nil {
			l.Width, l.Height, l.Err = d.ScreenSize(s)
		}
		out = append(out, l)
	}
	return out, nil
}
