package device

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"vtouch/internal/touch"
)

// HID bridge report layout: 0xF4, action, contact id, x (LE u32), y (LE u32), 0.
const (
	hidHeader     = 0xF4
	hidReportSize = 12

	hidActionUp         = 0x00
	hidActionDown       = 0x01
	hidActionResolution = 0x03
)

// SerialHID drives a microcontroller that acts as a USB HID touchscreen.
type SerialHID struct {
	mu      sync.Mutex
	port    io.WriteCloser
	decoder *FrameDecoder
	buf     [hidReportSize]byte
}

// OpenSerialHID opens the bridge on portName and announces the panel
// resolution.
func OpenSerialHID(portName string, baud, width, height int) (*SerialHID, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("%w: serial %s: %v", ErrNoDevice, portName, err)
	}
	h, err := NewSerialHID(port, width, height)
	if err != nil {
		port.Close()
		return nil, err
	}
	log.WithFields(log.Fields{"port": portName, "baud": baud}).Info("SerialHID: connected")
	return h, nil
}

// NewSerialHID wraps an open port.
func NewSerialHID(port io.WriteCloser, width, height int) (*SerialHID, error) {
	h := &SerialHID{port: port, decoder: NewFrameDecoder()}
	if err := h.write(hidActionResolution, 0, uint32(width), uint32(height)); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *SerialHID) write(action, id uint8, x, y uint32) error {
	h.buf[0] = hidHeader
	h.buf[1] = action
	h.buf[2] = id
	binary.LittleEndian.PutUint32(h.buf[3:7], x)
	binary.LittleEndian.PutUint32(h.buf[7:11], y)
	h.buf[11] = 0
	if _, err := h.port.Write(h.buf[:]); err != nil {
		return fmt.Errorf("%w: serial write: %v", ErrTransport, err)
	}
	return nil
}

// Emit writes one report per contact change.
func (h *SerialHID) Emit(events []touch.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, op := range h.decoder.Decode(events) {
		var err error
		switch op.Kind {
		case OpDown, OpMove:
			err = h.write(hidActionDown, uint8(op.Slot), uint32(max(op.X, 0)), uint32(max(op.Y, 0)))
		case OpUp:
			err = h.write(hidActionUp, uint8(op.Slot), 0, 0)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Close implements Transport.
func (h *SerialHID) Close() error {
	return h.port.Close()
}
