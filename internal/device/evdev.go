package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/lunixbochs/struc"

	"vtouch/internal/touch"
)

// inputEvent is struct input_event on 64-bit Linux.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// inputEventSize is sizeof(struct input_event) on 64-bit Linux.
const inputEventSize = 24

// packEvents encodes events as consecutive input_event records.
func packEvents(events []touch.Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(events) * inputEventSize)
	for _, ev := range events {
		rec := inputEvent{Type: ev.Type, Code: ev.Code, Value: ev.Value}
		if err := struc.PackWithOptions(&buf, &rec, &struc.Options{Order: binary.LittleEndian}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Evdev writes raw events to an input node.
type Evdev struct {
	mu   sync.Mutex
	node io.WriteCloser
	path string
}

// NewEvdev wraps an open node.
func NewEvdev(node io.WriteCloser, path string) *Evdev {
	return &Evdev{node: node, path: path}
}

// Emit writes events in one write call.
func (e *Evdev) Emit(events []touch.Event) error {
	data, err := packEvents(events)
	if err != nil {
		return fmt.Errorf("%w: packing events: %v", ErrTransport, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.node.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrTransport, e.path, err)
	}
	return nil
}

// Close implements Transport.
func (e *Evdev) Close() error {
	return e.node.Close()
}

// AxisRange is the min/max of one absolute axis.
type AxisRange struct {
	Min, Max int32
}
