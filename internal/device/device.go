// Package device delivers touch gestures to a phone or tablet over adb,
// minitouch, a serial HID bridge or a local evdev node.
package device

import (
	"time"

	"vtouch/internal/touch"
)

// Transport accepts raw multitouch events. Each call carries complete
// frames terminated by a SYN_REPORT.
type Transport interface {
	Emit(events []touch.Event) error
	Close() error
}

// Gesturer is implemented by transports with native tap and swipe commands.
// Coordinates are display pixels in the current orientation.
type Gesturer interface {
	Tap(x, y int) error
	Swipe(x0, y0, x1, y1 int, d time.Duration) error
}
