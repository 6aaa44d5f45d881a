// Package touch models the Linux multitouch (protocol B) event encoding and
// the slot pool that backs simultaneous contacts.
package touch

// Event types
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvAbs uint16 = 0x03
)

// Event codes
const (
	SynReport       uint16 = 0
	BtnTouch        uint16 = 330
	BtnToolFinger   uint16 = 325
	AbsMTSlot       uint16 = 0x2f // 47
	AbsMTPositionX  uint16 = 0x35 // 53
	AbsMTPositionY  uint16 = 0x36 // 54
	AbsMTTrackingID uint16 = 0x39 // 57
	AbsMTPressure   uint16 = 0x3a // 58
)

// TrackingIDNone clears the tracking id of a slot, ending its contact.
const TrackingIDNone int32 = -1

// Event is one input_event triple.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}
