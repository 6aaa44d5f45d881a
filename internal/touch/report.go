package touch

// SelectSlot selects the slot subsequent ABS_MT events apply to.
func SelectSlot(index int) Event { return Event{EvAbs, AbsMTSlot, int32(index)} }

// AssignTrackingID starts a contact in the selected slot.
func AssignTrackingID(id int32) Event { return Event{EvAbs, AbsMTTrackingID, id} }

// ClearTrackingID ends the contact in the selected slot.
func ClearTrackingID() Event { return Event{EvAbs, AbsMTTrackingID, TrackingIDNone} }

// PositionX sets the contact X coordinate in panel units.
func PositionX(x int32) Event { return Event{EvAbs, AbsMTPositionX, x} }

// PositionY sets the contact Y coordinate in panel units.
func PositionY(y int32) Event { return Event{EvAbs, AbsMTPositionY, y} }

// Pressure sets the contact pressure.
func Pressure(p int32) Event { return Event{EvAbs, AbsMTPressure, p} }

// Sync closes a report.
func Sync() Event { return Event{EvSyn, SynReport, 0} }

// Down is the report that starts a contact at (x, y). A zero pressure omits
// the pressure axis.
func Down(s Slot, x, y, pressure int32) []Event {
	evs := []Event{SelectSlot(s.Index), AssignTrackingID(s.TrackingID), PositionX(x), PositionY(y)}
	if pressure > 0 {
		evs = append(evs, Pressure(pressure))
	}
	return append(evs, Sync())
}

// Motion is the report that moves the contact in slot index.
func Motion(index int, x, y int32) []Event {
	return []Event{SelectSlot(index), PositionX(x), PositionY(y), Sync()}
}

// Up is the report that lifts the contact in slot index.
func Up(index int) []Event {
	return []Event{SelectSlot(index), ClearTrackingID(), Sync()}
}
