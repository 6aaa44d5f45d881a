package touch

import (
	"hash/fnv"
	"sync"
)

// MaxSlots is the size of the contact pool.
const MaxSlots = 8

// Slot is one protocol-level contact channel.
type Slot struct {
	Index      int
	Occupied   bool
	TrackingID int32
	Owner      string
}

// Allocator hands out slots to logical touch owners. A slot stays bound to
// its owner until released; a released index may be handed out again.
type Allocator struct {
	mu    sync.Mutex
	slots [MaxSlots]Slot
}

// NewAllocator returns an empty pool.
func NewAllocator() *Allocator {
	a := &Allocator{}
	for i := range a.slots {
		a.slots[i].Index = i
	}
	return a
}

// Request binds the first free slot to owner. It reports false when every
// slot is occupied or owner already holds one.
func (a *Allocator) Request(owner string) (Slot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.slots {
		if s.Occupied && s.Owner == owner {
			return Slot{}, false
		}
	}
	for i := range a.slots {
		if !a.slots[i].Occupied {
			a.slots[i].Occupied = true
			a.slots[i].Owner = owner
			a.slots[i].TrackingID = TrackingID(owner)
			return a.slots[i], true
		}
	}
	return Slot{}, false
}

// Release frees the slot held by owner and returns it. It reports false when
// owner holds nothing.
func (a *Allocator) Release(owner string) (Slot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.slots {
		if a.slots[i].Occupied && a.slots[i].Owner == owner {
			freed := a.slots[i]
			a.slots[i] = Slot{Index: i}
			return freed, true
		}
	}
	return Slot{}, false
}

// Lookup returns the slot held by owner.
func (a *Allocator) Lookup(owner string) (Slot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.slots {
		if s.Occupied && s.Owner == owner {
			return s, true
		}
	}
	return Slot{}, false
}

// Active returns a snapshot of the occupied slots in index order.
func (a *Allocator) Active() []Slot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Slot
	for _, s := range a.slots {
		if s.Occupied {
			out = append(out, s)
		}
	}
	return out
}

// TrackingID derives a stable, non-negative tracking id from an owner key.
func TrackingID(owner string) int32 {
	h := fnv.New32a()
	h.Write([]byte(owner))
	return int32(h.Sum32() & 0x7fff)
}
