// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"context"
	"fmt"
	"time"

	"github.com/getlantern/systray"

	"vtouch/internal/reactor"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	title   string
	items   []*MenuItem
	readyCh chan struct{}
	quitCh  chan struct{}
}

// New creates a new system tray
func New(title string) *Tray {
	return &Tray{
		title:   title,
		items:   make([]*MenuItem, 0),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	id := len(t.items)
	t.items = append(t.items, &MenuItem{ID: id, Title: title, Callback: callback})
	return id
}

// AddLabel adds a disabled item whose title can be updated.
func (t *Tray) AddLabel(title string) int {
	id := t.AddMenuItem(title, nil)
	t.items[id].Disabled = true
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemTitle changes the text of a menu item once the tray is ready.
func (t *Tray) SetItemTitle(id int, title string) {
	if id >= 0 && id < len(t.items) && t.items[id] != nil && t.items[id].item != nil {
		t.items[id].item.SetTitle(title)
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() { close(t.quitCh) })
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle(t.title)
	systray.SetTooltip(t.title)
	systray.SetIcon(getIcon())

	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}
		item := systray.AddMenuItem(menuItem.Title, "")
		menuItem.item = item
		if menuItem.Disabled {
			item.Disable()
		}

		if menuItem.Callback != nil {
			go func(mi *MenuItem) {
				for {
					select {
					case <-mi.item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem)
		}
	}
	close(t.readyCh)
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// Describe renders the reactor state for the status label.
func Describe(st reactor.Status) string {
	if !st.Calibrated {
		return "Not calibrated"
	}
	r := st.Window
	s := fmt.Sprintf("Window %d,%d - %d,%d", r.Left, r.Top, r.Right, r.Bottom)
	if n := len(st.Slots); n > 0 {
		s += fmt.Sprintf(", %d touch", n)
	}
	return s
}

// Watch refreshes label id and the tooltip from status until ctx ends.
func (t *Tray) Watch(ctx context.Context, id int, interval time.Duration, status func() reactor.Status) {
	select {
	case <-t.readyCh:
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := ""
	for {
		if text := Describe(status()); text != last {
			t.SetItemTitle(id, text)
			systray.SetTooltip(t.title + ": " + text)
			last = text
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		case <-t.quitCh:
			return
		}
	}
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	icon := make([]byte, 1118)
	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00, // 1024 pixels + 40 header + 32 mask
		0x16, 0x00, 0x00, 0x00, // Offset
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// Opaque blue pixels (BGRA) so the icon is visible.
	for i := 62; i < 62+1024; i += 4 {
		copy(icon[i:i+4], []byte{0xD0, 0x80, 0x20, 0xFF})
	}
	return icon
}
