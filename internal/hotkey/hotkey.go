// Package hotkey matches reserved key chords before they reach the action
// table.
package hotkey

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/input"
)

// Calibration chords.
const (
	MarkTopLeft     = "Ctrl+Shift+Alt+I"
	MarkBottomRight = "Ctrl+Shift+Alt+O"
)

// Manager holds chord registrations and dispatches matching press tokens
type Manager struct {
	mu      sync.RWMutex
	hotkeys map[string]*registeredHotkey
}

type registeredHotkey struct {
	chord    string // canonical token form, e.g. "CSAi"
	original string
	callback func()
}

// NewManager creates an empty hotkey manager
func NewManager() *Manager {
	return &Manager{
		hotkeys: make(map[string]*registeredHotkey),
	}
}

// Register binds a chord such as "Ctrl+Shift+Alt+I" or "Alt+F4" to a callback.
// Registering the same chord again replaces the callback.
func (m *Manager) Register(hotkeyStr string, callback func()) (string, error) {
	chord, err := Compile(hotkeyStr)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hotkeys[chord] = &registeredHotkey{
		chord:    chord,
		original: hotkeyStr,
		callback: callback,
	}
	return chord, nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = make(map[string]*registeredHotkey)
}

// Has reports whether chord is reserved.
func (m *Manager) Has(chord string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.hotkeys[chord]
	return ok
}

// Dispatch runs the callback bound to a press token on the caller's
// goroutine. Release tokens never match.
func (m *Manager) Dispatch(tok input.Token) bool {
	if tok.Release {
		return false
	}

	m.mu.RLock()
	hk, ok := m.hotkeys[tok.Chord()]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	log.Debugf("Hotkey triggered: %s", hk.original)
	hk.callback()
	return true
}

// Compile converts a "+"-separated chord description to canonical token form.
func Compile(hotkeyStr string) (string, error) {
	var tok input.Token
	parts := strings.Split(hotkeyStr, "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		last := i == len(parts)-1
		switch strings.ToUpper(p) {
		case "CTRL", "CONTROL":
			tok.Ctrl = true
		case "SHIFT":
			tok.Shift = true
		case "ALT":
			tok.Alt = true
		default:
			if !last || tok.Base != "" {
				return "", fmt.Errorf("hotkey %q: unexpected key %q", hotkeyStr, p)
			}
			base := strings.ToLower(p)
			if len(base) > 1 {
				base = strings.ToUpper(base)
			}
			tok.Base = base
		}
	}

	chord := tok.Chord()
	if _, err := input.ParseToken(chord); err != nil {
		return "", fmt.Errorf("hotkey %q: %w", hotkeyStr, err)
	}
	return chord, nil
}
