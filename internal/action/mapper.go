package action

import (
	"fmt"

	"vtouch/internal/input"
)

// Pointer button keys usable in the key table.
const (
	KeyLeftButton  = "L"
	KeyRightButton = "R"
)

// Mapper resolves key tokens to actions. It is built once from the key table
// and never modified.
type Mapper struct {
	actions map[string]Action
	pad     Pad
	padKey  string
	hasPad  bool
}

// NewMapper parses every entry of table. Keys are token chords ("a", "Ca",
// "F3") or pointer buttons ("L", "R"); values are action strings.
func NewMapper(table map[string]string) (*Mapper, error) {
	m := &Mapper{actions: make(map[string]Action, len(table))}
	for key, def := range table {
		if err := validKey(key); err != nil {
			return nil, err
		}
		a, err := Parse(def)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		if p, ok := a.(Pad); ok {
			if m.hasPad {
				return nil, fmt.Errorf("key %q: only one pad may be configured (already on %q)", key, m.padKey)
			}
			m.pad, m.padKey, m.hasPad = p, key, true
		}
		m.actions[key] = a
	}
	return m, nil
}

func validKey(key string) error {
	if key == KeyLeftButton || key == KeyRightButton {
		return nil
	}
	tok, err := input.ParseToken(key)
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	if tok.Release {
		return fmt.Errorf("key %q: release tokens cannot be mapped", key)
	}
	return nil
}

// Resolve finds the action for a press token: an exact chord match first,
// then the bare base key.
func (m *Mapper) Resolve(tok input.Token) (Action, bool) {
	if a, ok := m.actions[tok.Chord()]; ok {
		return a, true
	}
	a, ok := m.actions[tok.Base]
	return a, ok
}

// Lookup returns the action bound to a raw table key.
func (m *Mapper) Lookup(key string) (Action, bool) {
	a, ok := m.actions[key]
	return a, ok
}

// Pad returns the configured pad and the key bound to it.
func (m *Mapper) Pad() (Pad, string, bool) {
	return m.pad, m.padKey, m.hasPad
}

// Len returns the number of mapped keys.
func (m *Mapper) Len() int { return len(m.actions) }
