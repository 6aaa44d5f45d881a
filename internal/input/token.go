package input

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadToken is returned by ParseToken for strings that are not canonical tokens.
var ErrBadToken = errors.New("input: not a canonical key token")

// ReleasePrefix marks a key-release token.
const ReleasePrefix = "!"

// Token is a canonical key token: optional release marker, modifier prefixes
// in the fixed order C, S, A, and exactly one base key.
type Token struct {
	Release bool
	Ctrl    bool
	Shift   bool
	Alt     bool
	Base    string // "0".."9", "a".."z" or "F1".."F12"
}

// String renders the token, e.g. "CSAi" or "!Sa".
func (t Token) String() string {
	var b strings.Builder
	if t.Release {
		b.WriteString(ReleasePrefix)
	}
	b.WriteString(t.Chord())
	return b.String()
}

// Chord renders the token without the release marker.
func (t Token) Chord() string {
	var b strings.Builder
	if t.Ctrl {
		b.WriteByte('C')
	}
	if t.Shift {
		b.WriteByte('S')
	}
	if t.Alt {
		b.WriteByte('A')
	}
	b.WriteString(t.Base)
	return b.String()
}

// Press returns the token with the release marker cleared.
func (t Token) Press() Token {
	t.Release = false
	return t
}

// IsFunction reports whether the base is a function key.
func (t Token) IsFunction() bool {
	return len(t.Base) > 1 && t.Base[0] == 'F'
}

// ParseToken decodes a canonical token string.
func ParseToken(s string) (Token, error) {
	var t Token
	rest := s
	if strings.HasPrefix(rest, ReleasePrefix) {
		t.Release = true
		rest = rest[len(ReleasePrefix):]
	}
	if strings.HasPrefix(rest, "C") {
		t.Ctrl = true
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, "S") {
		t.Shift = true
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, "A") {
		t.Alt = true
		rest = rest[1:]
	}
	if !validBase(rest) {
		return Token{}, fmt.Errorf("%w: %q", ErrBadToken, s)
	}
	t.Base = rest
	return t, nil
}

func validBase(s string) bool {
	if len(s) == 1 {
		c := s[0]
		return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')
	}
	for _, name := range fkeyNames {
		if s == name {
			return true
		}
	}
	return false
}
