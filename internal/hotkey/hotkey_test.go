package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtouch/internal/input"
)

func TestCompile(t *testing.T) {
	tests := map[string]string{
		MarkTopLeft:       "CSAi",
		MarkBottomRight:   "CSAo",
		"alt + shift + 7": "SA7",
		"Ctrl+F4":         "CF4",
		"q":               "q",
		"Control+Shift+Z": "CSz",
	}
	for in, want := range tests {
		got, err := Compile(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "Ctrl+Shift", "Ctrl+Esc", "a+b", "F13"} {
		_, err := Compile(bad)
		assert.Error(t, err, bad)
	}
}

func TestDispatch(t *testing.T) {
	m := NewManager()
	hits := 0
	chord, err := m.Register(MarkTopLeft, func() { hits++ })
	require.NoError(t, err)
	assert.Equal(t, "CSAi", chord)
	assert.True(t, m.Has("CSAi"))

	press := input.Token{Ctrl: true, Shift: true, Alt: true, Base: "i"}
	assert.True(t, m.Dispatch(press))
	assert.Equal(t, 1, hits, "callback runs before Dispatch returns")

	release := press
	release.Release = true
	assert.False(t, m.Dispatch(release))

	assert.False(t, m.Dispatch(input.Token{Ctrl: true, Base: "i"}))
	assert.Equal(t, 1, hits)

	m.Clear()
	assert.False(t, m.Dispatch(press))
}
