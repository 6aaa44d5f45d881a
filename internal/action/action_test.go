package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtouch/internal/input"
)

func TestParseVariants(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"click 0.5 0.25", Click{X: 0.5, Y: 0.25}},
		{"swipe 0 0 1 1", Swipe{X0: 0, Y0: 0, X1: 1, Y1: 1}},
		{"swipe_direction 0.3 0.7 -1 0", SwipeDirection{X: 0.3, Y: 0.7, DX: -1, DY: 0}},
		{"swipe_area 0.8 0.6", SwipeArea{X: 0.8, Y: 0.6}},
		{"pad 0.2 0.7", Pad{X: 0.2, Y: 0.7, Radius: DefaultPadRadius}},
		{"  pad 0.2 0.7 0.1 ", Pad{X: 0.2, Y: 0.7, Radius: 0.1}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("tap 1 1")
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Parse("click 0.5")
	assert.ErrorIs(t, err, ErrArity)

	_, err = Parse("swipe 0 0 1")
	assert.ErrorIs(t, err, ErrArity)

	_, err = Parse("click 1.5 0")
	assert.ErrorIs(t, err, ErrRange)

	_, err = Parse("click x 0")
	assert.ErrorIs(t, err, ErrRange)

	_, err = Parse("pad 0.5 0.5 0")
	assert.ErrorIs(t, err, ErrRange)
}

func TestMapperResolve(t *testing.T) {
	m, err := NewMapper(map[string]string{
		"a":  "click 0.1 0.1",
		"Ca": "click 0.9 0.9",
		"F2": "swipe 0 0 1 1",
		"L":  "click 0.5 0.5",
		"q":  "pad 0.2 0.8",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, m.Len())

	a, ok := m.Resolve(input.Token{Base: "a"})
	require.True(t, ok)
	assert.Equal(t, Click{X: 0.1, Y: 0.1}, a)

	a, ok = m.Resolve(input.Token{Ctrl: true, Base: "a"})
	require.True(t, ok)
	assert.Equal(t, Click{X: 0.9, Y: 0.9}, a, "exact chord wins")

	a, ok = m.Resolve(input.Token{Shift: true, Base: "a"})
	require.True(t, ok)
	assert.Equal(t, Click{X: 0.1, Y: 0.1}, a, "falls back to base key")

	_, ok = m.Resolve(input.Token{Base: "z"})
	assert.False(t, ok)

	_, ok = m.Lookup(KeyLeftButton)
	assert.True(t, ok)

	pad, key, ok := m.Pad()
	require.True(t, ok)
	assert.Equal(t, "q", key)
	assert.Equal(t, 0.8, pad.Y)
}

func TestMapperFunctionKeysNeedOwnEntry(t *testing.T) {
	m, err := NewMapper(map[string]string{
		"1":  "click 0.1 0.1",
		"F2": "click 0.2 0.2",
	})
	require.NoError(t, err)

	_, ok := m.Resolve(input.Token{Base: "F1"})
	assert.False(t, ok, "F1 does not borrow the binding of 1")

	a, ok := m.Resolve(input.Token{Base: "F2"})
	require.True(t, ok)
	assert.Equal(t, Click{X: 0.2, Y: 0.2}, a)

	a, ok = m.Resolve(input.Token{Base: "1"})
	require.True(t, ok)
	assert.Equal(t, Click{X: 0.1, Y: 0.1}, a)
}

func TestMapperRejectsBadTable(t *testing.T) {
	_, err := NewMapper(map[string]string{"a": "warp 1 1"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = NewMapper(map[string]string{"shift": "click 0 0"})
	assert.ErrorIs(t, err, input.ErrBadToken)

	_, err = NewMapper(map[string]string{"!a": "click 0 0"})
	assert.Error(t, err)

	_, err = NewMapper(map[string]string{"q": "pad 0 0", "e": "pad 1 1"})
	assert.Error(t, err)
}

func TestActionKinds(t *testing.T) {
	assert.Equal(t, KindSwipeArea, SwipeArea{}.Kind())
	assert.Equal(t, KindTouchEnd, TouchEnd{}.Kind())
	assert.Equal(t, "click 0.5 1", Click{X: 0.5, Y: 1}.String())
}
