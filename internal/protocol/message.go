package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned for lines or packets that do not decode.
var ErrMalformed = errors.New("protocol: malformed message")

// Kind identifies a message on the reactor boundary.
type Kind uint8

const (
	KindMove  Kind = iota + 1 // "M x y"
	KindLeft                  // "L x y"
	KindRight                 // "R x y"
	KindKey                   // "<mods><char>" or "!<mods><char>"
	KindExit                  // "exit"
)

// ExitLine is the shutdown sentinel.
const ExitLine = "exit"

func (k Kind) String() string {
	switch k {
	case KindMove:
		return "move"
	case KindLeft:
		return "left"
	case KindRight:
		return "right"
	case KindKey:
		return "key"
	case KindExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Message is one unit of input handed from the capture layer to the reactor.
// Pointer messages carry screen pixels; key messages carry a canonical token.
type Message struct {
	Kind  Kind
	X, Y  int
	Token string
}

// Move builds a pointer-move message.
func Move(x, y int) Message { return Message{Kind: KindMove, X: x, Y: y} }

// Click builds a button message for the left or right button.
func Click(right bool, x, y int) Message {
	if right {
		return Message{Kind: KindRight, X: x, Y: y}
	}
	return Message{Kind: KindLeft, X: x, Y: y}
}

// Key builds a key-token message.
func Key(token string) Message { return Message{Kind: KindKey, Token: token} }

// Exit builds the shutdown sentinel.
func Exit() Message { return Message{Kind: KindExit} }

// String renders the message in the line protocol.
func (m Message) String() string {
	switch m.Kind {
	case KindMove:
		return fmt.Sprintf("M %d %d", m.X, m.Y)
	case KindLeft:
		return fmt.Sprintf("L %d %d", m.X, m.Y)
	case KindRight:
		return fmt.Sprintf("R %d %d", m.X, m.Y)
	case KindKey:
		return m.Token
	case KindExit:
		return ExitLine
	}
	return ""
}

// ParseLine decodes one line of the inter-stage protocol.
func ParseLine(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Message{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}
	if line == ExitLine {
		return Exit(), nil
	}

	fields := strings.Fields(line)
	if len(fields) == 3 {
		var kind Kind
		switch fields[0] {
		case "M":
			kind = KindMove
		case "L":
			kind = KindLeft
		case "R":
			kind = KindRight
		}
		if kind != 0 {
			x, err := parseCoord(fields[1])
			if err != nil {
				return Message{}, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
			}
			y, err := parseCoord(fields[2])
			if err != nil {
				return Message{}, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
			}
			return Message{Kind: kind, X: x, Y: y}, nil
		}
	}

	if len(fields) != 1 {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return Key(line), nil
}

// parseCoord accepts integer pixels; some hooks report fractional pixels on
// scaled displays, which are truncated.
func parseCoord(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
