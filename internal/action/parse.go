package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownAction is returned for an unrecognized action keyword.
	ErrUnknownAction = errors.New("unknown action")

	// ErrArity is returned when an action has the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")

	// ErrRange is returned for a coordinate outside 0..1 or a non-number.
	ErrRange = errors.New("argument out of range")
)

// Parse decodes an action string such as "click 0.5 0.8".
func Parse(s string) (Action, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty action", ErrUnknownAction)
	}

	keyword, args := fields[0], fields[1:]
	switch keyword {
	case "click":
		v, err := numbers(keyword, args, 2, 2)
		if err != nil {
			return nil, err
		}
		if err := unit(keyword, v...); err != nil {
			return nil, err
		}
		return Click{X: v[0], Y: v[1]}, nil

	case "swipe":
		v, err := numbers(keyword, args, 4, 4)
		if err != nil {
			return nil, err
		}
		if err := unit(keyword, v...); err != nil {
			return nil, err
		}
		return Swipe{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}, nil

	case "swipe_direction":
		v, err := numbers(keyword, args, 4, 4)
		if err != nil {
			return nil, err
		}
		if err := unit(keyword, v[0], v[1]); err != nil {
			return nil, err
		}
		return SwipeDirection{X: v[0], Y: v[1], DX: v[2], DY: v[3]}, nil

	case "swipe_area":
		v, err := numbers(keyword, args, 2, 2)
		if err != nil {
			return nil, err
		}
		if err := unit(keyword, v...); err != nil {
			return nil, err
		}
		return SwipeArea{X: v[0], Y: v[1]}, nil

	case "pad":
		v, err := numbers(keyword, args, 2, 3)
		if err != nil {
			return nil, err
		}
		if err := unit(keyword, v[0], v[1]); err != nil {
			return nil, err
		}
		p := Pad{X: v[0], Y: v[1], Radius: DefaultPadRadius}
		if len(v) == 3 {
			if v[2] <= 0 || v[2] > 1 {
				return nil, fmt.Errorf("%w: pad radius %g", ErrRange, v[2])
			}
			p.Radius = v[2]
		}
		return p, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, keyword)
}

func numbers(keyword string, args []string, min, max int) ([]float64, error) {
	if len(args) < min || len(args) > max {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, keyword, min, len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %q", ErrRange, keyword, a)
		}
		out[i] = f
	}
	return out, nil
}

func unit(keyword string, v ...float64) error {
	for _, f := range v {
		if f < 0 || f > 1 {
			return fmt.Errorf("%w: %s coordinate %g not in [0,1]", ErrRange, keyword, f)
		}
	}
	return nil
}
