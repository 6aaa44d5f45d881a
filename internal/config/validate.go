package config

import (
	"errors"
	"fmt"

	"vtouch/internal/action"
)

// ErrInvalid marks every configuration problem.
var ErrInvalid = errors.New("invalid configuration")

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the whole configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if !validLevels[c.Logging.Level] {
		fail("logging.level %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		fail("logging.format %q", c.Logging.Format)
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		fail("api.port %d", c.API.Port)
	}
	if c.UDP.Enabled && (c.UDP.Port <= 0 || c.UDP.Port > 65535) {
		fail("udp.port %d", c.UDP.Port)
	}

	if len(c.Environments) == 0 {
		fail("no environment found")
	}
	seen := make(map[string]bool)
	for i := range c.Environments {
		e := &c.Environments[i]
		label := e.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			fail("environment %s has no name", label)
		} else if seen[e.Name] {
			fail("environment %q defined twice", e.Name)
		}
		seen[e.Name] = true

		if err := e.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("environment %s: %w", label, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks one environment, including every action string.
func (e *Environment) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	d := e.Device
	switch d.Transport {
	case TransportADB, TransportEvdev:
	case TransportMinitouch:
		if d.Address == "" && d.Serial == "" {
			fail("minitouch needs device.address or device.serial")
		}
	case TransportSerial:
		if d.Address == "" {
			fail("serial needs device.address")
		}
	default:
		fail("unknown transport %q", d.Transport)
	}
	if d.Rotation < 0 || d.Rotation > 3 {
		fail("device.rotation %d not in 0..3", d.Rotation)
	}
	if d.PanelWidth < 0 || d.PanelHeight < 0 {
		fail("negative panel size")
	}
	if d.CommandTimeoutMS < 0 || d.SwipeDurationMS < 0 {
		fail("negative duration")
	}
	if d.ContactPressure() < 0 {
		fail("negative pressure")
	}

	if e.Player.X < 0 || e.Player.X > 1 || e.Player.Y < 0 || e.Player.Y > 1 {
		fail("player (%g,%g) not in [0,1]", e.Player.X, e.Player.Y)
	}
	if e.Window.Resolution != "" {
		if _, _, err := ParseResolution(e.Window.Resolution); err != nil {
			fail("%v", err)
		}
	}
	if e.QueueSize < 0 {
		fail("queue_size %d", e.QueueSize)
	}

	if _, err := action.NewMapper(e.Keys); err != nil {
		errs = append(errs, fmt.Errorf("%w: keys: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// Mapper builds the action table of the environment.
func (e *Environment) Mapper() (*action.Mapper, error) {
	m, err := action.NewMapper(e.Keys)
	if err != nil {
		return nil, fmt.Errorf("%w: keys: %w", ErrInvalid, err)
	}
	return m, nil
}
