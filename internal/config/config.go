// Package config loads the environment definitions for the touch controller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"vtouch/internal/calib"
)

// Transport kinds.
const (
	TransportADB       = "adb"
	TransportMinitouch = "minitouch"
	TransportSerial    = "serial"
	TransportEvdev     = "evdev"
)

// DefaultPressure is the contact pressure used when none is configured.
const DefaultPressure = 50

// Config represents the application configuration
type Config struct {
	// Logging controls log level and format
	Logging Logging `json:"logging" yaml:"logging" toml:"logging"`

	// API configures the HTTP status and WebSocket capture server
	API API `json:"api" yaml:"api" toml:"api"`

	// UDP configures the UDP capture listener
	UDP UDP `json:"udp" yaml:"udp" toml:"udp"`

	// Environments contains one entry per device/game setup
	Environments []Environment `json:"environments" yaml:"environments" toml:"environments"`
}

// Logging contains logger settings
type Logging struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level" toml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format" toml:"format"`
}

// API contains HTTP server settings
type API struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	// Port is the listen port (default: 18080)
	Port int `json:"port" yaml:"port" toml:"port"`

	// Token is an optional bearer token required by every request
	Token string `json:"token,omitempty" yaml:"token,omitempty" toml:"token,omitempty"`
}

// UDP contains UDP listener settings
type UDP struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	// Port is the listen port (default: 18081)
	Port int `json:"port" yaml:"port" toml:"port"`
}

// Environment is one named device setup
type Environment struct {
	// Name identifies the environment on the command line
	Name string `json:"name" yaml:"name" toml:"name"`

	// Device selects and parameterizes the touch transport
	Device Device `json:"device" yaml:"device" toml:"device"`

	// ADB is the older layout {"path", "ip_port"}; merged into Device on load
	ADB *LegacyADB `json:"adb,omitempty" yaml:"adb,omitempty" toml:"adb,omitempty"`

	// Window is the initial calibration window (optional)
	Window Window `json:"window" yaml:"window" toml:"window"`

	// Player is the aim anchor in normalized window coordinates
	Player Player `json:"player" yaml:"player" toml:"player"`

	// Keys maps key tokens and "L"/"R" to action strings
	Keys map[string]string `json:"keys" yaml:"keys" toml:"keys"`

	// QueueSize bounds the channel between capture sources and the reactor
	QueueSize int `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
}

// LegacyADB mirrors the adb block of bare-array configuration files
type LegacyADB struct {
	Path   string `json:"path" yaml:"path" toml:"path"`
	IPPort string `json:"ip_port" yaml:"ip_port" toml:"ip_port"`
}

// Device contains transport settings. Fields not used by the selected
// transport are ignored.
type Device struct {
	// Transport is adb, minitouch, serial or evdev (default: adb)
	Transport string `json:"transport" yaml:"transport" toml:"transport"`

	// ADBPath is the adb executable (default: "adb" on PATH)
	ADBPath string `json:"adb_path" yaml:"adb_path" toml:"adb_path"`

	// IPPort is passed to "adb connect" before listing devices (optional)
	IPPort string `json:"ip_port,omitempty" yaml:"ip_port,omitempty" toml:"ip_port,omitempty"`

	// Serial picks an adb device; empty means the only one or ask
	Serial string `json:"serial,omitempty" yaml:"serial,omitempty" toml:"serial,omitempty"`

	// Event is the touch input node, e.g. /dev/input/event2; empty means detect
	Event string `json:"event,omitempty" yaml:"event,omitempty" toml:"event,omitempty"`

	// Rotation is the display rotation in quarter turns, 0..3
	Rotation int `json:"rotation" yaml:"rotation" toml:"rotation"`

	// Address is the minitouch host or serial port name
	Address string `json:"address,omitempty" yaml:"address,omitempty" toml:"address,omitempty"`

	// Port is the minitouch TCP port (default: 1111)
	Port int `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty"`

	// Baud is the serial baud rate (default: 115200)
	Baud int `json:"baud,omitempty" yaml:"baud,omitempty" toml:"baud,omitempty"`

	// PanelWidth and PanelHeight override the detected display size
	PanelWidth  int `json:"panel_width,omitempty" yaml:"panel_width,omitempty" toml:"panel_width,omitempty"`
	PanelHeight int `json:"panel_height,omitempty" yaml:"panel_height,omitempty" toml:"panel_height,omitempty"`

	// Pressure reported for touch contacts (default: 50); 0 omits the
	// pressure axis
	Pressure *int `json:"pressure,omitempty" yaml:"pressure,omitempty" toml:"pressure,omitempty"`

	// CommandTimeoutMS bounds each device command (default: 5000)
	CommandTimeoutMS int `json:"command_timeout_ms" yaml:"command_timeout_ms" toml:"command_timeout_ms"`

	// SwipeDurationMS is the duration of swipe gestures (default: 20)
	SwipeDurationMS int `json:"swipe_duration_ms" yaml:"swipe_duration_ms" toml:"swipe_duration_ms"`
}

// Window is an initial calibration rectangle in screen pixels
type Window struct {
	// Title of the mirroring window, informational only
	Title string `json:"title,omitempty" yaml:"title,omitempty" toml:"title,omitempty"`

	Left   int `json:"left" yaml:"left" toml:"left"`
	Top    int `json:"top" yaml:"top" toml:"top"`
	Right  int `json:"right" yaml:"right" toml:"right"`
	Bottom int `json:"bottom" yaml:"bottom" toml:"bottom"`

	// Resolution "WxH" derives Top from Bottom and the window width
	Resolution string `json:"resolution,omitempty" yaml:"resolution,omitempty" toml:"resolution,omitempty"`
}

// Player is the anchor point
type Player struct {
	X float64 `json:"x" yaml:"x" toml:"x"`
	Y float64 `json:"y" yaml:"y" toml:"y"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		API: API{
			Enabled: false,
			Port:    18080,
		},
		UDP: UDP{
			Enabled: false,
			Port:    18081,
		},
	}
}

// applyDefaults fills unset environment fields.
func (e *Environment) applyDefaults() {
	if e.ADB != nil {
		if e.Device.ADBPath == "" {
			e.Device.ADBPath = e.ADB.Path
		}
		if e.Device.IPPort == "" {
			e.Device.IPPort = e.ADB.IPPort
		}
		e.ADB = nil
	}

	d := &e.Device
	if d.Transport == "" {
		d.Transport = TransportADB
	}
	if d.ADBPath == "" {
		d.ADBPath = "adb"
	}
	if d.Port == 0 {
		d.Port = 1111
	}
	if d.Baud == 0 {
		d.Baud = 115200
	}
	if d.CommandTimeoutMS == 0 {
		d.CommandTimeoutMS = 5000
	}
	if d.SwipeDurationMS == 0 {
		d.SwipeDurationMS = 20
	}
	if e.QueueSize == 0 {
		e.QueueSize = 256
	}
	if e.Keys == nil {
		e.Keys = map[string]string{}
	}
}

// CommandTimeout returns the per-command deadline.
func (d Device) CommandTimeout() time.Duration {
	return time.Duration(d.CommandTimeoutMS) * time.Millisecond
}

// ContactPressure returns the configured pressure, DefaultPressure when unset.
func (d Device) ContactPressure() int {
	if d.Pressure == nil {
		return DefaultPressure
	}
	return *d.Pressure
}

// SwipeDuration returns the swipe gesture duration.
func (d Device) SwipeDuration() time.Duration {
	return time.Duration(d.SwipeDurationMS) * time.Millisecond
}

// Rect returns the initial calibration, reporting false when none is
// configured.
func (w Window) Rect() (calib.Rect, bool) {
	if w.Left == 0 && w.Top == 0 && w.Right == 0 && w.Bottom == 0 {
		return calib.Rect{}, false
	}
	r := calib.Rect{Left: w.Left, Top: w.Top, Right: w.Right, Bottom: w.Bottom}
	if w.Resolution != "" {
		resW, resH, err := ParseResolution(w.Resolution)
		if err == nil {
			r.Top = calib.AspectTop(r.Left, r.Right, r.Bottom, resW, resH)
		}
	}
	return r, true
}

// ParseResolution splits "WxH".
func ParseResolution(s string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("resolution %q: want WxH", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("resolution %q: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("resolution %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: must be positive", s)
	}
	return w, h, nil
}

// Names lists environment names in file order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Environments))
	for i, e := range c.Environments {
		names[i] = e.Name
	}
	return names
}

// DefaultPath returns the per-user configuration file location
func DefaultPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "vtouch")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "vtouch")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "vtouch")
	}

	return filepath.Join(configDir, "config.json"), nil
}
