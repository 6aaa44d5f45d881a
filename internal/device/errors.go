package device

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscovery marks every failure to find a usable device at startup
	ErrDiscovery = errors.New("device discovery failed")

	// ErrNoDevice is returned when no device is attached or selected
	ErrNoDevice = fmt.Errorf("%w: no device", ErrDiscovery)

	// ErrNoTouchNode is returned when the device exposes no multitouch input node
	ErrNoTouchNode = fmt.Errorf("%w: no multitouch input node", ErrDiscovery)

	// ErrScreenSize is returned when the display size cannot be determined
	ErrScreenSize = fmt.Errorf("%w: screen size unknown", ErrDiscovery)

	// ErrUnsupported is returned when a transport is not available on this platform
	ErrUnsupported = fmt.Errorf("%w: transport not supported on this platform", ErrDiscovery)

	// ErrTransport wraps every failed device command
	ErrTransport = errors.New("transport error")
)
