//go:build !linux

package device

// OpenEvdev is only available on Linux.
func OpenEvdev(path string) (*Evdev, InputNode, error) {
	return nil, InputNode{}, ErrUnsupported
}
