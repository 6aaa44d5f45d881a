//go:build linux

package device

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"vtouch/internal/touch"
)

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// evioCGAbs is EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo).
func evioCGAbs(code uint16) uintptr {
	const (
		iocRead      = 2
		iocNRShift   = 0
		iocTypeShift = 8
		iocSizeShift = 16
		iocDirShift  = 30
	)
	size := uint32(unsafe.Sizeof(absInfo{}))
	return uintptr(iocRead<<iocDirShift | uint32('E')<<iocTypeShift | (0x40+uint32(code))<<iocNRShift | size<<iocSizeShift)
}

func absRange(fd int, code uint16) (AxisRange, error) {
	var info absInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGAbs(code), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return AxisRange{}, errno
	}
	return AxisRange{Min: info.Min, Max: info.Max}, nil
}

// OpenEvdev opens a local touch node for writing and reads its axis ranges.
func OpenEvdev(path string) (*Evdev, InputNode, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, InputNode{}, fmt.Errorf("%w: open %s: %v", ErrNoTouchNode, path, err)
	}

	node := InputNode{Path: path}
	x, errX := absRange(fd, touch.AbsMTPositionX)
	y, errY := absRange(fd, touch.AbsMTPositionY)
	if errX != nil || errY != nil {
		unix.Close(fd)
		return nil, InputNode{}, fmt.Errorf("%w: %s has no ABS_MT_POSITION axes", ErrNoTouchNode, path)
	}
	node.MaxX, node.MaxY = int(x.Max), int(y.Max)
	if p, err := absRange(fd, touch.AbsMTPressure); err == nil {
		node.MaxPressure = int(p.Max)
	}
	if s, err := absRange(fd, touch.AbsMTSlot); err == nil {
		node.MaxSlot = int(s.Max)
	}

	return NewEvdev(os.NewFile(uintptr(fd), path), path), node, nil
}
