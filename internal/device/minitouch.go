package device

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/touch"
)

// Banner is the header minitouch sends on connect.
type Banner struct {
	Version     int
	MaxContacts int
	MaxX, MaxY  int
	MaxPressure int
	PID         int
}

// ReadBanner parses the "v", "^" and "$" lines.
func ReadBanner(r *bufio.Reader) (Banner, error) {
	var b Banner
	for seen := 0; seen < 3; {
		line, err := r.ReadString('\n')
		if err != nil {
			return b, fmt.Errorf("%w: minitouch banner: %v", ErrTransport, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var flag string
		switch line[0] {
		case 'v':
			_, err = fmt.Sscanf(line, "%s %d", &flag, &b.Version)
		case '^':
			_, err = fmt.Sscanf(line, "%s %d %d %d %d", &flag, &b.MaxContacts, &b.MaxX, &b.MaxY, &b.MaxPressure)
		case '$':
			_, err = fmt.Sscanf(line, "%s %d", &flag, &b.PID)
		default:
			continue
		}
		if err != nil {
			return b, fmt.Errorf("%w: minitouch banner %q: %v", ErrTransport, line, err)
		}
		seen++
	}
	return b, nil
}

// Minitouch speaks the minitouch line protocol over a stream.
type Minitouch struct {
	mu      sync.Mutex
	conn    io.WriteCloser
	w       *bufio.Writer
	decoder *FrameDecoder
	banner  Banner
	defP    int32
}

// DialMinitouch connects to a minitouch socket and reads its banner.
func DialMinitouch(addr string, timeout time.Duration) (*Minitouch, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: minitouch %s: %v", ErrNoDevice, addr, err)
	}
	m, err := NewMinitouch(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.WithFields(log.Fields{
		"maxX":        m.banner.MaxX,
		"maxY":        m.banner.MaxY,
		"maxPressure": m.banner.MaxPressure,
		"maxContacts": m.banner.MaxContacts,
	}).Info("Minitouch: connected")
	return m, nil
}

// NewMinitouch reads the banner from conn and returns the transport. The
// rest of the server output is discarded.
func NewMinitouch(conn io.ReadWriteCloser) (*Minitouch, error) {
	br := bufio.NewReader(conn)
	b, err := ReadBanner(br)
	if err != nil {
		return nil, err
	}
	go io.Copy(io.Discard, br)

	p := int32(50)
	if b.MaxPressure > 0 && int(p) > b.MaxPressure {
		p = int32(b.MaxPressure)
	}
	return &Minitouch{
		conn:    conn,
		w:       bufio.NewWriter(conn),
		decoder: NewFrameDecoder(),
		banner:  b,
		defP:    p,
	}, nil
}

// Banner returns the server limits.
func (m *Minitouch) Banner() Banner { return m.banner }

// Emit translates frames into d/m/u lines, committing after each frame.
func (m *Minitouch) Emit(events []touch.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ev := range events {
		ops := m.decoder.Feed(ev)
		if ev.Type != touch.EvSyn {
			continue
		}
		for _, op := range ops {
			if op.Slot >= m.banner.MaxContacts && m.banner.MaxContacts > 0 {
				return fmt.Errorf("%w: contact %d exceeds %d", ErrTransport, op.Slot, m.banner.MaxContacts)
			}
			p := op.Pressure
			if p == 0 {
				p = m.defP
			}
			switch op.Kind {
			case OpDown:
				fmt.Fprintf(m.w, "d %d %d %d %d\n", op.Slot, op.X, op.Y, p)
			case OpMove:
				fmt.Fprintf(m.w, "m %d %d %d %d\n", op.Slot, op.X, op.Y, p)
			case OpUp:
				fmt.Fprintf(m.w, "u %d\n", op.Slot)
			}
		}
		if len(ops) > 0 {
			m.w.WriteString("c\n")
		}
	}
	if err := m.w.Flush(); err != nil {
		return fmt.Errorf("%w: minitouch write: %v", ErrTransport, err)
	}
	return nil
}

// Close implements Transport.
func (m *Minitouch) Close() error {
	return m.conn.Close()
}
