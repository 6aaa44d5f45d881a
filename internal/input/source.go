package input

import (
	"bufio"
	"errors"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/protocol"
)

// LineSource reads the line protocol from a byte stream, typically the pipe
// from a separate hook process.
type LineSource struct {
	r        io.Reader
	done     chan struct{}
	stopOnce sync.Once
}

// NewLineSource creates a source reading from r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{r: r, done: make(chan struct{})}
}

// Run scans lines until EOF, Stop, or the exit sentinel. Malformed lines are
// logged and skipped.
func (s *LineSource) Run(out chan<- protocol.Message) error {
	scanner := bufio.NewScanner(s.r)
	for scanner.Scan() {
		msg, err := protocol.ParseLine(scanner.Text())
		if err != nil {
			log.Debugf("Input: skipping line: %v", err)
			continue
		}
		select {
		case out <- msg:
		case <-s.done:
			return nil
		}
		if msg.Kind == protocol.KindExit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}

// Stop unblocks a pending send. A blocked read returns only when the
// underlying reader is closed.
func (s *LineSource) Stop() error {
	s.stopOnce.Do(func() { close(s.done) })
	return nil
}
