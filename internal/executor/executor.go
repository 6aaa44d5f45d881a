// Package executor serializes touch commands onto a single worker and
// coalesces pointer moves so a slow device never falls behind the mouse.
package executor

import (
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/action"
)

// Command is either a Move or a Discrete action.
type Command interface {
	isCommand()
}

// Move steers the active pad contact along a normalized aim vector. Only the
// most recent pending Move survives a drain.
type Move struct {
	X, Y float64
}

// Discrete is a configured action. Discretes are never merged or dropped.
type Discrete struct {
	Action action.Action
	Args   action.Args
}

func (Move) isCommand()     {}
func (Discrete) isCommand() {}

// Handler performs commands against a device. Calls are never concurrent.
type Handler interface {
	Move(x, y float64) error
	Execute(a action.Action, args action.Args) error
}

// Stats counts worker activity.
type Stats struct {
	Executed  uint64 `json:"executed"`
	Coalesced uint64 `json:"coalesced"`
	Failed    uint64 `json:"failed"`
}

// Executor owns a FIFO of commands and one worker goroutine.
type Executor struct {
	handler Handler

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Command
	closed  bool
	started bool

	done chan struct{}

	executed  atomic.Uint64
	coalesced atomic.Uint64
	failed    atomic.Uint64
}

// New creates an executor. Call Start to launch the worker.
func New(h Handler) *Executor {
	e := &Executor{
		handler: h,
		done:    make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start launches the worker. Subsequent calls do nothing.
func (e *Executor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true
	go e.run()
}

// Enqueue appends a command. It reports false once the executor is closed.
func (e *Executor) Enqueue(c Command) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.pending = append(e.pending, c)
	e.cond.Signal()
	return true
}

// Close stops the worker after the batch in flight. Pending commands are
// discarded.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	started := e.started
	e.pending = nil
	e.cond.Broadcast()
	e.mu.Unlock()

	if !started {
		close(e.done)
	}
}

// Done is closed when the worker has exited.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// Pending returns the number of queued commands.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Stats returns a snapshot of the counters.
func (e *Executor) Stats() Stats {
	return Stats{
		Executed:  e.executed.Load(),
		Coalesced: e.coalesced.Load(),
		Failed:    e.failed.Load(),
	}
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		batch, ok := e.take()
		if !ok {
			return
		}
		e.drain(batch)
	}
}

// take blocks until work is queued and swaps out the whole backlog.
func (e *Executor) take() ([]Command, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.pending) == 0 && !e.closed {
		e.cond.Wait()
	}
	if e.closed {
		return nil, false
	}
	batch := e.pending
	e.pending = nil
	return batch, true
}

// drain runs every discrete in order, then the newest move.
func (e *Executor) drain(batch []Command) {
	var last *Move
	for _, c := range batch {
		switch c := c.(type) {
		case Move:
			if last != nil {
				e.coalesced.Add(1)
			}
			m := c
			last = &m
		case Discrete:
			e.dispatch(c.Action.String(), func() error {
				return e.handler.Execute(c.Action, c.Args)
			})
		}
	}
	if last != nil {
		e.dispatch("move", func() error {
			return e.handler.Move(last.X, last.Y)
		})
	}
}

func (e *Executor) dispatch(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			log.WithField("command", name).Errorf("Executor: panic: %v", r)
		}
	}()

	if err := fn(); err != nil {
		e.failed.Add(1)
		log.WithError(err).WithField("command", name).Warn("Executor: command failed")
		return
	}
	e.executed.Add(1)
}

func (m Move) String() string { return fmt.Sprintf("move %.3f %.3f", m.X, m.Y) }

func (d Discrete) String() string { return d.Action.String() }
