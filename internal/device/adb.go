package device

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/touch"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// ADB drives a device through "adb shell": native input tap/swipe and
// sendevent batches against the touch node.
type ADB struct {
	runner  Runner
	path    string
	serial  string
	event   string
	timeout time.Duration
}

// NewADB returns a transport for the device serial whose touch node is event.
func NewADB(r Runner, path, serial, event string, timeout time.Duration) *ADB {
	if r == nil {
		r = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ADB{runner: r, path: path, serial: serial, event: event, timeout: timeout}
}

// Serial returns the adb device serial.
func (a *ADB) Serial() string { return a.serial }

// Shell runs cmd on the device.
func (a *ADB) Shell(cmd string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	args := []string{"shell", cmd}
	if a.serial != "" {
		args = append([]string{"-s", a.serial}, args...)
	}
	out, err := a.runner.Run(ctx, a.path, args...)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return out, nil
}

// Tap implements Gesturer.
func (a *ADB) Tap(x, y int) error {
	_, err := a.Shell(fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe implements Gesturer.
func (a *ADB) Swipe(x0, y0, x1, y1 int, d time.Duration) error {
	_, err := a.Shell(fmt.Sprintf("input swipe %d %d %d %d %d", x0, y0, x1, y1, d.Milliseconds()))
	return err
}

// Emit sends the events in one shell round trip.
func (a *ADB) Emit(events []touch.Event) error {
	if len(events) == 0 {
		return nil
	}
	if a.event == "" {
		return fmt.Errorf("%w: no touch node for sendevent", ErrTransport)
	}
	cmds := make([]string, len(events))
	for i, ev := range events {
		cmds[i] = fmt.Sprintf("sendevent %s %d %d %d", a.event, ev.Type, ev.Code, ev.Value)
	}
	log.Debugf("ADB: %d events to %s", len(events), a.event)
	_, err := a.Shell(strings.Join(cmds, ";"))
	return err
}

// Close implements Transport.
func (a *ADB) Close() error { return nil }

// adbCommand runs an adb subcommand outside a device shell.
func adbCommand(r Runner, path string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	out, err := r.Run(ctx, path, args...)
	if err != nil {
		return string(out), err
	}
	return string(out), nil
}
