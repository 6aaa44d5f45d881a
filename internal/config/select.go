package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrNoChoice is returned by a Chooser that cannot ask.
var ErrNoChoice = errors.New("no interactive choice available")

// Chooser asks the user to pick one of options and returns its index.
type Chooser func(title string, options []string) (int, error)

// Select picks an environment by name, the only one configured, or through
// choose. A nil choose fails when there is more than one candidate.
func (c *Config) Select(name string, choose Chooser) (*Environment, error) {
	if name != "" {
		for i := range c.Environments {
			if c.Environments[i].Name == name {
				return &c.Environments[i], nil
			}
		}
		return nil, fmt.Errorf("%w: environment %q not found (have %s)",
			ErrInvalid, name, strings.Join(c.Names(), ", "))
	}

	switch len(c.Environments) {
	case 0:
		return nil, fmt.Errorf("%w: no environment found", ErrInvalid)
	case 1:
		return &c.Environments[0], nil
	}

	if choose == nil {
		choose = func(string, []string) (int, error) { return 0, ErrNoChoice }
	}
	idx, err := choose("Select an environment", c.Names())
	if err != nil {
		return nil, fmt.Errorf("%w: choosing environment: %w", ErrInvalid, err)
	}
	if idx < 0 || idx >= len(c.Environments) {
		return nil, fmt.Errorf("%w: choice %d out of range", ErrInvalid, idx)
	}
	return &c.Environments[idx], nil
}

// TerminalChooser prompts on the controlling terminal. It returns ErrNoChoice
// when stdin is not a terminal.
func TerminalChooser() Chooser {
	return func(title string, options []string) (int, error) {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return 0, ErrNoChoice
		}
		return Prompt(os.Stdin, os.Stdout, title, options)
	}
}

// Prompt lists options on out and reads an index from in.
func Prompt(in io.Reader, out io.Writer, title string, options []string) (int, error) {
	for i, o := range options {
		fmt.Fprintf(out, "%d: %s\n", i, o)
	}
	fmt.Fprintf(out, "%s: ", title)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return 0, err
	}
	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", strings.TrimSpace(line))
	}
	if idx < 0 || idx >= len(options) {
		return 0, fmt.Errorf("choice %d out of range", idx)
	}
	return idx, nil
}
