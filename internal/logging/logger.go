// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Options describe how to configure a logger instance.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New creates a logger from opts.
func New(opts Options) (*log.Logger, error) {
	l := log.New()
	if err := apply(l, opts); err != nil {
		return nil, err
	}
	return l, nil
}

// Setup applies opts to the standard logger used by every package.
func Setup(opts Options) error {
	return apply(log.StandardLogger(), opts)
}

func apply(l *log.Logger, opts Options) error {
	lvl, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var formatter log.Formatter
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text", "console":
		formatter = &log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		}
	case "json":
		formatter = &log.JSONFormatter{TimestampFormat: time.RFC3339}
	default:
		return fmt.Errorf("unsupported log format %q", opts.Format)
	}

	l.SetLevel(lvl)
	l.SetOutput(out)
	l.SetFormatter(formatter)
	return nil
}

func parseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unhandled log level %q", level)
	}
}
