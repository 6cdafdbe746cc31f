// Package logging builds the structured logger shared by every component.
// Level comes from configuration, DROIDKG_LOG_LEVEL, or --verbose.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "DROIDKG_LOG_LEVEL"

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error.
	Level string
	// File, when set, receives a copy of every record.
	File string
	// Verbose forces debug level.
	Verbose bool
}

// LoggerCloser wraps a logger and closes its log file, if any.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying log file.
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// NewWithWriter creates a logger writing to w at the given level.
func NewWithWriter(w io.Writer, level log.Level) *log.Logger {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "droidkg",
	})
	lg.SetLevel(level)
	return lg
}

// New creates the process logger on stderr, plus the log file when one is
// configured.
func New(opts Options) (*LoggerCloser, error) {
	level, err := resolveLevel(opts)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	var closer io.Closer
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f
	}

	return &LoggerCloser{Logger: NewWithWriter(out, level), closer: closer}, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

func resolveLevel(opts Options) (log.Level, error) {
	if opts.Verbose {
		return log.DebugLevel, nil
	}
	name := opts.Level
	if env := os.Getenv(EnvLevel); env != "" {
		name = env
	}
	return ParseLevel(name)
}

// ParseLevel maps a level name to a log level. Empty means info.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}
