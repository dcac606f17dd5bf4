package usbserial

import (
	"io"
	"log/slog"
	"os"
)

// Component identifies a subsystem for log filtering.
type Component string

// Component identifiers attached to every record as "component".
const (
	ComponentDevice    Component = "device"
	ComponentReadPump  Component = "read-pump"
	ComponentWritePump Component = "write-pump"
	ComponentUSBFS     Component = "usbfs"
	ComponentTTY       Component = "tty"
)

// LogFormat specifies the output format for logging.
type LogFormat int

const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

var logLevel = new(slog.LevelVar)

func init() {
	logLevel.Set(slog.LevelWarn)
}

// SetLogLevel sets the minimum level of the default logger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// DefaultLogger returns the logger used when no WithLogger option is given.
// It writes text records at Warn and above to stderr.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// NewLogger creates a logger writing to w in the given format.
func NewLogger(w io.Writer, format LogFormat, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ComponentLogger tags base with a component attribute. A nil base falls
// back to DefaultLogger.
func ComponentLogger(base *slog.Logger, c Component) *slog.Logger {
	if base == nil {
		base = DefaultLogger()
	}
	return base.With("component", string(c))
}
