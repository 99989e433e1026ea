// Package logging builds the leveled loggers shared by the server, the CLI
// and the session layer.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

// ParseLevel maps a config level name onto a gommon level. Unknown names
// fall back to INFO.
func ParseLevel(name string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none":
		return log.OFF
	}
	return log.INFO
}

// New returns a logger writing to stderr with the given prefix and level.
func New(prefix, level string) *log.Logger {
	return NewWithOutput(prefix, level, os.Stderr)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(prefix, level string, w io.Writer) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(w)
	l.SetLevel(ParseLevel(level))
	l.SetHeader("${time_rfc3339} ${level} [${prefix}]")
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}
