// Package logging wraps logrus with the component-tagging conventions used
// across the run: every phase logs through a logger scoped with
// WithComponent so diagnostic output can be filtered per subsystem.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a *logrus.Logger configured for this program's output style.
type Logger struct {
	*logrus.Logger
}

// New creates a Logger at the given level ("debug", "info", "warn", "error").
// An unparsable level falls back to info rather than failing the run.
func New(level string) *Logger {
	l := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: false})
	l.SetOutput(os.Stderr)

	return &Logger{Logger: l}
}

// WithComponent scopes subsequent fields to the named subsystem, e.g.
// "catalog", "throughput", "facade".
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// Nop returns a logger that discards all output, for use in tests and
// library callers that haven't configured logging.
func Nop() *Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return &Logger{Logger: l}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
