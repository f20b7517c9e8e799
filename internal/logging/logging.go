// Package logging builds the logrus loggers behind the driver's Printf
// diagnostics.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-minixfs/internal/interfaces"
)

// New returns a text logger on w that omits timestamps
func New(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}

// Printer sends Printf calls to a logrus entry at a fixed level
type Printer struct {
	Entry  *logrus.Entry
	Level  logrus.Level
	Prefix string
}

var _ interfaces.Logger = Printer{}

// Printf implements interfaces.Logger
func (p Printer) Printf(format string, v ...any) {
	p.Entry.Logf(p.Level, p.Prefix+format, v...)
}

// Warn prints driver warnings to l
func Warn(l *logrus.Logger, prefix string) Printer {
	return Printer{Entry: logrus.NewEntry(l), Level: logrus.WarnLevel, Prefix: prefix}
}

// Debug prints debug diagnostics to l; they are dropped unless l logs at
// debug level
func Debug(l *logrus.Logger, prefix string) Printer {
	return Printer{Entry: logrus.NewEntry(l), Level: logrus.DebugLevel, Prefix: prefix}
}
