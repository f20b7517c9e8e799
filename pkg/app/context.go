package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool
	NoColor      bool

	// ConfigPath overrides the config search path when set
	ConfigPath string

	// Common timeouts
	DefaultTimeout time.Duration

	// Output streams
	Stdout io.Writer
	Stderr io.Writer
}

// NewContext creates a new application context
func NewContext() *Context {
	return &Context{
		Context:        context.Background(),
		OutputFormat:   FormatTable,
		DefaultTimeout: 30 * time.Second,
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
	}
}

// WithTimeout creates a context with timeout
func (c *Context) WithTimeout(timeout time.Duration) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// Log outputs a message based on verbosity settings
func (c *Context) Log(format string, args ...any) {
	if !c.Quiet && c.Verbose {
		fmt.Fprintf(c.Stderr, format+"\n", args...)
	}
}

// Info outputs a message unless quiet
func (c *Context) Info(format string, args ...any) {
	if !c.Quiet {
		fmt.Fprintf(c.Stderr, format+"\n", args...)
	}
}

var errorLabel = color.New(color.FgRed, color.Bold)

// Error outputs an error message unless quiet
func (c *Context) Error(message string) {
	if c.Quiet {
		return
	}
	label := errorLabel.Sprint("Error:")
	if c.NoColor {
		label = "Error:"
	}
	fmt.Fprintln(c.Stderr, label, message)
}

// Render writes v to Stdout in the configured output format
func (c *Context) Render(v any) error {
	return FormatOutput(c.Stdout, c.OutputFormat, v)
}
