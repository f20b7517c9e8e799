// File: internal/interfaces/logger.go
package interfaces

// Logger receives diagnostics; *log.Logger satisfies it
type Logger interface {
	Printf(format string, v ...any)
}
