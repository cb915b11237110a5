// internal/storage/storage.go
package storage

import "github.com/OCAP2/handoff/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// RecordEvents persists one batch; events arrive in Seq order.
	RecordEvents(events []core.Event) error
}

// Exportable is an optional interface for storage backends that write
// the session history to a file on Close.
type Exportable interface {
	ExportedFilePath() string
}

// Logger interface for pluggable logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
