// internal/storage/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/OCAP2/handoff/internal/config"
	"github.com/OCAP2/handoff/pkg/core"
)

// Backend keeps the session history in memory and exports it to JSON on Close
type Backend struct {
	cfg      config.MemoryConfig
	exchange string

	started time.Time
	events  []core.Event

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, exchange string) *Backend {
	return &Backend{
		cfg:      cfg,
		exchange: exchange,
	}
}

// Init starts a fresh session
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.started = time.Now()
	b.events = nil
	b.lastExportPath = ""
	return nil
}

// Close exports the session when an output directory is configured
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON(time.Now())
}

// RecordEvents appends a batch to the history
func (b *Backend) RecordEvents(events []core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far
func (b *Backend) Events() []core.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Event, len(b.events))
	copy(out, b.events)
	return out
}

// ExportedFilePath returns the path of the last export, empty before Close
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
