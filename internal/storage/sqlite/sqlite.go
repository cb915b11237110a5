// Package sqlitestorage implements the storage.Backend interface using SQLite.
// It wraps the GORM backend via composition; the SQLite-specific concerns
// are opening the database (file or in-memory) and the periodic disk dump.
package sqlitestorage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/handoff/internal/config"
	"github.com/OCAP2/handoff/internal/database"
	gormstorage "github.com/OCAP2/handoff/internal/storage/gorm"
)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg      config.SQLiteConfig
	logger   Logger
	stopChan chan struct{}
	wg       sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New opens the SQLite database and creates the backend.
// deps.DB is ignored and replaced with the SQLite connection.
func New(cfg config.SQLiteConfig, deps gormstorage.Dependencies, logger Logger) (*Backend, error) {
	db, err := database.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}
	deps.DB = db

	return &Backend{
		Backend:  gormstorage.New(deps),
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the
// embedded GORM backend. Later calls return the first call's result.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()

		var dumpErr error
		if b.cfg.DumpPath != "" {
			endErr := b.EndSession()
			dumpErr = errors.Join(endErr, database.DumpToDisk(b.DB(), b.cfg.DumpPath))
		}
		b.closeErr = errors.Join(dumpErr, b.Backend.Close())
	})
	return b.closeErr
}

// dumpLoop periodically dumps the database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.DumpToDisk(b.DB(), b.cfg.DumpPath); err != nil {
				b.logger.Error("error dumping to disk", "error", err)
			} else {
				b.logger.Debug("dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
