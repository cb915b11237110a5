// Package postgres implements the storage.Backend interface using GORM/PostgreSQL.
// The connection is made lazily in Init so a misconfigured server surfaces
// as a startup error rather than a constructor failure.
package postgres

import (
	"fmt"

	"github.com/OCAP2/handoff/internal/config"
	"github.com/OCAP2/handoff/internal/database"
	gormstorage "github.com/OCAP2/handoff/internal/storage/gorm"
	"github.com/OCAP2/handoff/pkg/core"
)

// Backend implements storage.Backend on a Postgres server.
type Backend struct {
	cfg  config.DBConfig
	deps gormstorage.Dependencies
	gorm *gormstorage.Backend
}

// New creates a new Postgres backend. deps.DB may be preset to skip dialing.
func New(cfg config.DBConfig, deps gormstorage.Dependencies) *Backend {
	return &Backend{cfg: cfg, deps: deps}
}

// Init connects, migrates and opens a session.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
	}

	b.gorm = gormstorage.New(b.deps)
	if err := b.gorm.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// RecordEvents inserts a batch of events.
func (b *Backend) RecordEvents(events []core.Event) error {
	if b.gorm == nil {
		return gormstorage.ErrNotInitialized
	}
	return b.gorm.RecordEvents(events)
}

// Close ends the session and closes the pool.
func (b *Backend) Close() error {
	if b.gorm == nil {
		return nil
	}
	return b.gorm.Close()
}
