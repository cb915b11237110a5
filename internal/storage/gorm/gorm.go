// Package gormstorage implements storage.Backend on top of gorm. It is
// dialect agnostic: the sqlite and postgres backends hand it an open DB.
package gormstorage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/handoff/internal/model"
	"github.com/OCAP2/handoff/internal/model/convert"
	"github.com/OCAP2/handoff/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotInitialized is returned when events arrive before Init.
var ErrNotInitialized = errors.New("gorm backend not initialized")

// Dependencies holds all dependencies for the GORM backend
type Dependencies struct {
	DB       *gorm.DB
	Exchange string
	Settings any               // stored on the session row as JSON
	Meta     map[string]string // copied onto every event row
}

// Backend writes sessions and handoff events through gorm
type Backend struct {
	deps Dependencies

	mu      sync.Mutex
	session *model.Session
}

// New creates a new GORM backend
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and opens a session row.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}

	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	settings := datatypes.JSON("{}")
	if b.deps.Settings != nil {
		raw, err := json.Marshal(b.deps.Settings)
		if err != nil {
			return fmt.Errorf("failed to encode session settings: %w", err)
		}
		settings = raw
	}

	session := &model.Session{
		StartedAt: time.Now(),
		Exchange:  b.deps.Exchange,
		Settings:  settings,
	}
	if err := b.deps.DB.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.mu.Lock()
	b.session = session
	b.mu.Unlock()
	return nil
}

// SessionID returns the ID of the open session, 0 before Init.
func (b *Backend) SessionID() uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return 0
	}
	return b.session.ID
}

// RecordEvents inserts one batch in a single statement per CreateBatchSize.
func (b *Backend) RecordEvents(events []core.Event) error {
	if len(events) == 0 {
		return nil
	}
	sessionID := b.SessionID()
	if sessionID == 0 {
		return ErrNotInitialized
	}

	rows := convert.CoreToHandoffEvents(events, sessionID, b.deps.Meta)
	if err := b.deps.DB.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert handoff events: %w", err)
	}
	return nil
}

// Events returns the current session's events in Seq order.
func (b *Backend) Events() ([]core.Event, error) {
	sessionID := b.SessionID()
	if sessionID == 0 {
		return nil, ErrNotInitialized
	}

	var rows []model.HandoffEvent
	err := b.deps.DB.
		Where("session_id = ?", sessionID).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query handoff events: %w", err)
	}

	events := make([]core.Event, len(rows))
	for i, row := range rows {
		events[i] = convert.HandoffEventToCore(row)
	}
	return events, nil
}

// EndSession stamps the session end time. Close calls it; the sqlite
// backend calls it before its final dump.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session == nil || session.EndedAt != nil {
		return nil
	}

	now := time.Now()
	if err := b.deps.DB.Model(session).Update("ended_at", now).Error; err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	session.EndedAt = &now
	return nil
}

// Close ends the session and releases the connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}

	endErr := b.EndSession()

	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return errors.Join(endErr, err)
	}
	return errors.Join(endErr, sqlDB.Close())
}
