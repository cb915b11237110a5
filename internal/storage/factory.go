// internal/storage/factory.go
package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/handoff/internal/config"
	gormstorage "github.com/OCAP2/handoff/internal/storage/gorm"
	"github.com/OCAP2/handoff/internal/storage/memory"
	"github.com/OCAP2/handoff/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/handoff/internal/storage/sqlite"
	"github.com/OCAP2/handoff/internal/storage/websocket"
)

// Backend type names accepted by storage.type.
const (
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeWebsocket = "websocket"
	TypeNone      = "none"
)

var (
	// ErrUnknownType is returned for an unrecognized storage.type.
	ErrUnknownType = errors.New("unknown storage type")
	// ErrDisabled is returned for storage.type "none".
	ErrDisabled = errors.New("storage disabled")
)

// Dependencies holds what every backend may need besides its own config
type Dependencies struct {
	Exchange string
	Settings any
	Meta     map[string]string
	Logger   *slog.Logger
}

// NewBackend creates a storage backend based on configuration.
// The backend is not initialized.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gormDeps := gormstorage.Dependencies{
		Exchange: deps.Exchange,
		Settings: deps.Settings,
		Meta:     deps.Meta,
	}

	switch cfg.Type {
	case TypeMemory:
		return memory.New(cfg.Memory, deps.Exchange), nil
	case TypeSQLite:
		return sqlitestorage.New(cfg.SQLite, gormDeps, logger)
	case TypePostgres:
		return postgres.New(cfg.DB, gormDeps), nil
	case TypeWebsocket:
		return websocket.New(websocket.Config{
			URL:      cfg.Websocket.URL,
			Secret:   cfg.Websocket.Secret,
			Exchange: deps.Exchange,
			Logger:   logger,
		}), nil
	case TypeNone, "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
	}
}
