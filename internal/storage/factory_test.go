// internal/storage/factory_test.go
package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/OCAP2/handoff/internal/config"
	"github.com/OCAP2/handoff/internal/storage"
	gormstorage "github.com/OCAP2/handoff/internal/storage/gorm"
	"github.com/OCAP2/handoff/internal/storage/memory"
	"github.com/OCAP2/handoff/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/handoff/internal/storage/sqlite"
	"github.com/OCAP2/handoff/internal/storage/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.Backend    = (*gormstorage.Backend)(nil)
	_ storage.Backend    = (*sqlitestorage.Backend)(nil)
	_ storage.Backend    = (*postgres.Backend)(nil)
	_ storage.Backend    = (*websocket.Backend)(nil)
	_ storage.Exportable = (*memory.Backend)(nil)
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want any
	}{
		{"memory", config.StorageConfig{Type: storage.TypeMemory}, &memory.Backend{}},
		{"sqlite", config.StorageConfig{Type: storage.TypeSQLite, SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "f.db")}}, &sqlitestorage.Backend{}},
		{"postgres", config.StorageConfig{Type: storage.TypePostgres}, &postgres.Backend{}},
		{"websocket", config.StorageConfig{Type: storage.TypeWebsocket}, &websocket.Backend{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := storage.NewBackend(tt.cfg, storage.Dependencies{Exchange: "monitor"})
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestNewBackend_Disabled(t *testing.T) {
	for _, typ := range []string{storage.TypeNone, ""} {
		b, err := storage.NewBackend(config.StorageConfig{Type: typ}, storage.Dependencies{})
		assert.ErrorIs(t, err, storage.ErrDisabled)
		assert.Nil(t, b)
	}
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{Type: "redis"}, storage.Dependencies{})
	require.ErrorIs(t, err, storage.ErrUnknownType)
	assert.Contains(t, err.Error(), "redis")
}

func TestMemoryBackend_IsExportable(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Type: storage.TypeMemory}, storage.Dependencies{})
	require.NoError(t, err)
	_, ok := b.(storage.Exportable)
	assert.True(t, ok)
}
