package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/handoff/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host:     "db",
		Port:     "5433",
		Username: "u",
		Password: "p",
		Database: "handoff",
	})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=handoff sslmode=disable", dsn)
}

func TestOpenSQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	var version int
	require.NoError(t, db.Raw("PRAGMA user_version").Scan(&version).Error)
	assert.Equal(t, 1, version)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDumpToDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "src.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, db.Exec("CREATE TABLE items (n INTEGER)").Error)
	require.NoError(t, db.Exec("INSERT INTO items (n) VALUES (1), (2)").Error)

	out := filepath.Join(dir, "dump.db")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))
	require.NoError(t, DumpToDisk(db, out))

	dumped, err := OpenSQLite(out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(dumped) })

	var count int64
	require.NoError(t, dumped.Raw("SELECT COUNT(*) FROM items").Scan(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestDumpToDisk_EmptyPath(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.Error(t, DumpToDisk(db, ""))
}
