// internal/storage/memory/memory_test.go
package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/handoff/internal/config"
	"github.com/OCAP2/handoff/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents() []core.Event {
	now := time.Now()
	return []core.Event{
		{Seq: 1, Kind: core.KindProduced, Value: 1, Exchange: "monitor", Time: now},
		{Seq: 2, Kind: core.KindConsumed, Value: 1, Exchange: "monitor", Time: now},
		{Seq: 3, Kind: core.KindProduced, Value: 2, Exchange: "monitor", Time: now},
	}
}

func TestRecordEvents(t *testing.T) {
	b := New(config.MemoryConfig{}, "monitor")
	require.NoError(t, b.Init())

	events := sampleEvents()
	require.NoError(t, b.RecordEvents(events[:2]))
	require.NoError(t, b.RecordEvents(events[2:]))

	got := b.Events()
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}

func TestEvents_ReturnsCopy(t *testing.T) {
	b := New(config.MemoryConfig{}, "monitor")
	require.NoError(t, b.Init())
	require.NoError(t, b.RecordEvents(sampleEvents()))

	got := b.Events()
	got[0].Value = 99

	assert.Equal(t, 1, b.Events()[0].Value)
}

func TestInit_ResetsHistory(t *testing.T) {
	b := New(config.MemoryConfig{}, "monitor")
	require.NoError(t, b.Init())
	require.NoError(t, b.RecordEvents(sampleEvents()))

	require.NoError(t, b.Init())
	assert.Empty(t, b.Events())
}

func TestClose_NoOutputDir(t *testing.T) {
	b := New(config.MemoryConfig{}, "monitor")
	require.NoError(t, b.Init())
	require.NoError(t, b.RecordEvents(sampleEvents()))

	require.NoError(t, b.Close())
	assert.Empty(t, b.ExportedFilePath())
}

func TestClose_ExportsJSON(t *testing.T) {
	tests := []struct {
		name     string
		compress bool
		suffix   string
	}{
		{"plain", false, ".json"},
		{"gzip", true, ".json.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "history")
			b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: tt.compress}, "channel")
			require.NoError(t, b.Init())
			require.NoError(t, b.RecordEvents(sampleEvents()))

			require.NoError(t, b.Close())

			path := b.ExportedFilePath()
			require.NotEmpty(t, path)
			assert.True(t, strings.HasSuffix(path, tt.suffix), path)
			assert.True(t, strings.HasPrefix(filepath.Base(path), "handoff_channel_"))

			export, err := ReadExport(path)
			require.NoError(t, err)
			assert.Equal(t, "channel", export.Exchange)
			assert.Equal(t, uint64(2), export.Produced)
			assert.Equal(t, uint64(1), export.Consumed)
			require.Len(t, export.Events, 3)
			assert.Equal(t, core.KindConsumed, export.Events[1].Kind)
			assert.False(t, export.Ended.Before(export.Started))
		})
	}
}

func TestClose_EmptyHistoryExportsEmptyList(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir}, "monitor")
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())

	raw, err := os.ReadFile(b.ExportedFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"events":[]`)
}

func TestExportFileName(t *testing.T) {
	started := time.Date(2026, 2, 12, 21, 38, 36, 42*int(time.Millisecond), time.UTC)

	assert.Equal(t, "handoff_monitor_20260212_213836_042.json", exportFileName("monitor", started, 0, false))
	assert.Equal(t, "handoff_unknown_20260212_213836_042.json.gz", exportFileName("", started, 0, true))
	assert.Equal(t, "handoff_a_b_20260212_213836_042.json", exportFileName("a b", started, 0, false))
	assert.Equal(t, "handoff_monitor_20260212_213836_042_2.json", exportFileName("monitor", started, 2, false))
}

func TestClose_SameStartDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	var paths []string
	for i := range 3 {
		b := New(config.MemoryConfig{OutputDir: dir}, "monitor")
		require.NoError(t, b.Init())
		b.started = started
		require.NoError(t, b.RecordEvents([]core.Event{
			{Seq: 1, Kind: core.KindProduced, Value: i + 1, Time: started},
		}))
		require.NoError(t, b.Close())
		paths = append(paths, b.ExportedFilePath())
	}

	assert.Len(t, map[string]bool{paths[0]: true, paths[1]: true, paths[2]: true}, 3)
	for i, path := range paths {
		export, err := ReadExport(path)
		require.NoError(t, err)
		require.Len(t, export.Events, 1)
		assert.Equal(t, i+1, export.Events[0].Value)
	}
}

func TestReadExport_Missing(t *testing.T) {
	_, err := ReadExport(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
