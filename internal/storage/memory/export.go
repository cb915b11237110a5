// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/handoff/pkg/core"
)

// HistoryExport is the root JSON structure
type HistoryExport struct {
	Exchange string       `json:"exchange"`
	Started  time.Time    `json:"started"`
	Ended    time.Time    `json:"ended"`
	Produced uint64       `json:"produced"`
	Consumed uint64       `json:"consumed"`
	Events   []core.Event `json:"events"`
}

// exportFileName builds handoff_<exchange>_<start>[_<n>].json[.gz]. The
// start carries milliseconds and n > 0 separates sessions that still collide.
func exportFileName(exchange string, started time.Time, n int, compress bool) string {
	name := strings.ReplaceAll(exchange, " ", "_")
	if name == "" {
		name = "unknown"
	}
	stamp := fmt.Sprintf("%s_%03d", started.Format("20060102_150405"), started.Nanosecond()/int(time.Millisecond))
	if n > 0 {
		stamp += fmt.Sprintf("_%d", n)
	}
	filename := fmt.Sprintf("handoff_%s_%s.json", name, stamp)
	if compress {
		filename += ".gz"
	}
	return filename
}

// maxExportAttempts bounds the search for an unused export name.
const maxExportAttempts = 1000

// createExportFile creates the first export name not taken in dir.
func createExportFile(dir, exchange string, started time.Time, compress bool) (*os.File, string, error) {
	for n := 0; n < maxExportAttempts; n++ {
		path := filepath.Join(dir, exportFileName(exchange, started, n, compress))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file: %w", err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free export name in %s", dir)
}

// exportJSON writes the session history, gzipped when CompressOutput is set.
// Callers hold b.mu.
func (b *Backend) exportJSON(ended time.Time) error {
	export := b.buildExport(ended)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, outputPath, err := createExportFile(b.cfg.OutputDir, b.exchange, b.started, b.cfg.CompressOutput)
	if err != nil {
		return err
	}
	defer f.Close()

	if b.cfg.CompressOutput {
		err = writeGzipJSON(f, export)
	} else {
		err = writeJSON(f, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(ended time.Time) HistoryExport {
	events := b.events
	if events == nil {
		events = make([]core.Event, 0)
	}
	produced, consumed := core.Count(events)
	return HistoryExport{
		Exchange: b.exchange,
		Started:  b.started,
		Ended:    ended,
		Produced: produced,
		Consumed: consumed,
		Events:   events,
	}
}

func writeJSON(w io.Writer, data HistoryExport) error {
	return json.NewEncoder(w).Encode(data)
}

func writeGzipJSON(w io.Writer, data HistoryExport) error {
	gzWriter := gzip.NewWriter(w)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}

// ReadExport loads an export written by Close, gzipped or not.
func ReadExport(path string) (HistoryExport, error) {
	var export HistoryExport

	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	var dec *json.Decoder
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		dec = json.NewDecoder(gz)
	} else {
		dec = json.NewDecoder(f)
	}

	if err := dec.Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode export: %w", err)
	}
	return export, nil
}
