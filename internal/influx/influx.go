// Package influx writes handoff events to InfluxDB as time-series points,
// falling back to a gzipped line protocol file when the server is down.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/handoff/internal/config"
	"github.com/OCAP2/handoff/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement is the measurement name of every handoff point.
const Measurement = "handoff"

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes.
// It implements exchange.Observer[int].
type Manager struct {
	cfg      config.InfluxConfig
	exchange string
	logger   zerolog.Logger

	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu           sync.Mutex
	backupFile   *os.File
	backupWriter *gzip.Writer
	isValid      bool
	writeErrors  int
	done         chan struct{}
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, exchange string, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		exchange: exchange,
		logger:   logger,
	}
}

// ServerURL returns protocol://host:port.
func (m *Manager) ServerURL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Connect establishes a connection to InfluxDB. An unreachable server is
// not an error: points go to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.client = influxdb2.NewClientWithOptions(
		m.ServerURL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.logger.Info().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("Failed to reach InfluxDB, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}

	m.createWriter()
	m.mu.Lock()
	m.isValid = true
	m.mu.Unlock()

	m.logger.Info().Str("url", m.ServerURL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}

	m.mu.Lock()
	m.backupFile = file
	m.backupWriter = gzip.NewWriter(file)
	m.mu.Unlock()
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	org, err := m.client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		org, err = m.client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("error creating organization %q: %w", orgName, err)
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %q: %w", m.cfg.Bucket, err)
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	m.done = make(chan struct{})

	errorsCh := m.writer.Errors()
	go func() {
		defer close(m.done)
		for writeErr := range errorsCh {
			m.mu.Lock()
			m.writeErrors++
			m.mu.Unlock()
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// IsValid reports whether points go to the server rather than the backup file.
func (m *Manager) IsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isValid
}

// NewPoint builds the point for one handoff step.
func NewPoint(kind core.EventKind, exchange string, value int, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		Measurement,
		map[string]string{"kind": string(kind), "exchange": exchange},
		map[string]any{"value": value},
		ts,
	)
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isValid {
		m.writer.WritePoint(point)
		return nil
	}

	if m.backupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Produced writes a produced point.
func (m *Manager) Produced(v int) { m.observe(core.KindProduced, v) }

// Consumed writes a consumed point.
func (m *Manager) Consumed(v int) { m.observe(core.KindConsumed, v) }

func (m *Manager) observe(kind core.EventKind, v int) {
	if err := m.WritePoint(NewPoint(kind, m.exchange, v, time.Now())); err != nil {
		m.logger.Debug().Err(err).Msg("dropping influx point")
	}
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	var errs []error

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		// Closing the client closes the write API and its error channel.
		m.client.Close()
	}
	if m.done != nil {
		<-m.done
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.isValid = false
	if m.backupWriter != nil {
		errs = append(errs, m.backupWriter.Close())
		m.backupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}
