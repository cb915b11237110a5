package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/OCAP2/handoff/internal/config"
	"github.com/OCAP2/handoff/internal/exchange"
	"github.com/OCAP2/handoff/internal/influx"
	"github.com/OCAP2/handoff/internal/logging"
	"github.com/OCAP2/handoff/internal/monitor"
	intOtel "github.com/OCAP2/handoff/internal/otel"
	"github.com/OCAP2/handoff/internal/storage"
	"github.com/OCAP2/handoff/internal/worker"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// shutdownTimeout bounds the OTel flush on exit.
const shutdownTimeout = 5 * time.Second

// app owns every component of one run. Fields stay nil for disabled sinks.
type app struct {
	stdout       io.Writer
	sessionStart time.Time

	logFile     *os.File
	logFilePath string
	metricFile  *os.File
	slogManager *logging.SlogManager
	logger      *slog.Logger

	otelProvider *intOtel.Provider
	recorder     *storage.Recorder
	influx       *influx.Manager
	exchange     exchange.Exchange[int]
	workers      *worker.Manager
	monitor      *monitor.Service

	// live is read by the log context provider from any goroutine.
	live atomic.Pointer[worker.Manager]
}

func newApp(stdout io.Writer) *app {
	return &app{
		stdout:       stdout,
		sessionStart: time.Now(),
		slogManager:  logging.NewSlogManager(),
		logger:       slog.Default(),
	}
}

// setup loads configuration and builds every component. Nothing runs yet
// except the recorder flush loop and the status writer.
func (a *app) setup(ctx context.Context, fs *pflag.FlagSet) error {
	configDir, _ := fs.GetString("config-dir")
	loadErr := config.Load(configDir)
	if err := config.BindFlags(fs); err != nil {
		return err
	}

	if err := a.setupLogging(); err != nil {
		return err
	}
	if loadErr != nil {
		a.logger.Warn("Using default configuration", "dir", configDir, "error", loadErr)
	}

	loop := config.GetLoopConfig()
	kind := exchange.Kind(loop.Exchange)
	workerCfg := worker.Config{
		Start:            loop.Start,
		ProducerInterval: loop.ProducerInterval,
		ConsumerInterval: loop.ConsumerInterval,
		Jitter:           loop.Jitter,
		Count:            loop.Count,
	}
	if err := workerCfg.Validate(); err != nil {
		return err
	}

	a.setupRecorder(loop.Exchange)
	a.setupInflux(ctx, loop.Exchange)

	observers := []exchange.Observer[int]{
		exchange.NewLogObserver[int](logging.NewConsoleEventLogger(a.stdout, viper.GetString("logLevel")), kind),
	}
	metrics, err := exchange.NewMetricsObserver[int](kind)
	if err != nil {
		return fmt.Errorf("failed to create exchange metrics: %w", err)
	}
	stats := &worker.Stats{}
	observers = append(observers, metrics, stats)
	if a.recorder != nil {
		observers = append(observers, a.recorder)
	}
	if a.influx != nil {
		observers = append(observers, a.influx)
	}

	a.exchange, err = exchange.New(kind, exchange.WithObserver(observers...))
	if err != nil {
		return err
	}

	a.workers = worker.NewManager(worker.Dependencies{
		Exchange: a.exchange,
		Stats:    stats,
		Logger:   a.slogManager.Component("worker"),
	}, workerCfg)
	a.live.Store(a.workers)

	return a.setupMonitor(loop.Exchange)
}

// setupLogging opens the session log file and wires OTel and GELF into slog.
func (a *app) setupLogging() error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	a.logFilePath = logging.LogFilePath(logsDir, Name, a.sessionStart)
	// keep one previous log of the same second around
	if _, err := os.Stat(a.logFilePath); err == nil {
		os.Rename(a.logFilePath, a.logFilePath+".old")
	}

	var err error
	a.logFile, err = os.OpenFile(a.logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	var extra []io.Writer
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		gelfWriter, err := gelf.NewWriter(graylogCfg.Address)
		if err != nil {
			fmt.Fprintf(a.stdout, "Failed to connect to Graylog at %s: %v\n", graylogCfg.Address, err)
		} else {
			gelfWriter.Facility = Name
			extra = append(extra, gelfWriter)
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		metricPath := strings.TrimSuffix(a.logFilePath, ".log") + ".metrics.json"
		a.metricFile, err = os.Create(metricPath)
		if err != nil {
			return fmt.Errorf("failed to create metrics file: %w", err)
		}
		a.otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      true,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    a.logFile,
			MetricWriter: a.metricFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OTel provider: %w", err)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.otelProvider != nil {
		otelLogProvider = a.otelProvider.LoggerProvider()
	}

	a.slogManager.SetContextProvider(a.contextAttrs)
	a.slogManager.Setup(a.logFile, viper.GetString("logLevel"), otelLogProvider, extra...)
	a.logger = a.slogManager.Logger()
	a.logger.Info("Logging to file", "path", a.logFilePath, "otel", otelCfg.Enabled, "graylog", len(extra) > 0)
	return nil
}

// contextAttrs adds the live handoff counters to every log record.
func (a *app) contextAttrs() []slog.Attr {
	workers := a.live.Load()
	if workers == nil {
		return nil
	}
	snap := workers.Stats()
	return []slog.Attr{
		slog.Uint64("produced", snap.Produced),
		slog.Uint64("consumed", snap.Consumed),
	}
}

// setupRecorder creates the history backend. A backend that fails to come
// up is logged and the run continues without history.
func (a *app) setupRecorder(exchangeKind string) {
	storageCfg := config.GetStorageConfig()
	logger := a.slogManager.Component("storage")

	hostname, _ := os.Hostname()
	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		Exchange: exchangeKind,
		Settings: config.GetSessionSettings(),
		Meta:     map[string]string{"host": hostname, "type": storageCfg.Type},
		Logger:   logger,
	})
	if errors.Is(err, storage.ErrDisabled) {
		logger.Info("History storage disabled")
		return
	}
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		if cerr := backend.Close(); cerr != nil {
			logger.Debug("closing failed backend", "error", cerr)
		}
		return
	}

	a.recorder = startRecorder(storage.NewRecorder(backend, storage.RecorderConfig{
		Exchange:      exchangeKind,
		FlushInterval: storageCfg.FlushInterval,
		QueueLimit:    storageCfg.QueueLimit,
	}, logger), logger)
	if a.recorder != nil {
		logger.Info("History storage initialized", "type", storageCfg.Type)
	}
}

// startRecorder starts the flush loop. On failure the recorder and its
// backend are closed and nil is returned.
func startRecorder(rec *storage.Recorder, logger *slog.Logger) *storage.Recorder {
	if err := rec.Start(); err != nil {
		logger.Error("Failed to start recorder", "error", err)
		if cerr := rec.Close(); cerr != nil {
			logger.Debug("closing failed recorder", "error", cerr)
		}
		return nil
	}
	return rec
}

// setupInflux connects the InfluxDB observer when enabled.
func (a *app) setupInflux(ctx context.Context, exchangeKind string) {
	zlog := zerolog.New(a.logFile).With().Timestamp().Str("component", "influx").Logger()
	m := influx.NewManager(config.GetInfluxConfig(), exchangeKind, zlog)

	err := m.Connect(ctx)
	if errors.Is(err, influx.ErrDisabled) {
		return
	}
	if err != nil {
		a.logger.Error("Failed to initialize InfluxDB", "url", m.ServerURL(), "error", err)
		if cerr := m.Close(); cerr != nil {
			a.logger.Debug("closing influx", "error", cerr)
		}
		return
	}
	a.influx = m
}

func (a *app) setupMonitor(exchangeKind string) error {
	statusCfg := config.GetStatusConfig()
	if !statusCfg.Enabled {
		return nil
	}

	deps := monitor.Dependencies{
		Logger:   a.slogManager.Component("monitor"),
		Workers:  a.workers,
		Slot:     a.exchange,
		Exchange: exchangeKind,
		Path:     statusCfg.Path,
		Interval: statusCfg.Interval,
	}
	if a.recorder != nil {
		deps.Recorder = a.recorder.Stats
	}

	a.monitor = monitor.NewService(deps)
	if err := a.monitor.Start(); err != nil {
		return fmt.Errorf("failed to start status monitor: %w", err)
	}
	return nil
}

// serve runs the loops until ctx ends or the configured count is reached.
func (a *app) serve(ctx context.Context) error {
	if err := a.workers.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("Started", "exchange", config.GetLoopConfig().Exchange)
	return a.workers.Wait()
}

// shutdown releases every component that was created, in reverse order.
// It is safe to call after a partial setup.
func (a *app) shutdown() error {
	var errs []error

	if a.workers != nil {
		// the run error, if any, was already reported by serve
		a.workers.Stop()
		a.workers.Wait()
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.exchange != nil {
		errs = append(errs, a.exchange.Close())
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing history storage: %w", err))
		}
		stats := a.recorder.Stats()
		a.logger.Info("History storage closed", "recorded", stats.Recorded, "flushed", stats.Flushed, "dropped", stats.Dropped)
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing influx: %w", err))
		}
	}

	if a.workers != nil {
		snap := a.workers.Stats()
		a.logger.Info("Shutdown complete", "produced", snap.Produced, "consumed", snap.Consumed)
	}

	if a.otelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down OTel: %w", err))
		}
		cancel()
	}
	if a.metricFile != nil {
		errs = append(errs, a.metricFile.Close())
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	return errors.Join(errs...)
}
