package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/handoff/internal/exchange"
	"github.com/OCAP2/handoff/internal/storage"
	"github.com/OCAP2/handoff/internal/worker"
)

// StatsSource reports handoff counters, e.g. *worker.Manager.
type StatsSource interface {
	Stats() worker.Snapshot
}

// SlotSource reports the slot state, e.g. an exchange.Exchange.
type SlotSource interface {
	Occupied() bool
	State() exchange.State
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger   *slog.Logger
	Workers  StatsSource
	Slot     SlotSource
	Exchange string
	// Recorder is optional; nil when history storage is disabled.
	Recorder func() storage.RecorderStats
	Path     string
	Interval time.Duration
}

// Status is the snapshot written to the status file
type Status struct {
	Time         time.Time              `json:"time"`
	Exchange     string                 `json:"exchange"`
	Produced     uint64                 `json:"produced"`
	Consumed     uint64                 `json:"consumed"`
	LastProduced int64                  `json:"lastProduced"`
	LastConsumed int64                  `json:"lastConsumed"`
	Occupied     bool                   `json:"occupied"`
	State        exchange.State         `json:"state"`
	Recorder     *storage.RecorderStats `json:"recorder,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus() Status {
	snap := s.deps.Workers.Stats()
	status := Status{
		Time:         time.Now().UTC(),
		Exchange:     s.deps.Exchange,
		Produced:     snap.Produced,
		Consumed:     snap.Consumed,
		LastProduced: snap.LastProduced,
		LastConsumed: snap.LastConsumed,
		Occupied:     s.deps.Slot.Occupied(),
		State:        s.deps.Slot.State(),
	}
	if s.deps.Recorder != nil {
		rs := s.deps.Recorder()
		status.Recorder = &rs
	}
	return status
}

// WriteStatus writes the current status to the status file. The file is
// replaced atomically so readers never see a partial document.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetProgramStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}

	dir := filepath.Dir(s.deps.Path)
	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("error creating status file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.deps.Path); err != nil {
		return fmt.Errorf("error replacing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if s.deps.Path == "" {
		return fmt.Errorf("status path not set")
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.stopChan)
	return nil
}

func (s *Service) run(stop <-chan struct{}) {
	defer s.wg.Done()

	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "path", s.deps.Path, "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing final status", "error", err)
			}
			return
		case <-ticker.C:
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing status", "error", err)
			}
		}
	}
}

// Stop stops the status monitor after one last write
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
}
