package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OCAP2/handoff/internal/exchange"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRunning is returned by Start while the loops are running.
var ErrAlreadyRunning = errors.New("worker manager already running")

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Exchange exchange.Exchange[int]
	// Stats must be registered as an observer of Exchange to count
	// handoffs. A nil Stats is replaced by an unwired one that stays zero.
	Stats  *Stats
	Logger Logger
}

// Manager runs one producer and one consumer over a shared exchange.
type Manager struct {
	deps  Dependencies
	cfg   Config
	stats *Stats

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, cfg Config) *Manager {
	stats := deps.Stats
	if stats == nil {
		stats = &Stats{}
	}
	return &Manager{
		deps:  deps,
		cfg:   cfg,
		stats: stats,
	}
}

// Start launches both loops and returns immediately. The loops stop when
// ctx ends, Stop is called, the exchange closes, or Count handoffs are done.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRunning {
		return ErrAlreadyRunning
	}
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	producer := NewProducer(m.deps.Exchange, m.cfg)
	consumer := NewConsumer(m.deps.Exchange, m.cfg)
	g.Go(func() error { return producer.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })

	m.isRunning = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.err = nil

	start := time.Now()
	m.deps.Logger.Info("handoff loops started",
		"start", m.cfg.Start,
		"producerInterval", m.cfg.ProducerInterval,
		"consumerInterval", m.cfg.ConsumerInterval,
		"count", m.cfg.Count,
	)

	done := m.done
	go func() {
		err := g.Wait()
		cancel()

		m.mu.Lock()
		m.isRunning = false
		m.err = err
		m.mu.Unlock()

		snap := m.stats.Snapshot()
		if err != nil {
			m.deps.Logger.Error("handoff loops failed", "error", err, "produced", snap.Produced, "consumed", snap.Consumed)
		} else {
			m.deps.Logger.Info("handoff loops stopped", "duration", time.Since(start), "produced", snap.Produced, "consumed", snap.Consumed)
		}
		close(done)
	}()

	return nil
}

// Stop signals both loops to return. It does not wait; use Wait.
func (m *Manager) Stop() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// Wait blocks until both loops returned and reports the first loop error.
// A cancelled run is a clean run and yields nil.
func (m *Manager) Wait() error {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()
	if done == nil {
		return nil
	}

	<-done

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Done returns a channel closed once the loops of the current run returned.
// It is nil before the first Start.
func (m *Manager) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

// IsRunning returns whether the loops are running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// Stats returns the current handoff counters.
func (m *Manager) Stats() Snapshot {
	return m.stats.Snapshot()
}
