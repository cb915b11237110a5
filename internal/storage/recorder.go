// internal/storage/recorder.go
package storage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/handoff/internal/queue"
	"github.com/OCAP2/handoff/pkg/core"
)

// ErrRecorderRunning is returned by Start when the flush loop is active.
var ErrRecorderRunning = errors.New("recorder already running")

// RecorderConfig controls batching.
type RecorderConfig struct {
	Exchange      string
	FlushInterval time.Duration
	QueueLimit    int
}

// RecorderStats is a point-in-time view of the recorder counters.
type RecorderStats struct {
	Recorded uint64 `json:"recorded"`
	Flushed  uint64 `json:"flushed"`
	Failed   uint64 `json:"failed"`
	Dropped  uint64 `json:"dropped"`
	Pending  int    `json:"pending"`
}

// Recorder observes an exchange and forwards every handoff step to a
// Backend in batches. Observer callbacks only append to a queue, so a
// slow backend never stalls the producer or the consumer.
type Recorder struct {
	backend Backend
	cfg     RecorderConfig
	logger  Logger
	queue   *queue.Queue[core.Event]

	seqMu sync.Mutex
	seq   uint64

	flushMu sync.Mutex
	flushed atomic.Uint64
	failed  atomic.Uint64

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewRecorder creates a recorder for an initialized backend.
func NewRecorder(backend Backend, cfg RecorderConfig, logger Logger) *Recorder {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Recorder{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		queue:   queue.New[core.Event](cfg.QueueLimit),
	}
}

// Produced records a produced event.
func (r *Recorder) Produced(v int) { r.record(core.KindProduced, v) }

// Consumed records a consumed event.
func (r *Recorder) Consumed(v int) { r.record(core.KindConsumed, v) }

// record stamps the next sequence number and enqueues the event.
// Seq and queue position are assigned together so batches stay sorted.
func (r *Recorder) record(kind core.EventKind, v int) {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	r.seq++
	r.queue.Push(core.Event{
		Seq:      r.seq,
		Kind:     kind,
		Value:    v,
		Exchange: r.cfg.Exchange,
		Time:     time.Now(),
	})
}

// Start begins flushing on the configured interval.
// A non-positive interval leaves flushing to explicit Flush/Close calls.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return ErrRecorderRunning
	}
	if r.cfg.FlushInterval <= 0 {
		return nil
	}

	r.stopChan = make(chan struct{})
	r.isRunning = true
	r.wg.Add(1)
	go r.flushLoop(r.stopChan)

	r.logger.Debug("recorder started", "interval", r.cfg.FlushInterval)
	return nil
}

// Stop halts the flush loop. Queued events stay queued until Flush or Close.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
}

// IsRunning returns whether the flush loop is active.
func (r *Recorder) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRunning
}

func (r *Recorder) flushLoop(stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Error("failed to flush events", "error", err)
			}
		}
	}
}

// Flush writes all queued events to the backend as one batch.
// A failed batch is counted and discarded.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	batch := r.queue.Drain()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	if err := r.backend.RecordEvents(batch); err != nil {
		r.failed.Add(uint64(len(batch)))
		return fmt.Errorf("recording %d events: %w", len(batch), err)
	}
	r.flushed.Add(uint64(len(batch)))

	r.logger.Debug("flushed events", "count", len(batch), "duration", time.Since(start))
	return nil
}

// Close stops the flush loop, flushes what is left and closes the backend.
func (r *Recorder) Close() error {
	r.Stop()
	return errors.Join(r.Flush(), r.backend.Close())
}

// Stats returns the current counters.
func (r *Recorder) Stats() RecorderStats {
	r.seqMu.Lock()
	recorded := r.seq
	r.seqMu.Unlock()

	return RecorderStats{
		Recorded: recorded,
		Flushed:  r.flushed.Load(),
		Failed:   r.failed.Load(),
		Dropped:  r.queue.Dropped(),
		Pending:  r.queue.Len(),
	}
}
