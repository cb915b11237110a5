// internal/storage/recorder_test.go
package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/handoff/internal/exchange"
	"github.com/OCAP2/handoff/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ exchange.Observer[int] = (*Recorder)(nil)

type fakeBackend struct {
	mu      sync.Mutex
	batches [][]core.Event
	fail    error
	closed  bool
}

func (f *fakeBackend) Init() error { return nil }

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) RecordEvents(events []core.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakeBackend) events() []core.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Event
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func TestRecorder_FlushAssignsSeq(t *testing.T) {
	backend := &fakeBackend{}
	r := NewRecorder(backend, RecorderConfig{Exchange: "monitor"}, nil)

	r.Produced(1)
	r.Consumed(1)
	r.Produced(2)
	require.NoError(t, r.Flush())

	got := backend.events()
	require.Len(t, got, 3)
	assert.Equal(t, core.Event{Seq: 1, Kind: core.KindProduced, Value: 1, Exchange: "monitor", Time: got[0].Time}, got[0])
	assert.Equal(t, uint64(2), got[1].Seq)
	assert.Equal(t, core.KindConsumed, got[1].Kind)
	assert.Equal(t, uint64(3), got[2].Seq)

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.Recorded)
	assert.Equal(t, uint64(3), stats.Flushed)
	assert.Zero(t, stats.Pending)
}

func TestRecorder_EmptyFlushIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	r := NewRecorder(backend, RecorderConfig{}, nil)

	require.NoError(t, r.Flush())
	assert.Empty(t, backend.batches)
}

func TestRecorder_FlushError(t *testing.T) {
	backend := &fakeBackend{fail: errors.New("disk full")}
	r := NewRecorder(backend, RecorderConfig{}, nil)

	r.Produced(1)
	r.Consumed(1)
	err := r.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording 2 events")
	assert.ErrorIs(t, err, backend.fail)

	stats := r.Stats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Zero(t, stats.Pending, "failed batch is discarded")
}

func TestRecorder_QueueLimitDrops(t *testing.T) {
	r := NewRecorder(&fakeBackend{}, RecorderConfig{QueueLimit: 2}, nil)

	r.Produced(1)
	r.Consumed(1)
	r.Produced(2)

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.Recorded)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 2, stats.Pending)
}

func TestRecorder_FlushLoop(t *testing.T) {
	backend := &fakeBackend{}
	r := NewRecorder(backend, RecorderConfig{FlushInterval: 5 * time.Millisecond}, nil)
	require.NoError(t, r.Start())
	assert.True(t, r.IsRunning())
	assert.ErrorIs(t, r.Start(), ErrRecorderRunning)

	r.Produced(1)
	require.Eventually(t, func() bool { return len(backend.events()) == 1 }, time.Second, 5*time.Millisecond)

	r.Stop()
	assert.False(t, r.IsRunning())
	r.Stop() // idempotent
}

func TestRecorder_StartWithoutInterval(t *testing.T) {
	r := NewRecorder(&fakeBackend{}, RecorderConfig{}, nil)
	require.NoError(t, r.Start())
	assert.False(t, r.IsRunning())
}

func TestRecorder_CloseFlushesAndClosesBackend(t *testing.T) {
	backend := &fakeBackend{}
	r := NewRecorder(backend, RecorderConfig{FlushInterval: time.Hour}, nil)
	require.NoError(t, r.Start())

	r.Produced(5)
	require.NoError(t, r.Close())

	assert.Len(t, backend.events(), 1)
	assert.True(t, backend.closed)
	assert.False(t, r.IsRunning())
}

func TestRecorder_ObservesSlotInOrder(t *testing.T) {
	backend := &fakeBackend{}
	r := NewRecorder(backend, RecorderConfig{Exchange: string(exchange.KindMonitor)}, nil)
	s := exchange.NewSlot(exchange.WithObserver[int](r))

	const n = 100
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			assert.NoError(t, s.Put(ctx, i))
		}
	}()
	for i := 1; i <= n; i++ {
		_, err := s.Take(ctx)
		require.NoError(t, err)
	}
	wg.Wait()
	require.NoError(t, r.Flush())

	got := backend.events()
	require.Len(t, got, 2*n)
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.Equal(t, i/2+1, e.Value)
		if i%2 == 0 {
			assert.Equal(t, core.KindProduced, e.Kind)
		} else {
			assert.Equal(t, core.KindConsumed, e.Kind)
		}
	}
}
