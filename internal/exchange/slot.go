package exchange

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
)

// Slot is a monitor: a single value cell plus an occupancy flag guarded by
// one mutex. Waiters block on a broadcast channel that is closed and
// replaced on every state change, which lets a wait also select on
// ctx.Done(). Every wait re-checks its condition after waking.
type Slot[T any] struct {
	mu       sync.Mutex
	value    T
	occupied bool
	closed   bool
	changed  chan struct{}

	state    *fsm.FSM
	observer Observer[T]
}

// NewSlot creates an empty slot.
func NewSlot[T any](opts ...Option[T]) *Slot[T] {
	o := buildOptions(opts)
	return &Slot[T]{
		changed:  make(chan struct{}),
		state:    newStateMachine(),
		observer: o.observer,
	}
}

// Put stores item once the slot is empty and wakes a waiting Take.
func (s *Slot[T]) Put(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.occupied && !s.closed {
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	if s.closed {
		return ErrClosed
	}

	if err := advance(s.state, eventPut); err != nil {
		return err
	}
	s.value = item
	s.occupied = true
	s.observer.Produced(item)
	s.broadcast()
	return nil
}

// Take removes and returns the pending value once there is one, and wakes
// a waiting Put.
func (s *Slot[T]) Take(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.occupied && !s.closed {
		if err := s.wait(ctx); err != nil {
			return zero, err
		}
	}
	if s.closed {
		return zero, ErrClosed
	}

	if err := advance(s.state, eventTake); err != nil {
		return zero, err
	}
	item := s.value
	s.value = zero
	s.occupied = false
	s.observer.Consumed(item)
	s.broadcast()
	return item, nil
}

// Occupied reports whether a value is waiting to be taken.
func (s *Slot[T]) Occupied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupied
}

// State returns the current state of the slot.
func (s *Slot[T]) State() State {
	return State(s.state.Current())
}

// Close wakes every waiter with ErrClosed. Further calls are no-ops.
func (s *Slot[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.broadcast()
	return nil
}

// wait must be called with s.mu held. It releases the lock until the
// slot changes or ctx ends, and returns with the lock held again.
// The channel is captured under the lock so a change made between the
// condition check and the wait cannot be missed.
func (s *Slot[T]) wait(ctx context.Context) error {
	changed := s.changed
	s.mu.Unlock()
	defer s.mu.Lock()

	select {
	case <-changed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// broadcast must be called with s.mu held.
func (s *Slot[T]) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}
