package exchange

import (
	"context"
	"sync"
)

// Chan realizes the exchange with capacity-1 channels. slot is a token
// held from the moment a Put commits until the matching Take has been
// observed, and ch carries the value itself.
//
// Holding the token across the notifications gives Chan the same total
// observer order as Slot: produced n, consumed n, produced n+1.
type Chan[T any] struct {
	slot     chan struct{}
	ch       chan T
	done     chan struct{}
	once     sync.Once
	observer Observer[T]
}

// NewChan creates an empty channel-backed exchange.
func NewChan[T any](opts ...Option[T]) *Chan[T] {
	o := buildOptions(opts)
	return &Chan[T]{
		slot:     make(chan struct{}, 1),
		ch:       make(chan T, 1),
		done:     make(chan struct{}),
		observer: o.observer,
	}
}

// Put takes the slot token, blocking while another value holds it, then
// hands item over.
func (c *Chan[T]) Put(ctx context.Context, item T) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	c.observer.Produced(item)
	// the token guarantees ch is empty, so this never blocks
	c.ch <- item
	return nil
}

// Take receives the pending value, blocking while there is none, and
// releases the token once the value has been observed.
func (c *Chan[T]) Take(ctx context.Context) (T, error) {
	var zero T
	if err := c.check(ctx); err != nil {
		return zero, err
	}

	select {
	case item := <-c.ch:
		c.observer.Consumed(item)
		<-c.slot
		return item, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-c.done:
		return zero, ErrClosed
	}
}

// Occupied reports whether a value is buffered.
func (c *Chan[T]) Occupied() bool {
	return len(c.slot) == 1
}

// State returns the current state of the buffer.
func (c *Chan[T]) State() State {
	if c.Occupied() {
		return StateFull
	}
	return StateEmpty
}

// Close wakes every waiter with ErrClosed. The data channels are never
// closed so a racing Put cannot panic.
func (c *Chan[T]) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *Chan[T]) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
		return nil
	}
}
