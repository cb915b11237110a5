// Package exchange implements a single-slot handoff between one producer
// and one consumer.
package exchange

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by Put and Take once the exchange has been closed.
var ErrClosed = errors.New("exchange closed")

// ErrUnknownKind is returned by New for an unsupported implementation name.
var ErrUnknownKind = errors.New("unknown exchange kind")

// State is the occupancy state of the slot.
type State string

const (
	StateEmpty State = "empty"
	StateFull  State = "full"
)

// Kind selects an Exchange implementation.
type Kind string

const (
	// KindMonitor is a mutex guarded slot with condition waiting.
	KindMonitor Kind = "monitor"
	// KindChannel is a capacity-1 channel.
	KindChannel Kind = "channel"
)

// Exchange hands values from a producer to a consumer one at a time.
//
// Put blocks while a value is pending; Take blocks while none is.
// Both return ctx.Err() when the context ends before the handoff and
// leave the slot unmodified in that case.
type Exchange[T any] interface {
	Put(ctx context.Context, item T) error
	Take(ctx context.Context) (T, error)
	Occupied() bool
	State() State
	Close() error
}

// Option configures an Exchange.
type Option[T any] func(*options[T])

type options[T any] struct {
	observer Observer[T]
}

// WithObserver registers observers notified of every successful handoff step.
func WithObserver[T any](observers ...Observer[T]) Option[T] {
	return func(o *options[T]) {
		o.observer = Multi(append([]Observer[T]{o.observer}, observers...)...)
	}
}

func buildOptions[T any](opts []Option[T]) *options[T] {
	o := &options[T]{observer: nopObserver[T]{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New creates an exchange of the given kind. An empty kind selects KindMonitor.
func New[T any](kind Kind, opts ...Option[T]) (Exchange[T], error) {
	switch kind {
	case KindMonitor, "":
		return NewSlot(opts...), nil
	case KindChannel:
		return NewChan(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
