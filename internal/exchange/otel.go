package exchange

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/handoff/internal/exchange"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// MetricsObserver counts handoff steps with OTel instruments.
// Uses the global meter provider (no-op if not configured).
type MetricsObserver[T any] struct {
	produced metric.Int64Counter
	consumed metric.Int64Counter
	occupied metric.Int64ObservableGauge
	resident metric.Float64Histogram

	attrs metric.MeasurementOption

	// pending is produced minus consumed, i.e. 0 or 1 for a single slot.
	pending atomic.Int64
	// producedAt is the unix nano time of the last Produced, 0 once consumed.
	producedAt atomic.Int64
}

// NewMetricsObserver creates the instruments for an exchange of the given kind.
func NewMetricsObserver[T any](kind Kind) (*MetricsObserver[T], error) {
	m := meter()
	o := &MetricsObserver[T]{
		attrs: metric.WithAttributes(attribute.String("exchange", string(kind))),
	}

	var err error

	o.produced, err = m.Int64Counter(
		"exchange.items.produced",
		metric.WithDescription("Total values placed in the slot"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating produced counter: %w", err)
	}

	o.consumed, err = m.Int64Counter(
		"exchange.items.consumed",
		metric.WithDescription("Total values taken from the slot"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating consumed counter: %w", err)
	}

	o.occupied, err = m.Int64ObservableGauge(
		"exchange.slot.occupied",
		metric.WithDescription("1 while a value is waiting in the slot"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating occupied gauge: %w", err)
	}

	o.resident, err = m.Float64Histogram(
		"exchange.slot.residence",
		metric.WithDescription("Time a value waited in the slot before being taken"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating residence histogram: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, obs metric.Observer) error {
			obs.ObserveInt64(o.occupied, o.pending.Load(), metric.WithAttributes(attribute.String("exchange", string(kind))))
			return nil
		},
		o.occupied,
	)
	if err != nil {
		return nil, fmt.Errorf("registering occupied callback: %w", err)
	}

	return o, nil
}

// Produced increments the produced counter.
func (o *MetricsObserver[T]) Produced(T) {
	o.producedAt.Store(time.Now().UnixNano())
	o.pending.Add(1)
	o.produced.Add(context.Background(), 1, o.attrs)
}

// Consumed increments the consumed counter and records how long the value
// sat in the slot.
func (o *MetricsObserver[T]) Consumed(T) {
	o.pending.Add(-1)
	o.consumed.Add(context.Background(), 1, o.attrs)
	if at := o.producedAt.Swap(0); at != 0 {
		o.resident.Record(context.Background(), time.Since(time.Unix(0, at)).Seconds(), o.attrs)
	}
}
