package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/handoff/internal/exchange"
	"github.com/valyala/fastrand"
)

// Config holds loop timing.
type Config struct {
	// Start is the first value the producer hands off.
	Start            int
	ProducerInterval time.Duration
	ConsumerInterval time.Duration
	// Jitter adds a random extra pause in [0, Jitter) to every iteration.
	Jitter time.Duration
	// Count stops each loop after that many handoffs. 0 runs until cancelled.
	Count int
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid loop config")

// Validate rejects negative counts, intervals and jitter.
func (c Config) Validate() error {
	switch {
	case c.Count < 0:
		return fmt.Errorf("%w: count %d is negative", ErrInvalidConfig, c.Count)
	case c.ProducerInterval < 0, c.ConsumerInterval < 0, c.Jitter < 0:
		return fmt.Errorf("%w: intervals and jitter must not be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig matches the classic demo: 1, 2, 3... every 200ms, consumed every second.
func DefaultConfig() Config {
	return Config{
		Start:            1,
		ProducerInterval: 200 * time.Millisecond,
		ConsumerInterval: time.Second,
	}
}

// Producer hands an increasing sequence to the exchange.
type Producer struct {
	ex  exchange.Exchange[int]
	cfg Config
}

// NewProducer creates a producer loop.
func NewProducer(ex exchange.Exchange[int], cfg Config) *Producer {
	return &Producer{ex: ex, cfg: cfg}
}

// Run puts Start, Start+1, ... until ctx ends, the exchange closes or
// Count values were handed off. A stop signal is a clean exit (nil).
func (p *Producer) Run(ctx context.Context) error {
	i := p.cfg.Start
	for n := 0; p.cfg.Count == 0 || n < p.cfg.Count; n++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.ex.Put(ctx, i); err != nil {
			if isStop(err) {
				return nil
			}
			return fmt.Errorf("put %d: %w", i, err)
		}

		if !pause(ctx, p.cfg.ProducerInterval, p.cfg.Jitter) {
			return nil
		}
		i++
	}
	return nil
}

// Consumer drains the exchange.
type Consumer struct {
	ex  exchange.Exchange[int]
	cfg Config
}

// NewConsumer creates a consumer loop.
func NewConsumer(ex exchange.Exchange[int], cfg Config) *Consumer {
	return &Consumer{ex: ex, cfg: cfg}
}

// Run takes values until ctx ends, the exchange closes or Count values
// were received. A stop signal is a clean exit (nil).
func (c *Consumer) Run(ctx context.Context) error {
	for n := 0; c.cfg.Count == 0 || n < c.cfg.Count; n++ {
		if ctx.Err() != nil {
			return nil
		}
		_, err := c.ex.Take(ctx)
		if err != nil {
			if isStop(err) {
				return nil
			}
			return fmt.Errorf("take: %w", err)
		}

		if !pause(ctx, c.cfg.ConsumerInterval, c.cfg.Jitter) {
			return nil
		}
	}
	return nil
}

func isStop(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, exchange.ErrClosed)
}

// pause sleeps for d plus jitter and reports false if ctx ended first.
func pause(ctx context.Context, d, jitter time.Duration) bool {
	if jitter > 0 {
		d += time.Duration(fastrand.Uint32n(uint32(min(jitter, maxJitter))))
	}
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// maxJitter keeps the jitter within fastrand's uint32 range.
const maxJitter = time.Duration(1<<32 - 1)
