package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/handoff/pkg/core"
	"github.com/OCAP2/handoff/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL      string
	Secret   string
	Exchange string

	// MaxReconnect bounds reconnect attempts, 10 when zero.
	MaxReconnect int
	// Backoff is the first reconnect delay, 1s when zero.
	Backoff time.Duration
	// AckTimeout bounds start/end session handshakes, 10s when zero.
	AckTimeout time.Duration

	Logger *slog.Logger
}

// Backend streams handoff events over WebSocket to a history server.
type Backend struct {
	conn *connection
	cfg  Config

	produced atomic.Uint64
	consumed atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	if cfg.MaxReconnect <= 0 {
		cfg.MaxReconnect = 10
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = ackTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(cfg.Logger, cfg.MaxReconnect, cfg.Backoff),
		cfg:  cfg,
	}
}

// Init connects and announces the session, waiting for the server ack.
func (b *Backend) Init() error {
	if err := b.conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{
		Exchange:  b.cfg.Exchange,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.helloMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartSession, b.cfg.AckTimeout)
}

// RecordEvents sends one batch (fire-and-forget).
func (b *Backend) RecordEvents(events []core.Event) error {
	if len(events) == 0 {
		return nil
	}
	produced, consumed := core.Count(events)
	b.produced.Add(produced)
	b.consumed.Add(consumed)

	return b.sendEnvelope(streaming.TypeEvents, streaming.EventsPayload{Events: events})
}

// Dropped returns how many messages were discarded because the send
// buffer was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// Close sends end_session with the totals, waits for the ack and disconnects.
// The handshake is skipped when Init never announced a session.
func (b *Backend) Close() error {
	b.conn.mu.Lock()
	started := b.conn.helloMsg != nil
	b.conn.mu.Unlock()
	if !started {
		return b.conn.close()
	}

	endErr := b.sendEnvelopeAndWait(streaming.TypeEndSession, streaming.EndSessionPayload{
		EndedAt:  time.Now().UTC(),
		Produced: b.produced.Load(),
		Consumed: b.consumed.Load(),
	})

	b.conn.mu.Lock()
	b.conn.helloMsg = nil
	b.conn.mu.Unlock()

	return errors.Join(endErr, b.conn.close())
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop.
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, b.cfg.AckTimeout)
}
