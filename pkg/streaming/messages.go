// Package streaming defines the wire messages exchanged with a history
// server over WebSocket.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/OCAP2/handoff/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEvents       = "events"
	TypeEndSession   = "end_session"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces a new producer/consumer run.
type StartSessionPayload struct {
	Exchange  string    `json:"exchange"`
	StartedAt time.Time `json:"startedAt"`
	Meta      any       `json:"meta,omitempty"`
}

// EventsPayload carries one flushed batch in emission order.
type EventsPayload struct {
	Events []core.Event `json:"events"`
}

// EndSessionPayload closes a run with its final totals.
type EndSessionPayload struct {
	EndedAt  time.Time `json:"endedAt"`
	Produced uint64    `json:"produced"`
	Consumed uint64    `json:"consumed"`
}
