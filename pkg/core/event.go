// pkg/core/event.go
package core

import (
	"time"
)

// EventKind identifies which side of a handoff an event describes.
type EventKind string

const (
	// KindProduced is emitted when a value is placed in the slot.
	KindProduced EventKind = "produced"
	// KindConsumed is emitted when a value is taken out of the slot.
	KindConsumed EventKind = "consumed"
)

// Event is one observed handoff step.
// Seq is assigned in emission order by the recorder.
type Event struct {
	Seq      uint64    `json:"seq"`
	Kind     EventKind `json:"kind"`
	Value    int       `json:"value"`
	Exchange string    `json:"exchange"`
	Time     time.Time `json:"time"`
}

// Count returns the number of produced and consumed events.
func Count(events []Event) (produced, consumed uint64) {
	for _, e := range events {
		switch e.Kind {
		case KindProduced:
			produced++
		case KindConsumed:
			consumed++
		}
	}
	return produced, consumed
}
