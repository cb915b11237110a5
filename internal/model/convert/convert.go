// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/OCAP2/handoff/internal/model"
	"github.com/OCAP2/handoff/pkg/core"
	"gorm.io/datatypes"
)

// metaToJSON converts annotations to datatypes.JSON for DB storage.
func metaToJSON(meta map[string]string) datatypes.JSON {
	if len(meta) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToHandoffEvent converts a core.Event to a GORM model.HandoffEvent.
func CoreToHandoffEvent(e core.Event, sessionID uint, meta map[string]string) model.HandoffEvent {
	return model.HandoffEvent{
		SessionID: sessionID,
		Seq:       e.Seq,
		Time:      e.Time,
		Kind:      string(e.Kind),
		Value:     e.Value,
		Exchange:  e.Exchange,
		Meta:      metaToJSON(meta),
	}
}

// CoreToHandoffEvents converts a batch, sharing one meta document.
func CoreToHandoffEvents(events []core.Event, sessionID uint, meta map[string]string) []model.HandoffEvent {
	out := make([]model.HandoffEvent, len(events))
	m := metaToJSON(meta)
	for i, e := range events {
		out[i] = CoreToHandoffEvent(e, sessionID, nil)
		out[i].Meta = m
	}
	return out
}

// HandoffEventToCore converts a stored row back to a core.Event.
func HandoffEventToCore(e model.HandoffEvent) core.Event {
	return core.Event{
		Seq:      e.Seq,
		Kind:     core.EventKind(e.Kind),
		Value:    e.Value,
		Exchange: e.Exchange,
		Time:     e.Time,
	}
}
