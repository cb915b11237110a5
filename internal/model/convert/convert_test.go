package convert

import (
	"testing"
	"time"

	"github.com/OCAP2/handoff/internal/model"
	"github.com/OCAP2/handoff/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreToHandoffEvent(t *testing.T) {
	now := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)
	e := core.Event{Seq: 4, Kind: core.KindConsumed, Value: 2, Exchange: "monitor", Time: now}

	got := CoreToHandoffEvent(e, 9, map[string]string{"host": "box"})

	assert.Equal(t, uint(9), got.SessionID)
	assert.Equal(t, uint64(4), got.Seq)
	assert.Equal(t, "consumed", got.Kind)
	assert.Equal(t, 2, got.Value)
	assert.Equal(t, "monitor", got.Exchange)
	assert.Equal(t, now, got.Time)
	assert.JSONEq(t, `{"host":"box"}`, string(got.Meta))
}

func TestCoreToHandoffEvent_EmptyMeta(t *testing.T) {
	got := CoreToHandoffEvent(core.Event{Kind: core.KindProduced}, 1, nil)
	assert.Equal(t, "{}", string(got.Meta))
}

func TestCoreToHandoffEvents(t *testing.T) {
	events := []core.Event{
		{Seq: 1, Kind: core.KindProduced, Value: 1},
		{Seq: 2, Kind: core.KindConsumed, Value: 1},
	}

	got := CoreToHandoffEvents(events, 3, map[string]string{"run": "a"})
	require.Len(t, got, 2)
	for i, row := range got {
		assert.Equal(t, events[i].Seq, row.Seq)
		assert.Equal(t, uint(3), row.SessionID)
		assert.JSONEq(t, `{"run":"a"}`, string(row.Meta))
	}
}

func TestHandoffEventToCore(t *testing.T) {
	now := time.Now().UTC()
	row := model.HandoffEvent{Seq: 7, Kind: "produced", Value: 4, Exchange: "channel", Time: now}

	assert.Equal(t, core.Event{
		Seq:      7,
		Kind:     core.KindProduced,
		Value:    4,
		Exchange: "channel",
		Time:     now,
	}, HandoffEventToCore(row))
}
