package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_Cycle(t *testing.T) {
	sm := newStateMachine()
	assert.Equal(t, string(StateEmpty), sm.Current())

	require.NoError(t, advance(sm, eventPut))
	assert.Equal(t, string(StateFull), sm.Current())

	require.NoError(t, advance(sm, eventTake))
	assert.Equal(t, string(StateEmpty), sm.Current())
}

func TestStateMachine_RejectsInvalidTransitions(t *testing.T) {
	sm := newStateMachine()

	err := advance(sm, eventTake)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot transition take from empty")

	require.NoError(t, advance(sm, eventPut))
	err = advance(sm, eventPut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot transition put from full")
}

func TestSlot_StateFollowsHandoffs(t *testing.T) {
	s := NewSlot[string]()
	ctx := context.Background()

	assert.Equal(t, StateEmpty, s.State())
	require.NoError(t, s.Put(ctx, "a"))
	assert.Equal(t, StateFull, s.State())
	v, err := s.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, StateEmpty, s.State())
}
