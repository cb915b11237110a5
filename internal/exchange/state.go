package exchange

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

const (
	eventPut  = "put"
	eventTake = "take"
)

// newStateMachine tracks the EMPTY/FULL cycle of a slot.
// put is only valid from empty and take only from full.
func newStateMachine() *fsm.FSM {
	return fsm.NewFSM(
		string(StateEmpty),
		fsm.Events{
			{Name: eventPut, Src: []string{string(StateEmpty)}, Dst: string(StateFull)},
			{Name: eventTake, Src: []string{string(StateFull)}, Dst: string(StateEmpty)},
		},
		fsm.Callbacks{},
	)
}

// advance fires a transition. The handoff is already committed by the
// caller, so the transition runs detached from the caller's context.
func advance(sm *fsm.FSM, event string) error {
	if err := sm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("slot transition %s from %s: %w", event, sm.Current(), err)
	}
	return nil
}
