package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	events := []Event{
		{Kind: KindProduced, Value: 1},
		{Kind: KindConsumed, Value: 1},
		{Kind: KindProduced, Value: 2},
		{Kind: "unknown"},
	}

	produced, consumed := Count(events)
	assert.Equal(t, uint64(2), produced)
	assert.Equal(t, uint64(1), consumed)
}

func TestCount_Empty(t *testing.T) {
	produced, consumed := Count(nil)
	assert.Zero(t, produced)
	assert.Zero(t, consumed)
}
