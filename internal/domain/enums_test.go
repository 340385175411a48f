package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionOrder(t *testing.T) {
	assert.True(t, CanTransitionOrder(OrderCreated, OrderPendingSubmit))
	assert.True(t, CanTransitionOrder(OrderAcknowledged, OrderPartiallyFilled))
	assert.True(t, CanTransitionOrder(OrderPartiallyFilled, OrderFilled))
	assert.False(t, CanTransitionOrder(OrderFilled, OrderCancelled))
	assert.False(t, CanTransitionOrder(OrderCreated, OrderFilled))
}

func TestIsTerminalOrderState(t *testing.T) {
	assert.True(t, IsTerminalOrderState(OrderFilled))
	assert.True(t, IsTerminalOrderState(OrderCancelled))
	assert.True(t, IsTerminalOrderState(OrderRejected))
	assert.True(t, IsTerminalOrderState(OrderExpired))
	assert.False(t, IsTerminalOrderState(OrderAcknowledged))
}

func TestCanTransitionStrategy(t *testing.T) {
	assert.True(t, CanTransitionStrategy(StrategyDraft, StrategyValidated))
	assert.True(t, CanTransitionStrategy(StrategyRunning, StrategyPaused))
	assert.False(t, CanTransitionStrategy(StrategyDraft, StrategyRunning))
	assert.False(t, CanTransitionStrategy(StrategyArchived, StrategyRunning))
}
