package events

import (
	"sync"
	"testing"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	var received []EventType

	bus.Subscribe(func(e *Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.Type)
	})

	bus.Publish(&OrderFilledData{ClientOrderID: "abc"})
	bus.Publish(&StrategyStateChangedData{StrategyID: "s1"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{OrderFilled, StrategyStateChanged}, received)
}

func TestBusFiltersByType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got int
	bus.Subscribe(func(e *Event) { got++ }, RiskViolationRaised)

	bus.Publish(&OrderFilledData{ClientOrderID: "x"})
	bus.Publish(&RiskViolationRaisedData{Rule: "max_notional"})

	assert.Equal(t, 1, got)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var got int
	sub := bus.Subscribe(func(e *Event) { got++ })
	sub.Unsubscribe()

	bus.Publish(&OrderFilledData{ClientOrderID: "y"})
	assert.Equal(t, 0, got)
}

func TestEventTypesMatchDomain(t *testing.T) {
	d := &PositionUpdatedData{Symbol: domain.MustSymbol("BTC-USDT"), Side: domain.PositionLong}
	assert.Equal(t, PositionUpdated, d.EventType())
}
