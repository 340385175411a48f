// Package events implements the typed publish/subscribe bus that
// decouples market data ingestion, the strategy runtime, execution, and
// risk from one another: nothing in this tree calls another package's
// methods directly to signal a state change, it publishes an event.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of payload carried by an Event.
type EventType string

const (
	MarketDataReceived    EventType = "MarketDataReceived"
	OrderBookUpdated      EventType = "OrderBookUpdated"
	OrderSubmitted        EventType = "OrderSubmitted"
	OrderStateChanged     EventType = "OrderStateChanged"
	OrderFilled           EventType = "OrderFilled"
	OrderRejected         EventType = "OrderRejected"
	PositionUpdated       EventType = "PositionUpdated"
	SignalGenerated       EventType = "SignalGenerated"
	StrategyStateChanged  EventType = "StrategyStateChanged"
	RiskViolationRaised   EventType = "RiskViolationRaised"
	AlertFired            EventType = "AlertFired"
	ConnectionStateChanged EventType = "ConnectionStateChanged"
)

// EventData is implemented by every typed event payload.
type EventData interface {
	EventType() EventType
}

// Event is the envelope delivered to every subscriber: the payload plus
// bookkeeping common to all event types.
type Event struct {
	Type      EventType
	Data      EventData
	EmittedAt time.Time
}

// Handler receives events published to a subscription. Handlers must not
// block: the bus invokes them synchronously on the goroutine that called
// Publish, so a slow handler delays every later subscriber and the
// publisher itself.
type Handler func(*Event)

type subscription struct {
	id      int
	types   map[EventType]bool // nil means "all types"
	handler Handler
}

// Bus is an in-process, fan-out publish/subscribe dispatcher. Publish
// calls each matching subscriber in turn on the publisher's goroutine; a
// panicking handler is recovered and logged so it does not stop delivery
// to the remaining subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	log    zerolog.Logger
}

// NewBus constructs an empty Bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
		log:  log.With().Str("component", "events.Bus").Logger(),
	}
}

// Subscription is returned by Subscribe and used to Unsubscribe.
type Subscription struct {
	bus *Bus
	id  int
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
}

// Subscribe registers handler for the given event types. Passing no types
// subscribes to every event published on the bus.
func (b *Bus) Subscribe(handler Handler, types ...EventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	var typeSet map[EventType]bool
	if len(types) > 0 {
		typeSet = make(map[EventType]bool, len(types))
		for _, t := range types {
			typeSet[t] = true
		}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{id: id, types: typeSet, handler: handler}
	return &Subscription{bus: b, id: id}
}

// Publish delivers data to every subscriber interested in its event type.
// Dispatch to each subscriber happens synchronously in the calling
// goroutine; callers publishing from a hot path should keep handlers fast
// or hand off internally.
func (b *Bus) Publish(data EventData) {
	evt := &Event{Type: data.EventType(), Data: data, EmittedAt: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.types != nil && !sub.types[evt.Type] {
			continue
		}
		func(s *subscription) {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Interface("panic", r).Str("event_type", string(evt.Type)).Msg("event handler panicked")
				}
			}()
			s.handler(evt)
		}(sub)
	}
}
