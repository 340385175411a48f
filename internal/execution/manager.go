// Package execution owns the order lifecycle: the state machine for a
// single order, the manager that maps client and exchange order ids and
// reconciles against the exchange, and the TWAP/VWAP slicing algorithms
// that turn one parent order into a schedule of child orders.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/sentinel-okx/internal/connector/okx"
	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Broker is the subset of the exchange connector the manager depends on,
// so it can be faked in tests without a live OKX connection.
type Broker interface {
	PlaceOrder(ctx context.Context, req okx.PlaceOrderRequest) (*okx.PlaceOrderResult, error)
	CancelOrder(ctx context.Context, req okx.CancelOrderRequest) (*okx.CancelOrderResult, error)
	GetOrder(ctx context.Context, instID, ordID string) (*okx.OrderDetails, error)
}

// Manager owns every order the engine has submitted for the lifetime of
// the process. It is the only writer of domain.Order state; every other
// package observes order state only through OrderEvent on the bus.
type Manager struct {
	broker     Broker
	bus        *events.Bus
	log        zerolog.Logger
	ackTimeout time.Duration

	mu           sync.RWMutex
	byClientID   map[string]*domain.Order
	byExchangeID map[string]string // exchange order id -> client order id
}

// NewManager constructs an order Manager.
func NewManager(broker Broker, bus *events.Bus, ackTimeout time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		broker:       broker,
		bus:          bus,
		log:          log.With().Str("component", "execution.Manager").Logger(),
		ackTimeout:   ackTimeout,
		byClientID:   make(map[string]*domain.Order),
		byExchangeID: make(map[string]string),
	}
}

// Submit creates a new order in the Created state, transitions it through
// PendingSubmit/Submitted, and returns once the exchange has accepted or
// rejected it. Submission is asynchronous from the caller's perspective
// only in that fills arrive later via Reconcile; this call blocks on the
// synchronous REST acknowledgement.
func (m *Manager) Submit(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, typ domain.OrderType, qty domain.Quantity, price domain.Price, strategyID, parentOrderID string) (*domain.Order, error) {
	order := &domain.Order{
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Type:          typ,
		Price:         price,
		Quantity:      qty,
		State:         domain.OrderCreated,
		StrategyID:    strategyID,
		ParentOrderID: parentOrderID,
		CreatedAt:     domain.Now(),
		UpdatedAt:     domain.Now(),
	}

	m.mu.Lock()
	m.byClientID[order.ClientOrderID] = order
	m.mu.Unlock()

	if err := m.transition(order, domain.OrderPendingSubmit); err != nil {
		return order, err
	}

	req := okx.PlaceOrderRequest{
		InstID:  symbol.String(),
		TdMode:  "cross",
		Side:    string(side),
		OrdType: string(typ),
		Sz:      qty.String(),
		ClOrdID: order.ClientOrderID,
	}
	if !price.IsZero() {
		req.Px = price.String()
	}

	if err := m.transition(order, domain.OrderSubmitted); err != nil {
		return order, err
	}

	result, err := m.broker.PlaceOrder(ctx, req)
	if err != nil {
		_ = m.transition(order, domain.OrderRejected)
		m.bus.Publish(&events.OrderRejectedData{ClientOrderID: order.ClientOrderID, Reason: err.Error()})
		return order, err
	}

	m.mu.Lock()
	order.ExchangeOrderID = result.OrdID
	m.byExchangeID[result.OrdID] = order.ClientOrderID
	m.mu.Unlock()

	if err := m.transition(order, domain.OrderAcknowledged); err != nil {
		return order, err
	}

	go m.watchAckTimeout(order.ClientOrderID)
	return order, nil
}

// watchAckTimeout expires an order that never progresses out of
// Acknowledged within the configured ack timeout, and best-effort cancels
// it at the exchange.
func (m *Manager) watchAckTimeout(clientOrderID string) {
	time.Sleep(m.ackTimeout)

	m.mu.Lock()
	order, ok := m.byClientID[clientOrderID]
	m.mu.Unlock()
	if !ok || order.State != domain.OrderAcknowledged {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = m.broker.CancelOrder(ctx, okx.CancelOrderRequest{InstID: order.Symbol.String(), OrdID: order.ExchangeOrderID})
	_ = m.transition(order, domain.OrderExpired)
}

// Fill applies a fill update from the exchange. Fill quantities must be
// monotonically non-decreasing; a cumulative quantity smaller than
// already recorded indicates out-of-order or corrupt data and is
// rejected rather than applied.
func (m *Manager) Fill(clientOrderID string, cumulativeQty domain.Quantity, avgPrice domain.Price, isFinal bool) error {
	m.mu.Lock()
	order, ok := m.byClientID[clientOrderID]
	m.mu.Unlock()
	if !ok {
		return domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("unknown order %q", clientOrderID))
	}

	if cumulativeQty.LessThan(order.FilledQty) {
		return domain.NewError(domain.ErrArithmeticError, "fill quantity decreased")
	}

	delta, err := cumulativeQty.Sub(order.FilledQty)
	if err != nil {
		return err
	}
	if delta.IsZero() && order.FilledQty.Equal(cumulativeQty) && domain.IsTerminalOrderState(order.State) {
		return nil // duplicate fill notification for an already-terminal order, idempotent no-op
	}

	order.FilledQty = cumulativeQty
	order.AvgFillPrice = avgPrice
	order.UpdatedAt = domain.Now()

	target := domain.OrderPartiallyFilled
	if isFinal || order.FilledQty.Equal(order.Quantity) {
		target = domain.OrderFilled
	}
	if order.State != target {
		if err := m.transition(order, target); err != nil {
			return err
		}
	}

	m.bus.Publish(&events.OrderFilledData{
		ClientOrderID: clientOrderID,
		StrategyID:    order.StrategyID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		FillQty:       delta,
		FillPrice:     avgPrice,
		CumulativeQty: cumulativeQty,
		IsFinal:       target == domain.OrderFilled,
	})
	return nil
}

// Cancel requests cancellation of a resting order.
func (m *Manager) Cancel(ctx context.Context, clientOrderID string) error {
	m.mu.Lock()
	order, ok := m.byClientID[clientOrderID]
	m.mu.Unlock()
	if !ok {
		return domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("unknown order %q", clientOrderID))
	}

	if err := m.transition(order, domain.OrderPendingCancel); err != nil {
		return err
	}
	_, err := m.broker.CancelOrder(ctx, okx.CancelOrderRequest{InstID: order.Symbol.String(), OrdID: order.ExchangeOrderID})
	if err != nil {
		return err
	}
	return m.transition(order, domain.OrderCancelled)
}

// Reconcile fetches an order's exchange-side state and applies any fill
// the stream may have missed. Called periodically and on reconnection.
func (m *Manager) Reconcile(ctx context.Context, clientOrderID string) error {
	m.mu.Lock()
	order, ok := m.byClientID[clientOrderID]
	m.mu.Unlock()
	if !ok {
		return domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("unknown order %q", clientOrderID))
	}

	details, err := m.broker.GetOrder(ctx, order.Symbol.String(), order.ExchangeOrderID)
	if err != nil {
		return err
	}

	filled, err := domain.NewQuantity(details.AccFillSz)
	if err != nil {
		return err
	}
	avgPx := order.AvgFillPrice
	if details.AvgPx != "" && details.AvgPx != "0" {
		if p, perr := domain.NewPrice(details.AvgPx); perr == nil {
			avgPx = p
		}
	}
	return m.Fill(clientOrderID, filled, avgPx, okx.ToDomainState(details.State) == domain.OrderFilled)
}

// Get returns a snapshot copy of one order by client order id.
func (m *Manager) Get(clientOrderID string) (domain.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.byClientID[clientOrderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// OpenOrders returns a snapshot of every order not yet in a terminal
// state, for the periodic reconciliation sweep.
func (m *Manager) OpenOrders() []domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	open := make([]domain.Order, 0, len(m.byClientID))
	for _, o := range m.byClientID {
		if !domain.IsTerminalOrderState(o.State) {
			open = append(open, *o)
		}
	}
	return open
}

func (m *Manager) transition(order *domain.Order, to domain.OrderState) error {
	if !domain.CanTransitionOrder(order.State, to) {
		return domain.NewError(domain.ErrInvalidOrderTransition, fmt.Sprintf("cannot move order %s from %s to %s", order.ClientOrderID, order.State, to))
	}
	from := order.State
	order.State = to
	order.UpdatedAt = domain.Now()
	m.bus.Publish(&events.OrderStateChangedData{ClientOrderID: order.ClientOrderID, From: from, To: to})
	return nil
}
