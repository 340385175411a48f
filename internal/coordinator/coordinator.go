// Package coordinator wires market data into strategies, strategy
// signals into pre-trade risk and then the order manager, and keeps a
// running view of positions for risk to check against. It owns no
// algorithm of its own: everything here is routing, state ownership and
// dispatch, following the single-worker-loop, registry-dispatch idiom
// the rest of the engine uses for its background processing.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/aristath/sentinel-okx/internal/marketdata"
	"github.com/aristath/sentinel-okx/internal/risk"
	"github.com/aristath/sentinel-okx/internal/strategy"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Submitter is the subset of execution.Manager the coordinator drives
// orders through.
type Submitter interface {
	Submit(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, typ domain.OrderType, qty domain.Quantity, price domain.Price, strategyID, parentOrderID string) (*domain.Order, error)
}

// PositionBook is the coordinator's view of account state, fed by
// OrderFilled events and read by the risk validator
// before every signal is allowed through.
type PositionBook struct {
	mu               sync.RWMutex
	positions        map[domain.Symbol]*domain.Position
	ordersThisMinute []time.Time
	realizedDailyPnL decimal.Decimal
	currentLeverage  decimal.Decimal
}

// NewPositionBook constructs an empty book.
func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[domain.Symbol]*domain.Position)}
}

// RecordOrder notes an order submission for the rolling per-minute rate
// check.
func (b *PositionBook) RecordOrder(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ordersThisMinute = append(b.ordersThisMinute, at)
}

// Snapshot builds the risk.BookState the validator checks a candidate
// order against, pruning order-rate entries older than one minute as of
// now.
func (b *PositionBook) Snapshot(symbol domain.Symbol) risk.BookState {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	kept := b.ordersThisMinute[:0]
	for _, t := range b.ordersThisMinute {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.ordersThisMinute = kept

	notional := decimal.Zero
	if pos, ok := b.positions[symbol]; ok {
		notional = pos.Notional()
	}
	return risk.BookState{
		ExistingPositionNotional: notional,
		CurrentLeverage:          b.currentLeverage,
		RealizedDailyPnL:         b.realizedDailyPnL,
		OrdersInLastMinute:       len(b.ordersThisMinute),
	}
}

// applyFill updates the net position for symbol. Positions are tracked
// as a signed net (long positive, short negative) internally and
// re-expressed as Position's non-negative Quantity + Side for the rest
// of the engine to consume.
func (b *PositionBook) applyFill(symbol domain.Symbol, side domain.OrderSide, qty domain.Quantity, price domain.Price) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol, Side: domain.PositionLong}
		b.positions[symbol] = pos
	}

	net := pos.Quantity.Decimal()
	if pos.Side == domain.PositionShort {
		net = net.Neg()
	}
	delta := qty.Decimal()
	if side == domain.SideSell {
		delta = delta.Neg()
	}
	net = net.Add(delta)

	if net.Sign() >= 0 {
		pos.Side = domain.PositionLong
	} else {
		pos.Side = domain.PositionShort
		net = net.Neg()
	}
	newQty, err := domain.NewQuantity(net.String())
	if err != nil {
		return
	}
	pos.Quantity = newQty
	pos.MarkPrice = price
	pos.UpdatedAt = domain.Now()
}

// Coordinator owns the per-strategy runtimes and routes events between
// market data, strategies, risk and execution. One instance serves the
// whole engine. Strategies are called on the goroutine that calls OnBar
// or publishes the fill; each strategy.Runtime serializes calls into its
// instance under a mutex, so strategy implementations need no locking of
// their own state.
type Coordinator struct {
	bus       *events.Bus
	validator *risk.Validator
	submitter Submitter
	book      *PositionBook
	log       zerolog.Logger
	cron      *cron.Cron

	mu         sync.RWMutex
	strategies map[string]*strategy.Runtime
	bySymbol   map[domain.Symbol][]string // strategy ids subscribed to this symbol
}

// New constructs a Coordinator and subscribes it to the bus events it
// routes.
func New(bus *events.Bus, validator *risk.Validator, submitter Submitter, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		bus:        bus,
		validator:  validator,
		submitter:  submitter,
		book:       NewPositionBook(),
		log:        log.With().Str("component", "coordinator.Coordinator").Logger(),
		cron:       cron.New(),
		strategies: make(map[string]*strategy.Runtime),
		bySymbol:   make(map[domain.Symbol][]string),
	}

	bus.Subscribe(c.onOrderFilled, events.OrderFilled)
	bus.Subscribe(c.onSignalGenerated, events.SignalGenerated)
	return c
}

// RegisterStrategy adds a runtime under the coordinator's ownership and
// subscribes it to bars for its configured symbol.
func (c *Coordinator) RegisterStrategy(rt *strategy.Runtime) {
	record := rt.Record()

	c.mu.Lock()
	c.strategies[record.ID] = rt
	c.bySymbol[record.Symbol] = append(c.bySymbol[record.Symbol], record.ID)
	c.mu.Unlock()
}

// OnBar routes a closed bar to every strategy registered for its symbol.
// Dispatch is sequential on the calling goroutine.
func (c *Coordinator) OnBar(bar marketdata.Bar) {
	c.mu.RLock()
	ids := append([]string(nil), c.bySymbol[bar.Symbol]...)
	c.mu.RUnlock()

	for _, id := range ids {
		c.mu.RLock()
		rt, ok := c.strategies[id]
		c.mu.RUnlock()
		if !ok {
			continue
		}
		if err := rt.OnMarketData(bar); err != nil {
			c.log.Error().Err(err).Str("strategy_id", id).Msg("strategy bar dispatch failed")
		}
	}
}

// onSignalGenerated runs the pre-trade risk validator against a strategy
// signal and, if it passes, submits the resulting order. Every violation
// is published as RiskViolationRaised; Critical violations block
// submission, Warning violations do not.
func (c *Coordinator) onSignalGenerated(evt *events.Event) {
	data, ok := evt.Data.(*events.SignalGeneratedData)
	if !ok {
		return
	}
	sig := data.Signal

	price := domain.Price{}
	if sig.LimitPrice != nil {
		price = *sig.LimitPrice
	}
	orderNotional := sig.Quantity.Decimal()
	if !price.IsZero() {
		orderNotional = orderNotional.Mul(price.Decimal())
	}

	order := domain.Order{Symbol: sig.Symbol, Quantity: sig.Quantity, Price: price, StrategyID: sig.StrategyID}
	book := c.book.Snapshot(sig.Symbol)

	violations := c.validator.Validate(order, orderNotional, book)
	for _, v := range violations {
		c.bus.Publish(&events.RiskViolationRaisedData{Rule: string(v.Check), Severity: v.Severity, Message: v.Message})
	}
	if risk.HasCritical(violations) {
		c.log.Warn().Str("strategy_id", sig.StrategyID).Str("symbol", sig.Symbol.String()).Msg("signal blocked by pre-trade risk")
		return
	}

	side := domain.SideBuy
	if sig.Kind == domain.SignalEnterShort || sig.Kind == domain.SignalExitLong {
		side = domain.SideSell
	}
	typ := domain.OrderTypeMarket
	if sig.LimitPrice != nil {
		typ = domain.OrderTypeLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.book.RecordOrder(time.Now())
	if _, err := c.submitter.Submit(ctx, sig.Symbol, side, typ, sig.Quantity, price, sig.StrategyID, ""); err != nil {
		c.log.Error().Err(err).Str("strategy_id", sig.StrategyID).Msg("order submission failed")
	}
}

// onOrderFilled updates the position book and forwards the fill to the
// originating strategy so it can update its own bookkeeping.
func (c *Coordinator) onOrderFilled(evt *events.Event) {
	data, ok := evt.Data.(*events.OrderFilledData)
	if !ok {
		return
	}

	c.book.applyFill(data.Symbol, data.Side, data.FillQty, data.FillPrice)

	if data.StrategyID == "" {
		return
	}
	c.mu.RLock()
	rt, ok := c.strategies[data.StrategyID]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if err := rt.OnOrderFilled(*data); err != nil {
		c.log.Error().Err(err).Str("strategy_id", data.StrategyID).Msg("strategy fill notification failed")
	}
}

// StartPeriodicTasks schedules the given reconcile function on the given
// cron spec (standard 5-field crontab syntax) and starts the scheduler.
func (c *Coordinator) StartPeriodicTasks(reconcileSpec string, reconcile func()) error {
	if _, err := c.cron.AddFunc(reconcileSpec, reconcile); err != nil {
		return fmt.Errorf("coordinator: failed to schedule reconciliation: %w", err)
	}
	c.cron.Start()
	return nil
}

// Stop stops the periodic task scheduler.
func (c *Coordinator) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}
