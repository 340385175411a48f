package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/aristath/sentinel-okx/internal/risk"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	calls []domain.Quantity
}

func (f *fakeSubmitter) Submit(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, typ domain.OrderType, qty domain.Quantity, price domain.Price, strategyID, parentOrderID string) (*domain.Order, error) {
	f.calls = append(f.calls, qty)
	return &domain.Order{ClientOrderID: "o1", Symbol: symbol, Side: side, Quantity: qty, StrategyID: strategyID}, nil
}

func TestSignalPassingRiskIsSubmitted(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	limits := domain.RiskLimits{MaxOrderNotional: decimal.NewFromInt(1000000)}
	validator := risk.NewValidator(limits)
	submitter := &fakeSubmitter{}
	c := New(bus, validator, submitter, zerolog.Nop())
	_ = c

	qty, _ := domain.NewQuantity("1")
	sig := domain.Signal{StrategyID: "s1", Symbol: domain.MustSymbol("BTC-USDT"), Kind: domain.SignalEnterLong, Quantity: qty}
	bus.Publish(&events.SignalGeneratedData{StrategyID: "s1", Signal: sig})

	require.Len(t, submitter.calls, 1)
	assert.True(t, submitter.calls[0].Equal(qty))
}

func TestSignalBlockedByCriticalRiskIsNotSubmitted(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	limits := domain.RiskLimits{MaxOrderNotional: decimal.NewFromInt(1)}
	validator := risk.NewValidator(limits)
	submitter := &fakeSubmitter{}
	New(bus, validator, submitter, zerolog.Nop())

	var raised []events.RiskViolationRaisedData
	bus.Subscribe(func(e *events.Event) {
		raised = append(raised, *e.Data.(*events.RiskViolationRaisedData))
	}, events.RiskViolationRaised)

	price, _ := domain.NewPrice("50000")
	qty, _ := domain.NewQuantity("10")
	sig := domain.Signal{StrategyID: "s1", Symbol: domain.MustSymbol("BTC-USDT"), Kind: domain.SignalEnterLong, Quantity: qty, LimitPrice: &price}
	bus.Publish(&events.SignalGeneratedData{StrategyID: "s1", Signal: sig})

	assert.Empty(t, submitter.calls)
	assert.NotEmpty(t, raised)
}

func TestPositionBookTracksFillsAcrossSides(t *testing.T) {
	book := NewPositionBook()
	symbol := domain.MustSymbol("BTC-USDT")
	price, _ := domain.NewPrice("100")
	buyQty, _ := domain.NewQuantity("5")
	sellQty, _ := domain.NewQuantity("2")

	book.applyFill(symbol, domain.SideBuy, buyQty, price)
	book.applyFill(symbol, domain.SideSell, sellQty, price)

	snap := book.Snapshot(symbol)
	expected := decimal.NewFromInt(3).Mul(decimal.NewFromInt(100))
	assert.True(t, snap.ExistingPositionNotional.Equal(expected))
}

func TestPositionBookRecordsOrderRateWithinWindow(t *testing.T) {
	book := NewPositionBook()
	now := time.Now()
	book.RecordOrder(now)
	book.RecordOrder(now)
	book.RecordOrder(now.Add(-2 * time.Minute))

	snap := book.Snapshot(domain.MustSymbol("BTC-USDT"))
	assert.Equal(t, 2, snap.OrdersInLastMinute)
}
