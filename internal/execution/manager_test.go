package execution

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/sentinel-okx/internal/connector/okx"
	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	placeResult  *okx.PlaceOrderResult
	placeErr     error
	cancelResult *okx.CancelOrderResult
	cancelErr    error
	orderDetails *okx.OrderDetails
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, req okx.PlaceOrderRequest) (*okx.PlaceOrderResult, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return f.placeResult, nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, req okx.CancelOrderRequest) (*okx.CancelOrderResult, error) {
	return f.cancelResult, f.cancelErr
}

func (f *fakeBroker) GetOrder(ctx context.Context, instID, ordID string) (*okx.OrderDetails, error) {
	return f.orderDetails, nil
}

func newTestManager(broker Broker) (*Manager, *events.Bus) {
	bus := events.NewBus(zerolog.Nop())
	return NewManager(broker, bus, time.Hour, zerolog.Nop()), bus
}

func TestSubmitSuccess(t *testing.T) {
	broker := &fakeBroker{placeResult: &okx.PlaceOrderResult{OrdID: "ex-1"}}
	mgr, _ := newTestManager(broker)

	qty, _ := domain.NewQuantity("1")
	order, err := mgr.Submit(context.Background(), domain.MustSymbol("BTC-USDT"), domain.SideBuy, domain.OrderTypeMarket, qty, domain.Price{}, "strat-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderAcknowledged, order.State)
	assert.Equal(t, "ex-1", order.ExchangeOrderID)
}

func TestSubmitRejected(t *testing.T) {
	broker := &fakeBroker{placeErr: domain.NewExchangeReject("51000", "insufficient balance")}
	mgr, _ := newTestManager(broker)

	qty, _ := domain.NewQuantity("1")
	order, err := mgr.Submit(context.Background(), domain.MustSymbol("BTC-USDT"), domain.SideBuy, domain.OrderTypeMarket, qty, domain.Price{}, "strat-1", "")
	assert.Error(t, err)
	assert.Equal(t, domain.OrderRejected, order.State)
}

func TestFillProgressesToFilled(t *testing.T) {
	broker := &fakeBroker{placeResult: &okx.PlaceOrderResult{OrdID: "ex-2"}}
	mgr, _ := newTestManager(broker)

	qty, _ := domain.NewQuantity("10")
	order, err := mgr.Submit(context.Background(), domain.MustSymbol("BTC-USDT"), domain.SideBuy, domain.OrderTypeMarket, qty, domain.Price{}, "strat-1", "")
	require.NoError(t, err)

	half, _ := domain.NewQuantity("5")
	price, _ := domain.NewPrice("50000")
	require.NoError(t, mgr.Fill(order.ClientOrderID, half, price, false))

	got, _ := mgr.Get(order.ClientOrderID)
	assert.Equal(t, domain.OrderPartiallyFilled, got.State)

	require.NoError(t, mgr.Fill(order.ClientOrderID, qty, price, true))
	got, _ = mgr.Get(order.ClientOrderID)
	assert.Equal(t, domain.OrderFilled, got.State)
}

func TestFillRejectsDecreasingQuantity(t *testing.T) {
	broker := &fakeBroker{placeResult: &okx.PlaceOrderResult{OrdID: "ex-3"}}
	mgr, _ := newTestManager(broker)

	qty, _ := domain.NewQuantity("10")
	order, err := mgr.Submit(context.Background(), domain.MustSymbol("BTC-USDT"), domain.SideBuy, domain.OrderTypeMarket, qty, domain.Price{}, "strat-1", "")
	require.NoError(t, err)

	five, _ := domain.NewQuantity("5")
	price, _ := domain.NewPrice("50000")
	require.NoError(t, mgr.Fill(order.ClientOrderID, five, price, false))

	three, _ := domain.NewQuantity("3")
	err = mgr.Fill(order.ClientOrderID, three, price, false)
	assert.Error(t, err)
}

func TestFillIsIdempotentOnDuplicateTerminalNotification(t *testing.T) {
	broker := &fakeBroker{placeResult: &okx.PlaceOrderResult{OrdID: "ex-4"}}
	mgr, _ := newTestManager(broker)

	qty, _ := domain.NewQuantity("1")
	order, err := mgr.Submit(context.Background(), domain.MustSymbol("BTC-USDT"), domain.SideBuy, domain.OrderTypeMarket, qty, domain.Price{}, "strat-1", "")
	require.NoError(t, err)

	price, _ := domain.NewPrice("50000")
	require.NoError(t, mgr.Fill(order.ClientOrderID, qty, price, true))
	require.NoError(t, mgr.Fill(order.ClientOrderID, qty, price, true))
}

type sliceRecorder struct {
	qtys []string
}

func (s *sliceRecorder) Submit(ctx context.Context, symbol domain.Symbol, side domain.OrderSide, typ domain.OrderType, qty domain.Quantity, price domain.Price, strategyID, parentOrderID string) (*domain.Order, error) {
	s.qtys = append(s.qtys, qty.String())
	return &domain.Order{ClientOrderID: "child", Quantity: qty}, nil
}

func TestTWAPRunSlicesEvenlyAndSumsToTotal(t *testing.T) {
	rec := &sliceRecorder{}
	total, _ := domain.NewQuantity("10")

	_, err := Run(context.Background(), TWAPSchedule{
		Symbol:   domain.MustSymbol("BTC-USDT"),
		Side:     domain.SideBuy,
		TotalQty: total,
		Slices:   4,
		Duration: 4 * time.Millisecond,
	}, rec, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, rec.qtys, 4)

	sum := domain.ZeroQuantity
	for _, q := range rec.qtys {
		qty, err := domain.NewQuantity(q)
		require.NoError(t, err)
		sum = sum.Add(qty)
	}
	assert.Equal(t, total.String(), sum.String())
}
