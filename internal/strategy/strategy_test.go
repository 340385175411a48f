package strategy

import (
	"testing"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/aristath/sentinel-okx/internal/marketdata"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopStrategy struct {
	initialized bool
}

func (s *noopStrategy) Initialize(params map[string]string) error { s.initialized = true; return nil }
func (s *noopStrategy) OnMarketData(bar marketdata.Bar) ([]domain.Signal, error) { return nil, nil }
func (s *noopStrategy) OnOrderFill(events.OrderFilledData) error { return nil }
func (s *noopStrategy) OnOrderReject(events.OrderRejectedData) error { return nil }
func (s *noopStrategy) GetMetrics() domain.PerformanceMetrics { return domain.PerformanceMetrics{} }
func (s *noopStrategy) SerializeState() ([]byte, error) { return []byte("{}"), nil }
func (s *noopStrategy) DeserializeState([]byte) error { return nil }
func (s *noopStrategy) Shutdown() error { return nil }

func TestRuntimeLifecycle(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	impl := &noopStrategy{}
	rt := NewRuntime(domain.StrategyRecord{ID: "s1"}, impl, bus, zerolog.Nop())

	require.NoError(t, rt.Validate())
	assert.True(t, impl.initialized)
	assert.Equal(t, domain.StrategyValidated, rt.Record().State)

	require.NoError(t, rt.Start())
	assert.Equal(t, domain.StrategyRunning, rt.Record().State)

	require.NoError(t, rt.Pause())
	assert.Equal(t, domain.StrategyPaused, rt.Record().State)

	require.NoError(t, rt.Stop())
	assert.Equal(t, domain.StrategyStopped, rt.Record().State)
}

func TestRuntimeRejectsInvalidTransition(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	rt := NewRuntime(domain.StrategyRecord{ID: "s2"}, &noopStrategy{}, bus, zerolog.Nop())
	err := rt.Start() // Draft -> Running is not legal
	assert.Error(t, err)
}

func TestMACrossoverInitializeRejectsBadPeriods(t *testing.T) {
	s := NewMACrossover("s1", domain.MustSymbol("BTC-USDT"))
	err := s.Initialize(map[string]string{"fast_period": "30", "slow_period": "10"})
	assert.Error(t, err)
}

func TestMACrossoverEmitsSignalOnCrossover(t *testing.T) {
	s := NewMACrossover("s1", domain.MustSymbol("BTC-USDT"))
	require.NoError(t, s.Initialize(map[string]string{"fast_period": "2", "slow_period": "3", "quantity": "1"}))

	base := time.Now()
	prices := []string{"100", "100", "100", "105", "110", "120", "130"}
	var lastSignals []domain.Signal
	for i, p := range prices {
		price, _ := domain.NewPrice(p)
		bar := marketdata.Bar{Symbol: s.symbol, Close: price, OpenTime: domain.NewTimestamp(base.Add(time.Duration(i) * time.Minute))}
		signals, err := s.OnMarketData(bar)
		require.NoError(t, err)
		if len(signals) > 0 {
			lastSignals = signals
		}
	}
	require.NotEmpty(t, lastSignals)
	assert.Equal(t, domain.SignalEnterLong, lastSignals[0].Kind)
}

func TestMACrossoverStateRoundTrip(t *testing.T) {
	s := NewMACrossover("s1", domain.MustSymbol("BTC-USDT"))
	require.NoError(t, s.Initialize(map[string]string{"fast_period": "2", "slow_period": "3"}))
	s.closes = []float64{1, 2, 3}
	s.inPosition = true

	data, err := s.SerializeState()
	require.NoError(t, err)

	restored := NewMACrossover("s1", domain.MustSymbol("BTC-USDT"))
	require.NoError(t, restored.Initialize(map[string]string{"fast_period": "2", "slow_period": "3"}))
	require.NoError(t, restored.DeserializeState(data))
	assert.Equal(t, s.closes, restored.closes)
	assert.True(t, restored.inPosition)
}
