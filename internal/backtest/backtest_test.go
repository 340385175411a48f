package backtest

import (
	"testing"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/marketdata"
	"github.com/aristath/sentinel-okx/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBars(t *testing.T, closes []string) []marketdata.Bar {
	t.Helper()
	base := time.Now()
	bars := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		p, err := domain.NewPrice(c)
		require.NoError(t, err)
		bars[i] = marketdata.Bar{
			Symbol: domain.MustSymbol("BTC-USDT"), Close: p, Open: p, High: p, Low: p,
			OpenTime: domain.NewTimestamp(base.Add(time.Duration(i) * time.Minute)),
		}
	}
	return bars
}

func TestBacktestIsDeterministic(t *testing.T) {
	closes := []string{"100", "100", "100", "105", "110", "120", "130", "120", "110", "100"}
	bars := buildBars(t, closes)

	runOnce := func() domain.PerformanceMetrics {
		impl := strategy.NewMACrossover("s1", domain.MustSymbol("BTC-USDT"))
		require.NoError(t, impl.Initialize(map[string]string{"fast_period": "2", "slow_period": "3", "quantity": "1"}))
		engine := NewEngine(DefaultCostModel())
		portfolio, err := engine.Run(impl, bars, decimal.NewFromInt(100000))
		require.NoError(t, err)
		return Report(portfolio, 365)
	}

	m1 := runOnce()
	m2 := runOnce()
	assert.Equal(t, m1, m2)
}

func TestCostModelAppliesAdverseSlippage(t *testing.T) {
	cost := DefaultCostModel()
	ref, _ := domain.NewPrice("100")
	buyFill := cost.FillPrice(ref, domain.SideBuy)
	sellFill := cost.FillPrice(ref, domain.SideSell)

	assert.True(t, buyFill.GreaterThan(ref))
	assert.True(t, sellFill.LessThan(ref))
}

func TestMaxDrawdownComputation(t *testing.T) {
	curve := []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(120), decimal.NewFromInt(90), decimal.NewFromInt(110),
	}
	dd := maxDrawdown(curve)
	expected := decimal.NewFromInt(30).Div(decimal.NewFromInt(120))
	assert.True(t, dd.Sub(expected).Abs().LessThan(decimal.NewFromFloat(0.0001)))
}
