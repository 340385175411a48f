package risk

import (
	"testing"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidatorFlagsOrderNotional(t *testing.T) {
	v := NewValidator(domain.RiskLimits{MaxOrderNotional: decimal.NewFromInt(1000)})
	violations := v.Validate(domain.Order{}, decimal.NewFromInt(5000), BookState{})
	assert.True(t, HasCritical(violations))
	assert.Equal(t, CheckOrderNotional, violations[0].Check)
}

func TestValidatorFlagsDailyLoss(t *testing.T) {
	v := NewValidator(domain.RiskLimits{MaxDailyLossLimit: decimal.NewFromInt(1000)})
	violations := v.Validate(domain.Order{}, decimal.Zero, BookState{RealizedDailyPnL: decimal.NewFromInt(-2000)})
	assert.True(t, HasCritical(violations))
}

func TestValidatorPassesWithinLimits(t *testing.T) {
	v := NewValidator(domain.RiskLimits{
		MaxOrderNotional:    decimal.NewFromInt(10000),
		MaxPositionNotional: decimal.NewFromInt(50000),
		MaxLeverage:         decimal.NewFromInt(5),
	})
	violations := v.Validate(domain.Order{}, decimal.NewFromInt(1000), BookState{CurrentLeverage: decimal.NewFromInt(2)})
	assert.False(t, HasCritical(violations))
}

func TestHistoricalVaRPositiveForLossyReturns(t *testing.T) {
	engine := NewEngine(0.95)
	positions := []PositionReturns{
		{Symbol: "BTC-USDT", Weight: 1.0, Returns: []float64{-0.05, -0.03, -0.01, 0.01, 0.02, 0.03, -0.08, 0.01, -0.02, 0.04}},
	}
	result := engine.Historical(positions)
	assert.Greater(t, result.ValueAtRisk, 0.0)
	assert.GreaterOrEqual(t, result.ExpectedShortfall, result.ValueAtRisk*0.5)
}

func TestParametricVaR(t *testing.T) {
	engine := NewEngine(0.99)
	positions := []PositionReturns{
		{Symbol: "ETH-USDT", Weight: 1.0, Returns: []float64{-0.02, 0.01, -0.01, 0.015, -0.005, 0.02, -0.03, 0.01}},
	}
	result := engine.Parametric(positions)
	assert.Equal(t, domain.VaRParametric, result.Method)
	assert.NotNil(t, result.ComponentVaR)
}

func TestMonteCarloVaRRunsDeterministicCount(t *testing.T) {
	engine := NewEngine(0.99)
	positions := []PositionReturns{
		{Symbol: "BTC-USDT", Weight: 0.6, Returns: []float64{-0.01, 0.02, -0.015, 0.01, -0.02}},
		{Symbol: "ETH-USDT", Weight: 0.4, Returns: []float64{-0.03, 0.01, -0.005, 0.02, -0.01}},
	}
	result := engine.MonteCarlo(positions, 1000)
	assert.Equal(t, domain.VaRMonteCarlo, result.Method)
	assert.Len(t, result.ComponentVaR, 2)
}
