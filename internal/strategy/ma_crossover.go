package strategy

import (
	"fmt"
	"strconv"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/aristath/sentinel-okx/internal/marketdata"
	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// MACrossover is a reference strategy: it goes long when the fast SMA
// crosses above the slow SMA and flat when it crosses back below,
// trading a fixed quantity per crossover.
type MACrossover struct {
	symbol    domain.Symbol
	fastLen   int
	slowLen   int
	qty       domain.Quantity
	strategyID string

	closes    []float64
	wasAbove  bool
	hasPrior  bool
	inPosition bool
	metrics   domain.PerformanceMetrics
}

// NewMACrossover constructs an uninitialized MACrossover; call Initialize
// before use.
func NewMACrossover(strategyID string, symbol domain.Symbol) *MACrossover {
	return &MACrossover{strategyID: strategyID, symbol: symbol}
}

// Initialize reads "fast_period", "slow_period", and "quantity" out of
// params, defaulting to 10/30/1 respectively.
func (s *MACrossover) Initialize(params map[string]string) error {
	s.fastLen = intParam(params, "fast_period", 10)
	s.slowLen = intParam(params, "slow_period", 30)
	if s.fastLen >= s.slowLen {
		return domain.NewError(domain.ErrInvalidInput, "fast_period must be less than slow_period")
	}

	qtyStr := params["quantity"]
	if qtyStr == "" {
		qtyStr = "1"
	}
	qty, err := domain.NewQuantity(qtyStr)
	if err != nil {
		return err
	}
	s.qty = qty
	return nil
}

func intParam(params map[string]string, key string, fallback int) int {
	if v, ok := params[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// OnMarketData appends the bar's close to the rolling window and emits an
// EnterLong/ExitLong signal on an SMA crossover.
func (s *MACrossover) OnMarketData(bar marketdata.Bar) ([]domain.Signal, error) {
	closeF, _ := bar.Close.Decimal().Float64()
	s.closes = append(s.closes, closeF)
	if len(s.closes) > s.slowLen*4 {
		s.closes = s.closes[len(s.closes)-s.slowLen*4:]
	}
	if len(s.closes) < s.slowLen {
		return nil, nil
	}

	fastSMA := talib.Sma(s.closes, s.fastLen)
	slowSMA := talib.Sma(s.closes, s.slowLen)
	fast := fastSMA[len(fastSMA)-1]
	slow := slowSMA[len(slowSMA)-1]
	if fast == 0 && slow == 0 {
		return nil, nil
	}

	above := fast > slow
	defer func() { s.wasAbove, s.hasPrior = above, true }()

	if !s.hasPrior {
		return nil, nil
	}
	if above == s.wasAbove {
		return nil, nil
	}

	var sig domain.Signal
	if above && !s.inPosition {
		sig = domain.Signal{StrategyID: s.strategyID, Symbol: s.symbol, Kind: domain.SignalEnterLong, Quantity: s.qty, Algo: domain.ExecAlgoNative, Reason: fmt.Sprintf("fast SMA(%d) crossed above slow SMA(%d)", s.fastLen, s.slowLen), EmittedAt: bar.OpenTime}
		s.inPosition = true
	} else if !above && s.inPosition {
		sig = domain.Signal{StrategyID: s.strategyID, Symbol: s.symbol, Kind: domain.SignalExitLong, Quantity: s.qty, Algo: domain.ExecAlgoNative, Reason: fmt.Sprintf("fast SMA(%d) crossed below slow SMA(%d)", s.fastLen, s.slowLen), EmittedAt: bar.OpenTime}
		s.inPosition = false
	} else {
		return nil, nil
	}

	return []domain.Signal{sig}, nil
}

// OnOrderFill updates realized trade statistics.
func (s *MACrossover) OnOrderFill(fill events.OrderFilledData) error {
	if fill.IsFinal {
		s.metrics.TotalTrades++
	}
	return nil
}

// OnOrderReject is a no-op: the strategy simply waits for the next
// crossover rather than retrying a rejected signal itself.
func (s *MACrossover) OnOrderReject(events.OrderRejectedData) error { return nil }

// GetMetrics returns the strategy's running performance snapshot.
func (s *MACrossover) GetMetrics() domain.PerformanceMetrics { return s.metrics }

type maCrossoverState struct {
	Closes     []float64
	WasAbove   bool
	HasPrior   bool
	InPosition bool
	GrossPnL   string
	NetPnL     string
}

// SerializeState captures the rolling close window and crossover state so
// a hot-reloaded instance resumes without a discontinuity.
func (s *MACrossover) SerializeState() ([]byte, error) {
	return marshalState(maCrossoverState{
		Closes: s.closes, WasAbove: s.wasAbove, HasPrior: s.hasPrior, InPosition: s.inPosition,
		GrossPnL: s.metrics.GrossPnL.String(), NetPnL: s.metrics.NetPnL.String(),
	})
}

// DeserializeState restores a previously captured state.
func (s *MACrossover) DeserializeState(data []byte) error {
	var st maCrossoverState
	if err := unmarshalState(data, &st); err != nil {
		return err
	}
	s.closes, s.wasAbove, s.hasPrior, s.inPosition = st.Closes, st.WasAbove, st.HasPrior, st.InPosition
	if st.GrossPnL != "" {
		if d, err := decimal.NewFromString(st.GrossPnL); err == nil {
			s.metrics.GrossPnL = d
		}
	}
	if st.NetPnL != "" {
		if d, err := decimal.NewFromString(st.NetPnL); err == nil {
			s.metrics.NetPnL = d
		}
	}
	return nil
}

// Shutdown has nothing to flush; the strategy holds no external
// resources.
func (s *MACrossover) Shutdown() error { return nil }
