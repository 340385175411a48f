// Package backtest replays historical bars through a strategy under a
// simulated exchange: a cost model applies fees and slippage, a simulated
// portfolio tracks cash and positions, and a performance analyzer reduces
// the resulting trade log to the same metrics the live engine reports.
package backtest

import (
	"math"
	"sort"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/aristath/sentinel-okx/internal/marketdata"
	"github.com/aristath/sentinel-okx/internal/strategy"
	"github.com/shopspring/decimal"
)

// CostModel determines the fee and slippage applied to a simulated fill.
// MakerFeeRate/TakerFeeRate are fractions of notional (e.g. 0.0002 for
// 2bps); SlippageBps is applied against mid price in the direction
// adverse to the trade, approximating market impact.
type CostModel struct {
	TakerFeeRate decimal.Decimal
	MakerFeeRate decimal.Decimal
	SlippageBps  decimal.Decimal
}

// DefaultCostModel matches OKX's default taker/maker tier with a modest
// slippage assumption for market orders on liquid perpetuals.
func DefaultCostModel() CostModel {
	return CostModel{
		TakerFeeRate: decimal.NewFromFloat(0.0005),
		MakerFeeRate: decimal.NewFromFloat(0.0002),
		SlippageBps:  decimal.NewFromFloat(2),
	}
}

// FillPrice applies slippage to refPrice in the direction adverse to
// side: buys fill higher, sells fill lower.
func (c CostModel) FillPrice(refPrice domain.Price, side domain.OrderSide) domain.Price {
	bps := c.SlippageBps.Div(decimal.NewFromInt(10000))
	factor := decimal.NewFromInt(1).Add(bps)
	if side == domain.SideSell {
		factor = decimal.NewFromInt(1).Sub(bps)
	}
	p, err := refPrice.Mul(factor)
	if err != nil {
		return refPrice
	}
	return p
}

// Fee computes the fee owed on a fill of the given notional, using the
// taker rate (backtested market orders are always assumed to take
// liquidity, matching the conservative default in the cost model).
func (c CostModel) Fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(c.TakerFeeRate)
}

// SimulatedFill is one trade produced by the backtest engine.
type SimulatedFill struct {
	Symbol    domain.Symbol
	Side      domain.OrderSide
	Quantity  domain.Quantity
	Price     domain.Price
	Fee       decimal.Decimal
	Timestamp domain.Timestamp
}

// Portfolio tracks simulated cash and positions across a backtest run.
type Portfolio struct {
	Cash      decimal.Decimal
	Positions map[string]domain.Position
	Fills     []SimulatedFill
	equityCurve []decimal.Decimal
}

// NewPortfolio constructs a Portfolio seeded with startingCash.
func NewPortfolio(startingCash decimal.Decimal) *Portfolio {
	return &Portfolio{Cash: startingCash, Positions: make(map[string]domain.Position)}
}

// Apply records a fill against the portfolio, adjusting cash and the
// position for that symbol. The net position is signed (long positive,
// short negative) and stored as a non-negative Quantity plus Side.
func (p *Portfolio) Apply(fill SimulatedFill) {
	notional := fill.Quantity.Decimal().Mul(fill.Price.Decimal())
	signedQty := fill.Quantity.Decimal()
	if fill.Side == domain.SideSell {
		signedQty = signedQty.Neg()
		p.Cash = p.Cash.Add(notional).Sub(fill.Fee)
	} else {
		p.Cash = p.Cash.Sub(notional).Sub(fill.Fee)
	}

	pos := p.Positions[fill.Symbol.String()]
	pos.Symbol = fill.Symbol
	net := pos.Quantity.Decimal()
	if pos.Side == domain.PositionShort {
		net = net.Neg()
	}
	net = net.Add(signedQty)
	pos.Side = domain.PositionLong
	if net.Sign() < 0 {
		pos.Side = domain.PositionShort
	}
	pos.Quantity, _ = domain.NewQuantity(net.Abs().String())
	pos.MarkPrice = fill.Price
	p.Positions[fill.Symbol.String()] = pos

	p.Fills = append(p.Fills, fill)
}

// MarkEquity appends the portfolio's current mark-to-market equity (cash
// plus the notional value of every open position) to the equity curve.
func (p *Portfolio) MarkEquity() {
	equity := p.Cash
	for _, pos := range p.Positions {
		equity = equity.Add(pos.Quantity.Decimal().Mul(pos.MarkPrice.Decimal()))
	}
	p.equityCurve = append(p.equityCurve, equity)
}

// Engine replays a fixed sequence of bars through one strategy instance.
// Replay is single-threaded and deterministic: the same bars and the same
// strategy parameters always produce the same fills and the same metrics.
type Engine struct {
	cost CostModel
}

// NewEngine constructs a backtest Engine with the given cost model.
func NewEngine(cost CostModel) *Engine {
	return &Engine{cost: cost}
}

// Run replays bars in order through impl, applying every EnterLong/
// ExitLong signal as an immediate simulated market fill against that
// bar's close.
func (e *Engine) Run(impl strategy.Strategy, bars []marketdata.Bar, startingCash decimal.Decimal) (*Portfolio, error) {
	portfolio := NewPortfolio(startingCash)

	for _, bar := range bars {
		signals, err := impl.OnMarketData(bar)
		if err != nil {
			return portfolio, err
		}
		for _, sig := range signals {
			side := domain.SideBuy
			if sig.Kind == domain.SignalExitLong || sig.Kind == domain.SignalEnterShort {
				side = domain.SideSell
			}
			fillPrice := e.cost.FillPrice(bar.Close, side)
			notional := sig.Quantity.Decimal().Mul(fillPrice.Decimal())
			fill := SimulatedFill{
				Symbol: sig.Symbol, Side: side, Quantity: sig.Quantity, Price: fillPrice,
				Fee: e.cost.Fee(notional), Timestamp: bar.OpenTime,
			}
			portfolio.Apply(fill)
			_ = impl.OnOrderFill(events.OrderFilledData{FillQty: sig.Quantity, FillPrice: fillPrice, CumulativeQty: sig.Quantity, IsFinal: true})
		}
		portfolio.MarkEquity()
	}
	return portfolio, nil
}

// Report reduces a completed portfolio's equity curve and fill log into
// the same PerformanceMetrics shape the live engine's strategies report,
// so backtest and live results are directly comparable.
func Report(p *Portfolio, periodsPerYear float64) domain.PerformanceMetrics {
	returns := equityReturns(p.equityCurve)

	metrics := domain.PerformanceMetrics{
		TotalTrades: len(p.Fills),
	}

	grossPnL := decimal.Zero
	totalFees := decimal.Zero
	for _, f := range p.Fills {
		totalFees = totalFees.Add(f.Fee)
	}
	if len(p.equityCurve) > 0 {
		grossPnL = p.equityCurve[len(p.equityCurve)-1].Sub(p.equityCurve[0]).Add(totalFees)
	}
	metrics.GrossPnL = grossPnL
	metrics.TotalFees = totalFees
	metrics.NetPnL = grossPnL.Sub(totalFees)

	if len(returns) > 0 {
		mean, stddev := meanStdDev(returns)
		if stddev > 0 {
			metrics.SharpeRatio = (mean / stddev) * math.Sqrt(periodsPerYear)
		}
		downside := downsideStdDev(returns)
		if downside > 0 {
			metrics.SortinoRatio = (mean / downside) * math.Sqrt(periodsPerYear)
		}
	}

	metrics.MaxDrawdown = maxDrawdown(p.equityCurve)
	if !metrics.MaxDrawdown.IsZero() {
		annualReturn := decimal.Zero
		if len(p.equityCurve) > 1 && p.equityCurve[0].Sign() > 0 {
			totalReturn := p.equityCurve[len(p.equityCurve)-1].Div(p.equityCurve[0]).Sub(decimal.NewFromInt(1))
			periods := float64(len(p.equityCurve))
			years := periods / periodsPerYear
			if years > 0 {
				tr, _ := totalReturn.Float64()
				annualReturn = decimal.NewFromFloat(math.Pow(1+tr, 1/years) - 1)
			}
		}
		dd, _ := metrics.MaxDrawdown.Float64()
		if dd != 0 {
			ar, _ := annualReturn.Float64()
			metrics.CalmarRatio = ar / dd
		}
	}

	return metrics
}

func equityReturns(curve []decimal.Decimal) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].IsZero() {
			continue
		}
		r := curve[i].Sub(curve[i-1]).Div(curve[i-1])
		f, _ := r.Float64()
		out = append(out, f)
	}
	return out
}

func meanStdDev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}

func downsideStdDev(xs []float64) float64 {
	var negatives []float64
	for _, x := range xs {
		if x < 0 {
			negatives = append(negatives, x)
		}
	}
	if len(negatives) == 0 {
		return 0
	}
	variance := 0.0
	for _, x := range negatives {
		variance += x * x
	}
	variance /= float64(len(negatives))
	return math.Sqrt(variance)
}

func maxDrawdown(curve []decimal.Decimal) decimal.Decimal {
	if len(curve) == 0 {
		return decimal.Zero
	}
	peak := curve[0]
	maxDD := decimal.Zero
	for _, v := range curve {
		if v.GreaterThan(peak) {
			peak = v
		}
		if peak.Sign() <= 0 {
			continue
		}
		dd := peak.Sub(v).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}

// sortBarsByTime sorts bars ascending by open time, the ordering Run
// assumes; callers reading bars from storage must not assume the store
// returns them pre-sorted.
func sortBarsByTime(bars []marketdata.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].OpenTime.Before(bars[j].OpenTime) })
}
