package risk

import (
	"math"
	"sort"

	"github.com/aristath/sentinel-okx/internal/domain"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// VaRResult is the output of one Value-at-Risk computation: the VaR
// threshold itself, the Expected Shortfall (average loss beyond that
// threshold), and each position's contribution to the portfolio figure.
type VaRResult struct {
	Method         domain.VaRMethod
	Confidence     float64
	ValueAtRisk    float64 // loss as a fraction of portfolio value (weighted returns); not scaled to a currency amount
	ExpectedShortfall float64
	ComponentVaR   map[string]float64 // symbol -> this position's share of ValueAtRisk
}

// Engine computes portfolio VaR/ES by one of three methods: Historical
// (empirical quantile of realized returns), Parametric (variance-
// covariance assuming normally distributed returns), or MonteCarlo
// (simulated normal draws scaled by the portfolio's estimated volatility).
type Engine struct {
	confidence float64
	rng        *distuv.Normal
}

// NewEngine constructs a VaR Engine at the given confidence level (e.g.
// 0.99 for 99%).
func NewEngine(confidence float64) *Engine {
	return &Engine{confidence: confidence, rng: &distuv.Normal{Mu: 0, Sigma: 1}}
}

// PositionReturns pairs a symbol's historical daily return series with
// its current notional weight in the portfolio.
type PositionReturns struct {
	Symbol  string
	Returns []float64 // daily fractional returns, most recent last
	Weight  float64   // this position's notional as a fraction of total portfolio notional
}

// Historical computes VaR/ES from the empirical distribution of the
// portfolio's historical returns (each day's portfolio return is the
// weighted sum of each position's return that day).
func (e *Engine) Historical(positions []PositionReturns) VaRResult {
	portfolioReturns := weightedPortfolioReturns(positions)
	if len(portfolioReturns) == 0 {
		return VaRResult{Method: domain.VaRHistorical, Confidence: e.confidence, ComponentVaR: map[string]float64{}}
	}

	sorted := append([]float64(nil), portfolioReturns...)
	sort.Float64s(sorted)

	tailProb := 1.0 - e.confidence
	idx := int(math.Ceil(float64(len(sorted)) * tailProb))
	if idx < 1 {
		idx = 1
	}
	if idx > len(sorted) {
		idx = len(sorted)
	}
	tail := sorted[:idx]

	varReturn := -tail[len(tail)-1]
	esReturn := -mean(tail)

	return VaRResult{
		Method:            domain.VaRHistorical,
		Confidence:        e.confidence,
		ValueAtRisk:       varReturn,
		ExpectedShortfall: esReturn,
		ComponentVaR:      componentVaR(positions, varReturn),
	}
}

// Parametric computes VaR/ES assuming the portfolio return is normally
// distributed with the mean/stddev observed in the position returns
// (variance-covariance method, ignoring cross-position correlation since
// the portfolio series already nets positions together).
func (e *Engine) Parametric(positions []PositionReturns) VaRResult {
	portfolioReturns := weightedPortfolioReturns(positions)
	if len(portfolioReturns) == 0 {
		return VaRResult{Method: domain.VaRParametric, Confidence: e.confidence, ComponentVaR: map[string]float64{}}
	}

	mu, sigma := stat.MeanStdDev(portfolioReturns, nil)
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - e.confidence)

	varReturn := -(mu + z*sigma)
	// Expected shortfall for a normal distribution beyond the z quantile.
	phi := math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)
	esReturn := -(mu - sigma*phi/(1-e.confidence))

	return VaRResult{
		Method:            domain.VaRParametric,
		Confidence:        e.confidence,
		ValueAtRisk:       varReturn,
		ExpectedShortfall: esReturn,
		ComponentVaR:      componentVaR(positions, varReturn),
	}
}

// MonteCarlo estimates VaR/ES by simulating n independent normal draws
// from the portfolio's observed mean/stddev, then taking the same
// empirical-quantile approach as Historical over the simulated sample.
func (e *Engine) MonteCarlo(positions []PositionReturns, n int) VaRResult {
	portfolioReturns := weightedPortfolioReturns(positions)
	if len(portfolioReturns) == 0 || n <= 0 {
		return VaRResult{Method: domain.VaRMonteCarlo, Confidence: e.confidence, ComponentVaR: map[string]float64{}}
	}

	mu, sigma := stat.MeanStdDev(portfolioReturns, nil)
	dist := distuv.Normal{Mu: mu, Sigma: sigma}

	simulated := make([]float64, n)
	for i := range simulated {
		simulated[i] = dist.Rand()
	}
	sort.Float64s(simulated)

	tailProb := 1.0 - e.confidence
	idx := int(math.Ceil(float64(n) * tailProb))
	if idx < 1 {
		idx = 1
	}
	tail := simulated[:idx]

	varReturn := -tail[len(tail)-1]
	esReturn := -mean(tail)

	return VaRResult{
		Method:            domain.VaRMonteCarlo,
		Confidence:        e.confidence,
		ValueAtRisk:       varReturn,
		ExpectedShortfall: esReturn,
		ComponentVaR:      componentVaR(positions, varReturn),
	}
}

func weightedPortfolioReturns(positions []PositionReturns) []float64 {
	if len(positions) == 0 {
		return nil
	}
	n := len(positions[0].Returns)
	for _, p := range positions {
		if len(p.Returns) != n {
			return nil // mismatched history lengths; caller must align series before calling
		}
	}
	if n == 0 {
		return nil
	}

	out := make([]float64, n)
	for _, p := range positions {
		for i, r := range p.Returns {
			out[i] += p.Weight * r
		}
	}
	return out
}

// componentVaR allocates the portfolio VaR across positions in
// proportion to their notional weight, the standard linear-allocation
// approximation when a full covariance decomposition isn't available.
func componentVaR(positions []PositionReturns, totalVaR float64) map[string]float64 {
	out := make(map[string]float64, len(positions))
	for _, p := range positions {
		out[p.Symbol] = p.Weight * totalVaR
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
