package marketdata

import (
	"sync"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
)

// Bar is one OHLCV candle for a symbol over a fixed interval.
type Bar struct {
	Symbol    domain.Symbol
	Interval  time.Duration
	OpenTime  domain.Timestamp
	Open      domain.Price
	High      domain.Price
	Low       domain.Price
	Close     domain.Price
	Volume    domain.Quantity
}

// rollupLevels is the fixed rollup ladder: every level above the base
// aggregates the closed base bars that fall in its bucket, preserving
// first-open/last-close/max-high/min-low/sum-volume at every level.
var rollupLevels = []time.Duration{
	time.Minute,
	5 * time.Minute,
	time.Hour,
	24 * time.Hour,
}

type seriesKey struct {
	symbol   string
	interval time.Duration
}

// Aggregator builds OHLCV bars from accepted ticks at the base (1m)
// interval, then rolls each closed bar up through the ladder.
type Aggregator struct {
	mu      sync.Mutex
	current map[seriesKey]*Bar
	onClose func(Bar)
}

// NewAggregator constructs an Aggregator. onClose is invoked once per
// finished bar at every level in the rollup ladder.
func NewAggregator(onClose func(Bar)) *Aggregator {
	return &Aggregator{current: make(map[seriesKey]*Bar), onClose: onClose}
}

// Ingest folds an accepted tick into the base 1-minute bar, closing and
// emitting the previous bar (and rolling it up the ladder) when the tick
// crosses into a new minute.
func (a *Aggregator) Ingest(t Tick) {
	a.mu.Lock()
	defer a.mu.Unlock()

	base := rollupLevels[0]
	openTime := t.Time.Time().Truncate(base)
	key := seriesKey{symbol: t.Symbol.String(), interval: base}

	bar, ok := a.current[key]
	if !ok || !bar.OpenTime.Time().Equal(openTime) {
		if ok {
			a.closeAndRollup(*bar)
		}
		bar = &Bar{
			Symbol:   t.Symbol,
			Interval: base,
			OpenTime: domain.NewTimestamp(openTime),
			Open:     t.Price,
			High:     t.Price,
			Low:      t.Price,
			Close:    t.Price,
			Volume:   t.Volume,
		}
		a.current[key] = bar
		return
	}

	if t.Price.GreaterThan(bar.High) {
		bar.High = t.Price
	}
	if t.Price.LessThan(bar.Low) {
		bar.Low = t.Price
	}
	bar.Close = t.Price
	bar.Volume = bar.Volume.Add(t.Volume)
}

// closeAndRollup emits the finished base bar, then folds it into the open
// bar at every higher level, first emitting any higher-level bar whose
// bucket the base bar has moved past.
func (a *Aggregator) closeAndRollup(closed Bar) {
	if a.onClose != nil {
		a.onClose(closed)
	}

	prevLevelBar := closed
	for _, interval := range rollupLevels[1:] {
		key := seriesKey{symbol: closed.Symbol.String(), interval: interval}
		openTime := closed.OpenTime.Time().Truncate(interval)

		bar, ok := a.current[key]
		if !ok || !bar.OpenTime.Time().Equal(openTime) {
			if ok {
				a.closeHigherLevel(*bar)
			}
			a.current[key] = &Bar{
				Symbol:   closed.Symbol,
				Interval: interval,
				OpenTime: domain.NewTimestamp(openTime),
				Open:     prevLevelBar.Open,
				High:     prevLevelBar.High,
				Low:      prevLevelBar.Low,
				Close:    prevLevelBar.Close,
				Volume:   prevLevelBar.Volume,
			}
			continue
		}

		if prevLevelBar.High.GreaterThan(bar.High) {
			bar.High = prevLevelBar.High
		}
		if prevLevelBar.Low.LessThan(bar.Low) {
			bar.Low = prevLevelBar.Low
		}
		bar.Close = prevLevelBar.Close
		bar.Volume = bar.Volume.Add(prevLevelBar.Volume)
	}
}

// closeHigherLevel emits a finished bar at a level above the base; there
// is nothing further to roll it into beyond the ladder's top.
func (a *Aggregator) closeHigherLevel(bar Bar) {
	if a.onClose != nil {
		a.onClose(bar)
	}
}
