// Package marketdata ingests raw exchange ticks, runs them through a
// quality-control pipeline, aggregates them into OHLCV bars, and serves a
// read-through last-price cache to the rest of the engine.
package marketdata

import (
	"container/list"
	"sync"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// Tick is one normalized trade print from the exchange, already decoded
// into domain value types.
type Tick struct {
	Symbol domain.Symbol
	Price  domain.Price
	Volume domain.Quantity
	Time   domain.Timestamp
}

// RejectReason names the QC stage that rejected a tick.
type RejectReason string

const (
	RejectSchema     RejectReason = "Schema"
	RejectTimestamp  RejectReason = "Timestamp"
	RejectDuplicate  RejectReason = "Duplicate"
	RejectPriceJump  RejectReason = "PriceJump"
	RejectZScore     RejectReason = "ZScore"
)

// QCConfig tunes the quality-control pipeline's thresholds.
type QCConfig struct {
	MaxClockSkew     time.Duration // reject ticks timestamped further in the future than this
	MaxPriceJumpPct  float64       // reject a tick more than this fraction away from the last accepted price
	ZScoreWindow     int           // number of recent returns used for the z-score check
	ZScoreThreshold  float64       // reject a return whose |z| exceeds this
	DedupeWindowSize int           // LRU capacity for duplicate-tick suppression
}

// DefaultQCConfig matches the thresholds used by the engine by default.
func DefaultQCConfig() QCConfig {
	return QCConfig{
		MaxClockSkew:     2 * time.Second,
		MaxPriceJumpPct:  0.20,
		ZScoreWindow:     100,
		ZScoreThreshold:  6.0,
		DedupeWindowSize: 1000,
	}
}

// lruSet is a fixed-capacity set used to suppress duplicate ticks
// (identical symbol+price+volume+timestamp seen twice, e.g. on stream
// replay after reconnection).
type lruSet struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
	mu       sync.Mutex
}

func newLRUSet(capacity int) *lruSet {
	return &lruSet{capacity: capacity, order: list.New(), index: make(map[string]*list.Element)}
}

// seen reports whether key was already recorded, and records it either
// way, evicting the oldest key once capacity is exceeded.
func (s *lruSet) seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[key]; ok {
		s.order.MoveToFront(el)
		return true
	}

	el := s.order.PushFront(key)
	s.index[key] = el
	if s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.index, oldest.Value.(string))
		}
	}
	return false
}

// symbolState tracks the per-symbol history the QC pipeline needs: the
// last accepted price (for the jump check) and a rolling window of
// absolute fractional price moves (for the z-score check).
type symbolState struct {
	lastPrice domain.Price
	returns   []float64
}

// QualityControl runs incoming ticks through five stages: schema
// validation (handled by the caller via domain constructors before a Tick
// even reaches here), timestamp sanity, duplicate suppression, a
// percentage price-jump bound, and a z-score anomaly check against recent
// returns.
type QualityControl struct {
	cfg    QCConfig
	dedupe *lruSet

	mu     sync.Mutex
	states map[string]*symbolState
}

// NewQualityControl constructs a QC pipeline.
func NewQualityControl(cfg QCConfig) *QualityControl {
	return &QualityControl{
		cfg:    cfg,
		dedupe: newLRUSet(cfg.DedupeWindowSize),
		states: make(map[string]*symbolState),
	}
}

// Check runs a tick through the pipeline, returning ("", true) if it
// passes, or the rejecting stage and false otherwise. Accepted ticks
// update the per-symbol history used by later checks.
func (q *QualityControl) Check(t Tick, now time.Time) (RejectReason, bool) {
	if t.Symbol.IsZero() || t.Price.IsZero() {
		return RejectSchema, false
	}

	if t.Time.Time().After(now.Add(q.cfg.MaxClockSkew)) {
		return RejectTimestamp, false
	}

	key := t.Symbol.String() + "|" + t.Price.String() + "|" + t.Volume.String() + "|" + t.Time.Time().Format(time.RFC3339Nano)
	if q.dedupe.seen(key) {
		return RejectDuplicate, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.states[t.Symbol.String()]
	if !ok {
		st = &symbolState{}
		q.states[t.Symbol.String()] = st
	}

	if !st.lastPrice.IsZero() {
		last, _ := st.lastPrice.Decimal().Float64()
		cur, _ := t.Price.Decimal().Float64()
		if last > 0 {
			pctMove := (cur - last) / last
			if pctMove < 0 {
				pctMove = -pctMove
			}
			if pctMove > q.cfg.MaxPriceJumpPct {
				return RejectPriceJump, false
			}

			logReturn := pctMove // already a fractional move; sign doesn't matter for the z-score magnitude check
			st.returns = append(st.returns, logReturn)
			if len(st.returns) > q.cfg.ZScoreWindow {
				st.returns = st.returns[len(st.returns)-q.cfg.ZScoreWindow:]
			}

			if len(st.returns) >= 10 {
				mean, stddev := stat.MeanStdDev(st.returns, nil)
				if stddev > 0 {
					z := (logReturn - mean) / stddev
					if z < 0 {
						z = -z
					}
					if z > q.cfg.ZScoreThreshold {
						return RejectZScore, false
					}
				}
			}
		}
	}

	st.lastPrice = t.Price
	return "", true
}
