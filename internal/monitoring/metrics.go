// Package monitoring implements the engine's counters/gauges/histograms
// and the alert-rule evaluator that watches them. No metrics library is
// introduced here: plain structs backed by atomics, read by an external
// HTTP handler, matching the teacher's own approach since nothing in the
// example pack's own dependency set covers this concern.
package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing value, safe for concurrent use.
type Counter struct {
	v atomic.Int64
}

// Inc increments the counter by delta.
func (c *Counter) Inc(delta int64) { c.v.Add(delta) }

// Value returns the counter's current value.
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge is an arbitrary up/down value, safe for concurrent use.
type Gauge struct {
	v atomic.Int64 // stores the value * 1e8 to retain sub-integer precision without floats racing
}

// Set stores v (scaled) as the gauge's current value.
func (g *Gauge) Set(v float64) { g.v.Store(int64(v * 1e8)) }

// Value returns the gauge's current value.
func (g *Gauge) Value() float64 { return float64(g.v.Load()) / 1e8 }

// Histogram tracks a bounded window of observations for latency/size
// distributions, reporting simple quantiles on demand. Not intended for
// high-cardinality or very-high-throughput series; the engine's own
// per-order and per-tick latencies fit comfortably within maxSamples.
type Histogram struct {
	mu         sync.Mutex
	samples    []float64
	maxSamples int
	next       int
}

// NewHistogram constructs a Histogram retaining at most maxSamples
// observations in a ring buffer.
func NewHistogram(maxSamples int) *Histogram {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &Histogram{maxSamples: maxSamples}
}

// Observe records one sample.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) < h.maxSamples {
		h.samples = append(h.samples, v)
		return
	}
	h.samples[h.next] = v
	h.next = (h.next + 1) % h.maxSamples
}

// Quantile returns the q-th quantile (0..1) of the retained samples, or
// 0 if none have been observed.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), h.samples...)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Registry groups the engine's named metrics for export by an external
// HTTP handler.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[name]
	if !ok {
		c = &Counter{}
		r.counters[name] = c
	}
	return c
}

// Gauge returns the named gauge, creating it on first use.
func (r *Registry) Gauge(name string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gauges[name]
	if !ok {
		g = &Gauge{}
		r.gauges[name] = g
	}
	return g
}

// Histogram returns the named histogram, creating it (with maxSamples
// retention) on first use.
func (r *Registry) Histogram(name string, maxSamples int) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histograms[name]
	if !ok {
		h = NewHistogram(maxSamples)
		r.histograms[name] = h
	}
	return h
}

// Snapshot is a point-in-time export of every registered metric's
// current value, for an HTTP handler to serialize.
type Snapshot struct {
	Counters map[string]int64
	Gauges   map[string]float64
}

// Snapshot captures the current value of every counter and gauge.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{Counters: make(map[string]int64, len(r.counters)), Gauges: make(map[string]float64, len(r.gauges))}
	for name, c := range r.counters {
		s.Counters[name] = c.Value()
	}
	for name, g := range r.gauges {
		s.Gauges[name] = g.Value()
	}
	return s
}
