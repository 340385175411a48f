package monitoring

import (
	"testing"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/aristath/sentinel-okx/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry()
	r.Counter("orders_submitted").Inc(3)
	r.Counter("orders_submitted").Inc(2)
	assert.Equal(t, int64(5), r.Counter("orders_submitted").Value())

	r.Gauge("book_notional").Set(1234.5)
	assert.InDelta(t, 1234.5, r.Gauge("book_notional").Value(), 0.0001)
}

func TestHistogramQuantile(t *testing.T) {
	h := NewHistogram(100)
	for i := 1; i <= 100; i++ {
		h.Observe(float64(i))
	}
	assert.InDelta(t, 50, h.Quantile(0.5), 2)
}

func TestAlertFiresOnlyAfterPersistenceWindow(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var fired []events.AlertFiredData
	bus.Subscribe(func(e *events.Event) {
		fired = append(fired, *e.Data.(*events.AlertFiredData))
	}, events.AlertFired)

	ev := NewAlertEvaluator(bus, zerolog.Nop())
	breaching := true
	ev.Register(domain.AlertRule{Name: "r1", Severity: domain.AlertCritical, PersistFor: int64(60 * time.Second), CooldownFor: int64(30 * time.Second)},
		func() bool { return breaching })

	base := time.Now()
	ev.checkAll(base) // breach starts now, not yet persisted
	assert.Empty(t, fired)

	ev.checkAll(base.Add(30 * time.Second)) // still within persistence window
	assert.Empty(t, fired)

	ev.checkAll(base.Add(61 * time.Second)) // persisted past the window
	assert.Len(t, fired, 1)

	// Still breaching and within cooldown: must not re-fire even though
	// it would otherwise still satisfy the persistence window.
	ev.checkAll(base.Add(80 * time.Second)) // 19s after firing, cooldown not elapsed
	assert.Len(t, fired, 1)

	// Cooldown has elapsed (30s after firing at 61s = 91s), but the
	// persistence timer reset on firing, so it must persist again from
	// zero before it can re-fire.
	ev.checkAll(base.Add(100 * time.Second)) // cooldown elapsed, persistence only 39s
	assert.Len(t, fired, 1)

	ev.checkAll(base.Add(122 * time.Second)) // persistence now 61s since reset
	assert.Len(t, fired, 2)
}

func TestAlertResetsPersistenceWhenConditionClears(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var fired []events.AlertFiredData
	bus.Subscribe(func(e *events.Event) {
		fired = append(fired, *e.Data.(*events.AlertFiredData))
	}, events.AlertFired)

	ev := NewAlertEvaluator(bus, zerolog.Nop())
	breaching := true
	ev.Register(domain.AlertRule{Name: "r1", Severity: domain.AlertWarning, PersistFor: int64(time.Minute)},
		func() bool { return breaching })

	base := time.Now()
	ev.checkAll(base)
	breaching = false
	ev.checkAll(base.Add(50 * time.Second)) // cleared before persisting
	breaching = true
	ev.checkAll(base.Add(55 * time.Second)) // re-breaches, timer restarts
	ev.checkAll(base.Add(100 * time.Second))
	assert.Empty(t, fired)
	ev.checkAll(base.Add(116 * time.Second))
	assert.Len(t, fired, 1)
}
