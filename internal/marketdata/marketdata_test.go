package marketdata

import (
	"testing"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTick(t *testing.T, price string, when time.Time) Tick {
	t.Helper()
	p, err := domain.NewPrice(price)
	require.NoError(t, err)
	q, err := domain.NewQuantity("1")
	require.NoError(t, err)
	return Tick{Symbol: domain.MustSymbol("BTC-USDT"), Price: p, Volume: q, Time: domain.NewTimestamp(when)}
}

func TestQualityControlRejectsPriceJump(t *testing.T) {
	qc := NewQualityControl(DefaultQCConfig())
	now := time.Now()

	reason, ok := qc.Check(mustTick(t, "50000", now), now)
	assert.True(t, ok)
	assert.Empty(t, reason)

	reason, ok = qc.Check(mustTick(t, "100000", now.Add(time.Second)), now.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, RejectPriceJump, reason)
}

func TestQualityControlRejectsDuplicate(t *testing.T) {
	qc := NewQualityControl(DefaultQCConfig())
	now := time.Now()
	tick := mustTick(t, "50000", now)

	_, ok := qc.Check(tick, now)
	assert.True(t, ok)

	_, ok = qc.Check(tick, now)
	assert.False(t, ok)
}

func TestQualityControlRejectsFutureTimestamp(t *testing.T) {
	qc := NewQualityControl(DefaultQCConfig())
	now := time.Now()
	reason, ok := qc.Check(mustTick(t, "50000", now.Add(time.Hour)), now)
	assert.False(t, ok)
	assert.Equal(t, RejectTimestamp, reason)
}

func TestAggregatorEmitsClosedBar(t *testing.T) {
	var closed []Bar
	agg := NewAggregator(func(b Bar) { closed = append(closed, b) })

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	agg.Ingest(mustTick(t, "100", base))
	agg.Ingest(mustTick(t, "110", base.Add(30*time.Second)))
	agg.Ingest(mustTick(t, "90", base.Add(59*time.Second)))
	// crosses into the next minute, closing the first bar
	agg.Ingest(mustTick(t, "95", base.Add(61*time.Second)))

	require.NotEmpty(t, closed)
	first := closed[0]
	assert.Equal(t, "100", first.Open.String())
	assert.Equal(t, "110", first.High.String())
	assert.Equal(t, "90", first.Low.String())
	assert.Equal(t, "90", first.Close.String())
}

func TestLastPriceCacheExpiry(t *testing.T) {
	cache := NewLastPriceCache(time.Second)
	price, _ := domain.NewPrice("123.45")
	now := time.Now()
	cache.Set(domain.MustSymbol("BTC-USDT"), price, now)

	got, ok := cache.Get(domain.MustSymbol("BTC-USDT"), now)
	assert.True(t, ok)
	assert.Equal(t, price, got)

	_, ok = cache.Get(domain.MustSymbol("BTC-USDT"), now.Add(2*time.Second))
	assert.False(t, ok)
}
