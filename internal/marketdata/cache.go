package marketdata

import (
	"sync"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
)

// priceEntry is one cached last-price observation with its insertion time,
// used to expire stale entries.
type priceEntry struct {
	price    domain.Price
	observed time.Time
}

// LastPriceCache is a TTL-expiring cache of each symbol's most recent
// accepted price. Get reports an entry older than the TTL as missing;
// expired entries are not removed from the map.
type LastPriceCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	prices map[string]priceEntry
}

// NewLastPriceCache constructs a cache whose entries expire after ttl.
func NewLastPriceCache(ttl time.Duration) *LastPriceCache {
	return &LastPriceCache{ttl: ttl, prices: make(map[string]priceEntry)}
}

// Set records sym's latest price.
func (c *LastPriceCache) Set(sym domain.Symbol, price domain.Price, observed time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[sym.String()] = priceEntry{price: price, observed: observed}
}

// Get returns sym's cached price if present and not yet expired.
func (c *LastPriceCache) Get(sym domain.Symbol, now time.Time) (domain.Price, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.prices[sym.String()]
	if !ok {
		return domain.Price{}, false
	}
	if now.Sub(e.observed) > c.ttl {
		return domain.Price{}, false
	}
	return e.price, true
}
