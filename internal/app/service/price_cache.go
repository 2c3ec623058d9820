package service

import (
	"sync"
	"time"

	"token_ledger/internal/domain/entity"
)

// PriceCache holds the last successfully installed price map. The map is only ever replaced as a whole.
type PriceCache struct {
	mu        sync.RWMutex
	tickers   map[string]entity.PriceQuote
	updatedAt time.Time
}

// NewPriceCache returns an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{tickers: make(map[string]entity.PriceQuote)}
}

// Replace folds quotes into a new map keyed by contract and installs it. The last quote for a duplicate contract wins.
func (c *PriceCache) Replace(quotes []entity.PriceQuote) int {
	next := make(map[string]entity.PriceQuote, len(quotes))
	for _, q := range quotes {
		q.Contract = entity.NormalizeAddress(q.Contract)
		if q.Contract == "" {
			continue
		}
		next[q.Contract] = q
	}

	c.mu.Lock()
	c.tickers = next
	c.updatedAt = time.Now()
	c.mu.Unlock()
	return len(next)
}

// CoinTicker returns the cached quote of a contract. A missing quote is not an error.
func (c *PriceCache) CoinTicker(contract string) (entity.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.tickers[entity.NormalizeAddress(contract)]
	return q, ok
}

// Snapshot returns a copy of the installed map.
func (c *PriceCache) Snapshot() map[string]entity.PriceQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]entity.PriceQuote, len(c.tickers))
	for k, v := range c.tickers {
		out[k] = v
	}
	return out
}

// UpdatedAt is the install time of the current map, zero before the first successful cycle.
func (c *PriceCache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
