package service

import (
	"testing"

	"token_ledger/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceCache_ReplaceLastDuplicateWins(t *testing.T) {
	t.Parallel()
	cache := NewPriceCache()
	assert.True(t, cache.UpdatedAt().IsZero())

	n := cache.Replace([]entity.PriceQuote{
		{Contract: "0xA", Currency: "USD", Price: decimal.RequireFromString("1")},
		{Contract: "0xa", Currency: "USD", Price: decimal.RequireFromString("2.5")},
		{Contract: "", Currency: "USD", Price: decimal.RequireFromString("9")},
	})
	assert.Equal(t, 1, n)

	q, ok := cache.CoinTicker("0xA")
	assert.True(t, ok)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("2.5")))
	assert.False(t, cache.UpdatedAt().IsZero())

	_, ok = cache.CoinTicker("0xB")
	assert.False(t, ok)
}

func TestPriceCache_ReplaceDropsPreviousMap(t *testing.T) {
	t.Parallel()
	cache := NewPriceCache()
	cache.Replace([]entity.PriceQuote{{Contract: "0xa", Price: decimal.NewFromInt(1)}})
	cache.Replace([]entity.PriceQuote{{Contract: "0xb", Price: decimal.NewFromInt(2)}})

	_, ok := cache.CoinTicker("0xa")
	assert.False(t, ok)
	assert.Len(t, cache.Snapshot(), 1)
}

func TestPriceCache_SnapshotIsACopy(t *testing.T) {
	t.Parallel()
	cache := NewPriceCache()
	cache.Replace([]entity.PriceQuote{{Contract: "0xa", Price: decimal.NewFromInt(1)}})

	snap := cache.Snapshot()
	delete(snap, "0xa")

	_, ok := cache.CoinTicker("0xa")
	assert.True(t, ok)
}
