package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchStrings(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, BatchStrings(items, 2))
	assert.Equal(t, [][]string{items}, BatchStrings(items, 0))
	assert.Empty(t, BatchStrings(nil, 3))
}

func TestSafeDeref(t *testing.T) {
	type liquidity struct{ usd float64 }
	get := func(l liquidity) float64 { return l.usd }

	assert.Equal(t, 0.0, SafeDeref[liquidity](nil, get))
	assert.Equal(t, 12.5, SafeDeref(&liquidity{usd: 12.5}, get))
}
