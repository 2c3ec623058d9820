package entity

import "time"

// Snapshot is the read-only view of enabled tokens plus their latest cached price quotes.
type Snapshot struct {
	Tokens  []Token               `json:"tokens"`
	Tickers map[string]PriceQuote `json:"tickers"`
}

// Ticker returns the quote cached for a contract, if any.
func (s Snapshot) Ticker(contract string) (PriceQuote, bool) {
	q, ok := s.Tickers[NormalizeAddress(contract)]
	return q, ok
}

// FailureKind is a typed hard failure delivered to subscribers instead of a snapshot.
type FailureKind string

// FailedToFetch signals that a caller could not fetch the data it needed.
const FailedToFetch FailureKind = "failedToFetch"

// RefreshEventKind classifies an absorbed refresh failure.
type RefreshEventKind string

const (
	EventTokenBalanceFailed  RefreshEventKind = "token_balance_failed"
	EventNativeBalanceFailed RefreshEventKind = "native_balance_failed"
	EventPriceRefreshFailed  RefreshEventKind = "price_refresh_failed"
	EventTokenListFailed     RefreshEventKind = "token_list_failed"
)

// RefreshEvent describes a failure that was absorbed at its origin. The stale value was kept.
type RefreshEvent struct {
	Kind     RefreshEventKind
	Contract string
	Err      error
	At       time.Time
}
