package entity

import "github.com/shopspring/decimal"

// PriceQuote is the last known fiat price of one token. It only lives in memory.
type PriceQuote struct {
	Contract string          `json:"contract"`
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
}

// PriceRequestToken is one entry of a batched price request.
type PriceRequestToken struct {
	Contract string `json:"contract"`
	Symbol   string `json:"symbol"`
}
