package port

import (
	"context"

	"token_ledger/internal/domain/entity"
)

// PriceQuerier fetches fiat quotes for a batch of tokens.
// Coverage may be partial: tokens without a quote are simply absent from the result.
type PriceQuerier interface {
	GetPrices(ctx context.Context, currency string, tokens []entity.PriceRequestToken) ([]entity.PriceQuote, error)
}

// TokenListProvider returns the server-side token list of an account.
type TokenListProvider interface {
	GetTokens(ctx context.Context, owner string) ([]entity.ListedToken, error)
}
