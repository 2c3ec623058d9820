package port

import (
	"context"

	"token_ledger/internal/domain/entity"
)

// TokenRepository is the persistence engine behind the token store.
type TokenRepository interface {
	// LoadTokens returns every persisted token of the account.
	LoadTokens(ctx context.Context, owner string, chainID uint64) ([]entity.Token, error)

	// SaveTokens replaces the persisted rows of the account with tokens in one transaction.
	// Either all rows are stored or none.
	SaveTokens(ctx context.Context, owner string, chainID uint64, tokens []entity.Token) error

	// SaveToken inserts or replaces the single row of token.Contract, leaving the other rows untouched.
	SaveToken(ctx context.Context, owner string, chainID uint64, token entity.Token) error
}
