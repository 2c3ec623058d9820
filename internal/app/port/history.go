package port

import (
	"context"

	"token_ledger/internal/domain/entity"
)

// TransactionHistory is the ordered transaction history source of an account.
type TransactionHistory interface {
	Transactions(ctx context.Context, owner string) ([]entity.Transaction, error)
}
