package port

import (
	"context"
	"math/big"

	"token_ledger/internal/domain/entity"
)

// BalanceQuerier fetches on-chain balances for one account.
// Implementations will be specific to network types (e.g., EVM).
type BalanceQuerier interface {
	// GetNativeBalance fetches the native currency balance (e.g., ETH, BNB) for a wallet.
	GetNativeBalance(ctx context.Context, owner string) (*big.Int, error)

	// GetTokenBalance fetches the balance of a specific token contract for a wallet.
	GetTokenBalance(ctx context.Context, owner string, contract string) (*big.Int, error)
}

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	// GetAllNetworkDefinitions returns all available network definitions as a slice.
	GetAllNetworkDefinitions() []entity.NetworkDefinition

	// GetNetworkDefinitionByName returns a specific network definition by its identifier.
	GetNetworkDefinitionByName(nameOrIdentifier string) (entity.NetworkDefinition, bool)
}
