package entity

import "strings"

// NativeContract is the sentinel contract of the chain's base currency pseudo-token.
const NativeContract = "0x"

// TokenKind distinguishes the native pseudo-token from contract-based tokens.
type TokenKind string

const (
	// TokenKindNative is the chain's base currency.
	TokenKindNative TokenKind = "native"
	// TokenKindERC20 is a contract-based token.
	TokenKindERC20 TokenKind = "erc20"
)

// Token is a persisted record describing a native or contract-based asset tracked for one account.
// Value is the raw balance as a non-negative integer literal; decimals are applied only at presentation time.
type Token struct {
	Contract   string    `json:"contract" yaml:"contract"`
	Owner      string    `json:"owner" yaml:"owner"`
	ChainID    uint64    `json:"chainId" yaml:"chainId"`
	Name       string    `json:"name" yaml:"name"`
	Symbol     string    `json:"symbol" yaml:"symbol"`
	Decimals   uint8     `json:"decimals" yaml:"decimals"`
	Value      string    `json:"value" yaml:"value"`
	IsCustom   bool      `json:"isCustom" yaml:"isCustom"`
	IsDisabled bool      `json:"isDisabled" yaml:"isDisabled"`
	Kind       TokenKind `json:"kind" yaml:"kind"`
}

// TokenKey identifies exactly one Token.
type TokenKey struct {
	Owner    string
	ChainID  uint64
	Contract string
}

// Key returns the identity of the token. Addresses compare case-insensitively.
func (t Token) Key() TokenKey {
	return TokenKey{
		Owner:    NormalizeAddress(t.Owner),
		ChainID:  t.ChainID,
		Contract: NormalizeAddress(t.Contract),
	}
}

// IsNative reports whether the token is the native pseudo-token.
func (t Token) IsNative() bool {
	return t.Kind == TokenKindNative || t.Contract == NativeContract
}

// NativeTokenSpec describes the native pseudo-token of a network.
type NativeTokenSpec struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// ListedToken is a token entry served by the remote token-list service.
type ListedToken struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NormalizeAddress lowercases and trims an address so it can be used as a key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
