package entity

// NetworkCapabilities is the static per-network capability row used by a full sync.
type NetworkCapabilities struct {
	// HasServerTokenList is true when the token-list service knows the network.
	HasServerTokenList bool `json:"hasServerTokenList" yaml:"hasServerTokenList"`
}

// NetworkDefinition holds the configuration for a specific blockchain network.
// This structure is defined at the domain level to be used across application and infrastructure layers.
type NetworkDefinition struct {
	ChainID                   uint64              `json:"chainId" yaml:"chainId"`
	Name                      string              `json:"name" yaml:"name"`
	Identifier                string              `json:"identifier" yaml:"identifier"`
	NativeName                string              `json:"nativeName" yaml:"nativeName"`
	NativeSymbol              string              `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals                  uint8               `json:"decimals" yaml:"decimals"`
	PrimaryRPCURL             string              `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs           []string            `json:"fallbackRpcUrls" yaml:"fallbackRpcUrls"`
	BlockExplorerURL          string              `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	DEXScreenerChainID        string              `json:"dexScreenerChainId,omitempty" yaml:"dexScreenerChainId,omitempty"`
	WrappedNativeTokenAddress string              `json:"wrappedNativeTokenAddress,omitempty" yaml:"wrappedNativeTokenAddress,omitempty"`
	Capabilities              NetworkCapabilities `json:"capabilities" yaml:"capabilities"`
}

// NativeSpec returns the native pseudo-token description of the network.
func (n NetworkDefinition) NativeSpec() NativeTokenSpec {
	decimals := n.Decimals
	if decimals == 0 {
		decimals = 18
	}
	name := n.NativeName
	if name == "" {
		name = n.Name
	}
	return NativeTokenSpec{Name: name, Symbol: n.NativeSymbol, Decimals: decimals}
}
