package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"token_ledger/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
	})
}

// EVMClient answers balance queries for one EVM-compatible network.
type EVMClient struct {
	rpcClient      *rpc.Client
	netDef         entity.NetworkDefinition
	rpcCallTimeout time.Duration
}

// NewEVMClient dials the primary RPC URL of netDef and then each fallback until one succeeds.
func NewEVMClient(netDef entity.NetworkDefinition, connectionTimeout, rpcCallTimeout time.Duration) (*EVMClient, error) {
	rpcURLs := append([]string{netDef.PrimaryRPCURL}, netDef.FallbackRPCURLs...)
	var lastErr error

	for _, rpcURL := range rpcURLs {
		if strings.TrimSpace(rpcURL) == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		ec, err := ethclient.DialContext(ctx, rpcURL)
		cancel()

		if err == nil {
			return NewEVMClientFromRPC(ec.Client(), netDef, rpcCallTimeout), nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	if lastErr == nil {
		lastErr = errors.New("no RPC URL configured")
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

// NewEVMClientFromRPC wraps an already connected RPC client.
func NewEVMClientFromRPC(rpcClient *rpc.Client, netDef entity.NetworkDefinition, rpcCallTimeout time.Duration) *EVMClient {
	initParsedERC20ABI()
	if rpcCallTimeout <= 0 {
		rpcCallTimeout = 10 * time.Second
	}
	return &EVMClient{rpcClient: rpcClient, netDef: netDef, rpcCallTimeout: rpcCallTimeout}
}

// GetNativeBalance returns eth_getBalance of owner at the latest block.
func (c *EVMClient) GetNativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner address %q", owner)
	}
	ctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	var result hexutil.Big
	if err := c.rpcClient.CallContext(ctx, &result, "eth_getBalance", common.HexToAddress(owner), "latest"); err != nil {
		return nil, fmt.Errorf("eth_getBalance on %s: %w", c.netDef.Name, err)
	}
	return (*big.Int)(&result), nil
}

// GetTokenBalance returns the ERC20 balanceOf(owner) of contract at the latest block.
func (c *EVMClient) GetTokenBalance(ctx context.Context, owner, contract string) (*big.Int, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner address %q", owner)
	}
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid token contract %q", contract)
	}
	callData, err := parsedERC20ABI.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	callArgs := map[string]interface{}{
		"to":   common.HexToAddress(contract),
		"data": hexutil.Bytes(callData),
	}
	var result hexutil.Bytes
	if err := c.rpcClient.CallContext(ctx, &result, "eth_call", callArgs, "latest"); err != nil {
		return nil, fmt.Errorf("eth_call balanceOf %s on %s: %w", contract, c.netDef.Name, err)
	}
	if len(result) == 0 {
		return big.NewInt(0), nil
	}

	unpacked, err := parsedERC20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result for %s: %w. Raw: %s", contract, err, hexutil.Encode(result))
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("balanceOf unpack returned no data for %s", contract)
	}
	balance, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to assert unpacked balanceOf result to *big.Int for %s. Got: %T", contract, unpacked[0])
	}
	return balance, nil
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

// Close releases the underlying connection.
func (c *EVMClient) Close() {
	c.rpcClient.Close()
}
