package client

import (
	"fmt"
	"sync"
	"time"

	"token_ledger/internal/domain/entity"

	"go.uber.org/zap"
)

const defaultProviderConnectionTimeout = 10 * time.Second

// EVMClientProvider dials and caches one EVMClient per chain.
type EVMClientProvider struct {
	clients           map[uint64]*EVMClient
	mu                sync.Mutex
	logger            *zap.Logger
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration
}

// NewEVMClientProvider creates a provider. Zero timeouts fall back to defaults.
func NewEVMClientProvider(logger *zap.Logger, connectionTimeout, rpcCallTimeout time.Duration) *EVMClientProvider {
	if connectionTimeout <= 0 {
		connectionTimeout = defaultProviderConnectionTimeout
	}
	return &EVMClientProvider{
		clients:           make(map[uint64]*EVMClient),
		logger:            logger.Named("EVMClientProvider"),
		connectionTimeout: connectionTimeout,
		rpcCallTimeout:    rpcCallTimeout,
	}
}

// GetClient returns the cached client of netDef, dialing it on first use.
func (p *EVMClientProvider) GetClient(netDef entity.NetworkDefinition) (*EVMClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[netDef.ChainID]; exists {
		return client, nil
	}

	p.logger.Info("Creating new EVM client", zap.String("network", netDef.Name), zap.String("rpcPrimary", netDef.PrimaryRPCURL))
	newClient, err := NewEVMClient(netDef, p.connectionTimeout, p.rpcCallTimeout)
	if err != nil {
		p.logger.Error("Failed to create EVM client", zap.String("network", netDef.Name), zap.Error(err))
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", netDef.Name, err)
	}

	p.clients[netDef.ChainID] = newClient
	return newClient, nil
}

// Close closes every cached client.
func (p *EVMClientProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for chainID, c := range p.clients {
		c.Close()
		delete(p.clients, chainID)
	}
}
