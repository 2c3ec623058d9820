package main

import (
	"context"
	"fmt"
	"time"

	"token_ledger/internal/app/port"
	"token_ledger/internal/app/service"
	"token_ledger/internal/domain/entity"
	"token_ledger/internal/infrastructure/configloader"
	"token_ledger/internal/infrastructure/historyloader"
	"token_ledger/internal/infrastructure/httpclient"
	clientprovider "token_ledger/internal/infrastructure/network/client"
	networkdefinition "token_ledger/internal/infrastructure/network/definition"
	"token_ledger/internal/infrastructure/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// application is the wired ledger of the configured account.
type application struct {
	facade  *service.SyncFacade
	network entity.NetworkDefinition
	owner   string

	closers []func()
}

func buildApplication(ctx context.Context, cfg *configloader.Config, logger *zap.Logger) (_ *application, err error) {
	app := &application{owner: entity.NormalizeAddress(cfg.Account.Address)}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	networks := networkdefinition.NewNetworkDefinitionProvider(logger, []string{cfg.Account.Network}, cfg.RpcClient.URLs)
	netDef, ok := networks.GetNetworkDefinitionByName(cfg.Account.Network)
	if !ok {
		return nil, fmt.Errorf("unknown network %q", cfg.Account.Network)
	}
	app.network = netDef

	clients := clientprovider.NewEVMClientProvider(logger,
		time.Duration(cfg.RpcClient.ConnectTimeoutMs)*time.Millisecond,
		time.Duration(cfg.RpcClient.DefaultTimeoutMs)*time.Millisecond)
	app.closers = append(app.closers, clients.Close)
	evm, err := clients.GetClient(netDef)
	if err != nil {
		return nil, err
	}

	repo, err := newRepository(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	prices, err := newPriceQuerier(cfg, netDef, logger)
	if err != nil {
		return nil, err
	}

	var tokenList port.TokenListProvider
	if netDef.Capabilities.HasServerTokenList {
		if cfg.TokenList.BaseURL == "" {
			return nil, fmt.Errorf("tokenList.baseURL is required on network %s", netDef.Identifier)
		}
		tokenList = httpclient.NewTokenListClient(cfg.TokenList.BaseURL,
			time.Duration(cfg.TokenList.RequestTimeoutMillis)*time.Millisecond,
			time.Duration(cfg.TokenList.CacheTTLMinutes)*time.Minute,
			logger)
	}

	store := service.NewTokenStore(repo, app.owner, netDef.ChainID, logger)
	cache := service.NewPriceCache()
	notifier := service.NewNotifier(store, cache, logger)
	events := service.NewEventSink(cfg.Sync.EventBuffer)

	balances := service.NewBalanceRefreshCoordinator(evm, store, notifier, events, logger, service.BalanceRefreshOptions{
		MaxConcurrent:     cfg.Sync.MaxConcurrentQueries,
		RequestsPerSecond: cfg.RpcClient.RateLimit,
		Burst:             cfg.RpcClient.BurstLimit,
		QueryTimeout:      time.Duration(cfg.RpcClient.DefaultTimeoutMs) * time.Millisecond,
	})
	scheduler := service.NewPriceRefreshScheduler(prices, cache, store, notifier, events, logger, service.PriceRefreshOptions{
		Currency:     cfg.Sync.Currency,
		Interval:     cfg.PriceRefreshInterval(),
		CycleTimeout: time.Duration(cfg.Sync.PriceCycleTimeoutSeconds) * time.Second,
	})

	app.facade, err = service.NewSyncFacade(service.SyncFacadeDeps{
		Network:   netDef,
		Owner:     app.owner,
		Store:     store,
		Notifier:  notifier,
		Balances:  balances,
		Prices:    scheduler,
		History:   historyloader.NewFileHistory(cfg.History.Dir, netDef.Identifier, logger),
		TokenList: tokenList,
		Events:    events,
	}, logger)
	if err != nil {
		return nil, err
	}
	// The facade goes first so late completions stop before the clients close.
	app.closers = append([]func(){app.facade.Close}, app.closers...)
	return app, nil
}

func newRepository(ctx context.Context, cfg *configloader.Config, app *application) (port.TokenRepository, error) {
	if cfg.Storage.Driver == configloader.StorageMemory {
		return storage.NewMemoryRepository(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	app.closers = append(app.closers, func() { _ = rdb.Close() })
	repo := storage.NewRedisRepository(rdb)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Storage.Redis.Addr, err)
	}
	return repo, nil
}

func newPriceQuerier(cfg *configloader.Config, netDef entity.NetworkDefinition, logger *zap.Logger) (port.PriceQuerier, error) {
	timeout := time.Duration(cfg.PriceAPI.RequestTimeoutMillis) * time.Millisecond
	switch cfg.PriceAPI.Provider {
	case configloader.PriceProviderDEXScreener:
		return httpclient.NewDEXScreenerClient(netDef, httpclient.DEXScreenerOptions{
			BaseURL:             cfg.PriceAPI.BaseURL,
			Timeout:             timeout,
			MaxTokensPerRequest: cfg.PriceAPI.MaxTokensPerBatchRequest,
			MaxConcurrent:       cfg.PriceAPI.MaxConcurrentRequests,
		}, logger), nil
	case configloader.PriceProviderTicker:
		return httpclient.NewTickerClient(cfg.PriceAPI.BaseURL, cfg.PriceAPI.APIKey, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.PriceAPI.Provider)
	}
}

func (a *application) close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}
