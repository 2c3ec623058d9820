package httpclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"token_ledger/internal/domain/entity"
	"token_ledger/internal/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedCurrency is returned when a price source cannot quote the requested currency.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

const defaultDEXScreenerBaseURL = "https://api.dexscreener.com"

var stablecoinSymbols = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

// DEXScreenerOptions configures DEXScreenerClient.
type DEXScreenerOptions struct {
	BaseURL             string
	Timeout             time.Duration
	MaxTokensPerRequest int
	MaxConcurrent       int
}

// DEXScreenerClient quotes USD prices from the most liquid DEX pair of each token.
// The native pseudo-token is priced through the wrapped native contract of the network.
type DEXScreenerClient struct {
	client  *fasthttp.Client
	network entity.NetworkDefinition
	opts    DEXScreenerOptions
	logger  *zap.Logger
}

func NewDEXScreenerClient(network entity.NetworkDefinition, opts DEXScreenerOptions, logger *zap.Logger) *DEXScreenerClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultDEXScreenerBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxTokensPerRequest <= 0 {
		opts.MaxTokensPerRequest = 30
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &DEXScreenerClient{
		client:  &fasthttp.Client{},
		network: network,
		opts:    opts,
		logger:  logger.Named("DEXScreenerClient"),
	}
}

// GetPrices implements port.PriceQuerier. Any failed batch fails the whole call.
func (c *DEXScreenerClient) GetPrices(ctx context.Context, currency string, tokens []entity.PriceRequestToken) ([]entity.PriceQuote, error) {
	if !strings.EqualFold(currency, "USD") {
		return nil, fmt.Errorf("%w: DEX Screener quotes USD only, got %q", ErrUnsupportedCurrency, currency)
	}
	if c.network.DEXScreenerChainID == "" {
		return nil, fmt.Errorf("network %s has no DEX Screener chain id", c.network.Identifier)
	}

	// lookup address -> contracts asking for it
	wanted := make(map[string][]string)
	var addresses []string
	for _, t := range tokens {
		contract := entity.NormalizeAddress(t.Contract)
		lookup := contract
		if contract == entity.NativeContract {
			lookup = entity.NormalizeAddress(c.network.WrappedNativeTokenAddress)
			if lookup == "" {
				c.logger.Debug("No wrapped native token, native price skipped", zap.String("network", c.network.Identifier))
				continue
			}
		}
		if _, seen := wanted[lookup]; !seen {
			addresses = append(addresses, lookup)
		}
		wanted[lookup] = append(wanted[lookup], contract)
	}
	if len(addresses) == 0 {
		return []entity.PriceQuote{}, nil
	}

	var (
		mu    sync.Mutex
		pairs []PairData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxConcurrent)
	for _, batch := range utils.BatchStrings(addresses, c.opts.MaxTokensPerRequest) {
		batch := batch
		g.Go(func() error {
			batchPairs, err := c.GetTokenPairsByAddresses(gctx, c.network.DEXScreenerChainID, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			pairs = append(pairs, batchPairs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	quotes := make([]entity.PriceQuote, 0, len(addresses))
	for _, address := range addresses {
		priceStr := c.selectBestPriceFromPairs(pairs, address)
		if priceStr == "" {
			continue
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			c.logger.Warn("Failed to parse token price from DEXScreener",
				zap.String("tokenAddress", address), zap.String("price", priceStr), zap.Error(err))
			continue
		}
		for _, contract := range wanted[address] {
			quotes = append(quotes, entity.PriceQuote{Contract: contract, Currency: "USD", Price: price})
		}
	}
	c.logger.Debug("Prices resolved", zap.Int("requested", len(addresses)), zap.Int("quoted", len(quotes)))
	return quotes, nil
}

// GetTokenPairsByAddresses fetches the pairs of up to MaxTokensPerRequest token addresses.
func (c *DEXScreenerClient) GetTokenPairsByAddresses(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]PairData, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}
	if len(tokenAddresses) > c.opts.MaxTokensPerRequest {
		return nil, fmt.Errorf("number of token addresses (%d) exceeds max tokens per request (%d)", len(tokenAddresses), c.opts.MaxTokensPerRequest)
	}

	requestURL := fmt.Sprintf("%s/tokens/v1/%s/%s", c.opts.BaseURL, dexscreenerChainID, strings.Join(tokenAddresses, ","))
	c.logger.Debug("Requesting token pairs from DEX Screener", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := do(ctx, c.client, req, resp, c.opts.Timeout); err != nil {
		return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, statusError(requestURL, resp)
	}

	rawBody := resp.Body()
	var wrapped DEXTokenPair
	if err := json.Unmarshal(rawBody, &wrapped); err == nil && wrapped.Pairs != nil {
		return wrapped.Pairs, nil
	}

	var directPairs []PairData
	if err := json.Unmarshal(rawBody, &directPairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DEX Screener response from %s: %w", requestURL, err)
	}
	return directPairs, nil
}

// selectBestPriceFromPairs prefers the most liquid stablecoin-quoted pair, then the most liquid pair overall.
func (c *DEXScreenerClient) selectBestPriceFromPairs(pairs []PairData, baseTokenAddress string) string {
	var bestOverallPair *PairData
	var bestStablecoinPair *PairData

	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}

		if _, isStablecoin := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; isStablecoin {
			if bestStablecoinPair == nil || liquidityUSD(pair) > liquidityUSD(bestStablecoinPair) {
				bestStablecoinPair = pair
			}
		}
		if bestOverallPair == nil || liquidityUSD(pair) > liquidityUSD(bestOverallPair) {
			bestOverallPair = pair
		}
	}

	switch {
	case bestStablecoinPair != nil:
		return bestStablecoinPair.PriceUsd
	case bestOverallPair != nil:
		return bestOverallPair.PriceUsd
	default:
		return ""
	}
}

func liquidityUSD(p *PairData) float64 {
	return utils.SafeDeref(p.Liquidity, func(l DEXLiquidity) float64 { return l.Usd })
}
