package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"token_ledger/internal/domain/entity"

	"github.com/patrickmn/go-cache"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type tokenListResponse struct {
	Tokens []entity.ListedToken `json:"tokens"`
}

// TokenListClient fetches the server-side token list of an account and caches it per owner.
type TokenListClient struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewTokenListClient creates a client whose results live for cacheTTL. A zero TTL disables caching.
func NewTokenListClient(baseURL string, timeout, cacheTTL time.Duration, logger *zap.Logger) *TokenListClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var c *cache.Cache
	if cacheTTL > 0 {
		c = cache.New(cacheTTL, 2*cacheTTL)
	}
	return &TokenListClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		cache:   c,
		logger:  logger.Named("TokenListClient"),
	}
}

// GetTokens implements port.TokenListProvider.
func (c *TokenListClient) GetTokens(ctx context.Context, owner string) ([]entity.ListedToken, error) {
	key := entity.NormalizeAddress(owner)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			c.logger.Debug("Token list served from cache", zap.String("owner", key))
			return cached.([]entity.ListedToken), nil
		}
	}

	requestURL := fmt.Sprintf("%s/v1/tokens?owner=%s", c.baseURL, url.QueryEscape(key))
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := do(ctx, c.client, req, resp, c.timeout); err != nil {
		return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, statusError(requestURL, resp)
	}

	var decoded tokenListResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}

	if c.cache != nil {
		c.cache.SetDefault(key, decoded.Tokens)
	}
	c.logger.Debug("Token list fetched", zap.String("owner", key), zap.Int("count", len(decoded.Tokens)))
	return decoded.Tokens, nil
}
