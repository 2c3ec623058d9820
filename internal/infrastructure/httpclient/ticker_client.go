package httpclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"token_ledger/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type tickerRequest struct {
	Currency string                     `json:"currency"`
	Tokens   []entity.PriceRequestToken `json:"tokens"`
}

type tickerResponse struct {
	Docs []tickerDoc `json:"docs"`
}

type tickerDoc struct {
	Contract string          `json:"contract"`
	Price    decimal.Decimal `json:"price"`
}

// TickerClient queries a batched ticker service: one POST per cycle carrying every token.
type TickerClient struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewTickerClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *TickerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TickerClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("TickerClient"),
	}
}

// GetPrices implements port.PriceQuerier. Tokens the service does not know are simply absent.
func (c *TickerClient) GetPrices(ctx context.Context, currency string, tokens []entity.PriceRequestToken) ([]entity.PriceQuote, error) {
	body, err := json.Marshal(tickerRequest{Currency: currency, Tokens: tokens})
	if err != nil {
		return nil, fmt.Errorf("encode ticker request: %w", err)
	}
	requestURL := c.baseURL + "/v1/tickers"

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.SetBodyRaw(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := do(ctx, c.client, req, resp, c.timeout); err != nil {
		return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, statusError(requestURL, resp)
	}

	var decoded tickerResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("decode ticker response: %w", err)
	}

	quotes := make([]entity.PriceQuote, 0, len(decoded.Docs))
	for _, doc := range decoded.Docs {
		if doc.Contract == "" {
			continue
		}
		quotes = append(quotes, entity.PriceQuote{
			Contract: entity.NormalizeAddress(doc.Contract),
			Currency: strings.ToUpper(currency),
			Price:    doc.Price,
		})
	}
	c.logger.Debug("Tickers received", zap.Int("requested", len(tokens)), zap.Int("quoted", len(quotes)))
	return quotes, nil
}
