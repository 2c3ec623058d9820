package restapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"token_ledger/internal/app/service"
	"token_ledger/internal/domain/entity"
	"token_ledger/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the part of the sync facade the API drives.
type Ledger interface {
	CurrentSnapshot() entity.Snapshot
	FullSync(ctx context.Context) error
	AddCustomToken(ctx context.Context, contract, symbol string, decimals uint8) (entity.Token, error)
	SetDisabled(ctx context.Context, contract string, disabled bool) error
	ReportFailure(kind entity.FailureKind)
	Network() entity.NetworkDefinition
}

// TokenView is one enabled token as served by the API.
type TokenView struct {
	Contract       string           `json:"contract"`
	Name           string           `json:"name"`
	Symbol         string           `json:"symbol"`
	Decimals       uint8            `json:"decimals"`
	Kind           entity.TokenKind `json:"kind"`
	Value          string           `json:"value"`
	FormattedValue string           `json:"formattedValue"`
	IsCustom       bool             `json:"isCustom"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	FiatValue      *decimal.Decimal `json:"fiatValue,omitempty"`
}

// SnapshotResponse is the body of GET /api/v1/snapshot.
type SnapshotResponse struct {
	Owner      string          `json:"owner"`
	Network    string          `json:"network"`
	ChainID    uint64          `json:"chainId"`
	Tokens     []TokenView     `json:"tokens"`
	TotalValue decimal.Decimal `json:"totalValue"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type customTokenRequest struct {
	Contract string `json:"contract" binding:"required"`
	Symbol   string `json:"symbol" binding:"required"`
	Decimals *uint8 `json:"decimals" binding:"required"`
}

type disabledRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

// LedgerHandler serves the ledger endpoints.
type LedgerHandler struct {
	ledger Ledger
	owner  string
	logger *zap.Logger
}

func NewLedgerHandler(ledger Ledger, owner string, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, owner: entity.NormalizeAddress(owner), logger: logger.Named("LedgerHandler")}
}

// GetSnapshot returns the enabled tokens with formatted balances and fiat values.
func (h *LedgerHandler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildResponse(h.ledger.CurrentSnapshot()))
}

// PostSync runs a full sync and returns the resulting snapshot.
// A failed sync is reported to the subscriber as FailedToFetch.
func (h *LedgerHandler) PostSync(c *gin.Context) {
	if err := h.ledger.FullSync(c.Request.Context()); err != nil {
		h.ledger.ReportFailure(entity.FailedToFetch)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.buildResponse(h.ledger.CurrentSnapshot()))
}

// PostCustomToken starts tracking a user-supplied token.
func (h *LedgerHandler) PostCustomToken(c *gin.Context) {
	var req customTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	token, err := h.ledger.AddCustomToken(c.Request.Context(), req.Contract, req.Symbol, *req.Decimals)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toView(token, nil))
}

// PutDisabled hides or shows a token.
func (h *LedgerHandler) PutDisabled(c *gin.Context) {
	var req disabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.ledger.SetDisabled(c.Request.Context(), c.Param("contract"), *req.Disabled); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LedgerHandler) withTimeout(timeout time.Duration, next gin.HandlerFunc) gin.HandlerFunc {
	if timeout <= 0 {
		return next
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		next(c)
	}
}

func (h *LedgerHandler) buildResponse(snapshot entity.Snapshot) SnapshotResponse {
	network := h.ledger.Network()
	resp := SnapshotResponse{
		Owner:      h.owner,
		Network:    network.Identifier,
		ChainID:    network.ChainID,
		Tokens:     make([]TokenView, 0, len(snapshot.Tokens)),
		TotalValue: decimal.Zero,
	}
	for _, token := range snapshot.Tokens {
		var quote *entity.PriceQuote
		if q, ok := snapshot.Ticker(token.Contract); ok {
			quote = &q
		}
		view := toView(token, quote)
		if view.FormattedValue == "" {
			h.logger.Warn("Stored value is not a valid balance", zap.String("contract", token.Contract), zap.String("value", token.Value))
		}
		if view.FiatValue != nil {
			resp.TotalValue = resp.TotalValue.Add(*view.FiatValue)
		}
		resp.Tokens = append(resp.Tokens, view)
	}
	return resp
}

func toView(token entity.Token, quote *entity.PriceQuote) TokenView {
	view := TokenView{
		Contract: token.Contract,
		Name:     token.Name,
		Symbol:   token.Symbol,
		Decimals: token.Decimals,
		Kind:     token.Kind,
		Value:    token.Value,
		IsCustom: token.IsCustom,
	}
	formatted, err := utils.FormatBalance(token.Value, token.Decimals)
	if err != nil {
		return view
	}
	view.FormattedValue = formatted
	if quote == nil {
		return view
	}
	price := quote.Price
	view.Price = &price
	view.Currency = quote.Currency
	if amount, err := decimal.NewFromString(formatted); err == nil {
		fiat := amount.Mul(price)
		view.FiatValue = &fiat
	}
	return view
}

func (h *LedgerHandler) writeError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidContract), errors.Is(err, service.ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrSchedulerStopped), errors.Is(err, service.ErrCoordinatorClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrStorageCommit):
		status = http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusBadGateway
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
