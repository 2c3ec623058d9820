package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"token_ledger/internal/app/service"
	"token_ledger/internal/domain/entity"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const owner = "0x00000000000000000000000000000000000000aa"

type fakeLedger struct {
	snapshot  entity.Snapshot
	syncErr   error
	addErr    error
	toggleErr error

	syncCalls int
	failures  []entity.FailureKind
	disabled  map[string]bool
}

func (f *fakeLedger) CurrentSnapshot() entity.Snapshot { return f.snapshot }

func (f *fakeLedger) FullSync(context.Context) error {
	f.syncCalls++
	return f.syncErr
}

func (f *fakeLedger) AddCustomToken(_ context.Context, contract, symbol string, decimals uint8) (entity.Token, error) {
	if f.addErr != nil {
		return entity.Token{}, f.addErr
	}
	return entity.Token{Contract: strings.ToLower(contract), Symbol: symbol, Decimals: decimals, Value: "0", IsCustom: true, Kind: entity.TokenKindERC20}, nil
}

func (f *fakeLedger) SetDisabled(_ context.Context, contract string, disabled bool) error {
	if f.toggleErr != nil {
		return f.toggleErr
	}
	if f.disabled == nil {
		f.disabled = map[string]bool{}
	}
	f.disabled[contract] = disabled
	return nil
}

func (f *fakeLedger) ReportFailure(kind entity.FailureKind) { f.failures = append(f.failures, kind) }

func (f *fakeLedger) Network() entity.NetworkDefinition {
	return entity.NetworkDefinition{ChainID: 1, Identifier: "ethereum"}
}

func newTestRouter(ledger *fakeLedger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	return SetupRouter(NewLedgerHandler(ledger, owner, logger), RouterOptions{}, logger)
}

func serve(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetSnapshot_FormatsBalancesAndFiatValues(t *testing.T) {
	ledger := &fakeLedger{snapshot: entity.Snapshot{
		Tokens: []entity.Token{
			{Contract: "0x", Symbol: "ETH", Decimals: 18, Value: "1500000000000000000", Kind: entity.TokenKindNative},
			{Contract: "0xusdc", Symbol: "USDC", Decimals: 6, Value: "2500000", Kind: entity.TokenKindERC20},
			{Contract: "0xnoprice", Symbol: "NP", Decimals: 0, Value: "7", Kind: entity.TokenKindERC20},
		},
		Tickers: map[string]entity.PriceQuote{
			"0x":     {Contract: "0x", Currency: "USD", Price: decimal.RequireFromString("2000")},
			"0xusdc": {Contract: "0xusdc", Currency: "USD", Price: decimal.RequireFromString("1")},
		},
	}}

	rec := serve(t, newTestRouter(ledger), http.MethodGet, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, owner, resp.Owner)
	assert.Equal(t, "ethereum", resp.Network)
	require.Len(t, resp.Tokens, 3)

	assert.Equal(t, "1.5", resp.Tokens[0].FormattedValue)
	require.NotNil(t, resp.Tokens[0].FiatValue)
	assert.True(t, decimal.RequireFromString("3000").Equal(*resp.Tokens[0].FiatValue))

	assert.Equal(t, "2.5", resp.Tokens[1].FormattedValue)
	assert.Equal(t, "7", resp.Tokens[2].FormattedValue)
	assert.Nil(t, resp.Tokens[2].FiatValue)

	assert.True(t, decimal.RequireFromString("3002.5").Equal(resp.TotalValue), resp.TotalValue.String())
}

func TestPostSync(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ledger := &fakeLedger{}
		rec := serve(t, newTestRouter(ledger), http.MethodPost, "/api/v1/sync", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, ledger.syncCalls)
		assert.Empty(t, ledger.failures)
	})

	t.Run("failure reports FailedToFetch", func(t *testing.T) {
		ledger := &fakeLedger{syncErr: errors.New("history unavailable")}
		rec := serve(t, newTestRouter(ledger), http.MethodPost, "/api/v1/sync", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, []entity.FailureKind{entity.FailedToFetch}, ledger.failures)
		assert.Contains(t, rec.Body.String(), "history unavailable")
	})

	t.Run("storage failure", func(t *testing.T) {
		ledger := &fakeLedger{syncErr: fmt.Errorf("full sync history: %w", service.ErrStorageCommit)}
		rec := serve(t, newTestRouter(ledger), http.MethodPost, "/api/v1/sync", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestPostCustomToken(t *testing.T) {
	router := newTestRouter(&fakeLedger{})

	rec := serve(t, router, http.MethodPost, "/api/v1/tokens", `{"contract":"0xABC","symbol":"ABC","decimals":8}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var view TokenView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "0xabc", view.Contract)
	assert.True(t, view.IsCustom)
	assert.Equal(t, uint8(8), view.Decimals)

	rec = serve(t, router, http.MethodPost, "/api/v1/tokens", `{"symbol":"ABC","decimals":8}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	invalid := newTestRouter(&fakeLedger{addErr: fmt.Errorf("%w: %q", service.ErrInvalidContract, "nope")})
	rec = serve(t, invalid, http.MethodPost, "/api/v1/tokens", `{"contract":"nope","symbol":"X","decimals":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutDisabled(t *testing.T) {
	ledger := &fakeLedger{}
	rec := serve(t, newTestRouter(ledger), http.MethodPut, "/api/v1/tokens/0xabc/disabled", `{"disabled":true}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ledger.disabled["0xabc"])

	rec = serve(t, newTestRouter(ledger), http.MethodPut, "/api/v1/tokens/0xabc/disabled", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	missing := &fakeLedger{toggleErr: fmt.Errorf("%w: 0xdead", service.ErrTokenNotFound)}
	rec = serve(t, newTestRouter(missing), http.MethodPut, "/api/v1/tokens/0xdead/disabled", `{"disabled":false}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(&fakeLedger{})

	rec := serve(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ethereum")

	rec = serve(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
