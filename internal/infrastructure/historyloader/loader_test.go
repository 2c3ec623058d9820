package historyloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"token_ledger/internal/app/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var _ port.TransactionHistory = (*FileHistory)(nil)

func writeHistory(t *testing.T, dir, owner, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ethereum"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ethereum", owner+".json"), []byte(body), 0o600))
}

func TestFileHistory_LoadsAndOrdersByBlock(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeHistory(t, dir, "0xaa", `[
		{"hash":"0x2","blockNumber":20,"operations":[{"contract":"0xB","symbol":"BBB","decimals":6,"value":"1"}]},
		{"hash":"0x1","blockNumber":10,"operations":[]}
	]`)

	h := NewFileHistory(dir, "ethereum", zap.NewNop())
	txs, err := h.Transactions(context.Background(), "0xAA")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "0x1", txs[0].Hash)
	assert.Equal(t, "0xB", txs[1].Operations[0].Contract)
	assert.Equal(t, uint8(6), txs[1].Operations[0].Decimals)
}

func TestFileHistory_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	h := NewFileHistory(t.TempDir(), "ethereum", zap.NewNop())
	txs, err := h.Transactions(context.Background(), "0xaa")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestFileHistory_MalformedFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeHistory(t, dir, "0xaa", `{not json`)

	_, err := NewFileHistory(dir, "ethereum", zap.NewNop()).Transactions(context.Background(), "0xaa")
	require.Error(t, err)
}
