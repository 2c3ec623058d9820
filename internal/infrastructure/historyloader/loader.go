package historyloader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"token_ledger/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultHistoryDirectoryPath = "data/history"

// FileHistory implements port.TransactionHistory over JSON files laid out as <dir>/<network>/<owner>.json.
type FileHistory struct {
	dirPath string
	network string
	logger  *zap.Logger
}

// NewFileHistory creates a loader rooted at dirPath for one network identifier.
func NewFileHistory(dirPath, network string, logger *zap.Logger) *FileHistory {
	if dirPath == "" {
		dirPath = defaultHistoryDirectoryPath
	}
	return &FileHistory{dirPath: dirPath, network: network, logger: logger.Named("HistoryLoader")}
}

// Transactions returns the history of owner ordered by block number. A missing file is an empty history.
func (l *FileHistory) Transactions(ctx context.Context, owner string) ([]entity.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filePath := filepath.Join(l.dirPath, l.network, entity.NormalizeAddress(owner)+".json")

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Debug("No history file for account, treating as empty", zap.String("path", filePath))
		return []entity.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file %s: %w", filePath, err)
	}

	var txs []entity.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", filePath, err)
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].BlockNumber < txs[j].BlockNumber })

	l.logger.Debug("History loaded", zap.String("path", filePath), zap.Int("transactions", len(txs)))
	return txs, nil
}
