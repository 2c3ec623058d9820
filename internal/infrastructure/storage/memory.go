package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"token_ledger/internal/domain/entity"
)

// MemoryRepository keeps token rows in process memory. It is used by the sync command and by tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string][]entity.Token
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string][]entity.Token)}
}

func memoryKey(owner string, chainID uint64) string {
	return fmt.Sprintf("%d:%s", chainID, entity.NormalizeAddress(owner))
}

// LoadTokens implements port.TokenRepository.
func (r *MemoryRepository) LoadTokens(_ context.Context, owner string, chainID uint64) ([]entity.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entity.Token(nil), r.rows[memoryKey(owner, chainID)]...), nil
}

// SaveTokens implements port.TokenRepository.
func (r *MemoryRepository) SaveTokens(ctx context.Context, owner string, chainID uint64, tokens []entity.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[memoryKey(owner, chainID)] = append([]entity.Token(nil), tokens...)
	return nil
}

// SaveToken implements port.TokenRepository.
func (r *MemoryRepository) SaveToken(ctx context.Context, owner string, chainID uint64, token entity.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(owner, chainID)
	rows := append([]entity.Token(nil), r.rows[key]...)
	for i := range rows {
		if rows[i].Contract == token.Contract {
			rows[i] = token
			r.rows[key] = rows
			return nil
		}
	}
	rows = append(rows, token)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Contract < rows[j].Contract })
	r.rows[key] = rows
	return nil
}
