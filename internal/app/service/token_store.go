package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"token_ledger/internal/app/port"
	"token_ledger/internal/domain/entity"
	"token_ledger/internal/pkg/metrics"
	"token_ledger/internal/pkg/utils"

	"go.uber.org/zap"
)

var (
	// ErrTokenNotFound is returned when a single-field update targets an absent contract.
	ErrTokenNotFound = errors.New("token not found")
	// ErrInvalidValue is returned when a balance is not a non-negative integer literal.
	ErrInvalidValue = errors.New("invalid token value")
	// ErrStorageCommit wraps every failed persistence commit. It is never retried.
	ErrStorageCommit = errors.New("token store commit failed")
)

// TokenStore is the single-writer collection of tracked tokens for one (owner, chainID).
// Every mutation is committed to the repository as one write before it becomes visible in memory.
// Writers are serialized by writeMu; mu is only held to read or swap the map, never across repository I/O.
type TokenStore struct {
	repo    port.TokenRepository
	owner   string
	chainID uint64
	logger  *zap.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	tokens  map[string]entity.Token // keyed by normalized contract
}

// NewTokenStore creates an empty store. Call Load to read the persisted rows.
func NewTokenStore(repo port.TokenRepository, owner string, chainID uint64, logger *zap.Logger) *TokenStore {
	return &TokenStore{
		repo:    repo,
		owner:   entity.NormalizeAddress(owner),
		chainID: chainID,
		logger:  logger.Named("TokenStore"),
		tokens:  make(map[string]entity.Token),
	}
}

// Owner returns the normalized account address the store is scoped to.
func (s *TokenStore) Owner() string { return s.owner }

// ChainID returns the chain the store is scoped to.
func (s *TokenStore) ChainID() uint64 { return s.chainID }

// Load replaces the in-memory view with the persisted rows.
func (s *TokenStore) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rows, err := s.repo.LoadTokens(ctx, s.owner, s.chainID)
	if err != nil {
		return fmt.Errorf("load tokens for %s on chain %d: %w", s.owner, s.chainID, err)
	}

	loaded := make(map[string]entity.Token, len(rows))
	for _, row := range rows {
		row = s.normalize(row)
		if row.Contract == "" {
			continue
		}
		if row.Value == "" {
			row.Value = "0"
		}
		loaded[row.Contract] = row
	}

	s.mu.Lock()
	s.tokens = loaded
	s.mu.Unlock()

	s.logger.Info("Tokens loaded", zap.String("owner", s.owner), zap.Uint64("chainID", s.chainID), zap.Int("count", len(loaded)))
	return nil
}

// Upsert merges tokens by contract. Metadata is overwritten in place, an empty candidate value keeps the
// stored balance, the disabled flag of an existing row is kept and the custom flag is sticky.
// The whole batch is committed as one write; on failure nothing changes.
func (s *TokenStore) Upsert(ctx context.Context, tokens []entity.Token) error {
	if len(tokens) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.clone()
	changed := 0
	for _, candidate := range tokens {
		candidate = s.normalize(candidate)
		if candidate.Contract == "" {
			continue
		}
		if candidate.Owner != s.owner || candidate.ChainID != s.chainID {
			s.logger.Warn("Skipping token scoped to another account",
				zap.String("contract", candidate.Contract),
				zap.String("owner", candidate.Owner),
				zap.Uint64("chainID", candidate.ChainID))
			continue
		}
		if candidate.Value != "" {
			if _, err := utils.ParseBalance(candidate.Value); err != nil {
				return fmt.Errorf("%w: contract %s: %w", ErrInvalidValue, candidate.Contract, err)
			}
		}

		existing, ok := next[candidate.Contract]
		if !ok {
			if candidate.Value == "" {
				candidate.Value = "0"
			}
			next[candidate.Contract] = candidate
			changed++
			continue
		}

		merged := existing
		merged.Name = candidate.Name
		merged.Symbol = candidate.Symbol
		merged.Decimals = candidate.Decimals
		merged.Kind = candidate.Kind
		merged.IsCustom = existing.IsCustom || candidate.IsCustom
		if candidate.Value != "" {
			merged.Value = candidate.Value
		}
		if merged != existing {
			next[candidate.Contract] = merged
			changed++
		}
	}

	if changed == 0 {
		return nil
	}
	if err := s.commitAll(ctx, next); err != nil {
		return err
	}
	s.logger.Debug("Tokens upserted", zap.Int("candidates", len(tokens)), zap.Int("changed", changed))
	return nil
}

// SetBalance updates the value of one existing token.
func (s *TokenStore) SetBalance(ctx context.Context, contract, value string) error {
	if _, err := utils.ParseBalance(value); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return s.update(ctx, contract, func(t *entity.Token) { t.Value = value })
}

// SetDisabled toggles the visibility of one existing token.
func (s *TokenStore) SetDisabled(ctx context.Context, contract string, disabled bool) error {
	return s.update(ctx, contract, func(t *entity.Token) { t.IsDisabled = disabled })
}

// EnsureNativeToken inserts the native pseudo-token when it is absent. An existing row is left untouched.
func (s *TokenStore) EnsureNativeToken(ctx context.Context, spec entity.NativeTokenSpec) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, ok := s.tokens[entity.NativeContract]; ok {
		return nil
	}

	native := entity.Token{
		Contract: entity.NativeContract,
		Owner:    s.owner,
		ChainID:  s.chainID,
		Name:     spec.Name,
		Symbol:   spec.Symbol,
		Decimals: spec.Decimals,
		Value:    "0",
		Kind:     entity.TokenKindNative,
	}
	if err := s.commitRow(ctx, native); err != nil {
		return err
	}
	s.logger.Info("Native token created", zap.String("symbol", spec.Symbol), zap.Uint64("chainID", s.chainID))
	return nil
}

// Get returns one token by contract.
func (s *TokenStore) Get(contract string) (entity.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[entity.NormalizeAddress(contract)]
	return t, ok
}

// All returns every token sorted by contract ascending.
func (s *TokenStore) All() []entity.Token {
	return s.filter(func(entity.Token) bool { return true })
}

// Enabled returns the tokens that are not disabled, sorted by contract ascending.
func (s *TokenStore) Enabled() []entity.Token {
	return s.filter(func(t entity.Token) bool { return !t.IsDisabled })
}

func (s *TokenStore) filter(keep func(entity.Token) bool) []entity.Token {
	s.mu.RLock()
	out := make([]entity.Token, 0, len(s.tokens))
	for contract, t := range s.tokens {
		if contract == "" || !keep(t) {
			continue
		}
		out = append(out, t)
	}
	s.mu.RUnlock()

	sortByContract(out)
	return out
}

func (s *TokenStore) update(ctx context.Context, contract string, apply func(*entity.Token)) error {
	key := entity.NormalizeAddress(contract)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, ok := s.tokens[key]
	if !ok || key == "" {
		return fmt.Errorf("%w: %q", ErrTokenNotFound, contract)
	}
	updated := current
	apply(&updated)
	if updated == current {
		return nil
	}
	return s.commitRow(ctx, updated)
}

// commitAll persists next as the full row set and swaps it in. Caller holds s.writeMu.
func (s *TokenStore) commitAll(ctx context.Context, next map[string]entity.Token) error {
	rows := make([]entity.Token, 0, len(next))
	for _, t := range next {
		rows = append(rows, t)
	}
	sortByContract(rows)

	if err := s.repo.SaveTokens(ctx, s.owner, s.chainID, rows); err != nil {
		return s.commitFailed(err)
	}
	s.mu.Lock()
	s.tokens = next
	s.mu.Unlock()
	return nil
}

// commitRow persists one row and then installs it. Caller holds s.writeMu.
func (s *TokenStore) commitRow(ctx context.Context, row entity.Token) error {
	if err := s.repo.SaveToken(ctx, s.owner, s.chainID, row); err != nil {
		return s.commitFailed(err)
	}
	s.mu.Lock()
	s.tokens[row.Contract] = row
	s.mu.Unlock()
	return nil
}

func (s *TokenStore) commitFailed(err error) error {
	metrics.TokenStoreCommitErrors.Inc()
	s.logger.Error("Token store commit failed", zap.String("owner", s.owner), zap.Uint64("chainID", s.chainID), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrStorageCommit, err)
}

// clone copies the current map. Caller holds s.writeMu, so no other goroutine mutates it.
func (s *TokenStore) clone() map[string]entity.Token {
	next := make(map[string]entity.Token, len(s.tokens)+1)
	for k, v := range s.tokens {
		next[k] = v
	}
	return next
}

func (s *TokenStore) normalize(t entity.Token) entity.Token {
	t.Contract = entity.NormalizeAddress(t.Contract)
	t.Owner = entity.NormalizeAddress(t.Owner)
	if t.Owner == "" {
		t.Owner = s.owner
	}
	if t.ChainID == 0 {
		t.ChainID = s.chainID
	}
	if t.Contract == entity.NativeContract {
		t.Kind = entity.TokenKindNative
	} else if t.Kind == "" || t.Kind == entity.TokenKindNative {
		t.Kind = entity.TokenKindERC20
	}
	return t
}

func sortByContract(tokens []entity.Token) {
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Contract < tokens[j].Contract })
}
