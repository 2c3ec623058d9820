package service

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"token_ledger/internal/domain/entity"

	"go.uber.org/zap"
)

const (
	testOwner   = "0x00000000000000000000000000000000000000aa"
	testChainID = uint64(1)
)

var errBoom = errors.New("boom")

type fakeRepo struct {
	mu       sync.Mutex
	rows     []entity.Token
	saves    int
	rowSaves int
	saveErr  error
	loadErr  error

	// when set, SaveToken signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (r *fakeRepo) LoadTokens(_ context.Context, _ string, _ uint64) ([]entity.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return append([]entity.Token(nil), r.rows...), nil
}

func (r *fakeRepo) SaveTokens(_ context.Context, _ string, _ uint64, tokens []entity.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.rows = append([]entity.Token(nil), tokens...)
	return nil
}

func (r *fakeRepo) SaveToken(_ context.Context, _ string, _ uint64, token entity.Token) error {
	r.mu.Lock()
	entered, release := r.entered, r.release
	r.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.rowSaves++
	for i := range r.rows {
		if r.rows[i].Contract == token.Contract {
			r.rows[i] = token
			return nil
		}
	}
	r.rows = append(r.rows, token)
	return nil
}

func (r *fakeRepo) counts() (saves, rowSaves int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves, r.rowSaves
}

func (r *fakeRepo) failSaves(err error) {
	r.mu.Lock()
	r.saveErr = err
	r.mu.Unlock()
}

// fakeBalances answers balance queries from static maps. A contract mapped to an error fails.
type fakeBalances struct {
	tokens    map[string]*big.Int
	tokenErrs map[string]error
	native    *big.Int
	nativeErr error
	jitter    bool

	tokenCompletions atomic.Int64
	nativeCalls      atomic.Int64
	// completions observed when the native query started
	seenAtNative atomic.Int64
}

func (b *fakeBalances) GetTokenBalance(_ context.Context, _ string, contract string) (*big.Int, error) {
	defer b.tokenCompletions.Add(1)
	if b.jitter {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	}
	if err, ok := b.tokenErrs[contract]; ok {
		return nil, err
	}
	if v, ok := b.tokens[contract]; ok {
		return v, nil
	}
	return nil, errBoom
}

func (b *fakeBalances) GetNativeBalance(_ context.Context, _ string) (*big.Int, error) {
	b.seenAtNative.Store(b.tokenCompletions.Load())
	b.nativeCalls.Add(1)
	if b.nativeErr != nil {
		return nil, b.nativeErr
	}
	return b.native, nil
}

type fakePrices struct {
	mu       sync.Mutex
	quotes   []entity.PriceQuote
	err      error
	calls    int
	requests [][]entity.PriceRequestToken
	block    chan struct{}
}

func (p *fakePrices) GetPrices(ctx context.Context, currency string, tokens []entity.PriceRequestToken) ([]entity.PriceQuote, error) {
	p.mu.Lock()
	p.calls++
	p.requests = append(p.requests, tokens)
	block := p.block
	quotes, err := p.quotes, p.err
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]entity.PriceQuote, len(quotes))
	for i, q := range quotes {
		q.Currency = currency
		out[i] = q
	}
	return out, nil
}

func (p *fakePrices) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeHistory struct {
	txs []entity.Transaction
	err error
}

func (h *fakeHistory) Transactions(_ context.Context, _ string) ([]entity.Transaction, error) {
	return h.txs, h.err
}

type fakeTokenList struct {
	tokens []entity.ListedToken
	err    error
	calls  atomic.Int64
}

func (l *fakeTokenList) GetTokens(_ context.Context, _ string) ([]entity.ListedToken, error) {
	l.calls.Add(1)
	return l.tokens, l.err
}

type recordingSubscriber struct {
	mu        sync.Mutex
	snapshots []entity.Snapshot
	failures  []entity.FailureKind
}

func (r *recordingSubscriber) OnSnapshot(s entity.Snapshot) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	r.mu.Unlock()
}

func (r *recordingSubscriber) OnFailure(k entity.FailureKind) {
	r.mu.Lock()
	r.failures = append(r.failures, k)
	r.mu.Unlock()
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recordingSubscriber) last() entity.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

func newTestStore(repo *fakeRepo) *TokenStore {
	return NewTokenStore(repo, testOwner, testChainID, zap.NewNop())
}

func erc20(contract, symbol, value string) entity.Token {
	return entity.Token{
		Contract: contract,
		Owner:    testOwner,
		ChainID:  testChainID,
		Name:     symbol,
		Symbol:   symbol,
		Decimals: 18,
		Value:    value,
		Kind:     entity.TokenKindERC20,
	}
}

var testNative = entity.NativeTokenSpec{Name: "Ether", Symbol: "ETH", Decimals: 18}

func values(tokens []entity.Token) map[string]string {
	out := make(map[string]string, len(tokens))
	for _, t := range tokens {
		out[t.Contract] = t.Value
	}
	return out
}
