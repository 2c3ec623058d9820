package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"token_ledger/internal/app/port"
	"token_ledger/internal/domain/entity"
	"token_ledger/internal/pkg/metrics"
	"token_ledger/internal/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrCoordinatorClosed is returned by Refresh after Close.
var ErrCoordinatorClosed = errors.New("balance refresh coordinator closed")

type balanceStore interface {
	Enabled() []entity.Token
	SetBalance(ctx context.Context, contract, value string) error
}

type snapshotPublisher interface {
	Publish() entity.Snapshot
}

// BalanceRefreshOptions tunes the fan-out.
type BalanceRefreshOptions struct {
	MaxConcurrent     int
	RequestsPerSecond float64
	Burst             int
	QueryTimeout      time.Duration
}

// BalanceRefreshCoordinator fans out one balance query per enabled non-native token, joins on an atomic
// counter and then issues exactly one native balance query before publishing.
type BalanceRefreshCoordinator struct {
	querier   port.BalanceQuerier
	store     balanceStore
	publisher snapshotPublisher
	events    *EventSink
	logger    *zap.Logger

	limiter      *rate.Limiter
	semaphore    chan struct{}
	queryTimeout time.Duration

	closed atomic.Bool
}

// NewBalanceRefreshCoordinator creates a coordinator. events may be nil.
func NewBalanceRefreshCoordinator(
	querier port.BalanceQuerier,
	store balanceStore,
	publisher snapshotPublisher,
	events *EventSink,
	logger *zap.Logger,
	opts BalanceRefreshOptions,
) *BalanceRefreshCoordinator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.MaxConcurrent
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 15 * time.Second
	}
	return &BalanceRefreshCoordinator{
		querier:      querier,
		store:        store,
		publisher:    publisher,
		events:       events,
		logger:       logger.Named("BalanceRefresh"),
		limiter:      rate.NewLimiter(limit, opts.Burst),
		semaphore:    make(chan struct{}, opts.MaxConcurrent),
		queryTimeout: opts.QueryTimeout,
	}
}

// Refresh starts one refresh pass for owner and returns immediately. The returned channel receives exactly one
// value once the pass has published: nil, or the first storage commit failure observed by the pass.
func (c *BalanceRefreshCoordinator) Refresh(ctx context.Context, owner string) <-chan error {
	done := make(chan error, 1)
	if c.closed.Load() {
		done <- ErrCoordinatorClosed
		close(done)
		return done
	}

	var targets []entity.Token
	nativeEnabled := false
	for _, t := range c.store.Enabled() {
		if t.IsNative() {
			nativeEnabled = true
			continue
		}
		targets = append(targets, t)
	}

	run := &refreshRun{
		coordinator:   c,
		ctx:           ctx,
		owner:         owner,
		nativeEnabled: nativeEnabled,
		done:          done,
		startedAt:     time.Now(),
	}

	if len(targets) == 0 {
		c.logger.Debug("No enabled tokens to refresh, publishing without native query", zap.String("owner", owner))
		run.finish()
		return done
	}

	c.logger.Debug("Dispatching balance queries", zap.String("owner", owner), zap.Int("count", len(targets)))
	run.pending.Store(int64(len(targets)))
	for _, t := range targets {
		go run.queryToken(t)
	}
	return done
}

// RefreshAndWait runs Refresh and blocks until the pass has published or ctx is done.
func (c *BalanceRefreshCoordinator) RefreshAndWait(ctx context.Context, owner string) error {
	select {
	case err := <-c.Refresh(ctx, owner):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close turns every later completion into a no-op. In-flight queries are not cancelled.
func (c *BalanceRefreshCoordinator) Close() {
	c.closed.Store(true)
}

// refreshRun is the state of one fan-out/fan-in pass.
type refreshRun struct {
	coordinator   *BalanceRefreshCoordinator
	ctx           context.Context
	owner         string
	nativeEnabled bool // a disabled native token is neither queried nor written
	done          chan error
	startedAt     time.Time

	pending atomic.Int64

	errMu    sync.Mutex
	fatalErr error
}

func (r *refreshRun) queryToken(token entity.Token) {
	c := r.coordinator
	amount, err := r.query(func(ctx context.Context) (*big.Int, error) {
		return c.querier.GetTokenBalance(ctx, r.owner, token.Contract)
	})
	metrics.BalanceQueriesTotal.WithLabelValues("token", metrics.Result(err)).Inc()

	if err != nil {
		c.logger.Warn("Token balance query failed, keeping stale value",
			zap.String("owner", r.owner), zap.String("contract", token.Contract), zap.Error(err))
		c.events.Emit(entity.EventTokenBalanceFailed, token.Contract, err)
	} else {
		r.write(token.Contract, amount)
	}

	if r.pending.Add(-1) == 0 {
		r.queryNative()
	}
}

func (r *refreshRun) queryNative() {
	c := r.coordinator
	if !r.nativeEnabled {
		c.logger.Debug("Native token disabled, skipping native query", zap.String("owner", r.owner))
		r.finish()
		return
	}
	if c.closed.Load() {
		r.finish()
		return
	}
	amount, err := r.query(func(ctx context.Context) (*big.Int, error) {
		return c.querier.GetNativeBalance(ctx, r.owner)
	})
	metrics.BalanceQueriesTotal.WithLabelValues("native", metrics.Result(err)).Inc()

	if err != nil {
		c.logger.Warn("Native balance query failed, keeping stale value", zap.String("owner", r.owner), zap.Error(err))
		c.events.Emit(entity.EventNativeBalanceFailed, entity.NativeContract, err)
	} else {
		r.write(entity.NativeContract, amount)
	}
	r.finish()
}

// query waits for a concurrency slot and the rate limiter, then runs fn with a per-query timeout.
func (r *refreshRun) query(fn func(ctx context.Context) (*big.Int, error)) (*big.Int, error) {
	c := r.coordinator
	select {
	case c.semaphore <- struct{}{}:
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
	defer func() { <-c.semaphore }()

	if err := c.limiter.Wait(r.ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	qctx, cancel := context.WithTimeout(r.ctx, c.queryTimeout)
	defer cancel()
	amount, err := fn(qctx)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return nil, errors.New("empty balance result")
	}
	return amount, nil
}

func (r *refreshRun) write(contract string, amount *big.Int) {
	c := r.coordinator
	if c.closed.Load() {
		return
	}
	value, err := utils.BalanceLiteral(amount)
	if err != nil {
		c.logger.Warn("Discarding balance", zap.String("contract", contract), zap.Error(err))
		return
	}
	// A completed query is written even after the pass context is cancelled.
	if err := c.store.SetBalance(context.WithoutCancel(r.ctx), contract, value); err != nil {
		if errors.Is(err, ErrStorageCommit) {
			r.recordFatal(err)
			return
		}
		c.logger.Warn("Balance not written", zap.String("contract", contract), zap.Error(err))
	}
}

func (r *refreshRun) recordFatal(err error) {
	r.errMu.Lock()
	if r.fatalErr == nil {
		r.fatalErr = err
	}
	r.errMu.Unlock()
}

func (r *refreshRun) finish() {
	c := r.coordinator
	metrics.BalanceRefreshDuration.Observe(time.Since(r.startedAt).Seconds())

	r.errMu.Lock()
	err := r.fatalErr
	r.errMu.Unlock()

	if c.closed.Load() {
		c.logger.Debug("Coordinator closed, dropping late completion", zap.String("owner", r.owner))
	} else {
		c.publisher.Publish()
		c.logger.Debug("Balance refresh completed", zap.String("owner", r.owner), zap.Duration("took", time.Since(r.startedAt)))
	}
	r.done <- err
	close(r.done)
}
