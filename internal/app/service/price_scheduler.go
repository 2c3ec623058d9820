package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"token_ledger/internal/app/port"
	"token_ledger/internal/domain/entity"
	"token_ledger/internal/pkg/metrics"

	"go.uber.org/zap"
)

// DefaultPriceRefreshInterval is used when no interval is configured.
const DefaultPriceRefreshInterval = 300 * time.Second

// ErrSchedulerStopped is returned by refreshes attempted after Stop.
var ErrSchedulerStopped = errors.New("price refresh scheduler stopped")

type knownTokenSource interface {
	All() []entity.Token
}

// PriceRefreshOptions configures the scheduler.
type PriceRefreshOptions struct {
	Currency     string
	Interval     time.Duration
	CycleTimeout time.Duration
}

// PriceRefreshScheduler runs price cycles on a ticker and on demand and installs their results into a PriceCache.
type PriceRefreshScheduler struct {
	querier   port.PriceQuerier
	cache     *PriceCache
	tokens    knownTokenSource
	publisher snapshotPublisher
	events    *EventSink
	logger    *zap.Logger
	opts      PriceRefreshOptions

	cycleSeq atomic.Uint64 // numbers cycles in start order

	mu           sync.Mutex // guards stopped and installedSeq, serializes installs against Stop
	stopped      bool
	installedSeq uint64
	cancel       context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewPriceRefreshScheduler(
	querier port.PriceQuerier,
	cache *PriceCache,
	tokens knownTokenSource,
	publisher snapshotPublisher,
	events *EventSink,
	logger *zap.Logger,
	opts PriceRefreshOptions,
) *PriceRefreshScheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPriceRefreshInterval
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = 30 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return &PriceRefreshScheduler{
		querier:   querier,
		cache:     cache,
		tokens:    tokens,
		publisher: publisher,
		events:    events,
		logger:    logger.Named("PriceRefresh"),
		opts:      opts,
	}
}

// Currency is the configured quote currency.
func (s *PriceRefreshScheduler) Currency() string { return s.opts.Currency }

// RefreshNow runs one cycle over every known token in the configured currency.
func (s *PriceRefreshScheduler) RefreshNow(ctx context.Context) error {
	return s.RefreshPrices(ctx, s.tokens.All(), s.opts.Currency)
}

// RefreshPrices sends one batched request for tokens, enabled or not. On success the cache is replaced and a
// snapshot is published. On failure the cache is left exactly as it was and the error is only returned, logged
// and emitted as an event. A cycle that started before the last installed one is discarded.
func (s *PriceRefreshScheduler) RefreshPrices(ctx context.Context, tokens []entity.Token, currency string) error {
	if s.isStopped() {
		return ErrSchedulerStopped
	}

	request := make([]entity.PriceRequestToken, 0, len(tokens))
	for _, t := range tokens {
		request = append(request, entity.PriceRequestToken{Contract: t.Contract, Symbol: t.Symbol})
	}
	if len(request) == 0 {
		s.logger.Debug("No tokens to price")
		return nil
	}

	seq := s.cycleSeq.Add(1)
	quotes, err := s.querier.GetPrices(ctx, currency, request)
	metrics.PriceRefreshTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("Price refresh failed, keeping cached tickers",
			zap.String("currency", currency), zap.Int("tokens", len(request)), zap.Error(err))
		s.events.Emit(entity.EventPriceRefreshFailed, "", err)
		return fmt.Errorf("refresh prices in %s: %w", currency, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Debug("Scheduler stopped during cycle, discarding quotes", zap.Int("quotes", len(quotes)))
		return ErrSchedulerStopped
	}
	if seq < s.installedSeq {
		s.mu.Unlock()
		s.logger.Debug("Newer price cycle already installed, discarding quotes",
			zap.Uint64("cycle", seq), zap.Uint64("installed", s.installedSeq))
		return nil
	}
	s.installedSeq = seq
	installed := s.cache.Replace(quotes)
	s.mu.Unlock()

	metrics.CachedTickers.Set(float64(installed))
	s.logger.Info("Price cache replaced", zap.String("currency", currency), zap.Int("requested", len(request)), zap.Int("quoted", installed))
	s.publisher.Publish()
	return nil
}

// Start launches the periodic loop. It runs until Stop is called or ctx is done. Start after Stop does nothing.
func (s *PriceRefreshScheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped {
			return
		}
		loopCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel

		s.wg.Add(1)
		go s.loop(loopCtx)
		s.logger.Info("Price refresh scheduler started", zap.Duration("interval", s.opts.Interval))
	})
}

// Stop cancels the timer and waits for the loop to exit. No cycle installs after Stop returns.
func (s *PriceRefreshScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
		s.logger.Info("Price refresh scheduler stopped")
	})
}

func (s *PriceRefreshScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, s.opts.CycleTimeout)
			if err := s.RefreshNow(cycleCtx); err != nil && !errors.Is(err, ErrSchedulerStopped) {
				s.logger.Debug("Scheduled price cycle did not install", zap.Error(err))
			}
			cancel()
		}
	}
}

func (s *PriceRefreshScheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
