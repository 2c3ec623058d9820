package service

import (
	"sync"

	"token_ledger/internal/domain/entity"
	"token_ledger/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Subscriber receives either snapshots or typed failures. Calls may come from any goroutine.
type Subscriber interface {
	OnSnapshot(entity.Snapshot)
	OnFailure(entity.FailureKind)
}

// SubscriberFuncs adapts plain functions to Subscriber. Nil fields are ignored.
type SubscriberFuncs struct {
	Snapshot func(entity.Snapshot)
	Failure  func(entity.FailureKind)
}

func (f SubscriberFuncs) OnSnapshot(s entity.Snapshot) {
	if f.Snapshot != nil {
		f.Snapshot(s)
	}
}

func (f SubscriberFuncs) OnFailure(k entity.FailureKind) {
	if f.Failure != nil {
		f.Failure(k)
	}
}

type enabledTokenSource interface {
	Enabled() []entity.Token
}

type tickerSource interface {
	Snapshot() map[string]entity.PriceQuote
}

// Notifier builds snapshots from the store and the price cache and hands them to the single subscriber.
type Notifier struct {
	tokens  enabledTokenSource
	tickers tickerSource
	logger  *zap.Logger

	mu  sync.RWMutex
	sub Subscriber
}

func NewNotifier(tokens enabledTokenSource, tickers tickerSource, logger *zap.Logger) *Notifier {
	return &Notifier{tokens: tokens, tickers: tickers, logger: logger.Named("Notifier")}
}

// Subscribe registers sub, replacing any previous subscriber. Nil unregisters.
func (n *Notifier) Subscribe(sub Subscriber) {
	n.mu.Lock()
	n.sub = sub
	n.mu.Unlock()
}

// Snapshot builds the current view without delivering it.
func (n *Notifier) Snapshot() entity.Snapshot {
	return entity.Snapshot{
		Tokens:  n.tokens.Enabled(),
		Tickers: n.tickers.Snapshot(),
	}
}

// Publish builds a snapshot and delivers it to the subscriber, if one is registered.
func (n *Notifier) Publish() entity.Snapshot {
	snap := n.Snapshot()

	n.mu.RLock()
	sub := n.sub
	n.mu.RUnlock()

	if sub == nil {
		n.logger.Debug("No subscriber registered, snapshot not delivered", zap.Int("tokens", len(snap.Tokens)))
		return snap
	}
	sub.OnSnapshot(snap)
	metrics.SnapshotsPublished.Inc()
	return snap
}

// ReportFailure delivers a typed failure instead of a snapshot.
func (n *Notifier) ReportFailure(kind entity.FailureKind) {
	n.mu.RLock()
	sub := n.sub
	n.mu.RUnlock()

	n.logger.Warn("Reporting failure to subscriber", zap.String("kind", string(kind)))
	if sub != nil {
		sub.OnFailure(kind)
	}
}
