package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "token_ledger"

var (
	// BalanceQueriesTotal counts terminal balance query outcomes by kind (token|native) and result (ok|error).
	BalanceQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "balance_queries_total",
		Help:      "Balance queries by kind and result.",
	}, []string{"kind", "result"})

	// BalanceRefreshDuration observes a whole fan-out/fan-in refresh pass.
	BalanceRefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "balance_refresh_duration_seconds",
		Help:      "Duration of a balance refresh pass.",
		Buckets:   prometheus.DefBuckets,
	})

	// PriceRefreshTotal counts price refresh cycles by result (ok|error).
	PriceRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_refresh_total",
		Help:      "Price refresh cycles by result.",
	}, []string{"result"})

	// CachedTickers is the size of the installed price map.
	CachedTickers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cached_tickers",
		Help:      "Number of price quotes held in the cache.",
	})

	// FullSyncTotal counts full sync passes by result.
	FullSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "full_sync_total",
		Help:      "Full sync passes by result.",
	}, []string{"result"})

	// SnapshotsPublished counts snapshots delivered to the subscriber.
	SnapshotsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_published_total",
		Help:      "Snapshots delivered to the subscriber.",
	})

	// RefreshEventsDropped counts absorbed-failure events that did not fit the event channel.
	RefreshEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_events_dropped_total",
		Help:      "Refresh events dropped because the consumer was not keeping up.",
	})

	// TokenStoreCommitErrors counts failed persistence commits.
	TokenStoreCommitErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_store_commit_errors_total",
		Help:      "Failed token store commits.",
	})
)

var registerOnce sync.Once

// MustRegisterMetrics registers all collectors with the default registry. Safe to call more than once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			BalanceQueriesTotal,
			BalanceRefreshDuration,
			PriceRefreshTotal,
			CachedTickers,
			FullSyncTotal,
			SnapshotsPublished,
			RefreshEventsDropped,
			TokenStoreCommitErrors,
		)
	})
}

// Result maps an error to a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
