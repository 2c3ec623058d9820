package service

import (
	"context"
	"testing"

	"token_ledger/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifier_PublishBuildsSnapshotFromEnabledTokensAndTickers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(&fakeRepo{})
	require.NoError(t, store.EnsureNativeToken(ctx, testNative))
	require.NoError(t, store.Upsert(ctx, []entity.Token{erc20("0xB", "BBB", ""), erc20("0xA", "AAA", "")}))
	require.NoError(t, store.SetDisabled(ctx, "0xB", true))

	cache := NewPriceCache()
	cache.Replace([]entity.PriceQuote{{Contract: "0xa", Currency: "USD", Price: decimal.NewFromInt(3)}})

	n := NewNotifier(store, cache, zap.NewNop())
	sub := &recordingSubscriber{}
	n.Subscribe(sub)

	snap := n.Publish()
	require.Equal(t, 1, sub.count())
	assert.Equal(t, snap, sub.last())

	require.Len(t, snap.Tokens, 2)
	assert.Equal(t, "0x", snap.Tokens[0].Contract)
	assert.Equal(t, "0xa", snap.Tokens[1].Contract)
	q, ok := snap.Ticker("0xA")
	require.True(t, ok)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(3)))
}

func TestNotifier_SubscribeReplacesPrevious(t *testing.T) {
	t.Parallel()
	n := NewNotifier(newTestStore(&fakeRepo{}), NewPriceCache(), zap.NewNop())
	first, second := &recordingSubscriber{}, &recordingSubscriber{}

	n.Subscribe(first)
	n.Publish()
	n.Subscribe(second)
	n.Publish()
	n.ReportFailure(entity.FailedToFetch)

	assert.Equal(t, 1, first.count())
	assert.Empty(t, first.failures)
	assert.Equal(t, 1, second.count())
	assert.Equal(t, []entity.FailureKind{entity.FailedToFetch}, second.failures)

	n.Subscribe(nil)
	assert.NotPanics(t, func() {
		n.Publish()
		n.ReportFailure(entity.FailedToFetch)
	})
}

func TestSubscriberFuncs(t *testing.T) {
	t.Parallel()
	var gotSnapshot bool
	var gotFailure entity.FailureKind
	sub := SubscriberFuncs{
		Snapshot: func(entity.Snapshot) { gotSnapshot = true },
		Failure:  func(k entity.FailureKind) { gotFailure = k },
	}
	sub.OnSnapshot(entity.Snapshot{})
	sub.OnFailure(entity.FailedToFetch)
	assert.True(t, gotSnapshot)
	assert.Equal(t, entity.FailedToFetch, gotFailure)

	assert.NotPanics(t, func() {
		SubscriberFuncs{}.OnSnapshot(entity.Snapshot{})
		SubscriberFuncs{}.OnFailure(entity.FailedToFetch)
	})
}

func TestEventSink_DropsWhenFullAndIgnoresAfterClose(t *testing.T) {
	t.Parallel()
	sink := NewEventSink(1)
	sink.Emit(entity.EventTokenBalanceFailed, "0xa", errBoom)
	sink.Emit(entity.EventTokenBalanceFailed, "0xb", errBoom)

	ev := <-sink.Events()
	assert.Equal(t, "0xa", ev.Contract)
	assert.Equal(t, entity.EventTokenBalanceFailed, ev.Kind)
	assert.ErrorIs(t, ev.Err, errBoom)

	sink.Close()
	sink.Close()
	assert.NotPanics(t, func() { sink.Emit(entity.EventPriceRefreshFailed, "", errBoom) })
	_, open := <-sink.Events()
	assert.False(t, open)

	var nilSink *EventSink
	assert.NotPanics(t, func() {
		nilSink.Emit(entity.EventPriceRefreshFailed, "", errBoom)
		nilSink.Close()
	})
	assert.Nil(t, nilSink.Events())
}
