package service

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"token_ledger/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type balanceFixture struct {
	store    *TokenStore
	repo     *fakeRepo
	notifier *Notifier
	sub      *recordingSubscriber
	events   *EventSink
}

func newBalanceFixture(t *testing.T, tokens ...entity.Token) balanceFixture {
	t.Helper()
	ctx := context.Background()
	repo := &fakeRepo{}
	store := newTestStore(repo)
	require.NoError(t, store.EnsureNativeToken(ctx, testNative))
	require.NoError(t, store.Upsert(ctx, tokens))

	notifier := NewNotifier(store, NewPriceCache(), zap.NewNop())
	sub := &recordingSubscriber{}
	notifier.Subscribe(sub)
	return balanceFixture{store: store, repo: repo, notifier: notifier, sub: sub, events: NewEventSink(64)}
}

func (f balanceFixture) coordinator(q *fakeBalances) *BalanceRefreshCoordinator {
	return NewBalanceRefreshCoordinator(q, f.store, f.notifier, f.events, zap.NewNop(), BalanceRefreshOptions{MaxConcurrent: 4})
}

func TestBalanceRefresh_UpdatesTokenAndNative(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0xA", "AAA", "100"))
	q := &fakeBalances{tokens: map[string]*big.Int{"0xa": big.NewInt(150)}, native: big.NewInt(5)}

	require.NoError(t, fx.coordinator(q).RefreshAndWait(context.Background(), testOwner))

	assert.Equal(t, map[string]string{"0x": "5", "0xa": "150"}, values(fx.store.All()))
	require.Equal(t, 1, fx.sub.count())
	snap := fx.sub.last()
	assert.Equal(t, map[string]string{"0x": "5", "0xa": "150"}, values(snap.Tokens))
}

func TestBalanceRefresh_PartialFailureKeepsStaleValues(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0x1", "T1", "10"), erc20("0x2", "T2", "20"), erc20("0x3", "T3", "30"))
	q := &fakeBalances{
		tokens:    map[string]*big.Int{"0x3": big.NewInt(33)},
		tokenErrs: map[string]error{"0x1": errBoom, "0x2": errBoom},
		native:    big.NewInt(7),
	}

	require.NoError(t, fx.coordinator(q).RefreshAndWait(context.Background(), testOwner))

	assert.Equal(t, map[string]string{"0x": "7", "0x1": "10", "0x2": "20", "0x3": "33"}, values(fx.store.All()))
	snap := fx.sub.last()
	assert.Len(t, snap.Tokens, 4)

	failed := map[string]bool{}
	for len(fx.events.Events()) > 0 {
		ev := <-fx.events.Events()
		assert.Equal(t, entity.EventTokenBalanceFailed, ev.Kind)
		failed[ev.Contract] = true
	}
	assert.Equal(t, map[string]bool{"0x1": true, "0x2": true}, failed)
}

func TestBalanceRefresh_NativeQueryRunsOnceAfterAllTokens(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 17, 64} {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()
			var tokens []entity.Token
			q := &fakeBalances{
				tokens:    map[string]*big.Int{},
				tokenErrs: map[string]error{},
				native:    big.NewInt(1),
				jitter:    true,
			}
			for i := 0; i < n; i++ {
				contract := fmt.Sprintf("0x%03d", i)
				tokens = append(tokens, erc20(contract, "T", "0"))
				if i%3 == 0 {
					q.tokenErrs[contract] = errBoom
				} else {
					q.tokens[contract] = big.NewInt(int64(i))
				}
			}
			fx := newBalanceFixture(t, tokens...)

			require.NoError(t, fx.coordinator(q).RefreshAndWait(context.Background(), testOwner))

			assert.Equal(t, int64(1), q.nativeCalls.Load())
			assert.Equal(t, int64(n), q.seenAtNative.Load())
			assert.Equal(t, 1, fx.sub.count())
		})
	}
}

func TestBalanceRefresh_NativeFailureKeepsStaleValue(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0xA", "AAA", "1"))
	require.NoError(t, fx.store.SetBalance(context.Background(), entity.NativeContract, "9"))
	q := &fakeBalances{tokens: map[string]*big.Int{"0xa": big.NewInt(2)}, nativeErr: errBoom}

	require.NoError(t, fx.coordinator(q).RefreshAndWait(context.Background(), testOwner))

	assert.Equal(t, map[string]string{"0x": "9", "0xa": "2"}, values(fx.store.All()))
	assert.Equal(t, 1, fx.sub.count())
	ev := <-fx.events.Events()
	assert.Equal(t, entity.EventNativeBalanceFailed, ev.Kind)
}

func TestBalanceRefresh_NoEnabledTokensSkipsNativeButPublishes(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0xA", "AAA", "1"))
	require.NoError(t, fx.store.SetDisabled(context.Background(), "0xA", true))
	q := &fakeBalances{native: big.NewInt(5)}

	require.NoError(t, fx.coordinator(q).RefreshAndWait(context.Background(), testOwner))

	assert.Zero(t, q.nativeCalls.Load())
	assert.Zero(t, q.tokenCompletions.Load())
	assert.Equal(t, 1, fx.sub.count())
}

func TestBalanceRefresh_DisabledTokensAreNotQueried(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0xA", "AAA", "1"), erc20("0xB", "BBB", "1"))
	require.NoError(t, fx.store.SetDisabled(context.Background(), "0xB", true))
	q := &fakeBalances{tokens: map[string]*big.Int{"0xa": big.NewInt(3), "0xb": big.NewInt(4)}, native: big.NewInt(0)}

	require.NoError(t, fx.coordinator(q).RefreshAndWait(context.Background(), testOwner))

	assert.Equal(t, int64(1), q.tokenCompletions.Load())
	got, _ := fx.store.Get("0xB")
	assert.Equal(t, "1", got.Value)
}

func TestBalanceRefresh_DisabledNativeIsNotQueried(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0xA", "AAA", "1"))
	require.NoError(t, fx.store.SetDisabled(context.Background(), entity.NativeContract, true))
	q := &fakeBalances{tokens: map[string]*big.Int{"0xa": big.NewInt(9)}, native: big.NewInt(42)}

	require.NoError(t, fx.coordinator(q).RefreshAndWait(context.Background(), testOwner))

	assert.Zero(t, q.nativeCalls.Load())
	native, ok := fx.store.Get(entity.NativeContract)
	require.True(t, ok)
	assert.Equal(t, "0", native.Value)
	assert.True(t, native.IsDisabled)

	require.Equal(t, 1, fx.sub.count(), "the pass still joins and publishes")
	assert.Equal(t, map[string]string{"0xa": "9"}, values(fx.sub.last().Tokens))
}

func TestBalanceRefresh_StorageFailureIsReported(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0xA", "AAA", "1"))
	fx.repo.failSaves(errBoom)
	q := &fakeBalances{tokens: map[string]*big.Int{"0xa": big.NewInt(2)}, native: big.NewInt(3)}

	err := fx.coordinator(q).RefreshAndWait(context.Background(), testOwner)
	require.ErrorIs(t, err, ErrStorageCommit)
	assert.Equal(t, int64(1), q.nativeCalls.Load())
}

func TestBalanceRefresh_ClosedCoordinatorIgnoresLateCompletions(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0xA", "AAA", "1"))
	q := &fakeBalances{tokens: map[string]*big.Int{"0xa": big.NewInt(2)}, native: big.NewInt(3)}
	c := fx.coordinator(q)

	release := make(chan struct{})
	blocking := &blockingBalances{fakeBalances: q, release: release}
	c.querier = blocking

	done := c.Refresh(context.Background(), testOwner)
	c.Close()
	close(release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not complete")
	}
	assert.Equal(t, map[string]string{"0x": "0", "0xa": "1"}, values(fx.store.All()))
	assert.Zero(t, fx.sub.count())
	assert.Zero(t, q.nativeCalls.Load(), "no native query starts after Close")

	require.ErrorIs(t, <-c.Refresh(context.Background(), testOwner), ErrCoordinatorClosed)
}

type blockingBalances struct {
	*fakeBalances
	release chan struct{}
}

func (b *blockingBalances) GetTokenBalance(ctx context.Context, owner, contract string) (*big.Int, error) {
	<-b.release
	return b.fakeBalances.GetTokenBalance(ctx, owner, contract)
}

func TestBalanceRefresh_CancelledContextStillJoins(t *testing.T) {
	t.Parallel()
	fx := newBalanceFixture(t, erc20("0xA", "AAA", "1"), erc20("0xB", "BBB", "1"))
	q := &fakeBalances{tokens: map[string]*big.Int{"0xa": big.NewInt(2), "0xb": big.NewInt(2)}, native: big.NewInt(3)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	select {
	case err := <-fx.coordinator(q).Refresh(ctx, testOwner):
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not complete")
	}
	assert.Equal(t, 1, fx.sub.count())
}
