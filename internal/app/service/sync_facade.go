package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"token_ledger/internal/app/port"
	"token_ledger/internal/domain/entity"
	"token_ledger/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrInvalidContract is returned when a custom token address is not a hex address.
var ErrInvalidContract = errors.New("invalid contract address")

// SyncFacadeDeps are the collaborators of a SyncFacade. TokenList may be nil on networks without a server list.
type SyncFacadeDeps struct {
	Network   entity.NetworkDefinition
	Owner     string
	Store     *TokenStore
	Notifier  *Notifier
	Balances  *BalanceRefreshCoordinator
	Prices    *PriceRefreshScheduler
	History   port.TransactionHistory
	TokenList port.TokenListProvider
	Events    *EventSink
}

// SyncFacade orchestrates full refresh passes for one account on one network and exposes its snapshot.
type SyncFacade struct {
	network   entity.NetworkDefinition
	owner     string
	store     *TokenStore
	notifier  *Notifier
	balances  *BalanceRefreshCoordinator
	prices    *PriceRefreshScheduler
	history   port.TransactionHistory
	tokenList port.TokenListProvider
	events    *EventSink
	logger    *zap.Logger

	syncMu    sync.Mutex
	closeOnce sync.Once
}

type syncStep struct {
	name string
	run  func(ctx context.Context) error
}

func NewSyncFacade(deps SyncFacadeDeps, logger *zap.Logger) (*SyncFacade, error) {
	if deps.Store == nil || deps.Notifier == nil || deps.Balances == nil || deps.Prices == nil || deps.History == nil {
		return nil, errors.New("sync facade: store, notifier, balances, prices and history are required")
	}
	if deps.Network.Capabilities.HasServerTokenList && deps.TokenList == nil {
		return nil, fmt.Errorf("sync facade: network %s requires a token list provider", deps.Network.Identifier)
	}
	return &SyncFacade{
		network:   deps.Network,
		owner:     entity.NormalizeAddress(deps.Owner),
		store:     deps.Store,
		notifier:  deps.Notifier,
		balances:  deps.Balances,
		prices:    deps.Prices,
		history:   deps.History,
		tokenList: deps.TokenList,
		events:    deps.Events,
		logger:    logger.Named("SyncFacade").With(zap.String("network", deps.Network.Identifier)),
	}, nil
}

// Open loads the persisted tokens, makes sure the native token exists and starts the price timer.
func (f *SyncFacade) Open(ctx context.Context) error {
	if err := f.store.Load(ctx); err != nil {
		return err
	}
	if err := f.store.EnsureNativeToken(ctx, f.network.NativeSpec()); err != nil {
		return err
	}
	f.prices.Start(ctx)
	return nil
}

// FullSync derives tokens from transaction history, upserts them and then runs the steps the network's
// capabilities call for. Price and balance failures are absorbed; history and storage failures are returned.
func (f *SyncFacade) FullSync(ctx context.Context) (err error) {
	f.syncMu.Lock()
	defer f.syncMu.Unlock()
	defer func() { metrics.FullSyncTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	for _, step := range f.plan() {
		f.logger.Debug("Running sync step", zap.String("step", step.name))
		if err := step.run(ctx); err != nil {
			f.logger.Error("Full sync aborted", zap.String("step", step.name), zap.Error(err))
			return fmt.Errorf("full sync %s: %w", step.name, err)
		}
	}
	f.logger.Info("Full sync completed", zap.String("owner", f.owner))
	return nil
}

// plan maps the network capability row to the ordered steps of a full sync.
func (f *SyncFacade) plan() []syncStep {
	steps := []syncStep{{name: "history", run: f.seedFromHistory}}
	if f.network.Capabilities.HasServerTokenList {
		steps = append(steps, syncStep{name: "token_list", run: f.mergeServerTokenList})
	}
	return append(steps,
		syncStep{name: "prices", run: f.refreshPrices},
		syncStep{name: "balances", run: f.refreshBalances},
	)
}

func (f *SyncFacade) seedFromHistory(ctx context.Context) error {
	txs, err := f.history.Transactions(ctx, f.owner)
	if err != nil {
		return fmt.Errorf("load transaction history: %w", err)
	}
	candidates := DeriveTokens(f.owner, f.network.ChainID, txs)
	f.logger.Debug("Derived tokens from history", zap.Int("transactions", len(txs)), zap.Int("candidates", len(candidates)))
	return f.store.Upsert(ctx, candidates)
}

func (f *SyncFacade) mergeServerTokenList(ctx context.Context) error {
	listed, err := f.tokenList.GetTokens(ctx, f.owner)
	if err != nil {
		f.logger.Warn("Server token list unavailable, continuing without it", zap.Error(err))
		f.events.Emit(entity.EventTokenListFailed, "", err)
		return nil
	}
	candidates := make([]entity.Token, 0, len(listed))
	for _, lt := range listed {
		if strings.TrimSpace(lt.Address) == "" {
			continue
		}
		candidates = append(candidates, entity.Token{
			Contract: lt.Address,
			Owner:    f.owner,
			ChainID:  f.network.ChainID,
			Name:     lt.Name,
			Symbol:   lt.Symbol,
			Decimals: lt.Decimals,
			Kind:     entity.TokenKindERC20,
		})
	}
	return f.store.Upsert(ctx, candidates)
}

func (f *SyncFacade) refreshPrices(ctx context.Context) error {
	if err := f.prices.RefreshNow(ctx); err != nil {
		if errors.Is(err, ErrSchedulerStopped) {
			return err
		}
		f.logger.Debug("Price refresh absorbed", zap.Error(err))
	}
	return nil
}

func (f *SyncFacade) refreshBalances(ctx context.Context) error {
	return f.balances.RefreshAndWait(ctx, f.owner)
}

// DeriveTokens turns every token operation of txs into a candidate token. Repeated contracts are kept;
// TokenStore.Upsert collapses them by key.
func DeriveTokens(owner string, chainID uint64, txs []entity.Transaction) []entity.Token {
	var out []entity.Token
	for _, tx := range txs {
		for _, op := range tx.Operations {
			if strings.TrimSpace(op.Contract) == "" {
				continue
			}
			out = append(out, entity.Token{
				Contract: op.Contract,
				Owner:    owner,
				ChainID:  chainID,
				Name:     op.Name,
				Symbol:   op.Symbol,
				Decimals: op.Decimals,
				Kind:     entity.TokenKindERC20,
			})
		}
	}
	return out
}

// AddCustomToken starts tracking a user-supplied contract and publishes the new snapshot.
func (f *SyncFacade) AddCustomToken(ctx context.Context, contract, symbol string, decimals uint8) (entity.Token, error) {
	contract = strings.TrimSpace(contract)
	if !common.IsHexAddress(contract) {
		return entity.Token{}, fmt.Errorf("%w: %q", ErrInvalidContract, contract)
	}
	token := entity.Token{
		Contract: contract,
		Owner:    f.owner,
		ChainID:  f.network.ChainID,
		Name:     symbol,
		Symbol:   symbol,
		Decimals: decimals,
		IsCustom: true,
		Kind:     entity.TokenKindERC20,
	}
	if err := f.store.Upsert(ctx, []entity.Token{token}); err != nil {
		return entity.Token{}, err
	}
	stored, _ := f.store.Get(contract)
	f.logger.Info("Custom token added", zap.String("contract", stored.Contract), zap.String("symbol", symbol))
	f.notifier.Publish()
	return stored, nil
}

// SetDisabled hides or shows a token and publishes the new snapshot.
func (f *SyncFacade) SetDisabled(ctx context.Context, contract string, disabled bool) error {
	if err := f.store.SetDisabled(ctx, contract, disabled); err != nil {
		return err
	}
	f.notifier.Publish()
	return nil
}

// CurrentSnapshot builds the current view without notifying anyone.
func (f *SyncFacade) CurrentSnapshot() entity.Snapshot {
	return f.notifier.Snapshot()
}

// Subscribe registers the single snapshot subscriber, replacing the previous one.
func (f *SyncFacade) Subscribe(sub Subscriber) {
	f.notifier.Subscribe(sub)
}

// ReportFailure forwards an explicit hard failure to the subscriber.
func (f *SyncFacade) ReportFailure(kind entity.FailureKind) {
	f.notifier.ReportFailure(kind)
}

// Events exposes absorbed refresh failures. It is nil when no sink was configured.
func (f *SyncFacade) Events() <-chan entity.RefreshEvent {
	return f.events.Events()
}

// Network returns the network the facade syncs.
func (f *SyncFacade) Network() entity.NetworkDefinition { return f.network }

// Close stops the price timer and turns late balance completions into no-ops.
func (f *SyncFacade) Close() {
	f.closeOnce.Do(func() {
		f.prices.Stop()
		f.balances.Close()
		f.events.Close()
		f.logger.Info("Sync facade closed")
	})
}
