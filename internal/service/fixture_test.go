package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"arcadeswap-api/internal/lock"
	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/repository"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *repository.SQLStore
	locker  *lock.MemoryLocker
	trades  *TradeService
	library *LibraryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	locker := lock.NewMemoryLocker()
	t.Cleanup(func() { _ = locker.Close() })

	return &fixture{
		store:   store,
		locker:  locker,
		trades:  NewTradeService(store, locker, TradeServiceConfig{}),
		library: NewLibraryService(store),
	}
}

func (f *fixture) asset(t *testing.T, id, owner string, tradeable bool) {
	t.Helper()
	require.NoError(t, f.store.CreateAsset(context.Background(), &model.Asset{
		ID:        id,
		OwnerID:   owner,
		GameID:    "game-" + id,
		Tradeable: tradeable,
	}))
}

func (f *fixture) get(t *testing.T, id string) *model.Asset {
	t.Helper()
	a, err := f.store.GetAsset(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a, "asset %s", id)
	return a
}

func (f *fixture) accountTradeable(t *testing.T, userID string) {
	t.Helper()
	_, err := f.library.SetAccountTradeable(context.Background(), userID, true)
	require.NoError(t, err)
}

func (f *fixture) propose(t *testing.T, from, to string, offered, wanted []string) *model.Trade {
	t.Helper()
	trade, err := f.trades.Propose(context.Background(), Proposal{
		RequesterID:     from,
		ResponderID:     to,
		OfferedAssetIDs: offered,
		WantedAssetIDs:  wanted,
		Type:            model.TradeTypeAsset,
	})
	require.NoError(t, err)
	return trade
}

var errLedgerDown = errors.New("ledger unavailable")

// ledgerDownStore fails every RecordTransaction made inside a unit of work.
type ledgerDownStore struct {
	repository.Store
}

func (s *ledgerDownStore) WithinTx(ctx context.Context, fn func(ctx context.Context, uow repository.UnitOfWork) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		return fn(ctx, ledgerDownUnit{uow})
	})
}

type ledgerDownUnit struct {
	repository.UnitOfWork
}

func (ledgerDownUnit) RecordTransaction(ctx context.Context, txn *model.Transaction) error {
	return errLedgerDown
}
