package service

import (
	"context"
	"testing"

	"arcadeswap-api/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAssetTradeable(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", false)
	ctx := context.Background()

	a, err := f.library.SetAssetTradeable(ctx, "alice", "a1", true)
	require.NoError(t, err)
	assert.True(t, a.Tradeable)
	assert.Equal(t, int64(2), a.Version)

	same, err := f.library.SetAssetTradeable(ctx, "alice", "a1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), same.Version, "no-op toggles do not write")

	_, err = f.library.SetAssetTradeable(ctx, "bob", "a1", false)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.library.SetAssetTradeable(ctx, "alice", "ghost", false)
	assert.ErrorIs(t, err, ErrAssetNotFound)

	assets, err := f.library.ListAssets(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.True(t, assets[0].Tradeable)
}

func TestSetAccountTradeable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.library.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, acc.AccountTradeable)

	acc, err = f.library.SetAccountTradeable(ctx, "alice", true)
	require.NoError(t, err)
	assert.True(t, acc.AccountTradeable)
	assert.Equal(t, int64(1), acc.Version)

	acc, err = f.library.SetAccountTradeable(ctx, "alice", false)
	require.NoError(t, err)
	assert.False(t, acc.AccountTradeable)
	assert.Equal(t, int64(2), acc.Version)
}

func TestGrantPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.library.GrantPurchase(ctx, "alice", "nebula")
	assert.ErrorIs(t, err, ErrGameNotFound)

	require.NoError(t, f.library.UpsertGame(ctx, &model.Game{ID: "nebula", Title: "Nebula Drift", Price: decimal.RequireFromString("14.50")}))

	asset, txn, err := f.library.GrantPurchase(ctx, "alice", "nebula")
	require.NoError(t, err)
	assert.Equal(t, "alice", asset.OwnerID)
	assert.False(t, asset.Tradeable)
	assert.Equal(t, model.TransactionPurchase, txn.Kind)
	assert.Nil(t, txn.CounterpartyUserID)
	assert.True(t, txn.Value.Equal(decimal.RequireFromString("14.50")))

	txns, err := f.library.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Len(t, txns[0].Received(), 1)
	assert.Equal(t, asset.ID, txns[0].Received()[0].AssetID)
	assert.True(t, txns[0].Received()[0].PriceAtExchange.Equal(decimal.RequireFromString("14.50")))
}

func TestUpsertGame_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.library.UpsertGame(ctx, &model.Game{ID: "", Title: "x"}), ErrInvalidInput)
	assert.ErrorIs(t, f.library.UpsertGame(ctx, &model.Game{ID: "g", Title: "x", Price: decimal.NewFromInt(-1)}), ErrInvalidInput)
}

func TestGrantPurchase_LedgerFailureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.library.UpsertGame(ctx, &model.Game{ID: "nebula", Title: "Nebula Drift", Price: decimal.NewFromInt(10)}))

	broken := NewLibraryService(&ledgerDownStore{Store: f.store})
	_, _, err := broken.GrantPurchase(ctx, "alice", "nebula")
	assert.ErrorIs(t, err, errLedgerDown)

	assets, err := f.library.ListAssets(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, assets)
}
