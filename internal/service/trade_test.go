package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"arcadeswap-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropose_RejectsMalformedInput(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	ctx := context.Background()

	cases := []struct {
		name string
		p    Proposal
	}{
		{"self trade", Proposal{RequesterID: "alice", ResponderID: "alice", OfferedAssetIDs: []string{"a1"}, Type: model.TradeTypeAsset}},
		{"missing responder", Proposal{RequesterID: "alice", OfferedAssetIDs: []string{"a1"}, Type: model.TradeTypeAsset}},
		{"unknown type", Proposal{RequesterID: "alice", ResponderID: "bob", OfferedAssetIDs: []string{"a1"}, Type: "bundle"}},
		{"no assets", Proposal{RequesterID: "alice", ResponderID: "bob", Type: model.TradeTypeAsset}},
		{"blank id", Proposal{RequesterID: "alice", ResponderID: "bob", OfferedAssetIDs: []string{" "}, Type: model.TradeTypeAsset}},
		{"repeated id", Proposal{RequesterID: "alice", ResponderID: "bob", OfferedAssetIDs: []string{"a1", "a1"}, Type: model.TradeTypeAsset}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.trades.Propose(ctx, tc.p)
			assert.ErrorIs(t, err, ErrInvalidProposal)
		})
	}
}

func TestPropose_Ownership(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "b1", "bob", true)
	f.asset(t, "c1", "carol", true)
	ctx := context.Background()

	_, err := f.trades.Propose(ctx, Proposal{RequesterID: "alice", ResponderID: "bob", OfferedAssetIDs: []string{"b1"}, Type: model.TradeTypeAsset})
	assert.ErrorIs(t, err, ErrNotOwner, "offering someone else's asset")

	_, err = f.trades.Propose(ctx, Proposal{RequesterID: "alice", ResponderID: "bob", OfferedAssetIDs: []string{"a1"}, WantedAssetIDs: []string{"c1"}, Type: model.TradeTypeAsset})
	assert.ErrorIs(t, err, ErrNotOwner, "wanting an asset the responder does not own")

	_, err = f.trades.Propose(ctx, Proposal{RequesterID: "alice", ResponderID: "bob", OfferedAssetIDs: []string{"ghost"}, Type: model.TradeTypeAsset})
	assert.ErrorIs(t, err, ErrNotOwner, "offering an unknown asset")

	trades, err := f.trades.ListTrades(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestPropose_RequiresTradeableAssets(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "b1", "bob", false)

	_, err := f.trades.Propose(context.Background(), Proposal{
		RequesterID: "alice", ResponderID: "bob",
		OfferedAssetIDs: []string{"a1"}, WantedAssetIDs: []string{"b1"},
		Type: model.TradeTypeAsset,
	})
	assert.ErrorIs(t, err, ErrAssetNotTradeable)
}

func TestPropose_DuplicatePendingUsesSetEquality(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "a2", "alice", true)
	f.asset(t, "b1", "bob", true)
	f.asset(t, "b2", "bob", true)
	ctx := context.Background()

	first := f.propose(t, "alice", "bob", []string{"a1", "a2"}, []string{"b1"})
	assert.Equal(t, model.TradeStatusPending, first.Status)

	_, err := f.trades.Propose(ctx, Proposal{
		RequesterID: "alice", ResponderID: "bob",
		OfferedAssetIDs: []string{"a2", "a1"}, WantedAssetIDs: []string{"b1"},
		Type: model.TradeTypeAsset,
	})
	assert.ErrorIs(t, err, ErrDuplicatePending, "same sets in another order")

	_, err = f.trades.Propose(ctx, Proposal{
		RequesterID: "bob", ResponderID: "alice",
		OfferedAssetIDs: []string{"b1"}, WantedAssetIDs: []string{"a1", "a2"},
		Type: model.TradeTypeAsset,
	})
	assert.ErrorIs(t, err, ErrDuplicatePending, "mirrored proposal is the same exchange")

	second := f.propose(t, "alice", "bob", []string{"a1", "a2"}, []string{"b1", "b2"})
	assert.NotEqual(t, first.ID, second.ID, "different wanted set is a new trade")
}

func TestPropose_ConcurrentDuplicatesOneWins(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "b1", "bob", true)

	var created, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.trades.Propose(context.Background(), Proposal{
				RequesterID: "alice", ResponderID: "bob",
				OfferedAssetIDs: []string{"a1"}, WantedAssetIDs: []string{"b1"},
				Type: model.TradeTypeAsset,
			})
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, ErrDuplicatePending):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(9), dup.Load())
}

func TestPropose_AccountTrade(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", false)
	f.asset(t, "a2", "alice", false)
	f.asset(t, "b1", "bob", false)
	ctx := context.Background()
	p := Proposal{RequesterID: "alice", ResponderID: "bob", Type: model.TradeTypeAccount}

	_, err := f.trades.Propose(ctx, p)
	assert.ErrorIs(t, err, ErrAssetNotTradeable, "accounts not flagged")

	f.accountTradeable(t, "alice")
	_, err = f.trades.Propose(ctx, p)
	assert.ErrorIs(t, err, ErrAssetNotTradeable, "responder account not flagged")

	f.accountTradeable(t, "bob")
	trade, err := f.trades.Propose(ctx, p)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, trade.OfferedAssetIDs(), "per-asset flags are ignored")
	assert.ElementsMatch(t, []string{"b1"}, trade.WantedAssetIDs())

	_, err = f.trades.Propose(ctx, Proposal{RequesterID: "bob", ResponderID: "alice", Type: model.TradeTypeAccount})
	assert.ErrorIs(t, err, ErrDuplicatePending, "any pending account trade for the pair")

	out, err := f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, out.Status)
	assert.Equal(t, "bob", f.get(t, "a1").OwnerID)
	assert.Equal(t, "alice", f.get(t, "b1").OwnerID)
}

func TestPropose_AccountTradeIgnoresSuppliedIDs(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", false)
	f.asset(t, "b1", "bob", false)
	f.asset(t, "c1", "carol", false)
	f.accountTradeable(t, "alice")
	f.accountTradeable(t, "bob")

	trade, err := f.trades.Propose(context.Background(), Proposal{
		RequesterID:     "alice",
		ResponderID:     "bob",
		OfferedAssetIDs: []string{"c1"},
		WantedAssetIDs:  []string{"ghost"},
		Type:            model.TradeTypeAccount,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, trade.OfferedAssetIDs())
	assert.Equal(t, []string{"b1"}, trade.WantedAssetIDs())
}

func TestRespond_AccountFlagClearedAfterProposal(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", false)
	f.asset(t, "b1", "bob", false)
	f.accountTradeable(t, "alice")
	f.accountTradeable(t, "bob")
	ctx := context.Background()

	trade, err := f.trades.Propose(ctx, Proposal{RequesterID: "alice", ResponderID: "bob", Type: model.TradeTypeAccount})
	require.NoError(t, err)

	_, err = f.library.SetAccountTradeable(ctx, "alice", false)
	require.NoError(t, err)

	_, err = f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	assert.ErrorIs(t, err, ErrAssetNoLongerTradeable)
	assert.True(t, IsStale(err))

	assert.Equal(t, "alice", f.get(t, "a1").OwnerID)
	assert.Equal(t, "bob", f.get(t, "b1").OwnerID)

	_, err = f.trades.GetTrade(ctx, trade.ID, "bob")
	assert.ErrorIs(t, err, ErrNotFound, "stale trades are discarded")

	for _, user := range []string{"alice", "bob"} {
		txns, err := f.library.ListTransactions(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, txns, user)
	}
}

func TestSettle_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "a2", "alice", true)
	f.asset(t, "b1", "bob", true)
	ctx := context.Background()

	trade := f.propose(t, "alice", "bob", []string{"a1", "a2"}, []string{"b1"})

	out, err := f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	require.NoError(t, err)
	require.NotNil(t, out.Transaction)
	assert.NotEmpty(t, out.TransactionID)

	for _, id := range []string{"a1", "a2"} {
		a := f.get(t, id)
		assert.Equal(t, "bob", a.OwnerID)
		assert.False(t, a.Tradeable)
	}
	b1 := f.get(t, "b1")
	assert.Equal(t, "alice", b1.OwnerID)
	assert.False(t, b1.Tradeable)

	stored, err := f.trades.GetTrade(ctx, trade.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.TradeStatusAccepted, stored.Status)
	assert.NotNil(t, stored.RespondedAt)

	aliceTxns, err := f.library.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceTxns, 1)
	txn := aliceTxns[0]
	assert.Equal(t, model.TransactionTrade, txn.Kind)
	assert.Equal(t, "alice", txn.PrimaryUserID)
	require.NotNil(t, txn.CounterpartyUserID)
	assert.Equal(t, "bob", *txn.CounterpartyUserID)
	assert.True(t, txn.Value.IsZero())
	assert.Len(t, txn.Lines, 3)
	assert.Len(t, txn.Sent(), 2)
	assert.Len(t, txn.Received(), 1)
	assert.Equal(t, "game-b1", txn.Received()[0].GameID)

	bobTxns, err := f.library.ListTransactions(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobTxns, 1)
	assert.Len(t, bobTxns[0].Received(), 2)
}

func TestRespond_Authorization(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	ctx := context.Background()
	trade := f.propose(t, "alice", "bob", []string{"a1"}, nil)

	_, err := f.trades.Respond(ctx, trade.ID, "alice", model.DecisionAccept)
	assert.ErrorIs(t, err, ErrNotAuthorized, "requester cannot accept")

	_, err = f.trades.Respond(ctx, trade.ID, "mallory", model.DecisionReject)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.trades.GetTrade(ctx, trade.ID, "mallory")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.trades.Respond(ctx, "missing", "bob", model.DecisionAccept)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.trades.Respond(ctx, trade.ID, "bob", "maybe")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	assert.Equal(t, "alice", f.get(t, "a1").OwnerID)
}

func TestRespond_RejectLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "b1", "bob", true)
	ctx := context.Background()
	trade := f.propose(t, "alice", "bob", []string{"a1"}, []string{"b1"})

	out, err := f.trades.Respond(ctx, trade.ID, "bob", model.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, out.Status)

	_, err = f.trades.Respond(ctx, trade.ID, "bob", model.DecisionReject)
	assert.ErrorIs(t, err, ErrNotFound)

	a1 := f.get(t, "a1")
	assert.Equal(t, "alice", a1.OwnerID)
	assert.True(t, a1.Tradeable)
	assert.Equal(t, int64(1), a1.Version)

	trades, err := f.trades.ListTrades(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, trades)

	txns, err := f.library.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestRespond_RequesterWithdraws(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	trade := f.propose(t, "alice", "bob", []string{"a1"}, nil)

	_, err := f.trades.Respond(context.Background(), trade.ID, "alice", model.DecisionReject)
	require.NoError(t, err)

	_, err = f.trades.GetTrade(context.Background(), trade.ID, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRespond_TerminalStateIsFinal(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	ctx := context.Background()
	trade := f.propose(t, "alice", "bob", []string{"a1"}, nil)

	_, err := f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	require.NoError(t, err)

	_, err = f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	assert.ErrorIs(t, err, ErrAlreadySettled)
	_, err = f.trades.Respond(ctx, trade.ID, "alice", model.DecisionReject)
	assert.ErrorIs(t, err, ErrAlreadySettled)

	stored, err := f.trades.GetTrade(ctx, trade.ID, "bob")
	require.NoError(t, err, "accepted trades are kept")
	assert.Equal(t, model.TradeStatusAccepted, stored.Status)

	txns, err := f.library.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestRespond_StaleAssetAborts(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "a2", "alice", true)
	f.asset(t, "b1", "bob", true)
	ctx := context.Background()
	trade := f.propose(t, "alice", "bob", []string{"a1", "a2"}, []string{"b1"})

	_, err := f.library.SetAssetTradeable(ctx, "alice", "a2", false)
	require.NoError(t, err)

	_, err = f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	assert.ErrorIs(t, err, ErrAssetNoLongerTradeable)
	assert.True(t, IsStale(err))

	assert.Equal(t, "alice", f.get(t, "a1").OwnerID)
	assert.True(t, f.get(t, "a1").Tradeable)
	assert.Equal(t, "bob", f.get(t, "b1").OwnerID)

	_, err = f.trades.GetTrade(ctx, trade.ID, "bob")
	assert.ErrorIs(t, err, ErrNotFound, "stale trades are discarded")

	txns, err := f.library.ListTransactions(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestRespond_MissingAssetAborts(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	ctx := context.Background()

	trade := &model.Trade{
		ID:          "t-missing",
		RequesterID: "alice",
		ResponderID: "bob",
		Status:      model.TradeStatusPending,
		Type:        model.TradeTypeAsset,
		Lines:       model.NewTradeLines([]string{"a1"}, []string{"vanished"}),
	}
	require.NoError(t, f.store.CreateTrade(ctx, trade))

	_, err := f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	assert.ErrorIs(t, err, ErrAssetMissing)
	assert.Equal(t, "alice", f.get(t, "a1").OwnerID)

	gone, err := f.store.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRespond_NoDoubleSpend(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "b1", "bob", true)
	f.asset(t, "c1", "carol", true)
	ctx := context.Background()

	toBob := f.propose(t, "alice", "bob", []string{"a1"}, []string{"b1"})
	toCarol := f.propose(t, "alice", "carol", []string{"a1"}, []string{"c1"})

	var wins, stale atomic.Int32
	var wg sync.WaitGroup
	for _, accept := range []struct{ trade, user string }{{toBob.ID, "bob"}, {toCarol.ID, "carol"}} {
		wg.Add(1)
		go func(tradeID, userID string) {
			defer wg.Done()
			_, err := f.trades.Respond(ctx, tradeID, userID, model.DecisionAccept)
			switch {
			case err == nil:
				wins.Add(1)
			case IsStale(err):
				stale.Add(1)
			}
		}(accept.trade, accept.user)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), stale.Load())

	owner := f.get(t, "a1").OwnerID
	assert.Contains(t, []string{"bob", "carol"}, owner)

	txns, err := f.library.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestRespond_ConcurrentAcceptsOfOneTrade(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	ctx := context.Background()
	trade := f.propose(t, "alice", "bob", []string{"a1"}, nil)

	var wins, losers atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAlreadySettled), errors.Is(err, ErrNotFound):
				losers.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(7), losers.Load())

	txns, err := f.library.ListTransactions(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestRespond_StorageFailureRollsBackAndKeepsTrade(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "b1", "bob", true)
	ctx := context.Background()
	trade := f.propose(t, "alice", "bob", []string{"a1"}, []string{"b1"})

	broken := NewTradeService(&ledgerDownStore{Store: f.store}, f.locker, TradeServiceConfig{})
	_, err := broken.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	assert.ErrorIs(t, err, errLedgerDown)
	assert.False(t, IsStale(err))

	a1 := f.get(t, "a1")
	assert.Equal(t, "alice", a1.OwnerID)
	assert.True(t, a1.Tradeable)
	assert.Equal(t, int64(1), a1.Version)
	assert.Equal(t, "bob", f.get(t, "b1").OwnerID)

	stored, err := f.trades.GetTrade(ctx, trade.ID, "bob")
	require.NoError(t, err)
	assert.True(t, stored.IsPending(), "infra failures leave the trade retryable")

	_, err = f.trades.Respond(ctx, trade.ID, "bob", model.DecisionAccept)
	require.NoError(t, err, "retry succeeds once storage is back")
}

func TestPurgeStale(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "a2", "alice", true)
	f.asset(t, "b1", "bob", true)
	ctx := context.Background()

	keep := f.propose(t, "alice", "bob", []string{"a1"}, []string{"b1"})
	doomed := f.propose(t, "alice", "bob", []string{"a2"}, []string{"b1"})

	_, err := f.library.SetAssetTradeable(ctx, "alice", "a2", false)
	require.NoError(t, err)

	purged, err := f.trades.PurgeStale(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = f.trades.GetTrade(ctx, doomed.ID, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.trades.GetTrade(ctx, keep.ID, "alice")
	assert.NoError(t, err)

	again, err := f.trades.PurgeStale(ctx, 50)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestPurgeStale_ReachesTradesBeyondFirstPage(t *testing.T) {
	f := newFixture(t)
	f.asset(t, "a1", "alice", true)
	f.asset(t, "a2", "alice", true)
	f.asset(t, "a3", "alice", true)
	f.asset(t, "b1", "bob", true)
	ctx := context.Background()

	keep := f.propose(t, "alice", "bob", []string{"a1"}, []string{"b1"})
	doomed := f.propose(t, "alice", "bob", []string{"a2"}, []string{"b1"})
	alsoDoomed := f.propose(t, "alice", "bob", []string{"a3"}, []string{"b1"})

	_, err := f.library.SetAssetTradeable(ctx, "alice", "a2", false)
	require.NoError(t, err)
	_, err = f.library.SetAssetTradeable(ctx, "alice", "a3", false)
	require.NoError(t, err)

	purged, err := f.trades.PurgeStale(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	for _, id := range []string{doomed.ID, alsoDoomed.ID} {
		_, err = f.trades.GetTrade(ctx, id, "alice")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err = f.trades.GetTrade(ctx, keep.ID, "alice")
	assert.NoError(t, err)
}
