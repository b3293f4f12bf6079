package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// SettlementExecutor turns an accepted trade into ownership changes and a
// ledger record. Every step runs in the unit of work it is given, so a failure
// at any point leaves no trace once the caller rolls back.
type SettlementExecutor struct {
	ledger *LedgerRecorder
	now    func() time.Time
}

// NewSettlementExecutor creates an executor writing through ledger.
func NewSettlementExecutor(ledger *LedgerRecorder) *SettlementExecutor {
	return &SettlementExecutor{ledger: ledger, now: time.Now}
}

// Verify re-resolves every asset of t and checks it can still move.
// Assets are read (and locked) in ascending id order.
func (e *SettlementExecutor) Verify(ctx context.Context, uow repository.UnitOfWork, t *model.Trade) (map[string]*model.Asset, error) {
	sides := make(map[string]model.LineSide, len(t.Lines))
	for _, l := range t.Lines {
		sides[l.AssetID] = l.Side
	}

	assets := make(map[string]*model.Asset, len(t.Lines))
	for _, id := range t.SortedAssetIDs() {
		a, err := uow.GetAsset(ctx, id)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fmt.Errorf("%w: %s", ErrAssetMissing, id)
		}
		if a.OwnerID != t.GiverOf(sides[id]) {
			return nil, fmt.Errorf("%w: %s changed owner", ErrAssetNoLongerTradeable, id)
		}
		assets[id] = a
	}

	switch t.Type {
	case model.TradeTypeAsset:
		for _, id := range t.SortedAssetIDs() {
			if !assets[id].Tradeable {
				return nil, fmt.Errorf("%w: %s", ErrAssetNoLongerTradeable, id)
			}
		}
	case model.TradeTypeAccount:
		for _, userID := range []string{t.RequesterID, t.ResponderID} {
			acc, err := uow.GetAccount(ctx, userID)
			if err != nil {
				return nil, err
			}
			if !acc.AccountTradeable {
				return nil, fmt.Errorf("%w: account of %s", ErrAssetNoLongerTradeable, userID)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown trade type %q", ErrInvalidProposal, t.Type)
	}

	return assets, nil
}

// Settle executes t. The caller owns the unit of work and must roll it back
// on any returned error.
func (e *SettlementExecutor) Settle(ctx context.Context, uow repository.UnitOfWork, t *model.Trade) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SettlementExecutor.Settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("trade.id", t.ID),
		attribute.String("trade.type", string(t.Type)),
		attribute.Int("trade.lines", len(t.Lines)),
	)

	assets, err := e.Verify(ctx, uow, t)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	sides := make(map[string]model.LineSide, len(t.Lines))
	for _, l := range t.Lines {
		sides[l.AssetID] = l.Side
	}

	for _, id := range t.SortedAssetIDs() {
		a := assets[id]
		err := uow.SetOwner(ctx, id, t.ReceiverOf(sides[id]), a.Version)
		if errors.Is(err, repository.ErrOptimisticLock) {
			err = fmt.Errorf("%w: %s modified concurrently", ErrAssetNoLongerTradeable, id)
		}
		if err != nil {
			recordError(span, err)
			return nil, err
		}
	}

	at := e.now().UTC().Truncate(time.Millisecond)
	if err := uow.MarkAccepted(ctx, t.ID, at); err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			err = ErrAlreadySettled
		}
		recordError(span, err)
		return nil, err
	}

	txn := TradeTransaction(t, assets, at)
	if err := e.ledger.Record(ctx, uow, txn); err != nil {
		recordError(span, err)
		return nil, err
	}

	t.Status = model.TradeStatusAccepted
	t.RespondedAt = &at
	return txn, nil
}
