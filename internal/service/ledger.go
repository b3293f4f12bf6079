package service

import (
	"context"
	"fmt"
	"time"

	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/repository"
	"arcadeswap-api/pkg/uid"

	"github.com/shopspring/decimal"
)

// LedgerRecorder appends immutable transaction records. It always runs inside
// the caller's unit of work so the record commits or rolls back with the
// ownership change it describes.
type LedgerRecorder struct {
	now func() time.Time
}

// NewLedgerRecorder creates a recorder.
func NewLedgerRecorder() *LedgerRecorder {
	return &LedgerRecorder{now: time.Now}
}

// Record stamps and stores txn.
func (r *LedgerRecorder) Record(ctx context.Context, ledger repository.LedgerStore, txn *model.Transaction) error {
	if !txn.Kind.Valid() {
		return fmt.Errorf("unknown transaction kind %q", txn.Kind)
	}
	if len(txn.Lines) == 0 {
		return fmt.Errorf("transaction has no lines")
	}
	for _, line := range txn.Lines {
		if !line.Direction.Valid() {
			return fmt.Errorf("unknown line direction %q", line.Direction)
		}
	}

	if txn.ID == "" {
		txn.ID = uid.New()
	}
	if txn.CompletedAt.IsZero() {
		txn.CompletedAt = r.now().UTC().Truncate(time.Millisecond)
	}

	if err := ledger.RecordTransaction(ctx, txn); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// TradeTransaction builds the record of a settled trade from the requester's
// side: offered lines are sent, wanted lines are received. Trades carry no
// money, so value and line prices are zero.
func TradeTransaction(t *model.Trade, assets map[string]*model.Asset, at time.Time) *model.Transaction {
	counterparty := t.ResponderID
	txn := &model.Transaction{
		Kind:               model.TransactionTrade,
		PrimaryUserID:      t.RequesterID,
		CounterpartyUserID: &counterparty,
		Value:              decimal.Zero,
		CompletedAt:        at,
		Lines:              make([]model.TransactionLine, 0, len(t.Lines)),
	}

	for _, side := range []model.LineSide{model.SideOffered, model.SideWanted} {
		direction := model.DirectionSent
		if side == model.SideWanted {
			direction = model.DirectionReceived
		}
		for _, l := range t.Lines {
			if l.Side != side {
				continue
			}
			line := model.TransactionLine{
				AssetID:         l.AssetID,
				PriceAtExchange: decimal.Zero,
				Direction:       direction,
			}
			if a, ok := assets[l.AssetID]; ok {
				line.GameID = a.GameID
			}
			txn.Lines = append(txn.Lines, line)
		}
	}
	return txn
}

// PurchaseTransaction builds the record of a storefront purchase.
func PurchaseTransaction(userID string, game *model.Game, assetID string, at time.Time) *model.Transaction {
	return &model.Transaction{
		Kind:          model.TransactionPurchase,
		PrimaryUserID: userID,
		Value:         game.Price,
		CompletedAt:   at,
		Lines: []model.TransactionLine{{
			GameID:          game.ID,
			AssetID:         assetID,
			PriceAtExchange: game.Price,
			Direction:       model.DirectionReceived,
		}},
	}
}
