package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the operation a ledger entry records.
type TransactionKind string

const (
	TransactionPurchase TransactionKind = "purchase"
	TransactionTrade    TransactionKind = "trade"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	return k == TransactionPurchase || k == TransactionTrade
}

// Direction is relative to the transaction's primary user.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionSent || d == DirectionReceived
}

// Opposite flips the direction.
func (d Direction) Opposite() Direction {
	if d == DirectionSent {
		return DirectionReceived
	}
	return DirectionSent
}

// Transaction is an immutable record of a completed purchase or trade.
type Transaction struct {
	ID                 string            `json:"id"`
	Kind               TransactionKind   `json:"kind"`
	PrimaryUserID      string            `json:"primary_user_id"`
	CounterpartyUserID *string           `json:"counterparty_user_id,omitempty"`
	Value              decimal.Decimal   `json:"value"`
	CompletedAt        time.Time         `json:"completed_at"`
	Lines              []TransactionLine `json:"lines"`
}

// TransactionLine is one game moved by a transaction.
type TransactionLine struct {
	TransactionID   string          `json:"-"`
	GameID          string          `json:"game_id"`
	AssetID         string          `json:"asset_id,omitempty"`
	PriceAtExchange decimal.Decimal `json:"price_at_exchange"`
	Direction       Direction       `json:"direction"`
}

// Sent returns the lines the primary user gave up.
func (t *Transaction) Sent() []TransactionLine {
	return t.linesWith(DirectionSent)
}

// Received returns the lines the primary user obtained.
func (t *Transaction) Received() []TransactionLine {
	return t.linesWith(DirectionReceived)
}

func (t *Transaction) linesWith(d Direction) []TransactionLine {
	out := make([]TransactionLine, 0, len(t.Lines))
	for _, l := range t.Lines {
		if l.Direction == d {
			out = append(out, l)
		}
	}
	return out
}

// PerspectiveOf returns a copy of the transaction as seen by userID.
// For the counterparty every direction is flipped. The stored row is never changed.
func (t *Transaction) PerspectiveOf(userID string) *Transaction {
	view := *t
	view.Lines = make([]TransactionLine, len(t.Lines))
	copy(view.Lines, t.Lines)

	if t.CounterpartyUserID == nil || *t.CounterpartyUserID != userID || t.PrimaryUserID == userID {
		return &view
	}
	for i := range view.Lines {
		view.Lines[i].Direction = view.Lines[i].Direction.Opposite()
	}
	return &view
}
