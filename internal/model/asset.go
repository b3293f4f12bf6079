package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game is a catalog entry mirrored from the storefront catalog.
type Game struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Asset is a single owned license of a game.
// Version is bumped by every write and guards concurrent mutation.
type Asset struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	GameID     string    `json:"game_id"`
	Tradeable  bool      `json:"tradeable"`
	AcquiredAt time.Time `json:"acquired_at"`
	Version    int64     `json:"version"`
}

// Account holds per-user trade settings. A user without a stored row has
// Version 0 and AccountTradeable false.
type Account struct {
	UserID           string    `json:"user_id"`
	AccountTradeable bool      `json:"account_tradeable"`
	Version          int64     `json:"version"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// AssetIDs returns the ids of the given assets in order.
func AssetIDs(assets []*Asset) []string {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	return ids
}
