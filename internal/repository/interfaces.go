package repository

import (
	"context"
	"time"

	"arcadeswap-api/internal/model"
)

// AssetStore defines owned-asset and account data access.
// Writes taking a version succeed only when the stored row still has that
// version and return ErrOptimisticLock otherwise.
type AssetStore interface {
	// GetAsset returns nil, nil when the asset does not exist.
	// Inside a unit of work the row is locked on backends that support it.
	GetAsset(ctx context.Context, id string) (*model.Asset, error)

	// ListAssetsByOwner returns every asset owned by ownerID, oldest first.
	ListAssetsByOwner(ctx context.Context, ownerID string) ([]*model.Asset, error)

	// CreateAsset inserts a new asset with version 1.
	CreateAsset(ctx context.Context, asset *model.Asset) error

	// SetOwner moves the asset to ownerID and clears its tradeable flag.
	SetOwner(ctx context.Context, id, ownerID string, version int64) error

	// SetTradeable updates the asset's tradeable flag.
	SetTradeable(ctx context.Context, id string, tradeable bool, version int64) error

	// GetAccount never returns nil for a nil error; unknown users get a zero account.
	GetAccount(ctx context.Context, userID string) (*model.Account, error)

	// SetAccountTradeable creates the account row when version is 0.
	SetAccountTradeable(ctx context.Context, userID string, tradeable bool, version int64) error
}

// GameStore defines catalog mirror access.
type GameStore interface {
	UpsertGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id string) (*model.Game, error)
}

// TradeStore defines trade and trade line access.
type TradeStore interface {
	// CreateTrade inserts the trade and all of its lines.
	CreateTrade(ctx context.Context, trade *model.Trade) error

	// GetTrade returns the trade with its lines, or nil, nil when absent.
	GetTrade(ctx context.Context, id string) (*model.Trade, error)

	// ListPendingBetween returns pending trades of the given type between a and b in either direction.
	ListPendingBetween(ctx context.Context, a, b string, tradeType model.TradeType) ([]*model.Trade, error)

	// ListTradesByUser returns trades where userID is either party, newest first.
	ListTradesByUser(ctx context.Context, userID string) ([]*model.Trade, error)

	// ListPendingTrades returns up to limit pending trades ordered after the
	// cursor, oldest first. The zero cursor starts at the oldest trade.
	ListPendingTrades(ctx context.Context, after PendingCursor, limit int) ([]*model.Trade, error)

	// MarkAccepted flips a pending trade to accepted. Returns ErrOptimisticLock
	// when the trade is no longer pending.
	MarkAccepted(ctx context.Context, id string, at time.Time) error

	// DeleteTrade removes a pending trade and its lines. Returns ErrNotFound
	// when no pending trade has that id.
	DeleteTrade(ctx context.Context, id string) error
}

// LedgerStore defines transaction ledger access. Rows are append-only.
type LedgerStore interface {
	RecordTransaction(ctx context.Context, txn *model.Transaction) error
	ListTransactionsByUser(ctx context.Context, userID string) ([]*model.Transaction, error)
}

// UnitOfWork groups every store so a single database transaction can span them.
type UnitOfWork interface {
	AssetStore
	GameStore
	TradeStore
	LedgerStore
}

// Store is the root persistence handle.
type Store interface {
	UnitOfWork

	// WithinTx runs fn inside one database transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// GetStats returns counters for the admin dashboard.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Driver returns the backend name (sqlite, mysql, postgres).
	Driver() string

	Close() error
}

// PendingCursor is a keyset position in the (created_at, id) order of
// pending trades.
type PendingCursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAfter returns the position just past t.
func CursorAfter(t *model.Trade) PendingCursor {
	return PendingCursor{CreatedAt: t.CreatedAt, ID: t.ID}
}

// IsZero reports whether c points at the start.
func (c PendingCursor) IsZero() bool {
	return c.ID == ""
}
