package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"arcadeswap-api/internal/model"
)

const assetColumns = "id, owner_id, game_id, tradeable, acquired_at, version"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*model.Asset, error) {
	var a model.Asset
	var acquiredAt int64
	if err := row.Scan(&a.ID, &a.OwnerID, &a.GameID, &a.Tradeable, &acquiredAt, &a.Version); err != nil {
		return nil, err
	}
	a.AcquiredAt = fromMillis(acquiredAt)
	return &a, nil
}

// GetAsset returns the asset by id, or nil, nil when missing.
func (s *queries) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	query := "SELECT " + assetColumns + " FROM assets WHERE id = ?" + s.d.lockClause(s.inTx)

	a, err := scanAsset(s.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", id, err)
	}
	return a, nil
}

// ListAssetsByOwner returns the owner's library, oldest acquisition first.
func (s *queries) ListAssetsByOwner(ctx context.Context, ownerID string) ([]*model.Asset, error) {
	query := "SELECT " + assetColumns + " FROM assets WHERE owner_id = ? ORDER BY acquired_at, id" + s.d.lockClause(s.inTx)

	rows, err := s.query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	assets := make([]*model.Asset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// CreateAsset inserts a new asset row.
func (s *queries) CreateAsset(ctx context.Context, asset *model.Asset) error {
	if asset.AcquiredAt.IsZero() {
		asset.AcquiredAt = time.Now()
	}
	asset.AcquiredAt = asset.AcquiredAt.UTC().Truncate(time.Millisecond)
	asset.Version = 1

	_, err := s.exec(ctx,
		"INSERT INTO assets ("+assetColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		asset.ID, asset.OwnerID, asset.GameID, asset.Tradeable, toMillis(asset.AcquiredAt), asset.Version,
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

// SetOwner transfers the asset and clears its tradeable flag.
func (s *queries) SetOwner(ctx context.Context, id, ownerID string, version int64) error {
	res, err := s.exec(ctx,
		"UPDATE assets SET owner_id = ?, tradeable = ?, version = version + 1 WHERE id = ? AND version = ?",
		ownerID, false, id, version,
	)
	if err != nil {
		return fmt.Errorf("failed to set owner of asset %s: %w", id, err)
	}
	return rowsAffectedOr(res, ErrOptimisticLock)
}

// SetTradeable updates the tradeable flag.
func (s *queries) SetTradeable(ctx context.Context, id string, tradeable bool, version int64) error {
	res, err := s.exec(ctx,
		"UPDATE assets SET tradeable = ?, version = version + 1 WHERE id = ? AND version = ?",
		tradeable, id, version,
	)
	if err != nil {
		return fmt.Errorf("failed to set tradeable on asset %s: %w", id, err)
	}
	return rowsAffectedOr(res, ErrOptimisticLock)
}

// GetAccount returns the account settings, or a zero account for unknown users.
func (s *queries) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	query := "SELECT user_id, account_tradeable, version, updated_at FROM accounts WHERE user_id = ?" + s.d.lockClause(s.inTx)

	var acc model.Account
	var updatedAt int64
	err := s.queryRow(ctx, query, userID).Scan(&acc.UserID, &acc.AccountTradeable, &acc.Version, &updatedAt)
	if err == sql.ErrNoRows {
		return &model.Account{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", userID, err)
	}
	acc.UpdatedAt = fromMillis(updatedAt)
	return &acc, nil
}

// SetAccountTradeable inserts the account row at version 1 when version is 0,
// otherwise updates it conditionally.
func (s *queries) SetAccountTradeable(ctx context.Context, userID string, tradeable bool, version int64) error {
	now := toMillis(time.Now())

	if version == 0 {
		_, err := s.exec(ctx,
			"INSERT INTO accounts (user_id, account_tradeable, version, updated_at) VALUES (?, ?, 1, ?)",
			userID, tradeable, now,
		)
		if err != nil {
			if s.d.isUniqueViolation(err) {
				return ErrOptimisticLock
			}
			return fmt.Errorf("failed to create account %s: %w", userID, err)
		}
		return nil
	}

	res, err := s.exec(ctx,
		"UPDATE accounts SET account_tradeable = ?, version = version + 1, updated_at = ? WHERE user_id = ? AND version = ?",
		tradeable, now, userID, version,
	)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", userID, err)
	}
	return rowsAffectedOr(res, ErrOptimisticLock)
}

// UpsertGame inserts or refreshes a catalog entry.
func (s *queries) UpsertGame(ctx context.Context, game *model.Game) error {
	if game.UpdatedAt.IsZero() {
		game.UpdatedAt = time.Now()
	}
	game.UpdatedAt = game.UpdatedAt.UTC().Truncate(time.Millisecond)
	_, err := s.exec(ctx, s.d.upsertGame, game.ID, game.Title, game.Price, toMillis(game.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert game %s: %w", game.ID, err)
	}
	return nil
}

// GetGame returns the catalog entry, or nil, nil when missing.
func (s *queries) GetGame(ctx context.Context, id string) (*model.Game, error) {
	var g model.Game
	var updatedAt int64
	err := s.queryRow(ctx, "SELECT id, title, price, updated_at FROM games WHERE id = ?", id).
		Scan(&g.ID, &g.Title, &g.Price, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", id, err)
	}
	g.UpdatedAt = fromMillis(updatedAt)
	return &g, nil
}
