package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"arcadeswap-api/internal/model"
)

const tradeColumns = "id, requester_id, responder_id, status, trade_type, created_at, responded_at"

func scanTrade(row rowScanner) (*model.Trade, error) {
	var t model.Trade
	var createdAt int64
	var respondedAt sql.NullInt64
	if err := row.Scan(&t.ID, &t.RequesterID, &t.ResponderID, &t.Status, &t.Type, &createdAt, &respondedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = fromMillis(createdAt)
	if respondedAt.Valid {
		at := fromMillis(respondedAt.Int64)
		t.RespondedAt = &at
	}
	return &t, nil
}

// CreateTrade inserts the trade and its lines.
func (s *queries) CreateTrade(ctx context.Context, trade *model.Trade) error {
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}
	trade.CreatedAt = trade.CreatedAt.UTC().Truncate(time.Millisecond)

	var respondedAt sql.NullInt64
	if trade.RespondedAt != nil {
		respondedAt = sql.NullInt64{Int64: toMillis(*trade.RespondedAt), Valid: true}
	}

	_, err := s.exec(ctx,
		"INSERT INTO trades ("+tradeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		trade.ID, trade.RequesterID, trade.ResponderID, string(trade.Status), string(trade.Type),
		toMillis(trade.CreatedAt), respondedAt,
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create trade: %w", err)
	}

	for i := range trade.Lines {
		line := &trade.Lines[i]
		line.TradeID = trade.ID
		_, err := s.exec(ctx,
			"INSERT INTO trade_lines (trade_id, asset_id, side, position) VALUES (?, ?, ?, ?)",
			trade.ID, line.AssetID, string(line.Side), i,
		)
		if err != nil {
			return fmt.Errorf("failed to create trade line %s: %w", line.AssetID, err)
		}
	}
	return nil
}

// GetTrade loads a trade with its lines. Inside a unit of work the trade row
// is locked on backends that support it.
func (s *queries) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	query := "SELECT " + tradeColumns + " FROM trades WHERE id = ?" + s.d.lockClause(s.inTx)

	t, err := scanTrade(s.queryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %s: %w", id, err)
	}

	if err := s.loadLines(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListPendingBetween returns pending trades of tradeType between a and b in either direction.
func (s *queries) ListPendingBetween(ctx context.Context, a, b string, tradeType model.TradeType) ([]*model.Trade, error) {
	return s.listTrades(ctx,
		"SELECT "+tradeColumns+" FROM trades WHERE status = ? AND trade_type = ?"+
			" AND ((requester_id = ? AND responder_id = ?) OR (requester_id = ? AND responder_id = ?))"+
			" ORDER BY created_at, id",
		string(model.TradeStatusPending), string(tradeType), a, b, b, a,
	)
}

// ListTradesByUser returns every trade the user takes part in, newest first.
func (s *queries) ListTradesByUser(ctx context.Context, userID string) ([]*model.Trade, error) {
	return s.listTrades(ctx,
		"SELECT "+tradeColumns+" FROM trades WHERE requester_id = ? OR responder_id = ? ORDER BY created_at DESC, id",
		userID, userID,
	)
}

// ListPendingTrades returns up to limit pending trades after the cursor, oldest first.
func (s *queries) ListPendingTrades(ctx context.Context, after PendingCursor, limit int) ([]*model.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	if after.IsZero() {
		return s.listTrades(ctx,
			"SELECT "+tradeColumns+" FROM trades WHERE status = ? ORDER BY created_at, id LIMIT ?",
			string(model.TradeStatusPending), limit,
		)
	}
	at := toMillis(after.CreatedAt)
	return s.listTrades(ctx,
		"SELECT "+tradeColumns+" FROM trades WHERE status = ? AND (created_at > ? OR (created_at = ? AND id > ?))"+
			" ORDER BY created_at, id LIMIT ?",
		string(model.TradeStatusPending), at, at, after.ID, limit,
	)
}

func (s *queries) listTrades(ctx context.Context, query string, args ...any) ([]*model.Trade, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}

	trades := make([]*model.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	// Lines are loaded after the cursor is released; a transaction holds a single connection.
	rows.Close()

	for _, t := range trades {
		if err := s.loadLines(ctx, t); err != nil {
			return nil, err
		}
	}
	return trades, nil
}

func (s *queries) loadLines(ctx context.Context, t *model.Trade) error {
	rows, err := s.query(ctx,
		"SELECT asset_id, side FROM trade_lines WHERE trade_id = ? ORDER BY position", t.ID)
	if err != nil {
		return fmt.Errorf("failed to load lines of trade %s: %w", t.ID, err)
	}
	defer rows.Close()

	t.Lines = make([]model.TradeLine, 0)
	for rows.Next() {
		line := model.TradeLine{TradeID: t.ID}
		if err := rows.Scan(&line.AssetID, &line.Side); err != nil {
			return fmt.Errorf("failed to scan trade line: %w", err)
		}
		t.Lines = append(t.Lines, line)
	}
	return rows.Err()
}

// MarkAccepted flips a pending trade to accepted.
func (s *queries) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx,
		"UPDATE trades SET status = ?, responded_at = ? WHERE id = ? AND status = ?",
		string(model.TradeStatusAccepted), toMillis(at), id, string(model.TradeStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to accept trade %s: %w", id, err)
	}
	return rowsAffectedOr(res, ErrOptimisticLock)
}

// DeleteTrade removes a pending trade and its lines. Run it inside a unit of
// work so the two deletes commit together.
func (s *queries) DeleteTrade(ctx context.Context, id string) error {
	var status string
	err := s.queryRow(ctx, "SELECT status FROM trades WHERE id = ?"+s.d.lockClause(s.inTx), id).Scan(&status)
	if err == sql.ErrNoRows || (err == nil && status != string(model.TradeStatusPending)) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check trade %s: %w", id, err)
	}

	if _, err := s.exec(ctx, "DELETE FROM trade_lines WHERE trade_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete lines of trade %s: %w", id, err)
	}

	res, err := s.exec(ctx, "DELETE FROM trades WHERE id = ? AND status = ?", id, string(model.TradeStatusPending))
	if err != nil {
		return fmt.Errorf("failed to delete trade %s: %w", id, err)
	}
	return rowsAffectedOr(res, ErrNotFound)
}
