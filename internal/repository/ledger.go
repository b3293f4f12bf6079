package repository

import (
	"context"
	"database/sql"
	"fmt"

	"arcadeswap-api/internal/model"
)

// RecordTransaction appends a transaction and its lines.
func (s *queries) RecordTransaction(ctx context.Context, txn *model.Transaction) error {
	var counterparty sql.NullString
	if txn.CounterpartyUserID != nil {
		counterparty = sql.NullString{String: *txn.CounterpartyUserID, Valid: true}
	}

	_, err := s.exec(ctx,
		"INSERT INTO transactions (id, kind, primary_user_id, counterparty_user_id, value, completed_at) VALUES (?, ?, ?, ?, ?, ?)",
		txn.ID, string(txn.Kind), txn.PrimaryUserID, counterparty, txn.Value, toMillis(txn.CompletedAt),
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for i := range txn.Lines {
		line := &txn.Lines[i]
		line.TransactionID = txn.ID
		_, err := s.exec(ctx,
			"INSERT INTO transaction_lines (transaction_id, position, game_id, asset_id, price_at_exchange, direction) VALUES (?, ?, ?, ?, ?, ?)",
			txn.ID, i, line.GameID, line.AssetID, line.PriceAtExchange, string(line.Direction),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction line: %w", err)
		}
	}
	return nil
}

// ListTransactionsByUser returns transactions where the user is either party, newest first.
func (s *queries) ListTransactionsByUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	rows, err := s.query(ctx,
		"SELECT id, kind, primary_user_id, counterparty_user_id, value, completed_at FROM transactions"+
			" WHERE primary_user_id = ? OR counterparty_user_id = ? ORDER BY completed_at DESC, id",
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txns := make([]*model.Transaction, 0)
	for rows.Next() {
		var t model.Transaction
		var counterparty sql.NullString
		var completedAt int64
		if err := rows.Scan(&t.ID, &t.Kind, &t.PrimaryUserID, &counterparty, &t.Value, &completedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if counterparty.Valid {
			cp := counterparty.String
			t.CounterpartyUserID = &cp
		}
		t.CompletedAt = fromMillis(completedAt)
		txns = append(txns, &t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	rows.Close()

	for _, t := range txns {
		if err := s.loadTransactionLines(ctx, t); err != nil {
			return nil, err
		}
	}
	return txns, nil
}

func (s *queries) loadTransactionLines(ctx context.Context, t *model.Transaction) error {
	rows, err := s.query(ctx,
		"SELECT game_id, asset_id, price_at_exchange, direction FROM transaction_lines WHERE transaction_id = ? ORDER BY position",
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load lines of transaction %s: %w", t.ID, err)
	}
	defer rows.Close()

	t.Lines = make([]model.TransactionLine, 0)
	for rows.Next() {
		line := model.TransactionLine{TransactionID: t.ID}
		if err := rows.Scan(&line.GameID, &line.AssetID, &line.PriceAtExchange, &line.Direction); err != nil {
			return fmt.Errorf("failed to scan transaction line: %w", err)
		}
		t.Lines = append(t.Lines, line)
	}
	return rows.Err()
}
