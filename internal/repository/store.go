package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements UnitOfWork over a querier. Outside a transaction it runs
// against the pool; inside WithinTx it runs against the *sql.Tx and takes row
// locks where the dialect supports them.
type queries struct {
	q    querier
	d    *dialect
	inTx bool
}

func (s *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// SQLStore implements Store on database/sql for SQLite, MySQL and PostgreSQL.
type SQLStore struct {
	*queries
	db           *sql.DB
	queryTimeout time.Duration
}

// Options tunes connection pooling and per-transaction deadlines.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

func newSQLStore(db *sql.DB, d *dialect, opts Options) (*SQLStore, error) {
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.name, err)
	}

	if err := applyMigrations(ctx, db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLStore{
		queries:      &queries{q: db, d: d},
		db:           db,
		queryTimeout: opts.QueryTimeout,
	}, nil
}

// WithinTx runs fn inside one database transaction.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &queries{q: tx, d: s.d, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the backend name.
func (s *SQLStore) Driver() string {
	return s.d.name
}

// GetStats returns row counters for the admin dashboard.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["driver"] = s.d.name

	counters := []struct {
		key   string
		query string
	}{
		{"total_assets", "SELECT COUNT(*) FROM assets"},
		{"tradeable_assets", "SELECT COUNT(*) FROM assets WHERE tradeable = ?"},
		{"pending_trades", "SELECT COUNT(*) FROM trades WHERE status = ?"},
		{"accepted_trades", "SELECT COUNT(*) FROM trades WHERE status = ?"},
		{"transactions", "SELECT COUNT(*) FROM transactions"},
		{"games", "SELECT COUNT(*) FROM games"},
	}
	args := map[string][]any{
		"tradeable_assets": {true},
		"pending_trades":   {"pending"},
		"accepted_trades":  {"accepted"},
	}

	for _, c := range counters {
		var n int64
		if err := s.queryRow(ctx, c.query, args[c.key]...).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.key, err)
		}
		stats[c.key] = n
	}

	dbStats := s.db.Stats()
	stats["pool"] = map[string]interface{}{
		"open_connections": dbStats.OpenConnections,
		"in_use":           dbStats.InUse,
		"idle":             dbStats.Idle,
		"wait_count":       dbStats.WaitCount,
	}

	return stats, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	log.Printf("[SQLStore] Closing %s store", s.d.name)
	return s.db.Close()
}

// rowsAffectedOr returns errIfNone when the write matched no row.
func rowsAffectedOr(res sql.Result, errIfNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return errIfNone
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ Store = (*SQLStore)(nil)
var _ UnitOfWork = (*queries)(nil)
