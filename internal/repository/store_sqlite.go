package repository

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = &dialect{
	name: "sqlite",
	upsertGame: `INSERT INTO games (id, title, price, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, price = excluded.price, updated_at = excluded.updated_at`,
	isUniqueViolation: func(err error) bool {
		msg := err.Error()
		return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
	},
}

// NewSQLiteStore opens (creating if needed) the SQLite database at dbPath.
// SQLite allows a single writer, so the pool is capped at one connection and
// every unit of work takes the write lock when it begins.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite dir: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	store, err := newSQLStore(db, sqliteDialect, Options{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return nil, err
	}

	log.Printf("[SQLStore] SQLite initialized with database: %s", dbPath)
	return store, nil
}
