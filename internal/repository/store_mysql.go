package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

var mysqlDialect = &dialect{
	name:     "mysql",
	rowLocks: true,
	upsertGame: `INSERT INTO games (id, title, price, updated_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE title = VALUES(title), price = VALUES(price), updated_at = VALUES(updated_at)`,
	isUniqueViolation: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
	},
}

// NewMySQLStore connects to MySQL.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLStore(dsn string, opts Options) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}

	store, err := newSQLStore(db, mysqlDialect, opts)
	if err != nil {
		return nil, err
	}

	log.Printf("[SQLStore] MySQL initialized (max_open=%d)", opts.MaxOpenConns)
	return store, nil
}
