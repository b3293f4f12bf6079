package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// applyMigrations executes the embedded migrations for d at most once per file.
func applyMigrations(ctx context.Context, db *sql.DB, d *dialect) error {
	root := path.Join("migrations", d.name)

	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name VARCHAR(255) PRIMARY KEY,
		applied_at BIGINT NOT NULL
	)`, migrationTable)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}

	for _, file := range files {
		name := path.Join(d.name, file)

		applied, err := isApplied(ctx, db, d, name)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(migrationFS, path.Join(root, file))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		if err := runMigration(ctx, db, d, name, extractUpMigration(string(content))); err != nil {
			return err
		}
	}

	return nil
}

func runMigration(ctx context.Context, db *sql.DB, d *dialect, name, upSQL string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", name, err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(upSQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil && !isAlreadyExistsError(err) {
			return fmt.Errorf("failed to exec migration %s: %w", name, err)
		}
	}

	insert := d.rebind(fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (?, ?)", migrationTable))
	if _, err := tx.ExecContext(ctx, insert, name, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", name, err)
	}
	return nil
}

func isApplied(ctx context.Context, db *sql.DB, d *dialect, name string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx, d.rebind("SELECT 1 FROM "+migrationTable+" WHERE name = ?"), name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"

	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, down)
	if downIdx == -1 || downIdx < upIdx {
		return content[upIdx+len(up):]
	}
	return content[upIdx+len(up) : downIdx]
}

// splitStatements splits a migration body on semicolons. The MySQL driver does
// not run multiple statements per Exec unless multiStatements is enabled.
func splitStatements(sqlText string) []string {
	var stmts []string
	for _, part := range strings.Split(sqlText, ";") {
		stmt := strings.TrimSpace(stripComments(part))
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func stripComments(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// isAlreadyExistsError reports whether this error indicates idempotent DDL success.
func isAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}
