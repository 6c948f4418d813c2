package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Migrate applies every *.sql file in fsys that has not been applied yet,
// in lexical order, each inside its own transaction. It returns the names
// of the files it applied.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) ([]string, error) {
	pending, err := db.PendingMigrations(ctx, fsys)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range pending {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", name, err)
		}

		err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}

		slog.Info("migration applied", "name", name)
		applied = append(applied, name)
	}
	return applied, nil
}

// PendingMigrations lists the *.sql files in fsys not yet recorded as
// applied, creating the bookkeeping table on first use.
func (db *DB) PendingMigrations(ctx context.Context, fsys fs.FS) ([]string, error) {
	if _, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	rows, err := db.Pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	done, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}

	seen := make(map[string]bool, len(done))
	for _, n := range done {
		seen[n] = true
	}

	var pending []string
	for _, n := range names {
		if !seen[n] && strings.HasSuffix(n, ".sql") {
			pending = append(pending, n)
		}
	}
	return pending, nil
}
