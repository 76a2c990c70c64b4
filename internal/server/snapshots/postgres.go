package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/promptvault/internal/dbx"
	"github.com/dmitrijs2005/promptvault/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresBackend stores each snapshot as a JSONB row and records every
// write in snapshot_writes.
type PostgresBackend struct {
	db *sql.DB
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// OpenPostgres connects with the pgx driver and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	b := NewPostgresBackend(db)
	if err := b.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// RunMigrations sets up goose with the embedded migrations and runs them.
func (b *PostgresBackend) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, b.db, ".")
}

func (b *PostgresBackend) Get(ctx context.Context, path string) ([]byte, error) {
	var content []byte

	err := b.db.QueryRowContext(ctx, `SELECT content FROM snapshots WHERE path = $1`, path).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return content, nil
}

func (b *PostgresBackend) Put(ctx context.Context, path string, data []byte, user string) error {
	err := dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (path, content, updated_by, updated_at)
			VALUES ($1, $2::jsonb, $3, now())
			ON CONFLICT (path) DO UPDATE
			SET content = EXCLUDED.content, updated_by = EXCLUDED.updated_by, updated_at = now()`,
			path, string(data), user)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_writes (path, written_by, size_bytes)
			VALUES ($1, $2, $3)`,
			path, user, len(data))
		return err
	})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, path string) error {
	err := dbx.ExecOne(ctx, b.db, `DELETE FROM snapshots WHERE path = $1`, path)
	if err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
