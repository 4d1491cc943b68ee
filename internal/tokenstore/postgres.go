package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/pkg/database"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS storefront_credentials (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps credentials in a single PostgreSQL table.
type PostgresStore struct {
	db    database.DBTX
	close func()
}

// NewPostgresStore creates a store on top of db. closer, when non-nil, is
// called by Close.
func NewPostgresStore(db database.DBTX, closer func()) *PostgresStore {
	return &PostgresStore{db: db, close: closer}
}

// EnsureSchema creates the credentials table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create credentials table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (v string, err error) {
	const q = `SELECT value FROM storefront_credentials WHERE name = $1`
	ctx, end := database.TraceQuery(ctx, "postgresql", "GetCredential", q)
	defer func() { end(err) }()

	if err = s.db.QueryRow(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("select credential: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) (err error) {
	const q = `INSERT INTO storefront_credentials (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	ctx, end := database.TraceQuery(ctx, "postgresql", "SetCredential", q)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) (err error) {
	const q = `DELETE FROM storefront_credentials WHERE name = $1`
	ctx, end := database.TraceQuery(ctx, "postgresql", "DeleteCredential", q)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
