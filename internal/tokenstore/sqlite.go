package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/utafrali/storefront/pkg/database"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`

// SQLiteStore keeps credentials in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens the database at dsn and creates the table if needed.
func OpenSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := database.OpenSQLite(ctx, dsn, sqliteSchema)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (v string, err error) {
	const q = `SELECT value FROM credentials WHERE name = ?`
	ctx, end := database.TraceQuery(ctx, "sqlite", "GetCredential", q)
	defer func() { end(err) }()

	if err = s.db.QueryRowContext(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("select credential: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) (err error) {
	const q = `INSERT INTO credentials (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`
	ctx, end := database.TraceQuery(ctx, "sqlite", "SetCredential", q)
	defer func() { end(err) }()

	if _, err = s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (err error) {
	const q = `DELETE FROM credentials WHERE name = ?`
	ctx, end := database.TraceQuery(ctx, "sqlite", "DeleteCredential", q)
	defer func() { end(err) }()

	if _, err = s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
