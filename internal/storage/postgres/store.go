package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/arazimproject/dibit/internal/cloudsync"
)

// DocumentStore implements cloudsync.DocumentStore on a jsonb table.
type DocumentStore struct {
	pool  *pgxpool.Pool
	table string
}

var _ cloudsync.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a store over an existing pool.
func NewDocumentStore(pool *pgxpool.Pool, table string) *DocumentStore {
	if table == "" {
		table = DefaultTable
	}
	return &DocumentStore{pool: pool, table: pq.QuoteIdentifier(table)}
}

// Connect ensures the schema and opens a pool for dsn.
func Connect(ctx context.Context, dsn, table string) (*DocumentStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := EnsureSchema(ctx, dsn, table); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return NewDocumentStore(pool, table), nil
}

// Get returns the document stored under key.
func (s *DocumentStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	query := fmt.Sprintf(`SELECT document FROM %s WHERE key = $1`, s.table)

	var doc []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cloudsync.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", key, err)
	}
	return doc, nil
}

// Set stores doc under key. With merge, top-level fields are merged into
// the stored document using the jsonb concatenation operator.
func (s *DocumentStore) Set(ctx context.Context, key string, doc json.RawMessage, merge bool) error {
	if !json.Valid(doc) {
		return fmt.Errorf("set document %s: invalid JSON", key)
	}

	update := "EXCLUDED.document"
	if merge {
		update = fmt.Sprintf("%s.document || EXCLUDED.document", s.table)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, document) VALUES ($1, $2::jsonb)
		ON CONFLICT (key) DO UPDATE SET
			document = %s,
			updated_at = now()`, s.table, update)

	if _, err := s.pool.Exec(ctx, query, key, string(doc)); err != nil {
		return fmt.Errorf("set document %s: %w", key, err)
	}
	return nil
}

// Delete removes the document stored under key.
func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return cloudsync.ErrNoDocument
	}
	return nil
}

// Close releases the pool.
func (s *DocumentStore) Close() {
	s.pool.Close()
}
