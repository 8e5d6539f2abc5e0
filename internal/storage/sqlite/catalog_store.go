package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arazimproject/dibit/internal/catalog"
)

// CatalogStore persists fetched catalog documents.
type CatalogStore struct {
	db *DB
}

// NewCatalogStore creates a new SQLite-backed catalog cache.
func NewCatalogStore(db *DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// GetDocument returns a cached document and when it was fetched.
func (s *CatalogStore) GetDocument(ctx context.Context, key string) ([]byte, time.Time, error) {
	var (
		body      []byte
		fetchedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, fetched_at FROM catalog_documents WHERE key = ?`, key).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, catalog.ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query catalog document: %w", err)
	}
	return body, fetchedAt, nil
}

// PutDocument stores a document, replacing any previous copy.
func (s *CatalogStore) PutDocument(ctx context.Context, key string, data []byte, fetchedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_documents (key, body, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body=excluded.body,
			fetched_at=excluded.fetched_at`,
		key, data, fetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert catalog document: %w", err)
	}
	return nil
}

// Purge removes every cached document and returns how many were removed.
func (s *CatalogStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catalog_documents`)
	if err != nil {
		return 0, fmt.Errorf("purge catalog documents: %w", err)
	}
	return res.RowsAffected()
}
