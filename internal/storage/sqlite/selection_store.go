package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlc-dev/pqtype"

	"github.com/arazimproject/dibit/internal/domain"
)

// ErrRevisionNotFound is returned for an unknown revision ID.
var ErrRevisionNotFound = errors.New("revision not found")

// DefaultRevisionLimit is how many revisions are kept.
const DefaultRevisionLimit = 200

// Revision is one stored version of the selection document.
type Revision struct {
	ID        int64
	Semester  string
	CreatedAt time.Time
	Cleared   bool
}

// SelectionStore keeps every saved selection document as a revision; the
// latest revision is the current document.
type SelectionStore struct {
	db    *DB
	limit int
	now   func() time.Time
}

// NewSelectionStore creates a new SQLite-backed selection store.
func NewSelectionStore(db *DB) *SelectionStore {
	return &SelectionStore{db: db, limit: DefaultRevisionLimit, now: time.Now}
}

// Load returns the latest revision, or an empty document.
func (s *SelectionStore) Load(ctx context.Context) (domain.DibIt, error) {
	var doc pqtype.NullRawMessage
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM selection_revisions ORDER BY id DESC LIMIT 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DibIt{}, nil
	}
	if err != nil {
		return domain.DibIt{}, fmt.Errorf("query latest revision: %w", err)
	}
	return decodeRevision(doc), nil
}

// Save appends a revision and prunes the oldest beyond the limit.
func (s *SelectionStore) Save(ctx context.Context, d domain.DibIt) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	return s.append(ctx, pqtype.NullRawMessage{RawMessage: data, Valid: true}, d.Semester)
}

// Clear records a reset.
func (s *SelectionStore) Clear(ctx context.Context) error {
	return s.append(ctx, pqtype.NullRawMessage{}, "")
}

// Raw returns the latest stored document bytes.
func (s *SelectionStore) Raw(ctx context.Context) ([]byte, error) {
	var doc pqtype.NullRawMessage
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM selection_revisions ORDER BY id DESC LIMIT 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !doc.Valid) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest revision: %w", err)
	}
	return doc.RawMessage, nil
}

// History lists revisions newest first.
func (s *SelectionStore) History(ctx context.Context, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, semester, created_at, document IS NULL
		FROM selection_revisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var revisions []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.Semester, &r.CreatedAt, &r.Cleared); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// Revision returns the document stored at revision id.
func (s *SelectionStore) Revision(ctx context.Context, id int64) (domain.DibIt, error) {
	var doc pqtype.NullRawMessage
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM selection_revisions WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DibIt{}, ErrRevisionNotFound
	}
	if err != nil {
		return domain.DibIt{}, fmt.Errorf("query revision %d: %w", id, err)
	}
	return decodeRevision(doc), nil
}

func (s *SelectionStore) append(ctx context.Context, doc pqtype.NullRawMessage, semester string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO selection_revisions (document, semester, created_at)
		VALUES (?, ?, ?)`, doc, semester, s.now().UTC()); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM selection_revisions WHERE id NOT IN (
			SELECT id FROM selection_revisions ORDER BY id DESC LIMIT ?
		)`, s.limit); err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revision: %w", err)
	}
	return nil
}

func decodeRevision(doc pqtype.NullRawMessage) domain.DibIt {
	if !doc.Valid {
		return domain.DibIt{}
	}
	d, err := domain.DecodeDibIt(doc.RawMessage)
	if err != nil {
		slog.Warn("stored selection revision is malformed, starting empty", "error", err)
		return domain.DibIt{}
	}
	return d
}
