package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/selection"
)

// backupInfix separates the document key from the unix time of a backup.
const backupInfix = ".corrupt-"

// SelectionRepository stores the selection document under the "Dib It" key
// and migrates the old per-key layout on first load.
type SelectionRepository struct {
	store *Store
	now   func() time.Time
}

var _ selection.Repository = (*SelectionRepository)(nil)

// NewSelectionRepository creates a repository on top of store.
func NewSelectionRepository(store *Store) *SelectionRepository {
	return &SelectionRepository{store: store, now: time.Now}
}

// Load returns the stored document. A malformed document is copied to a
// backup key first and then loads as empty; if the copy fails, Load fails
// rather than letting the next save overwrite it.
func (r *SelectionRepository) Load(ctx context.Context) (domain.DibIt, error) {
	raw, err := r.store.Get(domain.DibItStorageKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return r.migrate(ctx)
	case err != nil:
		return domain.DibIt{}, fmt.Errorf("load selection: %w", err)
	}

	d, err := domain.DecodeDibIt(raw)
	if err != nil {
		backup, berr := r.backup(raw)
		if berr != nil {
			return domain.DibIt{}, fmt.Errorf("back up malformed selection (%v): %w", err, berr)
		}
		slog.Warn("stored selection is malformed, starting empty", "error", err, "backup", backup)
		return domain.DibIt{}, nil
	}
	return d, nil
}

// backup copies the current document to "Dib It.corrupt-<unix>" unless the
// newest backup already holds the same bytes.
func (r *SelectionRepository) backup(raw []byte) (string, error) {
	existing, err := r.Backups()
	if err != nil {
		return "", err
	}
	if n := len(existing); n > 0 {
		latest := existing[n-1]
		if prev, err := r.store.Get(latest); err == nil && bytes.Equal(prev, raw) {
			return latest, nil
		}
	}

	stamp := r.now().Unix()
	key := domain.DibItStorageKey + backupInfix + strconv.FormatInt(stamp, 10)
	for r.store.Exists(key) {
		stamp++
		key = domain.DibItStorageKey + backupInfix + strconv.FormatInt(stamp, 10)
	}
	if err := r.store.Copy(domain.DibItStorageKey, key); err != nil {
		return "", err
	}
	return key, nil
}

// Backups lists the keys holding copies of unreadable documents, oldest
// first.
func (r *SelectionRepository) Backups() ([]string, error) {
	keys, err := r.store.Keys()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, domain.DibItStorageKey+backupInfix) {
			out = append(out, k)
		}
	}
	// Same-width unix stamps sort lexically
	return out, nil
}

// RawBackup returns the bytes of one backup key.
func (r *SelectionRepository) RawBackup(key string) ([]byte, error) {
	if !strings.HasPrefix(key, domain.DibItStorageKey+backupInfix) {
		return nil, ErrInvalidKey
	}
	return r.store.Get(key)
}

// Save writes the document.
func (r *SelectionRepository) Save(_ context.Context, d domain.DibIt) error {
	if err := r.store.Save(domain.DibItStorageKey, d); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// Raw returns the stored document bytes as they are on disk.
func (r *SelectionRepository) Raw() ([]byte, error) {
	return r.store.Get(domain.DibItStorageKey)
}

// Clear deletes the stored document.
func (r *SelectionRepository) Clear() error {
	err := r.store.Delete(domain.DibItStorageKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (r *SelectionRepository) migrate(ctx context.Context) (domain.DibIt, error) {
	keys, err := r.store.Keys()
	if err != nil {
		return domain.DibIt{}, err
	}

	entries := make(map[string]json.RawMessage)
	for _, key := range keys {
		if !selection.IsLegacyKey(key) {
			continue
		}
		raw, err := r.store.Get(key)
		if err != nil {
			return domain.DibIt{}, err
		}
		entries[key] = raw
	}
	if len(entries) == 0 {
		return domain.DibIt{}, nil
	}

	d, ok, err := selection.MigrateLegacy(entries)
	if err != nil {
		slog.Warn("legacy selection is malformed, starting empty", "error", err)
		return domain.DibIt{}, nil
	}
	if ok {
		if err := r.Save(ctx, d); err != nil {
			return domain.DibIt{}, err
		}
	}
	for key := range entries {
		if err := r.store.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
			slog.Warn("failed to remove legacy key", "key", key, "error", err)
		}
	}
	slog.Info("migrated legacy selection", "keys", len(entries), "semesters", len(d.Courses))
	return d, nil
}
