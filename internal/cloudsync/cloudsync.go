// Package cloudsync saves the selection document to a remote document
// store and restores it.
package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arazimproject/dibit/internal/domain"
)

var (
	// ErrNoDocument is returned when the remote store holds nothing for a user.
	ErrNoDocument = errors.New("no document")

	// ErrInvalidUser is returned for an empty user ID.
	ErrInvalidUser = errors.New("invalid user id")
)

// DocumentStore is a remote JSON document store. With merge set, top-level
// fields of doc replace those of the stored document and other fields are
// kept.
type DocumentStore interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, doc json.RawMessage, merge bool) error
}

// Service copies the selection document between the local container and a
// DocumentStore.
type Service struct {
	store DocumentStore
}

// NewService creates a sync service on top of store.
func NewService(store DocumentStore) *Service {
	return &Service{store: store}
}

// DocumentKey returns the remote key of a user's document.
func DocumentKey(uid string) string {
	return "users/" + uid
}

// Save uploads d for uid, merging into any existing document.
func (s *Service) Save(ctx context.Context, uid string, d domain.DibIt) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return ErrInvalidUser
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	if err := s.store.Set(ctx, DocumentKey(uid), data, true); err != nil {
		return fmt.Errorf("save selection for %s: %w", uid, err)
	}

	slog.Info("selection saved to cloud", "uid", uid, "semesters", len(d.Courses))
	return nil
}

// Restore downloads the document of uid. It returns ErrNoDocument when the
// user has never saved.
func (s *Service) Restore(ctx context.Context, uid string) (domain.DibIt, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return domain.DibIt{}, ErrInvalidUser
	}

	raw, err := s.store.Get(ctx, DocumentKey(uid))
	if err != nil {
		return domain.DibIt{}, fmt.Errorf("restore selection for %s: %w", uid, err)
	}

	d, err := domain.DecodeDibIt(raw)
	if err != nil {
		return domain.DibIt{}, fmt.Errorf("restore selection for %s: %w", uid, err)
	}
	return d, nil
}
