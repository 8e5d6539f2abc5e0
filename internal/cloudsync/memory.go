package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process DocumentStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]json.RawMessage)}
}

// Get returns the document stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNoDocument
	}
	return append(json.RawMessage(nil), doc...), nil
}

// Set stores doc under key, merging top-level fields when merge is set.
func (m *MemoryStore) Set(_ context.Context, key string, doc json.RawMessage, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.docs[key]
	if !merge || !ok {
		m.docs[key] = append(json.RawMessage(nil), doc...)
		return nil
	}

	merged, err := MergeTopLevel(existing, doc)
	if err != nil {
		return err
	}
	m.docs[key] = merged
	return nil
}

// MergeTopLevel overlays the top-level fields of patch onto base.
func MergeTopLevel(base, patch json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}

	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for k, v := range overlay {
		fields[k] = v
	}
	return json.Marshal(fields)
}
