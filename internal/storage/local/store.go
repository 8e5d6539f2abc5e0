package local

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Watcher is called with the new value of a key after it changes. A nil
// value means the key was deleted.
type Watcher func(key string, value []byte)

// Store is a thread-safe key-value store that keeps each key in its own
// JSON file. Writes are atomic: readers see either the old or the new
// file, never a partial one.
type Store struct {
	basePath string
	mu       sync.RWMutex

	watchMu  sync.Mutex
	watchers map[int]watch
	nextID   int
}

type watch struct {
	key string
	fn  Watcher
}

// NewStore creates a new local JSON store
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath, watchers: make(map[int]watch)}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.basePath, url.PathEscape(key)+".json")
}

// Get returns the raw JSON stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Set stores raw JSON under key.
func (s *Store) Set(key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !json.Valid(value) {
		return fmt.Errorf("set %q: value is not valid JSON", key)
	}

	s.mu.Lock()
	err := writeAtomic(s.path(key), value)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify(key, value)
	return nil
}

// Copy duplicates the bytes under from into to without validating them.
func (s *Store) Copy(from, to string) error {
	if from == "" || to == "" {
		return ErrInvalidKey
	}
	data, err := s.Get(from)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = writeAtomic(s.path(to), data)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify(to, data)
	return nil
}

// Delete removes a key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	err := os.Remove(s.path(key))
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}

	s.notify(key, nil)
	return nil
}

// Save encodes data as indented JSON and stores it under key.
func (s *Store) Save(key string, data interface{}) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return s.Set(key, encoded)
}

// Load decodes the JSON stored under key into data.
func (s *Store) Load(key string, data interface{}) error {
	raw, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Keys returns every stored key in ascending order.
func (s *Store) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key is stored
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.path(key))
	return err == nil
}

// Watch registers fn for changes to key; an empty key watches every key.
func (s *Store) Watch(key string, fn Watcher) (cancel func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	id := s.nextID
	s.nextID++
	s.watchers[id] = watch{key: key, fn: fn}

	return func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Store) notify(key string, value []byte) {
	s.watchMu.Lock()
	ids := make([]int, 0, len(s.watchers))
	for id, w := range s.watchers {
		if w.key == "" || w.key == key {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	fns := make([]Watcher, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.watchers[id].fn)
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(key, value)
	}
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
