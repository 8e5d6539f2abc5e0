package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss is returned by a Store that holds no entry for a key.
var ErrCacheMiss = errors.New("cache miss")

// Store persists fetched documents across processes.
type Store interface {
	GetDocument(ctx context.Context, key string) (data []byte, fetchedAt time.Time, err error)
	PutDocument(ctx context.Context, key string, data []byte, fetchedAt time.Time) error
}

// Cache memoizes documents by URL. Concurrent requests for the same URL
// share a single fetch. With a Store attached, in-memory and persisted
// copies younger than the TTL are served without touching the network and
// older copies are served only when the network fails. Without a Store,
// documents are kept for the life of the process.
type Cache struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	data      []byte
	fetchedAt time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithStore attaches persistent storage; entries younger than ttl are
// served without fetching.
func WithStore(store Store, ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.store = store
		c.ttl = ttl
	}
}

// WithCacheClock overrides the clock used to age entries.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a cache in front of fetcher.
func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: fetcher,
		now:     time.Now,
		logger:  slog.Default(),
		entries: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the document at rawURL. The query string is ignored for
// caching purposes.
func (c *Cache) Get(ctx context.Context, rawURL string) ([]byte, error) {
	key := cacheKey(rawURL)

	if data, ok := c.fresh(key); ok {
		return data, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.load(ctx, key, rawURL)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) load(ctx context.Context, key, rawURL string) ([]byte, error) {
	if data, ok := c.fresh(key); ok {
		return data, nil
	}

	c.mu.RLock()
	stale := c.entries[key].data
	c.mu.RUnlock()

	if c.store != nil {
		data, fetchedAt, err := c.store.GetDocument(ctx, key)
		switch {
		case err == nil && c.now().Sub(fetchedAt) < c.ttl:
			c.remember(key, data, fetchedAt)
			return data, nil
		case err == nil && stale == nil:
			stale = data
		case err != nil && !errors.Is(err, ErrCacheMiss):
			c.logger.Warn("catalog store read failed", "key", key, "error", err)
		}
	}

	data, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if stale != nil {
			c.logger.Warn("serving stale catalog document", "key", key, "error", err)
			// Retried after another TTL rather than on every request.
			c.remember(key, stale, c.now())
			return stale, nil
		}
		return nil, err
	}

	now := c.now()
	c.remember(key, data, now)
	if c.store != nil {
		if err := c.store.PutDocument(ctx, key, data, now); err != nil {
			c.logger.Warn("catalog store write failed", "key", key, "error", err)
		}
	}
	return data, nil
}

// fresh returns the in-memory copy of key unless it has outlived the TTL.
func (c *Cache) fresh(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.store != nil && c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.data, true
}

func (c *Cache) remember(key string, data []byte, fetchedAt time.Time) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{data: data, fetchedAt: fetchedAt}
	c.mu.Unlock()
}

// Len returns the number of documents held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
