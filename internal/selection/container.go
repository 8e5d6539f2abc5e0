// Package selection owns the user's selection document. Every change is a
// pure function from the current document to the next one; the container
// persists the result and then notifies observers.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/arazimproject/dibit/internal/domain"
)

// Repository persists the selection document.
type Repository interface {
	Load(ctx context.Context) (domain.DibIt, error)
	Save(ctx context.Context, d domain.DibIt) error
}

// Observer is notified with the new document after every replace.
type Observer func(domain.DibIt)

// Container holds the current selection document. Readers receive copies,
// so a published document never changes.
type Container struct {
	mu        sync.Mutex
	current   domain.DibIt
	repo      Repository
	observers map[int]Observer
	nextID    int
}

// NewContainer creates a container holding d. repo may be nil for an
// in-memory container.
func NewContainer(d domain.DibIt, repo Repository) *Container {
	return &Container{
		current:   d.Clone(),
		repo:      repo,
		observers: make(map[int]Observer),
	}
}

// Open loads the stored document and wraps it in a container.
func Open(ctx context.Context, repo Repository) (*Container, error) {
	d, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	return NewContainer(d, repo), nil
}

// Get returns a copy of the current document.
func (c *Container) Get() domain.DibIt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// Update applies m to the current document and replaces it with the
// result. When m fails or the result cannot be persisted the current
// document is left untouched.
func (c *Container) Update(ctx context.Context, m Mutation) (domain.DibIt, error) {
	c.mu.Lock()
	next, err := m(c.current.Clone())
	if err != nil {
		c.mu.Unlock()
		return domain.DibIt{}, err
	}
	if err := c.commitLocked(ctx, next); err != nil {
		c.mu.Unlock()
		return domain.DibIt{}, err
	}
	observers := c.snapshotObserversLocked()
	published := c.current.Clone()
	c.mu.Unlock()

	notify(observers, published)
	return published, nil
}

// Replace swaps in a whole new document.
func (c *Container) Replace(ctx context.Context, d domain.DibIt) error {
	_, err := c.Update(ctx, func(domain.DibIt) (domain.DibIt, error) {
		return d.Clone(), nil
	})
	return err
}

// Subscribe registers an observer and returns a function removing it.
// Observers run synchronously on the goroutine that made the change.
func (c *Container) Subscribe(o Observer) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.observers[id] = o

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Container) commitLocked(ctx context.Context, next domain.DibIt) error {
	if c.repo != nil {
		if err := c.repo.Save(ctx, next); err != nil {
			return fmt.Errorf("save selection: %w", err)
		}
	}
	c.current = next
	slog.Debug("selection replaced", "semesters", len(next.Courses), "semester", next.Semester)
	return nil
}

func (c *Container) snapshotObserversLocked() []Observer {
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Observer, len(ids))
	for i, id := range ids {
		out[i] = c.observers[id]
	}
	return out
}

func notify(observers []Observer, d domain.DibIt) {
	for _, o := range observers {
		o(d.Clone())
	}
}
