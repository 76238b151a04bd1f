// Package memory provides an in-memory catalog for tests and single-binary
// development deployments without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orchard-search/orchard/internal/catalog"
)

// Repo is an in-memory catalog.Repository keyed by URL.
type Repo struct {
	mu      sync.RWMutex
	entries map[string]*catalog.Entry
}

// New creates an empty in-memory catalog.
func New() *Repo {
	return &Repo{entries: make(map[string]*catalog.Entry)}
}

func (r *Repo) Upsert(ctx context.Context, entry *catalog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := time.Now()
	if prev, ok := r.entries[cp.URL]; ok {
		cp.ID = prev.ID
		cp.CreatedAt = prev.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.entries[cp.URL] = &cp
	*entry = cp
	return nil
}

func (r *Repo) GetByURL(ctx context.Context, url string) (*catalog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[url]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *Repo) ListByPod(ctx context.Context, pod string) ([]*catalog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*catalog.Entry
	for _, e := range r.entries {
		if e.Pod == pod {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *Repo) CountByPod(ctx context.Context, pod string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.entries {
		if e.Pod == pod {
			count++
		}
	}
	return count, nil
}

func (r *Repo) Delete(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[url]; !ok {
		return catalog.ErrNotFound
	}
	delete(r.entries, url)
	return nil
}

func (r *Repo) DeleteByPod(ctx context.Context, pod string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for url, e := range r.entries {
		if e.Pod == pod {
			delete(r.entries, url)
		}
	}
	return nil
}

func (r *Repo) ApplyRenumbering(ctx context.Context, pod string, deletedRow int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.Pod == pod && e.RowID > deletedRow {
			e.RowID--
			e.UpdatedAt = time.Now()
		}
	}
	return nil
}

var _ catalog.Repository = (*Repo)(nil)
