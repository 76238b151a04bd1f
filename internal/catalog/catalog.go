// Package catalog defines the external document catalog: relational
// metadata keyed by URL, holding for each indexed document the shard it
// lives in and its vector row id. The search core treats it as a
// collaborator — it resolves row ids to titles and snippets at query time
// and replays row renumbering after deletes.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("not found")

// Entry is one catalog record. RowID is the document's 0-based row inside
// its shard's matrix; it shifts on deletes and the catalog must follow.
type Entry struct {
	ID        uuid.UUID
	URL       string
	Title     string
	Snippet   string
	Doctype   string
	Pod       string
	Notes     string
	RowID     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines catalog persistence operations.
type Repository interface {
	Upsert(ctx context.Context, entry *Entry) error
	GetByURL(ctx context.Context, url string) (*Entry, error)
	ListByPod(ctx context.Context, pod string) ([]*Entry, error)
	CountByPod(ctx context.Context, pod string) (int, error)
	Delete(ctx context.Context, url string) error
	DeleteByPod(ctx context.Context, pod string) error

	// ApplyRenumbering shifts every row id greater than deletedRow down by
	// one for the given pod, mirroring the matrix store's compaction. It
	// must run inside the same per-shard critical section as the matrix
	// and positional index updates.
	ApplyRenumbering(ctx context.Context, pod string, deletedRow int) error
}
