package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/orchard-search/orchard/internal/catalog"
)

// EntryRepo implements catalog.Repository
type EntryRepo struct {
	db *DB
}

// NewEntryRepo creates a new catalog entry repository
func NewEntryRepo(db *DB) *EntryRepo {
	return &EntryRepo{db: db}
}

// Upsert inserts an entry or replaces the existing record for its URL.
func (r *EntryRepo) Upsert(ctx context.Context, entry *catalog.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	query := `
		INSERT INTO documents (id, url, title, snippet, doctype, pod, notes, row_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (url) DO UPDATE
		SET title = $3, snippet = $4, doctype = $5, pod = $6, notes = $7, row_id = $8, updated_at = $10
	`
	_, err := r.db.Pool.Exec(ctx, query,
		entry.ID, entry.URL, entry.Title, entry.Snippet, entry.Doctype,
		entry.Pod, entry.Notes, entry.RowID, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog entry: %w", err)
	}
	return nil
}

// GetByURL retrieves an entry by URL
func (r *EntryRepo) GetByURL(ctx context.Context, url string) (*catalog.Entry, error) {
	query := `
		SELECT id, url, title, snippet, doctype, pod, notes, row_id, created_at, updated_at
		FROM documents
		WHERE url = $1
	`
	var e catalog.Entry
	err := r.db.Pool.QueryRow(ctx, query, url).Scan(
		&e.ID, &e.URL, &e.Title, &e.Snippet, &e.Doctype,
		&e.Pod, &e.Notes, &e.RowID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get catalog entry: %w", err)
	}
	return &e, nil
}

// ListByPod retrieves all entries of one pod, ordered by row id
func (r *EntryRepo) ListByPod(ctx context.Context, pod string) ([]*catalog.Entry, error) {
	query := `
		SELECT id, url, title, snippet, doctype, pod, notes, row_id, created_at, updated_at
		FROM documents
		WHERE pod = $1
		ORDER BY row_id
	`
	rows, err := r.db.Pool.Query(ctx, query, pod)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []*catalog.Entry
	for rows.Next() {
		var e catalog.Entry
		if err := rows.Scan(&e.ID, &e.URL, &e.Title, &e.Snippet, &e.Doctype,
			&e.Pod, &e.Notes, &e.RowID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CountByPod returns the number of entries in one pod
func (r *EntryRepo) CountByPod(ctx context.Context, pod string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE pod = $1`, pod).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count catalog entries: %w", err)
	}
	return count, nil
}

// Delete deletes an entry by URL
func (r *EntryRepo) Delete(ctx context.Context, url string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE url = $1`, url)
	if err != nil {
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// DeleteByPod deletes every entry of one pod
func (r *EntryRepo) DeleteByPod(ctx context.Context, pod string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE pod = $1`, pod)
	if err != nil {
		return fmt.Errorf("failed to delete catalog entries for pod %s: %w", pod, err)
	}
	return nil
}

// ApplyRenumbering shifts row ids above the deleted row down by one
func (r *EntryRepo) ApplyRenumbering(ctx context.Context, pod string, deletedRow int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET row_id = row_id - 1, updated_at = NOW() WHERE pod = $1 AND row_id > $2`,
		pod, deletedRow)
	if err != nil {
		return fmt.Errorf("failed to renumber catalog entries: %w", err)
	}
	return nil
}

// Ensure EntryRepo implements the interface
var _ catalog.Repository = (*EntryRepo)(nil)
