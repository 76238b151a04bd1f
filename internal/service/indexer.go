package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/orchard-search/orchard/internal/catalog"
	"github.com/orchard-search/orchard/internal/posindex"
	"github.com/orchard-search/orchard/internal/shardstore"
	"github.com/orchard-search/orchard/internal/tokenizer"
	"github.com/orchard-search/orchard/internal/vectorizer"
	"github.com/orchard-search/orchard/internal/vocab"
)

var (
	// ErrEmptyVector means no token of the document (or query) is in the
	// vocabulary. Ingestion skips such documents; it is a per-document
	// skip reason, not a batch failure.
	ErrEmptyVector = errors.New("no recognized vocabulary tokens")

	// ErrRowMismatch is the detected desync between the catalog's row
	// count and the shard matrix. Mutations abort on it: continuing would
	// corrupt every row behind the mismatch.
	ErrRowMismatch = errors.New("catalog row count does not match shard matrix")

	// ErrMissingField is returned for ingest requests without a pod, URL
	// or text.
	ErrMissingField = errors.New("missing required field")
)

// IndexService orchestrates ingestion and deletion. Each operation is one
// critical section per shard: vectorize, mutate the matrix and centroid,
// mutate the positional index, then notify the catalog. The matrix and
// positional index are never written outside this service.
type IndexService struct {
	tok      tokenizer.Tokenizer
	vocab    *vocab.Vocabulary
	vec      *vectorizer.Vectorizer
	matrices *shardstore.Store
	posix    *posindex.Index
	catalog  catalog.Repository
	locks    *ShardLocks
}

// NewIndexService creates an IndexService.
func NewIndexService(
	tok tokenizer.Tokenizer,
	voc *vocab.Vocabulary,
	vec *vectorizer.Vectorizer,
	matrices *shardstore.Store,
	posix *posindex.Index,
	cat catalog.Repository,
	locks *ShardLocks,
) *IndexService {
	return &IndexService{
		tok:      tok,
		vocab:    voc,
		vec:      vec,
		matrices: matrices,
		posix:    posix,
		catalog:  cat,
		locks:    locks,
	}
}

// IngestRequest carries one document extracted and cleaned by an upstream
// collaborator.
type IngestRequest struct {
	Pod     string
	URL     string
	Title   string
	Snippet string
	Doctype string
	Notes   string
	Text    string
}

// Ingest vectorizes and indexes one document, returning its row id inside
// the pod's matrix. Re-ingesting a known URL replaces its previous row.
// A document with no recognized tokens is skipped with ErrEmptyVector.
func (s *IndexService) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	if req.Pod == "" || req.URL == "" || strings.TrimSpace(req.Text) == "" {
		return 0, fmt.Errorf("%w: pod, url and text are required", ErrMissingField)
	}

	tokens := s.tok.Tokenize(strings.TrimSpace(req.Title + " " + req.Text))
	vec := s.vec.Vectorize(tokens)
	if vec.NNZ() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyVector, req.URL)
	}

	// Replace-on-reingest: drop the previous row (possibly in another
	// pod) before inserting the new one.
	if _, err := s.catalog.GetByURL(ctx, req.URL); err == nil {
		if err := s.Remove(ctx, req.URL); err != nil {
			return 0, fmt.Errorf("failed to replace %s: %w", req.URL, err)
		}
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return 0, fmt.Errorf("failed to look up %s: %w", req.URL, err)
	}

	lock := s.locks.Get(req.Pod)
	lock.Lock()
	defer lock.Unlock()

	if err := s.checkConsistency(ctx, req.Pod); err != nil {
		return 0, err
	}

	rowID, err := s.matrices.Append(req.Pod, vec)
	if err != nil {
		return 0, fmt.Errorf("failed to append vector: %w", err)
	}
	if err := s.posix.Record(req.Pod, rowID, s.tokenIDs(tokens)); err != nil {
		// The matrix row is already persisted; the next consistency check
		// will catch the desync, but this state needs loud reporting.
		slog.Error("positional index update failed after matrix append",
			"pod", req.Pod, "row", rowID, "error", err)
		return 0, fmt.Errorf("failed to record positions: %w", err)
	}

	entry := &catalog.Entry{
		URL:     req.URL,
		Title:   req.Title,
		Snippet: req.Snippet,
		Doctype: req.Doctype,
		Pod:     req.Pod,
		Notes:   req.Notes,
		RowID:   rowID,
	}
	if err := s.catalog.Upsert(ctx, entry); err != nil {
		slog.Error("catalog update failed after index append",
			"pod", req.Pod, "row", rowID, "url", req.URL, "error", err)
		return 0, fmt.Errorf("failed to store catalog entry: %w", err)
	}

	slog.Info("document indexed", "pod", req.Pod, "row", rowID, "url", req.URL)
	return rowID, nil
}

// Remove deletes a document by URL: its matrix row, positional index
// entries and catalog record go in one critical section, and every shifted
// row id is renumbered in both the positional index and the catalog.
func (s *IndexService) Remove(ctx context.Context, url string) error {
	entry, err := s.catalog.GetByURL(ctx, url)
	if err != nil {
		return err
	}

	lock := s.locks.Get(entry.Pod)
	lock.Lock()
	defer lock.Unlock()

	if err := s.checkConsistency(ctx, entry.Pod); err != nil {
		return err
	}

	renumbering, err := s.matrices.Delete(entry.Pod, entry.RowID)
	if err != nil {
		return fmt.Errorf("failed to delete row %d from %s: %w", entry.RowID, entry.Pod, err)
	}
	if err := s.posix.Delete(entry.Pod, entry.RowID, renumbering); err != nil {
		slog.Error("positional index delete failed after matrix delete",
			"pod", entry.Pod, "row", entry.RowID, "error", err)
		return fmt.Errorf("failed to delete positions: %w", err)
	}
	if err := s.catalog.Delete(ctx, url); err != nil {
		slog.Error("catalog delete failed after index delete",
			"pod", entry.Pod, "row", entry.RowID, "url", url, "error", err)
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}
	if err := s.catalog.ApplyRenumbering(ctx, entry.Pod, entry.RowID); err != nil {
		slog.Error("catalog renumbering failed after index delete",
			"pod", entry.Pod, "row", entry.RowID, "error", err)
		return fmt.Errorf("failed to renumber catalog entries: %w", err)
	}

	slog.Info("document removed", "pod", entry.Pod, "row", entry.RowID, "url", url,
		"rows_renumbered", len(renumbering))
	return nil
}

// DropPod removes a whole shard: matrix, centroid row, positional index
// and catalog entries together.
func (s *IndexService) DropPod(ctx context.Context, pod string) error {
	lock := s.locks.Get(pod)
	lock.Lock()
	defer lock.Unlock()

	if err := s.matrices.Drop(pod); err != nil {
		return err
	}
	if err := s.posix.Drop(pod); err != nil {
		return err
	}
	if err := s.catalog.DeleteByPod(ctx, pod); err != nil {
		return err
	}
	slog.Info("pod dropped", "pod", pod)
	return nil
}

// PodInfo describes one shard for the admin surface.
type PodInfo struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

// Pods lists the known shards with their row counts.
func (s *IndexService) Pods(ctx context.Context) []PodInfo {
	names := s.matrices.Shards()
	infos := make([]PodInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, PodInfo{Name: name, Documents: s.matrices.Rows(name)})
	}
	return infos
}

// checkConsistency verifies the catalog and matrix agree on the shard's
// row count before any mutation. Called with the shard's write lock held.
func (s *IndexService) checkConsistency(ctx context.Context, pod string) error {
	rows := s.matrices.Rows(pod)
	count, err := s.catalog.CountByPod(ctx, pod)
	if err != nil {
		return fmt.Errorf("failed to count catalog entries for %s: %w", pod, err)
	}
	if rows != count {
		slog.Error("index row mismatch detected, refusing to mutate",
			"pod", pod, "matrix_rows", rows, "catalog_rows", count)
		return fmt.Errorf("%w: pod %s has %d matrix rows, %d catalog rows",
			ErrRowMismatch, pod, rows, count)
	}
	return nil
}

// tokenIDs maps tokens to vocabulary ids, -1 for unknown tokens so that
// positions stay aligned with the original sequence.
func (s *IndexService) tokenIDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := s.vocab.ID(tok)
		if !ok {
			id = -1
		}
		ids[i] = id
	}
	return ids
}
