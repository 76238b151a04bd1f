// Package shardstore owns the per-shard document matrices and the global
// centroid matrix, persisted to disk. A shard's matrix, its centroid row
// and its positional index form one logical unit; callers serialize
// mutations per shard (see service.ShardLocks) — the store itself only
// guards its in-memory maps.
package shardstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/orchard-search/orchard/internal/vectorizer"
)

var (
	// ErrShardNotFound is returned when a shard has no matrix on disk or
	// in memory.
	ErrShardNotFound = errors.New("shard not found")

	// ErrRowOutOfRange is returned for row ids outside 0..rows-1.
	ErrRowOutOfRange = errors.New("row id out of range")

	// ErrInvalidShardName is returned for shard names that cannot be used
	// as file names.
	ErrInvalidShardName = errors.New("invalid shard name")
)

const (
	matrixExt     = ".gob"
	centroidsFile = "centroids" + matrixExt
)

var shardNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._ -]*$`)

// Store holds every shard matrix plus the centroid matrix, all persisted
// under <dir>. Shards are created lazily on first append.
type Store struct {
	dir  string
	cols int

	mu        sync.Mutex
	shards    map[string]*Matrix
	centroids *centroidSet
}

// Open loads the centroid matrix and all shard matrices found under dir,
// creating the directory if needed. cols is the vector dimension and must
// match any previously persisted state.
func Open(dir string, cols int) (*Store, error) {
	s := &Store{
		dir:    dir,
		cols:   cols,
		shards: make(map[string]*Matrix),
	}

	s.centroids = newCentroidSet(cols)
	if ok, err := loadGob(s.centroidsPath(), s.centroids); err != nil {
		return nil, err
	} else if ok && s.centroids.Cols != cols {
		return nil, fmt.Errorf("centroid matrix has %d columns, expected %d (vocabulary changed?)", s.centroids.Cols, cols)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*"+matrixExt))
	if err != nil {
		return nil, fmt.Errorf("failed to scan shard directory: %w", err)
	}
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), matrixExt)
		if name+matrixExt == centroidsFile {
			continue
		}
		m := newMatrix(cols)
		if _, err := loadGob(path, m); err != nil {
			return nil, err
		}
		if m.Cols != cols {
			return nil, fmt.Errorf("shard %s has %d columns, expected %d (vocabulary changed?)", name, m.Cols, cols)
		}
		s.shards[name] = m
	}
	return s, nil
}

func (s *Store) centroidsPath() string {
	return filepath.Join(s.dir, centroidsFile)
}

func (s *Store) shardPath(name string) string {
	return filepath.Join(s.dir, name+matrixExt)
}

func validateShardName(name string) error {
	if !shardNameRe.MatchString(name) || name+matrixExt == centroidsFile {
		return fmt.Errorf("%w: %q", ErrInvalidShardName, name)
	}
	return nil
}

// Append adds a vector as a new row of the shard's matrix, creating the
// shard (and registering its centroid row) lazily, updates the centroid,
// and persists both matrices before returning the new row id. Nothing is
// committed in memory if persistence fails.
func (s *Store) Append(shard string, v vectorizer.SparseVector) (int, error) {
	if err := validateShardName(shard); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.shards[shard]
	if !ok {
		m = newMatrix(s.cols)
	}

	next := &Matrix{Cols: m.Cols, Rows: append([]vectorizer.SparseVector{}, m.Rows...)}
	rowID := next.appendRow(v.Clone())

	if err := s.persist(shard, next); err != nil {
		return 0, err
	}
	s.shards[shard] = next
	return rowID, nil
}

// Delete removes a row from the shard's matrix, recomputes the centroid
// over the remaining rows, persists both, and returns the renumbering map
// for every row whose id shifted. Deleting the only row leaves a valid
// empty matrix, not a tombstone.
func (s *Store) Delete(shard string, rowID int) (map[int]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.shards[shard]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShardNotFound, shard)
	}

	next := &Matrix{Cols: m.Cols, Rows: append([]vectorizer.SparseVector{}, m.Rows...)}
	renumbering, err := next.deleteRow(rowID)
	if err != nil {
		return nil, err
	}

	if err := s.persist(shard, next); err != nil {
		return nil, err
	}
	s.shards[shard] = next
	return renumbering, nil
}

// persist writes the shard matrix and its recomputed centroid row. Called
// with s.mu held; s.centroids is only updated after both writes succeed.
func (s *Store) persist(shard string, m *Matrix) error {
	if err := saveGob(s.shardPath(shard), m); err != nil {
		return err
	}
	nextCentroids := &centroidSet{
		Cols:  s.centroids.Cols,
		Names: append([]string{}, s.centroids.Names...),
		Rows:  append([]vectorizer.SparseVector{}, s.centroids.Rows...),
	}
	nextCentroids.set(shard, m.sum())
	if err := saveGob(s.centroidsPath(), nextCentroids); err != nil {
		return err
	}
	s.centroids = nextCentroids
	return nil
}

// Drop removes a shard entirely: matrix file, in-memory rows and centroid
// row go together.
func (s *Store) Drop(shard string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shards[shard]; !ok {
		return fmt.Errorf("%w: %s", ErrShardNotFound, shard)
	}
	nextCentroids := &centroidSet{
		Cols:  s.centroids.Cols,
		Names: append([]string{}, s.centroids.Names...),
		Rows:  append([]vectorizer.SparseVector{}, s.centroids.Rows...),
	}
	nextCentroids.retire(shard)
	if err := saveGob(s.centroidsPath(), nextCentroids); err != nil {
		return err
	}
	if err := removeFile(s.shardPath(shard)); err != nil {
		return err
	}
	s.centroids = nextCentroids
	delete(s.shards, shard)
	return nil
}

// Shard returns the shard's matrix for read-only scoring access.
func (s *Store) Shard(name string) (*Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.shards[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShardNotFound, name)
	}
	return m, nil
}

// Rows returns the shard's row count, or 0 for an unknown shard.
func (s *Store) Rows(shard string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.shards[shard]; ok {
		return m.RowCount()
	}
	return 0
}

// Exists reports whether a shard matrix is present.
func (s *Store) Exists(shard string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.shards[shard]
	return ok
}

// Centroids returns a copy of the registered shard centroids. Empty shards
// have zero-norm centroids; shard selection must treat their similarity as
// 0 rather than letting NaN through.
func (s *Store) Centroids() map[string]vectorizer.SparseVector {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.centroids.snapshot()
}

// Shards returns the known shard names, sorted.
func (s *Store) Shards() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.shards))
	for name := range s.shards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
