// Package posindex maintains the per-shard positional index: vocabulary
// token id → document row id → token positions, used for phrase-proximity
// scoring. Row ids are the shard matrix's row ids; every renumbering the
// matrix store performs on delete must be replayed here as part of the same
// logical operation.
package posindex

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const indexExt = ".gob"

// postings maps token id → row id → positions in order of appearance.
type postings map[int]map[int][]int

func (p postings) clone() postings {
	out := make(postings, len(p))
	for tok, rows := range p {
		cp := make(map[int][]int, len(rows))
		for row, positions := range rows {
			cp[row] = append([]int{}, positions...)
		}
		out[tok] = cp
	}
	return out
}

// Index holds one positional index per shard, persisted one file per shard
// under <dir>.
type Index struct {
	dir string

	mu     sync.Mutex
	shards map[string]postings
}

// Open loads every persisted shard index found under dir.
func Open(dir string) (*Index, error) {
	ix := &Index{dir: dir, shards: make(map[string]postings)}

	matches, err := filepath.Glob(filepath.Join(dir, "*"+indexExt))
	if err != nil {
		return nil, fmt.Errorf("failed to scan positional index directory: %w", err)
	}
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), indexExt)
		p := make(postings)
		if err := loadIndex(path, &p); err != nil {
			return nil, err
		}
		ix.shards[name] = p
	}
	return ix, nil
}

func (ix *Index) path(shard string) string {
	return filepath.Join(ix.dir, shard+indexExt)
}

// Record stores the token positions of a newly appended document. ids
// holds one vocabulary id per token position, with -1 for tokens outside
// the vocabulary (they keep their position but are not indexed). Positions
// arrive in increasing order by construction, so no sorting happens here.
func (ix *Index) Record(shard string, rowID int, ids []int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	p, ok := ix.shards[shard]
	if !ok {
		p = make(postings)
	}
	next := p.clone()
	for pos, id := range ids {
		if id < 0 {
			continue
		}
		rows, ok := next[id]
		if !ok {
			rows = make(map[int][]int)
			next[id] = rows
		}
		rows[rowID] = append(rows[rowID], pos)
	}

	if err := ix.persist(shard, next); err != nil {
		return err
	}
	ix.shards[shard] = next
	return nil
}

// Delete removes every entry for rowID and relabels all other rows of the
// shard through the renumbering map produced by the matrix store's delete.
// The two must be applied as one atomic unit at the orchestration layer.
func (ix *Index) Delete(shard string, rowID int, renumbering map[int]int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	p, ok := ix.shards[shard]
	if !ok {
		return nil
	}
	next := make(postings, len(p))
	for tok, rows := range p {
		cp := make(map[int][]int, len(rows))
		for row, positions := range rows {
			if row == rowID {
				continue
			}
			if newRow, moved := renumbering[row]; moved {
				row = newRow
			}
			cp[row] = append([]int{}, positions...)
		}
		if len(cp) > 0 {
			next[tok] = cp
		}
	}

	if err := ix.persist(shard, next); err != nil {
		return err
	}
	ix.shards[shard] = next
	return nil
}

// Positions returns a copy of the posting map for one token in one shard:
// row id → positions. Nil when the token or shard has no entries.
func (ix *Index) Positions(shard string, tokenID int) map[int][]int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, ok := ix.shards[shard][tokenID]
	if !ok {
		return nil
	}
	out := make(map[int][]int, len(rows))
	for row, positions := range rows {
		out[row] = append([]int{}, positions...)
	}
	return out
}

// RowIDs returns the sorted union of row ids present in a shard's index.
// Used for consistency checks against the matrix store.
func (ix *Index) RowIDs(shard string) []int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	seen := make(map[int]struct{})
	for _, rows := range ix.shards[shard] {
		for row := range rows {
			seen[row] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for row := range seen {
		out = append(out, row)
	}
	sort.Ints(out)
	return out
}

// Drop removes a shard's positional index together with its file.
func (ix *Index) Drop(shard string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := os.Remove(ix.path(shard)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove positional index for %s: %w", shard, err)
	}
	delete(ix.shards, shard)
	return nil
}

// persist writes a shard's postings with temp file + fsync + rename.
// Called with ix.mu held.
func (ix *Index) persist(shard string, p postings) error {
	path := ix.path(shard)
	if err := os.MkdirAll(ix.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", ix.dir, err)
	}
	tmp, err := os.CreateTemp(ix.dir, shard+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode positional index for %s: %w", shard, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync positional index for %s: %w", shard, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close positional index for %s: %w", shard, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func loadIndex(path string, p *postings) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(p); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
