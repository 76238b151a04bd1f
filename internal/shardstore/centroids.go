package shardstore

import "github.com/orchard-search/orchard/internal/vectorizer"

// centroidSet is the single cross-shard matrix: one row per registered
// shard, row = L2-normalized sum of that shard's document vectors. A
// shard's row id is assigned at first registration and never moves; rows of
// removed shards are zeroed and the slot is retired, so other shards keep
// their ids.
type centroidSet struct {
	Cols  int
	Names []string // index = centroid row id; "" marks a retired slot
	Rows  []vectorizer.SparseVector
}

func newCentroidSet(cols int) *centroidSet {
	return &centroidSet{Cols: cols}
}

// rowID returns the centroid row id for a shard name.
func (c *centroidSet) rowID(name string) (int, bool) {
	for i, n := range c.Names {
		if n != "" && n == name {
			return i, true
		}
	}
	return 0, false
}

// register assigns a row to a new shard, reusing nothing: rows are
// appended, keeping every existing id stable.
func (c *centroidSet) register(name string) int {
	if id, ok := c.rowID(name); ok {
		return id
	}
	c.Names = append(c.Names, name)
	c.Rows = append(c.Rows, vectorizer.SparseVector{})
	return len(c.Names) - 1
}

// set replaces a shard's centroid row with the normalized form of v.
func (c *centroidSet) set(name string, v vectorizer.SparseVector) {
	id := c.register(name)
	v = v.Clone()
	v.Normalize()
	c.Rows[id] = v
}

// retire zeroes a removed shard's row and frees its name. The slot itself
// is never reused.
func (c *centroidSet) retire(name string) {
	if id, ok := c.rowID(name); ok {
		c.Names[id] = ""
		c.Rows[id] = vectorizer.SparseVector{}
	}
}

// snapshot returns a copy of the registered centroids keyed by shard name.
func (c *centroidSet) snapshot() map[string]vectorizer.SparseVector {
	out := make(map[string]vectorizer.SparseVector, len(c.Names))
	for i, name := range c.Names {
		if name == "" {
			continue
		}
		out[name] = c.Rows[i].Clone()
	}
	return out
}
