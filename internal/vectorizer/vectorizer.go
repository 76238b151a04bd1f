// Package vectorizer turns subword token sequences into sparse weighted
// vectors over the vocabulary space.
package vectorizer

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/orchard-search/orchard/internal/vocab"
)

// Defaults for the weighting and pruning parameters. TopK must match the
// value used when a shard was built or similarity scores stop being
// comparable across its rows.
const (
	DefaultPower = 5
	DefaultTopK  = 400
)

// Vectorizer builds document and query vectors: raw subword counts scaled
// by logprob^power, pruned winner-takes-all to the topK largest dimensions,
// then L2 normalized.
type Vectorizer struct {
	vocab *vocab.Vocabulary
	power float64
	topK  int

	unknown atomic.Int64
}

// New creates a Vectorizer. Non-positive power or topK fall back to the
// defaults.
func New(v *vocab.Vocabulary, power float64, topK int) *Vectorizer {
	if power <= 0 {
		power = DefaultPower
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Vectorizer{vocab: v, power: power, topK: topK}
}

// Dimension returns the vector space dimension (the vocabulary size).
func (vz *Vectorizer) Dimension() int {
	return vz.vocab.Size()
}

// TopK returns the winner-takes-all cap.
func (vz *Vectorizer) TopK() int {
	return vz.topK
}

// UnknownTokens returns how many out-of-vocabulary tokens have been dropped
// since startup. Diagnostics only; unknown tokens are never an error.
func (vz *Vectorizer) UnknownTokens() int64 {
	return vz.unknown.Load()
}

// Vectorize builds the sparse vector for a token sequence. Tokens outside
// the vocabulary are dropped. If no token is known the result is the zero
// vector; callers decide whether that makes the document unindexable.
func (vz *Vectorizer) Vectorize(tokens []string) SparseVector {
	counts := make(map[int]float64)
	for _, tok := range tokens {
		id, ok := vz.vocab.ID(tok)
		if !ok {
			vz.unknown.Add(1)
			continue
		}
		counts[id]++
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	v := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for id := range counts {
		v.Indices = append(v.Indices, id)
	}
	sort.Ints(v.Indices)
	for _, id := range v.Indices {
		weight := counts[id] * math.Pow(vz.vocab.Logprob(id), vz.power)
		v.Values = append(v.Values, weight)
	}

	v = winnerTakesAll(v, vz.topK)
	v.Normalize()
	return v
}

// winnerTakesAll keeps only the k largest-valued dimensions and drops the
// rest. Ties are broken deterministically toward the lowest id.
func winnerTakesAll(v SparseVector, k int) SparseVector {
	if len(v.Indices) <= k {
		return v
	}
	order := make([]int, len(v.Indices))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if v.Values[order[a]] != v.Values[order[b]] {
			return v.Values[order[a]] > v.Values[order[b]]
		}
		return v.Indices[order[a]] < v.Indices[order[b]]
	})
	order = order[:k]
	sort.Slice(order, func(a, b int) bool { return v.Indices[order[a]] < v.Indices[order[b]] })

	out := SparseVector{
		Indices: make([]int, k),
		Values:  make([]float64, k),
	}
	for i, pos := range order {
		out.Indices[i] = v.Indices[pos]
		out.Values[i] = v.Values[pos]
	}
	return out
}
