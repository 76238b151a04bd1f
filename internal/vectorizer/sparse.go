package vectorizer

import "math"

// SparseVector is a sparse non-negative vector over the vocabulary space,
// stored as parallel index/value slices sorted by index.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// NNZ returns the number of stored (non-zero) entries.
func (v SparseVector) NNZ() int {
	return len(v.Indices)
}

// Norm returns the L2 norm.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalize scales the vector to unit L2 norm in place. A zero vector is
// left untouched.
func (v SparseVector) Normalize() {
	norm := v.Norm()
	if norm == 0 {
		return
	}
	for i := range v.Values {
		v.Values[i] /= norm
	}
}

// Dot returns the dot product of two sparse vectors.
func Dot(a, b SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] < b.Indices[j]:
			i++
		case a.Indices[i] > b.Indices[j]:
			j++
		default:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		}
	}
	return sum
}

// Cosine returns the cosine similarity of two sparse vectors. If either
// vector has zero norm the similarity is 0, never NaN.
func Cosine(a, b SparseVector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Completeness returns the fraction of the query vector's active dimensions
// that are also active in the document vector. It compares support only,
// not magnitudes. An empty query vector scores 0.
func Completeness(query, doc SparseVector) float64 {
	if len(query.Indices) == 0 {
		return 0
	}
	matched := 0
	i, j := 0, 0
	for i < len(query.Indices) && j < len(doc.Indices) {
		switch {
		case query.Indices[i] < doc.Indices[j]:
			i++
		case query.Indices[i] > doc.Indices[j]:
			j++
		default:
			if doc.Values[j] > 0 {
				matched++
			}
			i++
			j++
		}
	}
	return float64(matched) / float64(len(query.Indices))
}

// Accumulate adds the vector into a dense accumulator.
func (v SparseVector) Accumulate(dense []float64) {
	for i, idx := range v.Indices {
		if idx >= 0 && idx < len(dense) {
			dense[idx] += v.Values[i]
		}
	}
}

// FromDense builds a sparse vector from a dense slice, keeping strictly
// positive entries.
func FromDense(dense []float64) SparseVector {
	var v SparseVector
	for i, x := range dense {
		if x > 0 {
			v.Indices = append(v.Indices, i)
			v.Values = append(v.Values, x)
		}
	}
	return v
}

// Clone returns a deep copy.
func (v SparseVector) Clone() SparseVector {
	out := SparseVector{
		Indices: make([]int, len(v.Indices)),
		Values:  make([]float64, len(v.Values)),
	}
	copy(out.Indices, v.Indices)
	copy(out.Values, v.Values)
	return out
}
