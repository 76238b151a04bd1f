package shardstore

import (
	"fmt"

	"github.com/orchard-search/orchard/internal/vectorizer"
)

// Matrix is an append-only sparse row matrix: one row per document, row
// index doubling as the document's identity inside its shard. Rows are
// dense in 0..len-1; deletion compacts the row set and renumbers.
type Matrix struct {
	Cols int
	Rows []vectorizer.SparseVector
}

func newMatrix(cols int) *Matrix {
	return &Matrix{Cols: cols}
}

// RowCount returns the number of rows.
func (m *Matrix) RowCount() int {
	return len(m.Rows)
}

// Row returns the row at index i.
func (m *Matrix) Row(i int) (vectorizer.SparseVector, error) {
	if i < 0 || i >= len(m.Rows) {
		return vectorizer.SparseVector{}, fmt.Errorf("%w: row %d of %d", ErrRowOutOfRange, i, len(m.Rows))
	}
	return m.Rows[i], nil
}

// appendRow adds a row and returns its index.
func (m *Matrix) appendRow(v vectorizer.SparseVector) int {
	m.Rows = append(m.Rows, v)
	return len(m.Rows) - 1
}

// deleteRow removes row i by concatenating the rows before and after it,
// and returns the renumbering map {old row id -> new row id} for every row
// whose index shifted down.
func (m *Matrix) deleteRow(i int) (map[int]int, error) {
	if i < 0 || i >= len(m.Rows) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrRowOutOfRange, i, len(m.Rows))
	}
	renumbering := make(map[int]int, len(m.Rows)-i-1)
	for old := i + 1; old < len(m.Rows); old++ {
		renumbering[old] = old - 1
	}
	m.Rows = append(m.Rows[:i], m.Rows[i+1:]...)
	return renumbering, nil
}

// sum returns the unnormalized sum of all rows as a sparse vector.
func (m *Matrix) sum() vectorizer.SparseVector {
	dense := make([]float64, m.Cols)
	for _, row := range m.Rows {
		row.Accumulate(dense)
	}
	return vectorizer.FromDense(dense)
}
