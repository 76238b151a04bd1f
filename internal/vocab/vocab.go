// Package vocab loads the fixed subword vocabulary that defines the vector space.
package vocab

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Vocabulary maps subword pieces to dense ids and carries the per-piece
// log-probability from the segmentation model. Ids are assigned in file
// order and are stable for the lifetime of a deployment: every stored
// vector and positional index entry is addressed by them.
type Vocabulary struct {
	ids      map[string]int
	pieces   []string
	logprobs []float64
}

// Load reads a sentencepiece .vocab companion file: one "piece\tlogprob"
// line per entry. Log-probabilities are negated on load so that rarer
// pieces carry larger weights. Duplicate and empty pieces are skipped
// without consuming an id.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary file: %w", err)
	}
	defer f.Close()

	v := &Vocabulary{ids: make(map[string]int)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("vocabulary line %d: expected piece\\tlogprob", line)
		}
		piece := fields[0]
		if piece == "" {
			continue
		}
		if _, ok := v.ids[piece]; ok {
			continue
		}
		lp, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("vocabulary line %d: bad logprob %q: %w", line, fields[1], err)
		}
		v.ids[piece] = len(v.pieces)
		v.pieces = append(v.pieces, piece)
		v.logprobs = append(v.logprobs, -lp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}
	if len(v.pieces) == 0 {
		return nil, fmt.Errorf("vocabulary file %s is empty", path)
	}
	return v, nil
}

// ID returns the dense id of a piece.
func (v *Vocabulary) ID(piece string) (int, bool) {
	id, ok := v.ids[piece]
	return id, ok
}

// Piece returns the piece for an id, or "" if the id is out of range.
func (v *Vocabulary) Piece(id int) string {
	if id < 0 || id >= len(v.pieces) {
		return ""
	}
	return v.pieces[id]
}

// Logprob returns the (negated) log-probability for an id.
func (v *Vocabulary) Logprob(id int) float64 {
	return v.logprobs[id]
}

// Size returns the number of pieces, which is also the vector dimension.
func (v *Vocabulary) Size() int {
	return len(v.pieces)
}
