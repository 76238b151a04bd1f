package posindex

import (
	"fmt"
	"math"

	"github.com/orchard-search/orchard/internal/tokenizer"
)

// WordPositions holds, for one query word, the document position lists of
// its constituent subword tokens, in subword order.
type WordPositions [][]int

// Score rates how close the query's words appear inside one candidate
// document.
//
// With enforceSubwords, a word counts as matched (1.0) only when its
// subwords occur at consecutive positions: each subword must occur exactly
// one position after a retained position of the previous subword, and the
// word short-circuits to 0.0 as soon as a subword breaks the chain. The
// result is the fraction of query words fully matched.
//
// Without enforceSubwords, all pairs of consecutive query-token position
// lists are rated by distance, max(1 - log10(dist), 0), and the best pair
// anywhere in the document wins.
func Score(words []WordPositions, enforceSubwords bool) float64 {
	words = dedupeWords(words)
	if len(words) == 0 {
		return 0
	}
	// A single one-subword word present in the document is a perfect match.
	if len(words) == 1 && len(words[0]) == 1 {
		return 1.0
	}
	if enforceSubwords {
		return scoreSubwordRuns(words)
	}
	return scoreTokenDistance(words)
}

func scoreSubwordRuns(words []WordPositions) float64 {
	var sum float64
	for _, word := range words {
		if len(word) == 0 {
			continue
		}
		retained := word[0]
		matched := true
		for _, positions := range word[1:] {
			var consecutive []int
			for _, p := range positions {
				for _, prev := range retained {
					if p-prev == 1 {
						consecutive = append(consecutive, p)
						break
					}
				}
			}
			if len(consecutive) == 0 {
				matched = false
				break
			}
			retained = consecutive
		}
		if matched {
			sum++
		}
	}
	return sum / float64(len(words))
}

func scoreTokenDistance(words []WordPositions) float64 {
	var flat [][]int
	for _, word := range words {
		flat = append(flat, word...)
	}
	if len(flat) < 2 {
		return 1.0
	}
	best := 0.0
	for i := 1; i < len(flat); i++ {
		for _, a := range flat[i-1] {
			for _, b := range flat[i] {
				dist := b - a
				if dist < 0 {
					dist = -dist
				}
				if dist == 0 {
					continue
				}
				// 1.0 at distance 1, 0 at distance 10 or greater.
				s := 1 - math.Log10(float64(dist))
				if s > best {
					best = s
				}
			}
		}
	}
	return best
}

// dedupeWords drops repeated query words so "very very large" scores like
// "very large".
func dedupeWords(words []WordPositions) []WordPositions {
	seen := make(map[string]struct{}, len(words))
	out := words[:0:0]
	for _, w := range words {
		key := fmt.Sprint([][]int(w))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Candidates returns the proximity score per document row for a tokenized
// query whose tokens are all in the vocabulary. Only documents containing
// every query token are scored: the posting row sets of all tokens are
// intersected first, so a query with any absent token yields no candidates.
// pieces and ids run in parallel over the query's subword tokens.
func (ix *Index) Candidates(shard string, pieces []string, ids []int, enforceSubwords bool) map[int]float64 {
	// Committed postings maps are replaced wholesale, never mutated, so the
	// snapshot stays consistent after the lock is released.
	ix.mu.Lock()
	p, ok := ix.shards[shard]
	ix.mu.Unlock()
	if !ok || len(ids) == 0 {
		return nil
	}

	rowSets := make([]map[int][]int, len(ids))
	for i, id := range ids {
		rows, ok := p[id]
		if !ok || len(rows) == 0 {
			return nil
		}
		rowSets[i] = rows
	}

	matching := make([]int, 0, len(rowSets[0]))
	for row := range rowSets[0] {
		inAll := true
		for _, rows := range rowSets[1:] {
			if _, ok := rows[row]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			matching = append(matching, row)
		}
	}

	scores := make(map[int]float64, len(matching))
	for _, row := range matching {
		var words []WordPositions
		for i, piece := range pieces {
			positions := rowSets[i][row]
			if tokenizer.IsWordInitial(piece) || len(words) == 0 {
				words = append(words, WordPositions{positions})
			} else {
				words[len(words)-1] = append(words[len(words)-1], positions)
			}
		}
		scores[row] = Score(words, enforceSubwords)
	}
	return scores
}
