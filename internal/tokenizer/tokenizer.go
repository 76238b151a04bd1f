// Package tokenizer segments text into subword pieces for vectorization
// and positional indexing.
package tokenizer

import "strings"

// WordMarker is the sentencepiece word-initial marker. A piece carrying it
// starts a new surface word; the pieces that follow until the next marked
// piece are continuations of the same word.
const WordMarker = "▁"

// Tokenizer turns raw text into a sequence of lowercased subword pieces.
// Pieces keep the word-initial marker so callers can group them back into
// words for phrase-proximity scoring.
type Tokenizer interface {
	Tokenize(text string) []string
}

// IsWordInitial reports whether a piece starts a new surface word.
func IsWordInitial(piece string) bool {
	return strings.HasPrefix(piece, WordMarker)
}
