// Package overlap implements the lexical overlap signals used in document
// scoring: Dice coefficient and query-word containment.
package overlap

import (
	"strings"
	"unicode"
)

// Dice returns the Dice coefficient between the word sets of two strings.
// Punctuation is stripped and comparison is case-insensitive.
func Dice(a, b string) float64 {
	wa := wordSet(a, false)
	wb := wordSet(b, false)
	if len(wa)+len(wb) == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			common++
		}
	}
	return float64(2*common) / float64(len(wa)+len(wb))
}

// Generic returns the fraction of the query's words that also occur in s.
// Trailing plural "s" is stripped from both sides, so "pears" matches
// "pear". An empty query scores 0.
func Generic(query, s string) float64 {
	qs := wordSet(query, true)
	if len(qs) == 0 {
		return 0
	}
	ss := wordSet(s, true)
	common := 0
	for w := range qs {
		if _, ok := ss[w]; ok {
			common++
		}
	}
	return float64(common) / float64(len(qs))
}

func wordSet(s string, stripPlural bool) map[string]struct{} {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsPunct(r) {
			continue
		}
		sb.WriteRune(r)
	}
	words := strings.Fields(strings.ToLower(sb.String()))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stripPlural && len(w) > 1 && strings.HasSuffix(w, "s") {
			w = w[:len(w)-1]
		}
		set[w] = struct{}{}
	}
	return set
}
