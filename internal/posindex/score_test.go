package posindex

import (
	"math"
	"testing"
)

func TestScore_EnforceSubwords(t *testing.T) {
	tests := []struct {
		name     string
		words    []WordPositions
		expected float64
	}{
		{
			name:     "empty query",
			words:    nil,
			expected: 0,
		},
		{
			name:     "single one-subword word",
			words:    []WordPositions{{{5}}},
			expected: 1.0,
		},
		{
			name:     "consecutive subword run",
			words:    []WordPositions{{{2}, {3}, {4}}},
			expected: 1.0,
		},
		{
			name:     "broken subword chain",
			words:    []WordPositions{{{2}, {5}}},
			expected: 0,
		},
		{
			name:     "run found among scattered occurrences",
			words:    []WordPositions{{{2, 9}, {5, 10}}},
			expected: 1.0,
		},
		{
			name:     "half the words matched",
			words:    []WordPositions{{{2}, {3}}, {{7}, {9}}},
			expected: 0.5,
		},
		{
			name:     "two single-subword words",
			words:    []WordPositions{{{5}}, {{6}}},
			expected: 1.0,
		},
		{
			name:     "repeated word scores once",
			words:    []WordPositions{{{5}}, {{5}}},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.words, true)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Score = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestScore_TokenDistance(t *testing.T) {
	tests := []struct {
		name     string
		words    []WordPositions
		expected float64
	}{
		{
			name:     "adjacent tokens",
			words:    []WordPositions{{{5}}, {{6}}},
			expected: 1.0,
		},
		{
			name:     "distance two",
			words:    []WordPositions{{{5}}, {{7}}},
			expected: 1 - math.Log10(2),
		},
		{
			name:     "distance ten floors to zero",
			words:    []WordPositions{{{0}}, {{10}}},
			expected: 0,
		},
		{
			name:     "best pair wins",
			words:    []WordPositions{{{0, 20}}, {{21, 40}}},
			expected: 1.0,
		},
		{
			name:     "order does not matter",
			words:    []WordPositions{{{6}}, {{5}}},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.words, false)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Score = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCandidates(t *testing.T) {
	ix, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Row 0: "pears" as ▁pear(7) s(8) at consecutive positions.
	// Row 1: the same subwords separated by another token.
	// Row 2: ▁pear alone, missing the s subword.
	if err := ix.Record("fruit", 0, []int{7, 8}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := ix.Record("fruit", 1, []int{7, 9, 8}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := ix.Record("fruit", 2, []int{7}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	pieces := []string{"▁pear", "s"}
	ids := []int{7, 8}

	scores := ix.Candidates("fruit", pieces, ids, true)
	if len(scores) != 2 {
		t.Fatalf("expected 2 candidates, got %v", scores)
	}
	if scores[0] != 1.0 {
		t.Errorf("expected row 0 to score 1.0, got %v", scores[0])
	}
	if scores[1] != 0.0 {
		t.Errorf("expected row 1 to score 0.0 with subwords enforced, got %v", scores[1])
	}
	if _, ok := scores[2]; ok {
		t.Error("row 2 lacks a query token and must not be a candidate")
	}

	// Without enforcement the separated subwords still earn a distance score.
	scores = ix.Candidates("fruit", pieces, ids, false)
	if got := scores[1]; math.Abs(got-(1-math.Log10(2))) > 1e-9 {
		t.Errorf("expected distance score for row 1, got %v", got)
	}
}

func TestCandidates_AbsentTokenYieldsNone(t *testing.T) {
	ix, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := ix.Record("fruit", 0, []int{7}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if got := ix.Candidates("fruit", []string{"▁pear", "▁kiwi"}, []int{7, 55}, true); got != nil {
		t.Errorf("expected nil when a query token has no postings, got %v", got)
	}
	if got := ix.Candidates("nope", []string{"▁pear"}, []int{7}, true); got != nil {
		t.Errorf("expected nil for unknown shard, got %v", got)
	}
	if got := ix.Candidates("fruit", nil, nil, true); got != nil {
		t.Errorf("expected nil for empty query, got %v", got)
	}
}

func TestCandidates_GroupsSubwordsIntoWords(t *testing.T) {
	ix, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	// "pears tree" as ▁pear(7) s(8) ▁tree(9): both words present and intact.
	if err := ix.Record("fruit", 0, []int{7, 8, 9}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	scores := ix.Candidates("fruit", []string{"▁pear", "s", "▁tree"}, []int{7, 8, 9}, true)
	if got := scores[0]; got != 1.0 {
		t.Errorf("expected both words matched for 1.0, got %v", got)
	}
}
