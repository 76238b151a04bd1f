package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/orchard-search/orchard/internal/catalog"
	"github.com/orchard-search/orchard/internal/overlap"
	"github.com/orchard-search/orchard/internal/posindex"
	"github.com/orchard-search/orchard/internal/shardstore"
	"github.com/orchard-search/orchard/internal/tokenizer"
	"github.com/orchard-search/orchard/internal/vectorizer"
	"github.com/orchard-search/orchard/internal/vocab"
)

// OverlapMode selects which lexical-overlap signal gates document scores.
type OverlapMode string

const (
	// OverlapTitleDice scores the Dice coefficient between query and title.
	OverlapTitleDice OverlapMode = "title_dice"

	// OverlapSnippetGeneric scores query-word containment against the
	// snippet.
	OverlapSnippetGeneric OverlapMode = "snippet_generic"
)

// scoringProfile binds an overlap mode to its lexical function and the
// hard cutoffs below which a document's score is floored to 0. Resolved
// once per search call.
type scoringProfile struct {
	overlap         func(query string, e *catalog.Entry) float64
	completenessMin float64
	overlapMin      float64
}

var profiles = map[OverlapMode]scoringProfile{
	OverlapTitleDice: {
		overlap:         func(q string, e *catalog.Entry) float64 { return overlap.Dice(q, e.Title) },
		completenessMin: 0.75,
		overlapMin:      0.5,
	},
	OverlapSnippetGeneric: {
		overlap:         func(q string, e *catalog.Entry) float64 { return overlap.Generic(q, e.Snippet) },
		completenessMin: 0.75,
		overlapMin:      0.75,
	},
}

// SearchConfig holds the retrieval parameters. Zero values fall back to
// the defaults below.
type SearchConfig struct {
	// Shard selection: take the TopShards best centroids unless the total
	// similarity over all shards is below ShardScoreFloor, in which case
	// every shard is searched.
	TopShards       int
	ShardScoreFloor float64

	MaxResults int
	MaxPerHost int // 0 disables the per-host diversity cap

	Mode            OverlapMode
	CompletenessMin float64 // overrides the profile cutoff when > 0
	OverlapMin      float64 // overrides the profile cutoff when > 0

	CosineWeight       float64
	CompletenessWeight float64
	OverlapWeight      float64
	ProximityWeight    float64 // 0 disables positional scoring
	EnforceSubwords    bool
}

func (c SearchConfig) withDefaults() SearchConfig {
	if c.TopShards <= 0 {
		c.TopShards = 5
	}
	if c.ShardScoreFloor <= 0 {
		c.ShardScoreFloor = 0.9
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 100
	}
	if c.Mode == "" {
		c.Mode = OverlapSnippetGeneric
	}
	if c.CosineWeight == 0 && c.CompletenessWeight == 0 && c.OverlapWeight == 0 {
		c.CosineWeight = 0.5
		c.CompletenessWeight = 1.0
		c.OverlapWeight = 0.1
		c.ProximityWeight = 0.5
	}
	return c
}

// Result is one ranked search hit resolved through the catalog.
type Result struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Doctype string  `json:"doctype"`
	Pod     string  `json:"pod"`
	Score   float64 `json:"score"`
}

// SearchService is the retrieval engine: query vectorization, centroid
// shard selection, per-shard multi-signal document scoring, ranking.
type SearchService struct {
	tok      tokenizer.Tokenizer
	vocab    *vocab.Vocabulary
	vec      *vectorizer.Vectorizer
	matrices *shardstore.Store
	posix    *posindex.Index
	catalog  catalog.Repository
	locks    *ShardLocks
	cfg      SearchConfig
}

// NewSearchService creates a SearchService. The vectorizer must carry the
// same topK and power used at ingestion time.
func NewSearchService(
	tok tokenizer.Tokenizer,
	voc *vocab.Vocabulary,
	vec *vectorizer.Vectorizer,
	matrices *shardstore.Store,
	posix *posindex.Index,
	cat catalog.Repository,
	locks *ShardLocks,
	cfg SearchConfig,
) *SearchService {
	return &SearchService{
		tok:      tok,
		vocab:    voc,
		vec:      vec,
		matrices: matrices,
		posix:    posix,
		catalog:  cat,
		locks:    locks,
		cfg:      cfg.withDefaults(),
	}
}

// Search runs the full query pipeline and returns ranked results. An
// explicit pod list bypasses shard selection. A query with no recognized
// tokens returns an empty result set, not an error.
func (s *SearchService) Search(ctx context.Context, query string, pods []string) ([]Result, error) {
	tokens := s.tok.Tokenize(query)
	qvec := s.vec.Vectorize(tokens)
	if qvec.NNZ() == 0 {
		slog.Debug("query has no recognized tokens", "query", query)
		return nil, nil
	}

	candidates := pods
	if len(candidates) == 0 {
		candidates = s.selectShards(qvec)
	}

	profile := profiles[s.cfg.Mode]
	if profile.overlap == nil {
		profile = profiles[OverlapSnippetGeneric]
	}
	if s.cfg.CompletenessMin > 0 {
		profile.completenessMin = s.cfg.CompletenessMin
	}
	if s.cfg.OverlapMin > 0 {
		profile.overlapMin = s.cfg.OverlapMin
	}

	var (
		mu      sync.Mutex
		results []Result
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, pod := range candidates {
		g.Go(func() error {
			rs, err := s.scorePod(ctx, pod, query, tokens, qvec, profile)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, rs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.rank(results), nil
}

// selectShards ranks shard centroids by cosine similarity to the query.
// Zero-norm centroids (empty shards) score 0 rather than NaN. When the
// total similarity is below the floor there is no confident match and
// every shard is searched.
func (s *SearchService) selectShards(qvec vectorizer.SparseVector) []string {
	centroids := s.matrices.Centroids()

	type shardScore struct {
		name  string
		score float64
	}
	scores := make([]shardScore, 0, len(centroids))
	var sum float64
	for name, centroid := range centroids {
		score := vectorizer.Cosine(qvec, centroid)
		if math.IsNaN(score) {
			score = 0
		}
		scores = append(scores, shardScore{name, score})
		sum += score
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].name < scores[j].name
	})

	if sum >= s.cfg.ShardScoreFloor && len(scores) > s.cfg.TopShards {
		scores = scores[:s.cfg.TopShards]
	}
	names := make([]string, len(scores))
	for i, sc := range scores {
		names[i] = sc.name
	}
	return names
}

// scorePod scores every document of one shard under its read lock.
func (s *SearchService) scorePod(ctx context.Context, pod, query string, tokens []string, qvec vectorizer.SparseVector, profile scoringProfile) ([]Result, error) {
	lock := s.locks.Get(pod)
	lock.RLock()
	defer lock.RUnlock()

	m, err := s.matrices.Shard(pod)
	if err != nil {
		if errors.Is(err, shardstore.ErrShardNotFound) {
			// Centroid row without a matrix: inconsistent state, skip
			// rather than fail the whole search.
			slog.Warn("shard has no matrix, skipping", "pod", pod)
			return nil, nil
		}
		return nil, err
	}

	entries, err := s.catalog.ListByPod(ctx, pod)
	if err != nil {
		return nil, err
	}

	proximity := s.proximityScores(pod, tokens)

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		row, err := m.Row(e.RowID)
		if err != nil {
			slog.Warn("catalog row id outside shard matrix, skipping",
				"pod", pod, "url", e.URL, "row", e.RowID, "rows", m.RowCount())
			continue
		}

		cos := vectorizer.Cosine(qvec, row)
		comp := vectorizer.Completeness(qvec, row)
		lex := profile.overlap(query, e)

		score := s.cfg.CosineWeight*cos +
			s.cfg.CompletenessWeight*comp +
			s.cfg.OverlapWeight*lex
		if p, ok := proximity[e.RowID]; ok {
			score += s.cfg.ProximityWeight * p
		}
		// Hard cutoff, not a soft penalty: near-miss support must not
		// accumulate small positive scores.
		if comp < profile.completenessMin || lex < profile.overlapMin {
			score = 0
		}
		if math.IsNaN(score) {
			score = 0
		}

		results = append(results, Result{
			URL:     e.URL,
			Title:   e.Title,
			Snippet: e.Snippet,
			Doctype: e.Doctype,
			Pod:     pod,
			Score:   score,
		})
	}
	return results, nil
}

// proximityScores computes positional phrase scores when enabled and every
// query token is in the vocabulary; otherwise the signal is skipped.
func (s *SearchService) proximityScores(pod string, tokens []string) map[int]float64 {
	if s.cfg.ProximityWeight <= 0 || len(tokens) == 0 {
		return nil
	}
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := s.vocab.ID(tok)
		if !ok {
			return nil
		}
		ids[i] = id
	}
	return s.posix.Candidates(pod, tokens, ids, s.cfg.EnforceSubwords)
}

// rank orders results by score descending, stops at the first zero score,
// and applies the result and per-host caps.
func (s *SearchService) rank(results []Result) []Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].URL < results[j].URL
	})

	hostCounts := make(map[string]int)
	ranked := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Score <= 0 {
			break
		}
		if len(ranked) >= s.cfg.MaxResults {
			break
		}
		if s.cfg.MaxPerHost > 0 {
			host := hostOf(r.URL)
			if hostCounts[host] >= s.cfg.MaxPerHost {
				continue
			}
			hostCounts[host]++
		}
		ranked = append(ranked, r)
	}
	return ranked
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Host
}
