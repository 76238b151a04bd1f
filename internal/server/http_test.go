package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/orchard-search/orchard/internal/catalog/memory"
	"github.com/orchard-search/orchard/internal/posindex"
	"github.com/orchard-search/orchard/internal/service"
	"github.com/orchard-search/orchard/internal/shardstore"
	"github.com/orchard-search/orchard/internal/vectorizer"
	"github.com/orchard-search/orchard/internal/vocab"
)

type fieldTokenizer struct{}

func (fieldTokenizer) Tokenize(text string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		out = append(out, "▁"+w)
	}
	return out
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	dir := t.TempDir()
	vocabPath := filepath.Join(dir, "test.vocab")
	content := "▁pear\t-3.0\n▁orchard\t-4.0\n▁carrot\t-3.2\n▁soup\t-3.8\n"
	if err := os.WriteFile(vocabPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write vocab: %v", err)
	}
	voc, err := vocab.Load(vocabPath)
	if err != nil {
		t.Fatalf("failed to load vocab: %v", err)
	}

	matrices, err := shardstore.Open(filepath.Join(dir, "pods"), voc.Size())
	if err != nil {
		t.Fatalf("failed to open shard store: %v", err)
	}
	posix, err := posindex.Open(filepath.Join(dir, "posix"))
	if err != nil {
		t.Fatalf("failed to open positional index: %v", err)
	}

	tok := fieldTokenizer{}
	vec := vectorizer.New(voc, 5, 400)
	cat := memory.New()
	locks := service.NewShardLocks()
	indexer := service.NewIndexService(tok, voc, vec, matrices, posix, cat, locks)
	searcher := service.NewSearchService(tok, voc, vec, matrices, posix, cat, locks, service.SearchConfig{})

	return NewHTTPServer(HTTPServerConfig{Port: 0}, indexer, searcher)
}

func doRequest(t *testing.T, s *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleIngest(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/documents",
		`{"pod":"fruit","url":"https://a.org/pear","title":"Pear orchard","snippet":"pear orchard notes","text":"pear orchard"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.RowID != 0 || resp.Pod != "fruit" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleIngest_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing fields", `{"url":"https://a.org"}`, http.StatusBadRequest},
		{"bad pod name", `{"pod":"../x","url":"https://a.org","text":"pear"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/documents", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleIngest_SkippedDocument(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/documents",
		`{"pod":"fruit","url":"https://a.org/zebra","text":"zebra xylophone"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a skipped document, got %d", rec.Code)
	}
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Skipped == "" {
		t.Error("expected a skip reason")
	}
}

func TestHandleDelete(t *testing.T) {
	s := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/api/documents",
		`{"pod":"fruit","url":"https://a.org/pear","text":"pear"}`)

	rec := doRequest(t, s, http.MethodDelete, "/api/documents?url=https%3A%2F%2Fa.org%2Fpear", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/documents?url=https%3A%2F%2Fa.org%2Fpear", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for the second delete, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/documents", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without url, got %d", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/api/documents",
		`{"pod":"fruit","url":"https://a.org/pear","title":"Pear orchard","snippet":"pear orchard notes","text":"pear orchard"}`)

	rec := doRequest(t, s, http.MethodGet, "/api/search?q=pear+orchard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].URL != "https://a.org/pear" {
		t.Errorf("unexpected results %+v", resp.Results)
	}

	// A query with no recognized tokens returns an empty list, not null.
	rec = doRequest(t, s, http.MethodGet, "/api/search?q=zebra", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("expected empty results array, got %s", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", rec.Code)
	}
}

func TestHandlePods(t *testing.T) {
	s := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/api/documents",
		`{"pod":"fruit","url":"https://a.org/pear","text":"pear"}`)

	rec := doRequest(t, s, http.MethodGet, "/api/pods", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var pods []service.PodInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &pods); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(pods) != 1 || pods[0].Name != "fruit" || pods[0].Documents != 1 {
		t.Errorf("unexpected pods %+v", pods)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/pods/fruit", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodDelete, "/api/pods/fruit", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for the second drop, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for %s, got %d", path, rec.Code)
		}
	}
}
