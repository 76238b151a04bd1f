// Package server exposes the ingestion and query entry points over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/orchard-search/orchard/internal/catalog"
	"github.com/orchard-search/orchard/internal/service"
	"github.com/orchard-search/orchard/internal/shardstore"
)

// HTTPServer serves the JSON API for ingestion, deletion and search.
type HTTPServer struct {
	server *http.Server
	router *chi.Mux
	logger *slog.Logger

	indexer  *service.IndexService
	searcher *service.SearchService
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port   int
	Logger *slog.Logger
}

// NewHTTPServer creates the HTTP server and mounts all routes.
func NewHTTPServer(cfg HTTPServerConfig, indexer *service.IndexService, searcher *service.SearchService) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		logger:   logger,
		indexer:  indexer,
		searcher: searcher,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", healthCheckHandler())
	router.Get("/readyz", healthCheckHandler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Post("/documents", s.handleIngest)
		r.Delete("/documents", s.handleDelete)
		r.Get("/pods", s.handleListPods)
		r.Delete("/pods/{name}", s.handleDropPod)
	})

	s.router = router
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}

type ingestRequest struct {
	Pod     string `json:"pod"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Doctype string `json:"doctype"`
	Notes   string `json:"notes"`
	Text    string `json:"text"`
}

type ingestResponse struct {
	Pod     string `json:"pod"`
	URL     string `json:"url"`
	RowID   int    `json:"row_id,omitempty"`
	Skipped string `json:"skipped,omitempty"`
}

func (s *HTTPServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rowID, err := s.indexer.Ingest(r.Context(), service.IngestRequest{
		Pod:     req.Pod,
		URL:     req.URL,
		Title:   req.Title,
		Snippet: req.Snippet,
		Doctype: req.Doctype,
		Notes:   req.Notes,
		Text:    req.Text,
	})
	switch {
	case errors.Is(err, service.ErrEmptyVector):
		// Per-document skip, not a failure: callers ingest one document
		// at a time so a batch can partially succeed.
		writeJSON(w, http.StatusOK, ingestResponse{Pod: req.Pod, URL: req.URL, Skipped: "no recognized vocabulary tokens"})
	case errors.Is(err, service.ErrMissingField), errors.Is(err, shardstore.ErrInvalidShardName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRowMismatch):
		s.logger.Error("index row mismatch", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusCreated, ingestResponse{Pod: req.Pod, URL: req.URL, RowID: rowID})
	}
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	err := s.indexer.Remove(r.Context(), url)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, service.ErrRowMismatch):
		s.logger.Error("index row mismatch", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type searchResponse struct {
	Query   string           `json:"query"`
	Results []service.Result `json:"results"`
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	var pods []string
	if raw := r.URL.Query().Get("pods"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pods = append(pods, p)
			}
		}
	}

	results, err := s.searcher.Search(r.Context(), query, pods)
	if err != nil {
		// Search degrades to empty results for per-shard trouble; an
		// error here is infrastructure-level.
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []service.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
}

func (s *HTTPServer) handleListPods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.indexer.Pods(r.Context()))
}

func (s *HTTPServer) handleDropPod(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := s.indexer.DropPod(r.Context(), name)
	switch {
	case errors.Is(err, shardstore.ErrShardNotFound):
		writeError(w, http.StatusNotFound, "pod not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// healthCheckHandler returns a handler for the health endpoints
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
