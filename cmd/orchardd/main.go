package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/orchard-search/orchard/internal/catalog"
	catalogmemory "github.com/orchard-search/orchard/internal/catalog/memory"
	catalogpostgres "github.com/orchard-search/orchard/internal/catalog/postgres"
	"github.com/orchard-search/orchard/internal/config"
	"github.com/orchard-search/orchard/internal/posindex"
	"github.com/orchard-search/orchard/internal/server"
	"github.com/orchard-search/orchard/internal/service"
	"github.com/orchard-search/orchard/internal/shardstore"
	"github.com/orchard-search/orchard/internal/tokenizer"
	"github.com/orchard-search/orchard/internal/vectorizer"
	"github.com/orchard-search/orchard/internal/vocab"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting search engine",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir,
	)

	// Load the vocabulary; its size defines the vector dimension for
	// every matrix on disk.
	voc, err := vocab.Load(cfg.VocabPath)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	slog.Info("loaded vocabulary", "path", cfg.VocabPath, "size", voc.Size())

	tok, err := tokenizer.NewSentencePiece(cfg.SPMModelPath)
	if err != nil {
		return fmt.Errorf("failed to load tokenizer model: %w", err)
	}
	slog.Info("loaded sentencepiece model", "path", cfg.SPMModelPath)

	vec := vectorizer.New(voc, cfg.LogprobPower, cfg.VectorTopK)

	// Open the persisted index state
	matrices, err := shardstore.Open(filepath.Join(cfg.DataDir, "pods"), voc.Size())
	if err != nil {
		return fmt.Errorf("failed to open shard store: %w", err)
	}
	slog.Info("opened shard store", "shards", len(matrices.Shards()))

	posix, err := posindex.Open(filepath.Join(cfg.DataDir, "posix"))
	if err != nil {
		return fmt.Errorf("failed to open positional index: %w", err)
	}

	// Initialize the document catalog
	var cat catalog.Repository
	if cfg.DatabaseURL != "" {
		db, err := catalogpostgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		cat = catalogpostgres.NewEntryRepo(db)
		slog.Info("connected to PostgreSQL catalog")
	} else {
		cat = catalogmemory.New()
		slog.Warn("no DATABASE_URL set, using in-memory catalog")
	}

	// Initialize services
	locks := service.NewShardLocks()
	indexer := service.NewIndexService(tok, voc, vec, matrices, posix, cat, locks)
	searcher := service.NewSearchService(tok, voc, vec, matrices, posix, cat, locks, service.SearchConfig{
		TopShards:          cfg.TopShards,
		ShardScoreFloor:    cfg.ShardScoreFloor,
		MaxResults:         cfg.MaxResults,
		MaxPerHost:         cfg.MaxPerHost,
		Mode:               service.OverlapMode(cfg.OverlapMode),
		CompletenessMin:    cfg.CompletenessMin,
		OverlapMin:         cfg.OverlapMin,
		CosineWeight:       cfg.CosineWeight,
		CompletenessWeight: cfg.CompletenessWeight,
		OverlapWeight:      cfg.OverlapWeight,
		ProximityWeight:    cfg.ProximityWeight,
		EnforceSubwords:    cfg.EnforceSubwords,
	})

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:   cfg.HTTPPort,
		Logger: slog.Default(),
	}, indexer, searcher)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ catalog.Repository  = (*catalogpostgres.EntryRepo)(nil)
	_ catalog.Repository  = (*catalogmemory.Repo)(nil)
	_ tokenizer.Tokenizer = (*tokenizer.SentencePiece)(nil)
)
