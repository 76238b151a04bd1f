// Package config loads configuration from environment variables and .env files.
package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the search engine
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Catalog. An empty DATABASE_URL selects the in-memory catalog
	// (single-binary development mode, index rebuilt from disk but
	// metadata lost on restart).
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`

	// Index storage
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// Vocabulary and segmentation model. The .vocab file defines the
	// vector dimension; changing it invalidates all stored vectors.
	VocabPath    string `env:"VOCAB_PATH" envDefault:"./models/en/enwiki.vocab"`
	SPMModelPath string `env:"SPM_MODEL_PATH" envDefault:"./models/en/enwiki.model"`

	// Vectorization. VectorTopK must match the value the shards were
	// built with or similarity scores stop being comparable.
	VectorTopK   int     `env:"VECTOR_TOP_K" envDefault:"400"`
	LogprobPower float64 `env:"LOGPROB_POWER" envDefault:"5"`

	// Shard selection
	TopShards       int     `env:"TOP_SHARDS" envDefault:"5"`
	ShardScoreFloor float64 `env:"SHARD_SCORE_FLOOR" envDefault:"0.9"`

	// Document scoring. Zero thresholds keep the overlap mode's defaults.
	OverlapMode        string  `env:"OVERLAP_MODE" envDefault:"snippet_generic"`
	CompletenessMin    float64 `env:"COMPLETENESS_MIN" envDefault:"0"`
	OverlapMin         float64 `env:"OVERLAP_MIN" envDefault:"0"`
	CosineWeight       float64 `env:"COSINE_WEIGHT" envDefault:"0.5"`
	CompletenessWeight float64 `env:"COMPLETENESS_WEIGHT" envDefault:"1"`
	OverlapWeight      float64 `env:"OVERLAP_WEIGHT" envDefault:"0.1"`
	ProximityWeight    float64 `env:"PROXIMITY_WEIGHT" envDefault:"0.5"`
	EnforceSubwords    bool    `env:"ENFORCE_SUBWORDS" envDefault:"true"`

	// Ranking
	MaxResults int `env:"MAX_RESULTS" envDefault:"100"`
	MaxPerHost int `env:"MAX_PER_HOST" envDefault:"0"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
