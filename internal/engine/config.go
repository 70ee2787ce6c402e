// File path: internal/engine/config.go
package engine

import (
	"os"
	"strconv"
	"strings"

	"github.com/reglens/reglens/internal/analyzer"
	"github.com/reglens/reglens/internal/cache"
	"github.com/reglens/reglens/internal/catalog"
	"github.com/reglens/reglens/internal/corpus"
	"github.com/reglens/reglens/internal/embed"
	"github.com/reglens/reglens/internal/ranker"
	"github.com/reglens/reglens/internal/session"
)

// Config aggregates every subsystem's configuration under one root.
type Config struct {
	DataDir string

	Chunker  corpus.ChunkerConfig
	Embed    embed.Config
	Ranker   ranker.Config
	Analyzer analyzer.Config
	Cache    cache.Config
	Session  session.Config
	Catalog  catalog.Config
}

// LoadConfig assembles the engine configuration from each subsystem's loader
// plus the engine-level environment knobs.
func LoadConfig() (Config, error) {
	rankerCfg, err := ranker.LoadConfig()
	if err != nil {
		return Config{}, err
	}
	catalogCfg, err := catalog.LoadConfig()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		DataDir:  "data",
		Chunker:  corpus.DefaultChunkerConfig(),
		Embed:    embed.DefaultConfig(),
		Ranker:   rankerCfg,
		Analyzer: analyzer.DefaultConfig(),
		Cache:    cache.DefaultConfig(),
		Session:  session.DefaultConfig(),
		Catalog:  catalogCfg,
	}
	if dir := strings.TrimSpace(os.Getenv("REGLENS_DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}
	if value, ok := envInt("REGLENS_CHUNK_MIN_SIZE"); ok {
		cfg.Chunker.MinSize = value
	}
	if value, ok := envInt("REGLENS_CHUNK_MAX_SIZE"); ok {
		cfg.Chunker.MaxSize = value
	}
	if value, ok := envInt("REGLENS_CHUNK_OVERLAP"); ok {
		cfg.Chunker.Overlap = value
	}
	cfg.Embed.Dimension = cfg.Session.Dimension
	return cfg, nil
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
