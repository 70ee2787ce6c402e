// File path: internal/ranker/config.go
package ranker

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the reranking policy: signal weights, the minimum raw
// similarity admitted to composite scoring, and the ideal chunk length the
// length signal rewards. Values are tunable configuration, not algorithm.
type Config struct {
	SimilarityWeight float64 `yaml:"similarity_weight" json:"similarity_weight"`
	LengthWeight     float64 `yaml:"length_weight" json:"length_weight"`
	KeywordWeight    float64 `yaml:"keyword_weight" json:"keyword_weight"`
	SectionWeight    float64 `yaml:"section_weight" json:"section_weight"`
	MinSimilarity    float64 `yaml:"min_similarity" json:"min_similarity"`
	IdealLength      int     `yaml:"ideal_length" json:"ideal_length"`
}

// DefaultConfig returns the standard ranking policy.
func DefaultConfig() Config {
	return Config{
		SimilarityWeight: 0.55,
		LengthWeight:     0.15,
		KeywordWeight:    0.20,
		SectionWeight:    0.10,
		MinSimilarity:    0.3,
		IdealLength:      1000,
	}
}

func (c Config) Merge(override Config) Config {
	result := c
	if override.SimilarityWeight > 0 {
		result.SimilarityWeight = override.SimilarityWeight
	}
	if override.LengthWeight > 0 {
		result.LengthWeight = override.LengthWeight
	}
	if override.KeywordWeight > 0 {
		result.KeywordWeight = override.KeywordWeight
	}
	if override.SectionWeight > 0 {
		result.SectionWeight = override.SectionWeight
	}
	if override.MinSimilarity > 0 {
		result.MinSimilarity = override.MinSimilarity
	}
	if override.IdealLength > 0 {
		result.IdealLength = override.IdealLength
	}
	return result
}

// LoadConfig builds the ranking policy from defaults, an optional YAML file
// (REGLENS_RANKER_CONFIG_FILE), and environment overrides, in that order.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("REGLENS_RANKER_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg.Merge(envCfg), nil
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read ranker config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse ranker config: %w", err)
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{}
	floats := map[string]*float64{
		"REGLENS_RANKER_SIMILARITY_WEIGHT": &cfg.SimilarityWeight,
		"REGLENS_RANKER_LENGTH_WEIGHT":     &cfg.LengthWeight,
		"REGLENS_RANKER_KEYWORD_WEIGHT":    &cfg.KeywordWeight,
		"REGLENS_RANKER_SECTION_WEIGHT":    &cfg.SectionWeight,
		"REGLENS_RANKER_MIN_SIMILARITY":    &cfg.MinSimilarity,
	}
	for key, target := range floats {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", key, err)
		}
		*target = value
	}
	if raw := strings.TrimSpace(os.Getenv("REGLENS_RANKER_IDEAL_LENGTH")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse REGLENS_RANKER_IDEAL_LENGTH: %w", err)
		}
		cfg.IdealLength = value
	}
	return cfg, nil
}
