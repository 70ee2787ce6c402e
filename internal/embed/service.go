// File path: internal/embed/service.go
package embed

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/fault"
	"github.com/reglens/reglens/internal/llm/providers"
)

// Config controls batching and retry behavior for the embedding service.
type Config struct {
	BatchSize  int           `json:"batch_size"`
	Dimension  int           `json:"dimension"`
	MaxRetries uint64        `json:"max_retries"`
	RetryBase  time.Duration `json:"-"`
}

// DefaultConfig returns the standard embedding configuration.
func DefaultConfig() Config {
	return Config{BatchSize: 32, Dimension: 384, MaxRetries: 3, RetryBase: 200 * time.Millisecond}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Dimension <= 0 {
		c.Dimension = def.Dimension
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryBase <= 0 {
		c.RetryBase = def.RetryBase
	}
	return c
}

// Service converts texts into unit-norm vectors through a provider backend.
// Inputs are batched to amortize model invocation cost; batch boundaries
// never affect per-input output values.
type Service struct {
	provider providers.Provider
	cfg      Config
}

func NewService(provider providers.Provider, cfg Config) *Service {
	return &Service{provider: provider, cfg: cfg.normalized()}
}

// Dimension reports the vector width produced by this service.
func (s *Service) Dimension() int {
	return s.cfg.Dimension
}

// EmbedTexts embeds every input and returns L2-normalized vectors in input
// order. Provider failures are retried with exponential backoff; exhausted
// retries surface as an embedding fault, never as silent zero vectors.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedQuery embeds a single ephemeral query text.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fault.Embedding("provider returned unexpected vector count", nil)
	}
	return vectors[0], nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	operation := func() error {
		result, err := s.provider.Embed(ctx, batch)
		if err != nil {
			return err
		}
		if len(result) != len(batch) {
			return backoff.Permanent(fmt.Errorf("provider returned %d vectors for %d inputs", len(result), len(batch)))
		}
		vectors = result
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryBase
	retrier := backoff.WithMaxRetries(backoff.WithContext(policy, ctx), s.cfg.MaxRetries)
	if err := backoff.Retry(operation, retrier); err != nil {
		common.Logger().Warn("embed: batch failed after retries", "batch", len(batch), "error", err)
		return nil, fault.Embedding("embedding provider unavailable", err)
	}
	for i, vec := range vectors {
		normalized, err := normalize(vec, s.cfg.Dimension)
		if err != nil {
			return nil, fault.Embedding(fmt.Sprintf("vector %d invalid", i), err)
		}
		vectors[i] = normalized
	}
	return vectors, nil
}

// normalize scales a vector to unit L2 norm, enforcing the configured
// dimension. Zero vectors are rejected rather than passed through.
func normalize(vec []float32, dim int) ([]float32, error) {
	if len(vec) != dim {
		return nil, fmt.Errorf("dimension %d, expected %d", len(vec), dim)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, fmt.Errorf("zero vector cannot be normalized")
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}
