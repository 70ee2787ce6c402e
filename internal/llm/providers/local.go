// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
)

// Message is a single chat turn sent to a provider.
type Message struct {
	Role    string
	Content string
}

// Provider abstracts the chat-completion and embedding backends.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Embed(ctx context.Context, input []string) ([][]float32, error)
	Name() string
}

// ErrChatUnavailable signals that the active provider has no chat backend,
// which routes analyses onto the deterministic fallback path.
var ErrChatUnavailable = errors.New("chat completion not available")

// LocalProvider is the offline backend used when no API key is configured.
// Embeddings are deterministic token-hash projections, so identical texts map
// to identical vectors and retrieval stays functional without a model.
type LocalProvider struct {
	dim int
}

func NewLocalProvider(dim int) *LocalProvider {
	if dim <= 0 {
		dim = 384
	}
	return &LocalProvider{dim: dim}
}

func (l *LocalProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return "", ErrChatUnavailable
}

func (l *LocalProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i, text := range input {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vectors[i] = l.project(text)
	}
	return vectors, nil
}

func (l *LocalProvider) project(text string) []float32 {
	vec := make([]float32, l.dim)
	tokens := strings.Fields(strings.ToLower(text))
	prev := ""
	for _, token := range tokens {
		vec[l.bucket(token)]++
		if prev != "" {
			// Bigram buckets keep distinct orderings distinguishable.
			vec[l.bucket(prev+" "+token)] += 0.5
		}
		prev = token
	}
	return vec
}

func (l *LocalProvider) bucket(term string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(term))
	return int(hasher.Sum32() % uint32(l.dim))
}

func (l *LocalProvider) Name() string {
	return "local"
}
