// File path: internal/llm/llm.go
package llm

import (
	"os"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/llm/providers"
)

type Message = providers.Message

type Provider = providers.Provider

// ErrChatUnavailable re-exports the sentinel used by chat-less providers.
var ErrChatUnavailable = providers.ErrChatUnavailable

// NewProvider selects a backend from the environment: the OpenAI-compatible
// client when OPENAI_API_KEY is set, otherwise the offline local provider.
func NewProvider() Provider {
	logger := common.Logger()
	dimensions := embeddingDimensions()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		logger.Warn("llm: OPENAI_API_KEY not set; using local provider")
		return providers.NewLocalProvider(dimensions)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if raw := strings.TrimSpace(os.Getenv("OPENAI_HTTP_TIMEOUT")); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			logger.Warn("llm: invalid OPENAI_HTTP_TIMEOUT, using default", "value", raw, "error", err)
		} else {
			opts = append(opts, option.WithRequestTimeout(timeout))
		}
	}
	if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
		logger.Info("llm: using custom endpoint", "endpoint", endpoint)
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	client := openai.NewClient(opts...)
	logger.Info("llm: openai provider selected")
	return providers.NewOpenAIProvider(client, dimensions)
}

func embeddingDimensions() int {
	if raw := strings.TrimSpace(os.Getenv("REGLENS_EMBED_DIMENSIONS")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			return value
		}
	}
	return 384
}
