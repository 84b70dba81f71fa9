package generativeAI

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/FACorreiaa/go-trip-planner-ai/config"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// CompletionOptions tunes a single request. Zero values fall back to the client defaults.
type CompletionOptions struct {
	Temperature *float32
	MaxTokens   int
	JSON        bool
}

// CompletionService is the vendor-neutral capability every language model adapter provides.
type CompletionService interface {
	Complete(ctx context.Context, messages []types.ChatMessage, opts CompletionOptions) (string, error)
	// Stream calls onChunk for every text delta in generation order and returns once the
	// upstream stream is exhausted.
	Stream(ctx context.Context, messages []types.ChatMessage, opts CompletionOptions, onChunk func(string)) error
	Provider() string
}

// NewCompletionService picks the adapter configured under llm.provider.
func NewCompletionService(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (CompletionService, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIClient(apiKey, cfg.Model, cfg.Temperature, logger), nil
	case ProviderGemini, "":
		apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
		}
		return NewGeminiClient(ctx, apiKey, cfg.Model, cfg.Temperature, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// SystemAndUser is the common two-message request shape.
func SystemAndUser(system, user string) []types.ChatMessage {
	msgs := make([]types.ChatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, types.ChatMessage{Role: types.RoleSystem, Content: system})
	}
	return append(msgs, types.ChatMessage{Role: types.RoleUser, Content: user})
}
