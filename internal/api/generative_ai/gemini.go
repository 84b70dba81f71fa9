package generativeAI

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-trip-planner-ai/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const defaultGeminiModel = "gemini-2.0-flash"

var _ CompletionService = (*GeminiClient)(nil)

// GeminiClient adapts the genai SDK to CompletionService.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, temperature float32, logger *slog.Logger) (*GeminiClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewGeminiClient")
	defer span.End()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}

	span.SetStatus(codes.Ok, "AI client created successfully")
	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}, nil
}

func (g *GeminiClient) Provider() string { return ProviderGemini }

// toGemini splits system messages into SystemInstruction and maps assistant turns onto the model role.
func (g *GeminiClient) toGemini(messages []types.ChatMessage, opts CompletionOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	temp := g.temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](temp)}
	if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}

func (g *GeminiClient) Complete(ctx context.Context, messages []types.ChatMessage, opts CompletionOptions) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Complete", trace.WithAttributes(
		attribute.Int("messages.count", len(messages)),
		attribute.String("model", g.model),
	))
	defer span.End()

	recordRequest(ctx, ProviderGemini, "complete")
	contents, cfg := g.toGemini(messages, opts)
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		recordError(ctx, ProviderGemini, "complete")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to generate content")
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	responseText := result.Text()
	span.SetAttributes(attribute.Int("response.length", len(responseText)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return responseText, nil
}

func (g *GeminiClient) Stream(ctx context.Context, messages []types.ChatMessage, opts CompletionOptions, onChunk func(string)) error {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Stream", trace.WithAttributes(
		attribute.Int("messages.count", len(messages)),
		attribute.String("model", g.model),
	))
	defer span.End()

	recordRequest(ctx, ProviderGemini, "stream")
	contents, cfg := g.toGemini(messages, opts)
	chunks := 0
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
		if err != nil {
			recordError(ctx, ProviderGemini, "stream")
			span.RecordError(err)
			span.SetStatus(codes.Error, "Stream failed")
			return fmt.Errorf("gemini stream: %w", err)
		}
		if text := resp.Text(); text != "" {
			chunks++
			onChunk(text)
		}
	}

	span.SetAttributes(attribute.Int("stream.chunks", chunks))
	span.SetStatus(codes.Ok, "Stream completed")
	return nil
}

func recordRequest(ctx context.Context, provider, kind string) {
	metrics.Get().LLMRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

func recordError(ctx context.Context, provider, kind string) {
	metrics.Get().LLMRequestErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}
