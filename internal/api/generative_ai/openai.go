package generativeAI

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const defaultOpenAIModel = "gpt-4o-mini"

var _ CompletionService = (*OpenAIClient)(nil)

// OpenAIClient adapts the openai-go chat completions API to CompletionService.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

func NewOpenAIClient(apiKey, model string, temperature float32, logger *slog.Logger, opts ...option.RequestOption) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

func (o *OpenAIClient) Provider() string { return ProviderOpenAI }

func (o *OpenAIClient) params(messages []types.ChatMessage, opts CompletionOptions) openai.ChatCompletionNewParams {
	temp := o.temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case types.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	p := openai.ChatCompletionNewParams{
		Messages:    msgs,
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(float64(temp)),
	}
	if opts.MaxTokens > 0 {
		p.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSON {
		p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return p
}

func (o *OpenAIClient) Complete(ctx context.Context, messages []types.ChatMessage, opts CompletionOptions) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Complete", trace.WithAttributes(
		attribute.Int("messages.count", len(messages)),
		attribute.String("model", o.model),
	))
	defer span.End()

	recordRequest(ctx, ProviderOpenAI, "complete")
	resp, err := o.client.Chat.Completions.New(ctx, o.params(messages, opts))
	if err != nil {
		recordError(ctx, ProviderOpenAI, "complete")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create completion")
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("openai chat completion returned no choices")
		recordError(ctx, ProviderOpenAI, "complete")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty completion")
		return "", err
	}

	content := resp.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("response.length", len(content)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return content, nil
}

func (o *OpenAIClient) Stream(ctx context.Context, messages []types.ChatMessage, opts CompletionOptions, onChunk func(string)) error {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Stream", trace.WithAttributes(
		attribute.Int("messages.count", len(messages)),
		attribute.String("model", o.model),
	))
	defer span.End()

	recordRequest(ctx, ProviderOpenAI, "stream")
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(messages, opts))
	defer stream.Close()

	chunks := 0
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			chunks++
			onChunk(text)
		}
	}
	if err := stream.Err(); err != nil {
		recordError(ctx, ProviderOpenAI, "stream")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Stream failed")
		return fmt.Errorf("openai stream: %w", err)
	}

	span.SetAttributes(attribute.Int("stream.chunks", chunks))
	span.SetStatus(codes.Ok, "Stream completed")
	return nil
}
