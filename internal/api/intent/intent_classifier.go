package intent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	generativeAI "github.com/FACorreiaa/go-trip-planner-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

type rule struct {
	intent  types.IntentType
	pattern *regexp.Regexp
}

// Checked in order; the first match wins.
var rules = []rule{
	{types.IntentWidgetEmergency, regexp.MustCompile(`(?i)\b(emergency|police|ambulance|hospital|embassy|lost (my )?passport|help me urgently)\b`)},
	{types.IntentWidgetCurrency, regexp.MustCompile(`(?i)\b(currency|exchange rate|convert \d+|how much is \d+|usd to|eur to|inr to|in (dollars|euros|rupees))\b`)},
	{types.IntentWidgetWeather, regexp.MustCompile(`(?i)\b(weather|forecast|temperature|will it rain|is it raining)\b`)},
	{types.IntentWidgetPacking, regexp.MustCompile(`(?i)\b(packing list|what (should i|to) pack|what to bring|pack for)\b`)},
	{types.IntentWidgetPhrases, regexp.MustCompile(`(?i)\b(phrases?|how do (you|i) say|translate|in the local language)\b`)},
	{types.IntentTripManagement, regexp.MustCompile(`(?i)\b(my trips|show (me )?my trip|list (my )?trips|upcoming trips?|cancel (my )?trip|delete (my )?trip|edit (my )?trip)\b`)},
	{types.IntentBooking, regexp.MustCompile(`(?i)\b(book( a| me)?|reserve|reservation|booking)\b`)},
	{types.IntentDealSearch, regexp.MustCompile(`(?i)\b(deals?|discounts?|offers?|cheap(est)? (flights?|hotels?|tickets?)|lowest (price|fare))\b`)},
	{types.IntentTripPlanning, regexp.MustCompile(`(?i)\b(plan(ning)? (a |my )?trip|trip to|travel(l)?ing to|travel to|itinerary|vacation|holiday|getaway|visit(ing)?|going to)\b`)},
}

var _ Classifier = (*ClassifierImpl)(nil)

// Classifier maps a message onto a coarse intent label. It never fails; unknown input is chat.
type Classifier interface {
	Classify(ctx context.Context, message string) types.IntentType
}

type ClassifierImpl struct {
	llm    generativeAI.CompletionService
	logger *slog.Logger
}

func NewClassifier(llm generativeAI.CompletionService, logger *slog.Logger) *ClassifierImpl {
	return &ClassifierImpl{llm: llm, logger: logger}
}

// MatchRules returns the intent of the first high-confidence rule that matches.
func MatchRules(message string) (types.IntentType, bool) {
	for _, r := range rules {
		if r.pattern.MatchString(message) {
			return r.intent, true
		}
	}
	return "", false
}

func (c *ClassifierImpl) Classify(ctx context.Context, message string) types.IntentType {
	ctx, span := otel.Tracer("IntentClassifier").Start(ctx, "Classify", trace.WithAttributes(
		attribute.Int("message.length", len(message)),
	))
	defer span.End()

	if strings.TrimSpace(message) == "" {
		return types.IntentChat
	}
	if label, ok := MatchRules(message); ok {
		span.SetAttributes(attribute.String("intent", string(label)), attribute.String("intent.source", "rule"))
		return label
	}

	label := c.classifyWithModel(ctx, message)
	span.SetAttributes(attribute.String("intent", string(label)), attribute.String("intent.source", "model"))
	return label
}

func (c *ClassifierImpl) classifyWithModel(ctx context.Context, message string) types.IntentType {
	labels := make([]string, len(types.AllIntents))
	for i, l := range types.AllIntents {
		labels[i] = string(l)
	}
	system := fmt.Sprintf(`Classify the user's message for a travel assistant.
Answer with exactly one label from this list and nothing else: %s.
Use "chat" when none of the others clearly applies.`, strings.Join(labels, ", "))

	temp := float32(0)
	resp, err := c.llm.Complete(ctx, generativeAI.SystemAndUser(system, message), generativeAI.CompletionOptions{
		Temperature: &temp,
		MaxTokens:   10,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "intent classification failed, defaulting to chat", slog.Any("error", err))
		return types.IntentChat
	}
	return ParseLabel(resp)
}

// ParseLabel normalises a model reply into a known intent, defaulting to chat.
func ParseLabel(resp string) types.IntentType {
	cleaned := strings.ToLower(strings.TrimSpace(resp))
	cleaned = strings.Trim(cleaned, "\"'`.,:; \n")
	if label := types.IntentType(cleaned); label.Valid() {
		return label
	}
	return types.IntentChat
}
