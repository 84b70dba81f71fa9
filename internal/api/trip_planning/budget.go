package tripPlanning

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-trip-planner-ai/app/observability/metrics"
	generativeAI "github.com/FACorreiaa/go-trip-planner-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const (
	DescriptiveBudgetFallback = 30000
	MentionedBudgetFallback   = 30000
	FriendlyBudgetFallback    = 25000
)

var (
	descriptiveBudgetPattern = regexp.MustCompile(`(?i)\b(luxury|luxurious|lavish|premium|high[- ]end|splurge|comfortable|moderate|mid[- ]range|affordable|cheap|economical|low[- ]cost|budget[- ]friendly|backpack(ing|er)?|shoestring)\b`)
	numberToken              = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	amountInMessage          = regexp.MustCompile(`(?i)(?:(\brs\.?|\binr|\busd|\beur|₹|\$|€|£)\s*)?(\d[\d,]*(?:\.\d+)?)\s*(k|lakhs?|lacs?|thousand|inr|usd|eur|rupees|dollars|euros)?\b`)
	budgetLeadIn             = regexp.MustCompile(`(?i)budget\W*(?:\w+\W+){0,3}$`)
)

// ParseBudgetReply reads a model reply as a budget. Replies often restate the trip
// ("For 4 days, about 40000"), so the largest number wins. Only positive values are accepted.
func ParseBudgetReply(reply string) (float64, bool) {
	var best float64
	for _, tok := range numberToken.FindAllString(reply, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
		if err == nil && v > best {
			best = v
		}
	}
	return best, best > 0
}

// amountFromMessage reads an amount the user typed directly, e.g. "50k" or "1.5 lakh".
// A number marked as money (currency sign, k/lakh suffix, or right after "budget")
// wins; otherwise the largest number is taken, so "for 2 people, 50000" reads 50000.
func amountFromMessage(message string) (float64, bool) {
	var largest float64
	for _, m := range amountInMessage.FindAllStringSubmatchIndex(message, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(message[m[4]:m[5]], ",", ""), 64)
		if err != nil || v <= 0 {
			continue
		}
		var suffix string
		if m[6] >= 0 {
			suffix = strings.ToLower(message[m[6]:m[7]])
		}
		switch suffix {
		case "k", "thousand":
			v *= 1_000
		case "lakh", "lakhs", "lac", "lacs":
			v *= 100_000
		}
		if m[2] >= 0 || suffix != "" || budgetLeadIn.MatchString(message[:m[4]]) {
			return v, true
		}
		if v > largest {
			largest = v
		}
	}
	return largest, largest > 0
}

// resolveBudget runs the staged fallback chain. Each stage only runs while the budget is
// still zero, and the chain as a whole only runs at the BUDGET stage or when the message
// talks about money, so early turns never invent a budget.
func (e *ExtractorImpl) resolveBudget(ctx context.Context, message string, stage types.PlanningStage, cfg types.TripConfig) float64 {
	if cfg.Budget > 0 {
		return cfg.Budget
	}
	descriptive := descriptiveBudgetPattern.MatchString(message)
	mentioned := budgetMention.MatchString(message)
	if stage != types.StageBudget && !descriptive && !mentioned {
		return 0
	}

	if stage == types.StageBudget {
		if v, ok := amountFromMessage(message); ok && !descriptive {
			return v
		}
	}

	if descriptive && len(cfg.Destinations) > 0 {
		return e.suggestBudget(ctx, "descriptive", descriptiveBudgetPrompt(message, cfg), DescriptiveBudgetFallback)
	}
	if mentioned {
		return e.suggestBudget(ctx, "mentioned", mentionedBudgetPrompt(cfg), MentionedBudgetFallback)
	}
	return e.suggestBudget(ctx, "friendly", friendlyBudgetPrompt(cfg), FriendlyBudgetFallback)
}

func (e *ExtractorImpl) suggestBudget(ctx context.Context, stage, prompt string, fallback float64) float64 {
	temp := float32(0.2)
	reply, err := e.llm.Complete(ctx, generativeAI.SystemAndUser(
		"You estimate travel budgets. Reply with a single number in "+e.currency+" and nothing else.",
		prompt,
	), generativeAI.CompletionOptions{Temperature: &temp, MaxTokens: 20})
	if err == nil {
		if v, ok := ParseBudgetReply(reply); ok {
			e.logger.DebugContext(ctx, "Budget suggested", slog.String("stage", stage), slog.Float64("budget", v))
			return v
		}
	}

	e.logger.WarnContext(ctx, "Budget suggestion unusable, using fallback",
		slog.String("stage", stage),
		slog.Float64("fallback", fallback),
		slog.Any("error", err))
	metrics.Get().BudgetFallbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	return fallback
}

func tripSummaryLine(cfg types.TripConfig) string {
	days := "an unspecified number of"
	if cfg.Duration.Days > 0 {
		days = strconv.Itoa(cfg.Duration.Days)
	}
	group := string(cfg.GroupType)
	if group == "" {
		group = "unspecified"
	}
	return fmt.Sprintf("Destinations: %s. Duration: %s days. Group: %s.",
		strings.Join(cfg.Destinations, ", "), days, group)
}

func descriptiveBudgetPrompt(message string, cfg types.TripConfig) string {
	return fmt.Sprintf("%s The traveller describes their budget as: %q. Suggest a realistic total trip budget.",
		tripSummaryLine(cfg), message)
}

func mentionedBudgetPrompt(cfg types.TripConfig) string {
	return fmt.Sprintf("%s Suggest a reasonable total trip budget.", tripSummaryLine(cfg))
}

func friendlyBudgetPrompt(cfg types.TripConfig) string {
	return fmt.Sprintf("%s Suggest a budget-friendly total trip budget.", tripSummaryLine(cfg))
}
