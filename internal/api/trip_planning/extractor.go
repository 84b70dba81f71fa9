package tripPlanning

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	generativeAI "github.com/FACorreiaa/go-trip-planner-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

var (
	addPattern    = regexp.MustCompile(`(?i)\b(add|also|include|plus|as well|another|along with|too)\b`)
	changePattern = regexp.MustCompile(`(?i)\b(change|replace|instead|switch|swap|rather|remove)\b`)
	tripToPattern = regexp.MustCompile(`(?i)\b(trip|travel|go(ing)?|fly(ing)?)\s+to\b`)
)

// PlaceResolver normalises free-text destinations. places.Service satisfies it.
type PlaceResolver interface {
	ResolveAll(ctx context.Context, texts []string) []types.Place
}

var _ Extractor = (*ExtractorImpl)(nil)

type Extractor interface {
	// Extract returns a copy of the state's config updated with whatever the message adds.
	// It never fails; upstream errors leave the affected slots unchanged.
	Extract(ctx context.Context, message string, state types.PlanningState) types.TripConfig
}

type ExtractorImpl struct {
	llm      generativeAI.CompletionService
	places   PlaceResolver
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

func NewExtractor(llm generativeAI.CompletionService, places PlaceResolver, currency string, logger *slog.Logger) *ExtractorImpl {
	if currency == "" {
		currency = "INR"
	}
	return &ExtractorImpl{
		llm:      llm,
		places:   places,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// flexNumber accepts 5, 5.0, "5" and "1,200" from model output.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable values are treated as absent.
		return nil
	}
	*n = flexNumber(v)
	return nil
}

type extractedDuration struct {
	Days   *flexNumber `json:"days"`
	Nights *flexNumber `json:"nights"`
}

type extraction struct {
	TripName     *string            `json:"tripName"`
	Destinations []string           `json:"destinations"`
	StartDate    *string            `json:"startDate"`
	Duration     *extractedDuration `json:"duration"`
	GroupType    *string            `json:"groupType"`
	TripPurpose  *string            `json:"tripPurpose"`
	Budget       *flexNumber        `json:"budget"`
	IsAdding     *bool              `json:"isAdding"`
}

func (e *ExtractorImpl) Extract(ctx context.Context, message string, state types.PlanningState) types.TripConfig {
	ctx, span := otel.Tracer("TripPlanningExtractor").Start(ctx, "Extract", trace.WithAttributes(
		attribute.String("planning.stage", string(state.Stage)),
	))
	defer span.End()
	l := e.logger.With(slog.String("component", "SlotExtractor"))

	cfg := state.TripConfig.Clone()
	adding := len(cfg.Destinations) > 0 && addPattern.MatchString(message)

	var ext extraction
	temp := float32(0.1)
	reply, err := e.llm.Complete(ctx, generativeAI.SystemAndUser(
		extractionSystemPrompt(adding, e.now()),
		extractionUserPrompt(message, cfg),
	), generativeAI.CompletionOptions{Temperature: &temp, JSON: true})
	if err != nil {
		l.WarnContext(ctx, "Slot extraction call failed, keeping current config", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction call failed")
	} else if !generativeAI.ParseJSONObject(reply, &ext) {
		l.WarnContext(ctx, "Slot extraction reply unparseable", slog.Int("reply_len", len(reply)))
	}

	previousAutoName := autoTripName(cfg.Destinations)

	if dests := cleanDestinations(ext.Destinations); len(dests) > 0 {
		dests = e.normalize(ctx, dests)
		cfg.Destinations = mergeDestinations(cfg.Destinations, dests, message, adding, ext.IsAdding)
	}

	if ext.StartDate != nil && strings.TrimSpace(*ext.StartDate) != "" {
		sd := strings.TrimSpace(*ext.StartDate)
		cfg.StartDate = &sd
	}

	cfg.Duration = mergeDuration(cfg.Duration, ext.Duration)

	if ext.GroupType != nil {
		if g, ok := types.ParseGroupType(*ext.GroupType); ok {
			cfg.GroupType = g
		}
	}
	if ext.TripPurpose != nil {
		if p, ok := types.ParseTripPurpose(*ext.TripPurpose); ok {
			cfg.TripPurpose = p
		}
	}

	if ext.Budget != nil && *ext.Budget > 0 {
		cfg.Budget = float64(*ext.Budget)
	}
	cfg.Budget = e.resolveBudget(ctx, message, state.Stage, cfg)

	switch {
	case ext.TripName != nil && strings.TrimSpace(*ext.TripName) != "":
		cfg.TripName = strings.TrimSpace(*ext.TripName)
	case cfg.TripName == "" || cfg.TripName == previousAutoName:
		cfg.TripName = autoTripName(cfg.Destinations)
	}

	span.SetAttributes(
		attribute.Int("trip.destinations", len(cfg.Destinations)),
		attribute.Float64("trip.budget", cfg.Budget),
	)
	span.SetStatus(codes.Ok, "extracted")
	return cfg
}

// normalize swaps raw destination text for canonical place names.
func (e *ExtractorImpl) normalize(ctx context.Context, dests []string) []string {
	if e.places == nil {
		return dests
	}
	resolved := e.places.ResolveAll(ctx, dests)
	if len(resolved) != len(dests) {
		return dests
	}
	out := make([]string, len(dests))
	for i, p := range resolved {
		out[i] = dests[i]
		if name := strings.TrimSpace(p.Name); name != "" {
			out[i] = name
		}
	}
	return out
}

func cleanDestinations(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func uniqueFold(in []string) []string {
	return lo.UniqBy(in, strings.ToLower)
}

// unionFold appends genuinely new entries to existing, keeping existing order.
func unionFold(existing, extra []string) []string {
	return uniqueFold(append(append([]string{}, existing...), extra...))
}

// mergeDestinations decides between append and replace. The rules are heuristics:
//  1. add phrasing with new results appends
//  2. explicit change phrasing replaces
//  3. the model said "not adding" while destinations exist: "trip to X" replaces, otherwise append
//  4. anything else is a first assignment and replaces
func mergeDestinations(existing, extracted []string, message string, adding bool, modelAdding *bool) []string {
	switch {
	case len(existing) == 0:
		return uniqueFold(extracted)
	case adding:
		return unionFold(existing, extracted)
	case changePattern.MatchString(message):
		return uniqueFold(extracted)
	case modelAdding == nil || !*modelAdding:
		if tripToPattern.MatchString(message) {
			return uniqueFold(extracted)
		}
		return unionFold(existing, extracted)
	default:
		return unionFold(existing, extracted)
	}
}

// mergeDuration overwrites only what was extracted, then fills the complement.
func mergeDuration(cur types.TripDuration, ext *extractedDuration) types.TripDuration {
	if ext != nil {
		days := ext.Days != nil && *ext.Days > 0
		nights := ext.Nights != nil && *ext.Nights > 0
		if days {
			cur.Days = int(*ext.Days)
		}
		if nights {
			cur.Nights = int(*ext.Nights)
		}
		switch {
		case days && !nights:
			cur.Nights = cur.Days - 1
		case nights && !days:
			cur.Days = cur.Nights + 1
		}
	}
	if cur.Days > 0 && cur.Nights <= 0 {
		cur.Nights = cur.Days - 1
	}
	if cur.Nights > 0 && cur.Days <= 0 {
		cur.Days = cur.Nights + 1
	}
	return cur
}

func autoTripName(dests []string) string {
	if len(dests) == 0 {
		return ""
	}
	caser := cases.Title(language.English)
	names := lo.Map(dests, func(d string, _ int) string { return caser.String(d) })
	return "Trip to " + strings.Join(names, " & ")
}
