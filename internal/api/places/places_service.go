package places

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	generativeAI "github.com/FACorreiaa/go-trip-planner-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const (
	maxLookupConcurrency = 4
	lookupCacheTTL       = 24 * time.Hour
)

const placeLookupPrompt = `You normalise free-text travel destinations.
Return ONLY a JSON object: {"name": string, "mainText": string, "secondaryText": string, "country": string, "state": string}.
"name" is the canonical, properly capitalised destination name. "mainText" is the place itself,
"secondaryText" its region and country. Leave fields empty when unknown.`

var _ Service = (*ServiceImpl)(nil)

// Service resolves free text into structured places.
type Service interface {
	Resolve(ctx context.Context, text string) (*types.Place, error)
	ResolveAll(ctx context.Context, texts []string) []types.Place
}

type ServiceImpl struct {
	llm    generativeAI.CompletionService
	cache  *cache.Cache
	logger *slog.Logger
}

func NewService(llm generativeAI.CompletionService, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		llm:    llm,
		cache:  cache.New(lookupCacheTTL, time.Hour),
		logger: logger,
	}
}

func (s *ServiceImpl) Resolve(ctx context.Context, text string) (*types.Place, error) {
	ctx, span := otel.Tracer("PlacesService").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("place.query", text),
	))
	defer span.End()

	key := strings.ToLower(strings.TrimSpace(text))
	if key == "" {
		return nil, fmt.Errorf("empty place query")
	}
	if cached, found := s.cache.Get(key); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		p := cached.(types.Place)
		return &p, nil
	}

	resp, err := s.llm.Complete(ctx, generativeAI.SystemAndUser(placeLookupPrompt, text), generativeAI.CompletionOptions{JSON: true})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Place lookup failed")
		return nil, fmt.Errorf("place lookup for %q: %w", text, err)
	}

	var place types.Place
	if !generativeAI.ParseJSONObject(resp, &place) || strings.TrimSpace(place.Name) == "" {
		err := fmt.Errorf("place lookup for %q returned no usable name", text)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unparseable place")
		return nil, err
	}
	place.Name = strings.TrimSpace(place.Name)
	if place.MainText == "" {
		place.MainText = place.Name
	}

	s.cache.Set(key, place, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "Place resolved")
	return &place, nil
}

// ResolveAll resolves every text concurrently and returns results in input order.
// A failed lookup keeps the raw text as the place name.
func (s *ServiceImpl) ResolveAll(ctx context.Context, texts []string) []types.Place {
	out := make([]types.Place, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookupConcurrency)

	for idx, text := range texts {
		g.Go(func() error {
			raw := strings.TrimSpace(text)
			p, err := s.Resolve(gCtx, raw)
			if err != nil {
				s.logger.WarnContext(gCtx, "place lookup failed, keeping raw text",
					slog.String("query", raw),
					slog.Any("error", err))
				out[idx] = types.Place{Name: raw, MainText: raw}
				return nil
			}
			out[idx] = *p
			return nil
		})
	}
	_ = g.Wait()
	return out
}
