package bucketList

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/trips"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

var _ Matcher = (*MatcherImpl)(nil)

// Matcher finds the wishlist items that fall inside a trip's destinations.
type Matcher interface {
	MatchDestinations(ctx context.Context, userID string, destinations []string) (*types.BucketListDetails, error)
}

type MatcherImpl struct {
	repo   Repository
	logger *slog.Logger
}

func NewMatcher(repo Repository, logger *slog.Logger) *MatcherImpl {
	return &MatcherImpl{repo: repo, logger: logger}
}

type countryMatch struct {
	country types.BucketCountryNode
	// whole is set when the country name itself matched, which selects every state.
	whole  bool
	states map[uuid.UUID]types.BucketStateNode
}

func matchesAny(name string, destinations []string) bool {
	for _, d := range destinations {
		if trips.NamesMatch(name, d) {
			return true
		}
	}
	return false
}

func matchHierarchy(hierarchy []types.BucketCountryNode, destinations []string) []countryMatch {
	var out []countryMatch
	for _, c := range hierarchy {
		m := countryMatch{country: c, states: map[uuid.UUID]types.BucketStateNode{}}
		if matchesAny(c.Name, destinations) {
			m.whole = true
			for _, s := range c.States {
				m.states[s.ID] = s
			}
			out = append(out, m)
			continue
		}
		for _, s := range c.States {
			if matchesAny(s.Name, destinations) {
				m.states[s.ID] = s
			}
		}
		if len(m.states) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func (m *MatcherImpl) MatchDestinations(ctx context.Context, userID string, destinations []string) (*types.BucketListDetails, error) {
	ctx, span := otel.Tracer("BucketListMatcher").Start(ctx, "MatchDestinations", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.StringSlice("destinations", destinations),
	))
	defer span.End()

	l := m.logger.With(slog.String("method", "MatchDestinations"), slog.String("userID", userID))
	if userID == "" || len(destinations) == 0 {
		return &types.BucketListDetails{}, nil
	}

	hierarchy, err := m.repo.GetHierarchy(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hierarchy fetch failed")
		return nil, fmt.Errorf("failed to fetch bucket hierarchy: %w", err)
	}

	var items []types.BucketListItem
	for _, cm := range matchHierarchy(hierarchy, destinations) {
		items = append(items, m.collectCountry(ctx, l, userID, cm)...)
	}

	if len(items) == 0 {
		items = m.placeLevelFallback(ctx, l, userID, destinations)
		span.SetAttributes(attribute.Bool("fallback.used", true))
	}

	details := summarize(items)
	span.SetAttributes(attribute.Int("items.count", details.TotalItems))
	span.SetStatus(codes.Ok, "Bucket list matched")
	l.DebugContext(ctx, "Bucket list matched", slog.Int("items", details.TotalItems))
	return details, nil
}

func (m *MatcherImpl) collectCountry(ctx context.Context, l *slog.Logger, userID string, cm countryMatch) []types.BucketListItem {
	var items []types.BucketListItem
	if cm.country.DirectItemCount > 0 {
		detail, err := m.repo.GetCountryDetail(ctx, userID, cm.country.ID)
		if err != nil {
			l.WarnContext(ctx, "Failed to fetch bucket country detail", slog.String("country", cm.country.Name), slog.Any("error", err))
			return nil
		}
		items = append(items, detail.DirectItems...)
		for _, s := range detail.States {
			if _, ok := cm.states[s.ID]; ok || cm.whole {
				items = append(items, s.Items...)
			}
		}
		return items
	}

	for _, s := range cm.country.States {
		if _, ok := cm.states[s.ID]; !ok {
			continue
		}
		detail, err := m.repo.GetStateDetail(ctx, userID, s.ID)
		if err != nil {
			l.WarnContext(ctx, "Failed to fetch bucket state detail", slog.String("state", s.Name), slog.Any("error", err))
			continue
		}
		items = append(items, detail.Items...)
	}
	return items
}

// placeLevelFallback scans every country the user has items in and tests the place names,
// which catches city and landmark destinations below state level.
func (m *MatcherImpl) placeLevelFallback(ctx context.Context, l *slog.Logger, userID string, destinations []string) []types.BucketListItem {
	summary, err := m.repo.GetCountriesSummary(ctx, userID)
	if err != nil {
		l.WarnContext(ctx, "Failed to fetch bucket summary for fallback", slog.Any("error", err))
		return nil
	}

	var items []types.BucketListItem
	for _, c := range summary {
		detail, err := m.repo.GetCountryDetail(ctx, userID, c.ID)
		if err != nil {
			l.WarnContext(ctx, "Failed to fetch bucket country detail", slog.String("country", c.Name), slog.Any("error", err))
			continue
		}
		all := append([]types.BucketListItem(nil), detail.DirectItems...)
		for _, s := range detail.States {
			all = append(all, s.Items...)
		}
		for _, it := range all {
			if matchesAny(it.Place.MainText, destinations) || matchesAny(it.Place.SecondaryText, destinations) {
				items = append(items, it)
			}
		}
	}
	return items
}

func summarize(items []types.BucketListItem) *types.BucketListDetails {
	items = lo.UniqBy(items, func(it types.BucketListItem) uuid.UUID { return it.ID })

	var counts []types.BucketCountryCount
	index := map[string]int{}
	for _, it := range items {
		key := strings.ToLower(it.CountryName)
		pos, ok := index[key]
		if !ok {
			counts = append(counts, types.BucketCountryCount{CountryName: it.CountryName})
			pos = len(counts) - 1
			index[key] = pos
		}
		counts[pos].ItemCount++
	}

	if items == nil {
		items = []types.BucketListItem{}
	}
	if counts == nil {
		counts = []types.BucketCountryCount{}
	}
	return &types.BucketListDetails{
		TotalItems:     len(items),
		CountryDetails: counts,
		Items:          items,
	}
}
