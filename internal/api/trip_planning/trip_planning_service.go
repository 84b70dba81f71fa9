package tripPlanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-trip-planner-ai/app/observability/metrics"
	bucketList "github.com/FACorreiaa/go-trip-planner-ai/internal/api/bucket_list"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/trips"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

var ErrAnonymousTrip = errors.New("trip planning: a trip needs a user before it can be saved")

var _ Service = (*ServiceImpl)(nil)

// Service drives one planning conversation turn by turn. State helpers never fail:
// upstream errors leave the state as it was.
type Service interface {
	ProcessInitialPlanningMessage(ctx context.Context, message string, existingTripID *uuid.UUID, userID string) types.PlanningState
	ProcessUserResponse(ctx context.Context, message string, state types.PlanningState) types.PlanningState
	PersistTrip(ctx context.Context, state types.PlanningState) (types.PlanningState, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	extractor Extractor
	matcher   bucketList.Matcher
	trips     trips.Repository
	currency  string
}

func NewService(extractor Extractor, matcher bucketList.Matcher, tripsRepo trips.Repository, currency string, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		extractor: extractor,
		matcher:   matcher,
		trips:     tripsRepo,
		currency:  currency,
	}
}

func (s *ServiceImpl) ProcessInitialPlanningMessage(ctx context.Context, message string, existingTripID *uuid.UUID, userID string) (out types.PlanningState) {
	ctx, span := otel.Tracer("TripPlanningService").Start(ctx, "ProcessInitialPlanningMessage", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()
	l := s.logger.With(slog.String("method", "ProcessInitialPlanningMessage"))

	fresh := types.NewPlanningState(userID)
	defer func() {
		if r := recover(); r != nil {
			l.ErrorContext(ctx, "Planning turn panicked, starting from a fresh state", slog.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			fresh.Stage = types.StageDestination
			out = fresh
		}
	}()

	state := fresh.Clone()
	temp := s.extractor.Extract(ctx, message, state)

	if trip := s.findExistingTrip(ctx, existingTripID, userID, temp.Destinations); trip != nil {
		l.InfoContext(ctx, "Continuing existing trip", slog.String("trip_id", trip.ID.String()))
		id := trip.ID
		state.ExistingTripID = &id
		state.TripConfig = trips.ConfigFromTrip(trip)
		state.TripConfig = s.extractor.Extract(ctx, message, state)
	} else {
		state.TripConfig = temp
	}

	state.Stage = DetermineStage(state.TripConfig, types.StageInit)
	if state.Stage == types.StageBucketList {
		state = s.refreshBucketList(ctx, state)
	}

	span.SetAttributes(attribute.String("planning.stage", string(state.Stage)))
	span.SetStatus(codes.Ok, "initial state built")
	return state
}

func (s *ServiceImpl) findExistingTrip(ctx context.Context, existingTripID *uuid.UUID, userID string, destinations []string) *types.Trip {
	if userID == "" {
		return nil
	}
	if existingTripID != nil {
		trip, err := s.trips.GetByID(ctx, *existingTripID)
		if err != nil {
			s.logger.WarnContext(ctx, "Requested trip not available", slog.String("trip_id", existingTripID.String()), slog.Any("error", err))
			return nil
		}
		if trip.UserID != userID {
			s.logger.WarnContext(ctx, "Requested trip belongs to another user", slog.String("trip_id", existingTripID.String()))
			return nil
		}
		return trip
	}
	if len(destinations) == 0 {
		return nil
	}
	trip, err := s.trips.FindPlanningTripByDestinations(ctx, userID, destinations)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			s.logger.WarnContext(ctx, "Existing trip lookup failed", slog.Any("error", err))
		}
		return nil
	}
	return trip
}

func (s *ServiceImpl) ProcessUserResponse(ctx context.Context, message string, state types.PlanningState) (out types.PlanningState) {
	ctx, span := otel.Tracer("TripPlanningService").Start(ctx, "ProcessUserResponse", trace.WithAttributes(
		attribute.String("planning.stage.from", string(state.Stage)),
	))
	defer span.End()

	prior := state.Clone()
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Planning turn panicked, keeping prior state", slog.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			out = prior
		}
	}()

	next := prior.Clone()
	if itineraryPattern.MatchString(message) {
		next.Stage = types.StageConfirm
		next.Confirmed = true
		return s.afterTransition(ctx, span, next)
	}

	next.TripConfig = s.extractor.Extract(ctx, message, prior)
	cfg := next.TripConfig

	switch {
	case prior.Stage == types.StageConfirm:
		switch stage, routed := routeByField(message); {
		case IsConfirmation(message):
			next.Confirmed = true
		case routed:
			next.Stage = stage
			next.Confirmed = false
			next.Persisted = false
		case configChanged(prior.TripConfig, cfg):
			next.Confirmed = false
			next.Persisted = false
		}

	case prior.Stage == types.StageBucketList:
		switch {
		case IsConfirmation(message):
			next.Stage = types.StageConfirm
			next.Confirmed = true
		case proceedPattern.MatchString(message):
			next.Stage = types.StageConfirm
		}

	// BUDGET only advances on a new or explicitly mentioned budget, even when
	// the message also reads as a confirmation.
	case prior.Stage == types.StageBudget:
		if cfg.Budget != prior.TripConfig.Budget || budgetMention.MatchString(message) {
			next.Stage = DetermineStage(cfg, types.StageBudget)
		}

	// Confirmation forces CONFIRM only once every required field is filled.
	// An incomplete config keeps asking for the missing field instead, so a
	// stray "yes" can never save a half-planned trip.
	case IsConfirmation(message) && isComplete(cfg):
		next.Stage = types.StageConfirm
		next.Confirmed = true

	default:
		next.Stage = DetermineStage(cfg, prior.Stage)
	}

	return s.afterTransition(ctx, span, next)
}

func (s *ServiceImpl) afterTransition(ctx context.Context, span trace.Span, next types.PlanningState) types.PlanningState {
	if next.UserID != "" {
		atBucket := next.Stage == types.StageBucketList
		unfilledConfirm := next.Stage == types.StageConfirm && next.TripConfig.BucketList.TotalItems == 0
		if atBucket || unfilledConfirm {
			next = s.refreshBucketList(ctx, next)
		}
	}
	span.SetAttributes(
		attribute.String("planning.stage.to", string(next.Stage)),
		attribute.Bool("planning.confirmed", next.Confirmed),
	)
	span.SetStatus(codes.Ok, "turn processed")
	return next
}

// refreshBucketList re-matches the wishlist against the current destinations.
// Matching is idempotent, so calling it every BUCKET_LIST turn is safe.
func (s *ServiceImpl) refreshBucketList(ctx context.Context, state types.PlanningState) types.PlanningState {
	if s.matcher == nil || state.UserID == "" {
		return state
	}
	details, err := s.matcher.MatchDestinations(ctx, state.UserID, state.TripConfig.Destinations)
	if err != nil {
		s.logger.WarnContext(ctx, "Bucket list refresh failed, keeping previous matches", slog.Any("error", err))
		return state
	}
	out := state.Clone()
	out.TripConfig.BucketList = *details
	return out
}

// PersistTrip saves a confirmed trip once. States that are not ready are returned unchanged.
func (s *ServiceImpl) PersistTrip(ctx context.Context, state types.PlanningState) (types.PlanningState, error) {
	if !state.ReadyToPersist() {
		return state, nil
	}
	ctx, span := otel.Tracer("TripPlanningService").Start(ctx, "PersistTrip", trace.WithAttributes(
		attribute.String("user.id", state.UserID),
	))
	defer span.End()

	if state.UserID == "" {
		span.SetStatus(codes.Error, "anonymous user")
		return state, ErrAnonymousTrip
	}

	var existingID uuid.UUID
	if state.ExistingTripID != nil {
		existingID = *state.ExistingTripID
	}
	trip := trips.TripFromConfig(state.TripConfig, state.UserID, existingID, s.currency)

	operation := "create"
	if existingID != uuid.Nil {
		operation = "update"
		err := s.trips.Update(ctx, trip)
		if errors.Is(err, types.ErrNotFound) {
			operation = "create"
			trip.ID = uuid.Nil
		} else if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return state, fmt.Errorf("updating trip %s: %w", existingID, err)
		}
	}
	if operation == "create" {
		created, err := s.trips.Create(ctx, trip)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create failed")
			return state, fmt.Errorf("creating trip: %w", err)
		}
		trip = created
	}

	metrics.Get().TripsPersistedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	s.logger.InfoContext(ctx, "Trip saved",
		slog.String("trip_id", trip.ID.String()),
		slog.String("operation", operation))

	out := state.Clone()
	id := trip.ID
	out.ExistingTripID = &id
	out.Persisted = true
	span.SetStatus(codes.Ok, "trip saved")
	return out, nil
}

func isComplete(cfg types.TripConfig) bool {
	return DetermineStage(cfg, types.StageConfirm) == types.StageConfirm
}

func configChanged(a, b types.TripConfig) bool {
	if a.TripName != b.TripName || a.Duration != b.Duration || a.GroupType != b.GroupType ||
		a.TripPurpose != b.TripPurpose || a.Budget != b.Budget || a.HasStartDate() != b.HasStartDate() {
		return true
	}
	if a.HasStartDate() && *a.StartDate != *b.StartDate {
		return true
	}
	if len(a.Destinations) != len(b.Destinations) {
		return true
	}
	for i := range a.Destinations {
		if a.Destinations[i] != b.Destinations[i] {
			return true
		}
	}
	return false
}
