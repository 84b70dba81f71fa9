package trips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-trip-planner-ai/app/db"
	"github.com/FACorreiaa/go-trip-planner-ai/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const planningTripScanLimit = 20

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	Create(ctx context.Context, trip *types.Trip) (*types.Trip, error)
	Update(ctx context.Context, trip *types.Trip) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.Trip, error)
	// FindPlanningTripByDestinations returns the most recently updated trip still in
	// planning whose destinations overlap the given ones, or types.ErrNotFound.
	FindPlanningTripByDestinations(ctx context.Context, userID string, destinations []string) (*types.Trip, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool database.Querier
}

func NewRepository(pgpool database.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

const tripColumns = `id, user_id, trip_name, start_date, duration_days, duration_nights, trip_type, status,
               group_type, trip_purpose, destinations, budget_currency, budget_total, created_at, updated_at`

func (r *RepositoryImpl) Create(ctx context.Context, trip *types.Trip) (*types.Trip, error) {
	ctx, span := otel.Tracer("TripsRepository").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", trip.UserID),
	))
	defer span.End()
	defer observeQuery(ctx, "create", time.Now())

	out := *trip
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	now := time.Now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now

	dests, err := json.Marshal(out.Destinations)
	if err != nil {
		return nil, fmt.Errorf("failed to encode destinations: %w", err)
	}

	query := `
        INSERT INTO trips (
            id, user_id, trip_name, start_date, duration_days, duration_nights, trip_type, status,
            group_type, trip_purpose, destinations, budget_currency, budget_total, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `
	_, err = r.pgpool.Exec(ctx, query,
		out.ID, out.UserID, out.TripName, out.StartDate, out.Duration.Days, out.Duration.Nights, out.TripType, out.Status,
		string(out.GroupType), string(out.TripPurpose), dests, out.Budget.Currency, out.Budget.TotalBudget, out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert failed")
		recordQueryError(ctx, "create")
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	span.SetStatus(codes.Ok, "Trip created")
	return &out, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, trip *types.Trip) error {
	ctx, span := otel.Tracer("TripsRepository").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("trip.id", trip.ID.String()),
	))
	defer span.End()
	defer observeQuery(ctx, "update", time.Now())

	dests, err := json.Marshal(trip.Destinations)
	if err != nil {
		return fmt.Errorf("failed to encode destinations: %w", err)
	}

	query := `
        UPDATE trips SET
            trip_name = $3, start_date = $4, duration_days = $5, duration_nights = $6,
            group_type = $7, trip_purpose = $8, destinations = $9,
            budget_currency = $10, budget_total = $11, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
    `
	tag, err := r.pgpool.Exec(ctx, query,
		trip.ID, trip.UserID, trip.TripName, trip.StartDate, trip.Duration.Days, trip.Duration.Nights,
		string(trip.GroupType), string(trip.TripPurpose), dests, trip.Budget.Currency, trip.Budget.TotalBudget,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		recordQueryError(ctx, "update")
		return fmt.Errorf("failed to update trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Trip not found")
		return fmt.Errorf("trip %s: %w", trip.ID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Trip updated")
	return nil
}

func (r *RepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*types.Trip, error) {
	ctx, span := otel.Tracer("TripsRepository").Start(ctx, "GetByID", trace.WithAttributes(
		attribute.String("trip.id", id.String()),
	))
	defer span.End()
	defer observeQuery(ctx, "get_by_id", time.Now())

	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	trip, err := scanTrip(r.pgpool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Trip not found")
			return nil, fmt.Errorf("trip %s: %w", id, types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		recordQueryError(ctx, "get_by_id")
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	span.SetStatus(codes.Ok, "Trip retrieved")
	return trip, nil
}

func (r *RepositoryImpl) FindPlanningTripByDestinations(ctx context.Context, userID string, destinations []string) (*types.Trip, error) {
	ctx, span := otel.Tracer("TripsRepository").Start(ctx, "FindPlanningTripByDestinations", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.StringSlice("destinations", destinations),
	))
	defer span.End()
	defer observeQuery(ctx, "find_planning", time.Now())

	if userID == "" || len(destinations) == 0 {
		return nil, types.ErrNotFound
	}

	query := `SELECT ` + tripColumns + `
        FROM trips
        WHERE user_id = $1 AND status = $2
        ORDER BY updated_at DESC
        LIMIT $3`
	rows, err := r.pgpool.Query(ctx, query, userID, types.TripStatusPlanning, planningTripScanLimit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query planning trips", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		recordQueryError(ctx, "find_planning")
		return nil, fmt.Errorf("failed to query planning trips: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		if destinationsOverlap(trip.Destinations, destinations) {
			span.SetAttributes(attribute.String("trip.id", trip.ID.String()))
			span.SetStatus(codes.Ok, "Trip matched")
			return trip, nil
		}
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating planning trips: %w", err)
	}
	return nil, types.ErrNotFound
}

func scanTrip(row pgx.Row) (*types.Trip, error) {
	var (
		t                  types.Trip
		groupType, purpose string
		dests              []byte
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.TripName, &t.StartDate, &t.Duration.Days, &t.Duration.Nights, &t.TripType, &t.Status,
		&groupType, &purpose, &dests, &t.Budget.Currency, &t.Budget.TotalBudget, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.GroupType = types.GroupType(groupType)
	t.TripPurpose = types.TripPurpose(purpose)
	if len(dests) > 0 {
		if err := json.Unmarshal(dests, &t.Destinations); err != nil {
			return nil, fmt.Errorf("failed to decode destinations: %w", err)
		}
	}
	return &t, nil
}

func destinationsOverlap(stored []types.TripDestination, wanted []string) bool {
	for _, s := range stored {
		for _, w := range wanted {
			if NamesMatch(s.Location, w) {
				return true
			}
		}
	}
	return false
}

// NamesMatch is the symmetric case-insensitive containment test used for destination names.
func NamesMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func observeQuery(ctx context.Context, op string, start time.Time) {
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("repository", "trips"),
		attribute.String("operation", op),
	))
}

func recordQueryError(ctx context.Context, op string) {
	metrics.Get().DbQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", "trips"),
		attribute.String("operation", op),
	))
}
