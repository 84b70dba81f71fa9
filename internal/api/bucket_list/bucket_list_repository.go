package bucketList

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-trip-planner-ai/app/db"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the read side of a user's country -> state -> item wishlist.
type Repository interface {
	GetHierarchy(ctx context.Context, userID string) ([]types.BucketCountryNode, error)
	GetCountryDetail(ctx context.Context, userID string, countryID uuid.UUID) (*types.BucketCountryDetail, error)
	GetStateDetail(ctx context.Context, userID string, stateID uuid.UUID) (*types.BucketStateDetail, error)
	// GetCountriesSummary lists only countries holding at least one item.
	GetCountriesSummary(ctx context.Context, userID string) ([]types.BucketCountrySummary, error)
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

func (r *RepositoryImpl) GetHierarchy(ctx context.Context, userID string) ([]types.BucketCountryNode, error) {
	ctx, span := otel.Tracer("BucketListRepository").Start(ctx, "GetHierarchy", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	query := `
        SELECT c.id, c.name, s.id, s.name,
               (SELECT COUNT(*) FROM bucket_list_items i WHERE i.country_id = c.id AND i.state_id IS NULL) AS direct_count,
               (SELECT COUNT(*) FROM bucket_list_items i WHERE i.state_id = s.id) AS state_count
        FROM bucket_countries c
        LEFT JOIN bucket_states s ON s.country_id = c.id
        WHERE c.user_id = $1
        ORDER BY c.name, s.name
    `
	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query bucket hierarchy", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to query bucket hierarchy: %w", err)
	}
	defer rows.Close()

	var countries []types.BucketCountryNode
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			countryID   uuid.UUID
			countryName string
			stateID     *uuid.UUID
			stateName   *string
			directCount int
			stateCount  int
		)
		if err := rows.Scan(&countryID, &countryName, &stateID, &stateName, &directCount, &stateCount); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan bucket hierarchy row: %w", err)
		}
		pos, ok := index[countryID]
		if !ok {
			countries = append(countries, types.BucketCountryNode{
				ID:              countryID,
				Name:            countryName,
				DirectItemCount: directCount,
			})
			pos = len(countries) - 1
			index[countryID] = pos
		}
		if stateID != nil && stateName != nil {
			countries[pos].States = append(countries[pos].States, types.BucketStateNode{
				ID:        *stateID,
				Name:      *stateName,
				ItemCount: stateCount,
			})
		}
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating bucket hierarchy: %w", err)
	}

	span.SetAttributes(attribute.Int("countries.count", len(countries)))
	span.SetStatus(codes.Ok, "Hierarchy retrieved")
	return countries, nil
}

const itemColumns = `i.id, i.location_id, i.activity_name, i.activity_type, i.status,
               i.place_main_text, i.place_secondary_text, i.state_id, COALESCE(s.name, '')`

func (r *RepositoryImpl) GetCountryDetail(ctx context.Context, userID string, countryID uuid.UUID) (*types.BucketCountryDetail, error) {
	ctx, span := otel.Tracer("BucketListRepository").Start(ctx, "GetCountryDetail", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("country.id", countryID.String()),
	))
	defer span.End()

	detail := &types.BucketCountryDetail{}
	err := r.pgpool.QueryRow(ctx, `SELECT id, name FROM bucket_countries WHERE id = $1 AND user_id = $2`, countryID, userID).
		Scan(&detail.ID, &detail.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bucket country %s: %w", countryID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to get bucket country: %w", err)
	}

	query := `SELECT ` + itemColumns + `
        FROM bucket_list_items i
        LEFT JOIN bucket_states s ON s.id = i.state_id
        WHERE i.country_id = $1 AND i.user_id = $2
        ORDER BY i.created_at`
	rows, err := r.pgpool.Query(ctx, query, countryID, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query country items", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to query country items: %w", err)
	}
	defer rows.Close()

	stateIndex := map[uuid.UUID]int{}
	for rows.Next() {
		item, stateID, err := scanItem(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		item.CountryName = detail.Name
		if stateID == nil {
			detail.DirectItems = append(detail.DirectItems, item)
			continue
		}
		pos, ok := stateIndex[*stateID]
		if !ok {
			detail.States = append(detail.States, types.BucketStateDetail{ID: *stateID, Name: item.StateName})
			pos = len(detail.States) - 1
			stateIndex[*stateID] = pos
		}
		detail.States[pos].Items = append(detail.States[pos].Items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating country items: %w", err)
	}

	span.SetStatus(codes.Ok, "Country detail retrieved")
	return detail, nil
}

func (r *RepositoryImpl) GetStateDetail(ctx context.Context, userID string, stateID uuid.UUID) (*types.BucketStateDetail, error) {
	ctx, span := otel.Tracer("BucketListRepository").Start(ctx, "GetStateDetail", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("state.id", stateID.String()),
	))
	defer span.End()

	var (
		detail      types.BucketStateDetail
		countryName string
	)
	err := r.pgpool.QueryRow(ctx, `
        SELECT s.id, s.name, c.name
        FROM bucket_states s
        JOIN bucket_countries c ON c.id = s.country_id
        WHERE s.id = $1 AND c.user_id = $2`, stateID, userID).
		Scan(&detail.ID, &detail.Name, &countryName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bucket state %s: %w", stateID, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to get bucket state: %w", err)
	}

	query := `SELECT ` + itemColumns + `
        FROM bucket_list_items i
        LEFT JOIN bucket_states s ON s.id = i.state_id
        WHERE i.state_id = $1 AND i.user_id = $2
        ORDER BY i.created_at`
	rows, err := r.pgpool.Query(ctx, query, stateID, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query state items", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to query state items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, _, err := scanItem(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		item.CountryName = countryName
		detail.Items = append(detail.Items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating state items: %w", err)
	}

	span.SetStatus(codes.Ok, "State detail retrieved")
	return &detail, nil
}

func (r *RepositoryImpl) GetCountriesSummary(ctx context.Context, userID string) ([]types.BucketCountrySummary, error) {
	ctx, span := otel.Tracer("BucketListRepository").Start(ctx, "GetCountriesSummary", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	query := `
        SELECT c.id, c.name, COUNT(i.id)
        FROM bucket_countries c
        JOIN bucket_list_items i ON i.country_id = c.id
        WHERE c.user_id = $1
        GROUP BY c.id, c.name
        ORDER BY c.name
    `
	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query bucket summary", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to query bucket summary: %w", err)
	}
	defer rows.Close()

	var out []types.BucketCountrySummary
	for rows.Next() {
		var s types.BucketCountrySummary
		if err := rows.Scan(&s.ID, &s.Name, &s.ItemCount); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan bucket summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating bucket summary: %w", err)
	}

	span.SetStatus(codes.Ok, "Summary retrieved")
	return out, nil
}

func scanItem(rows pgx.Rows) (types.BucketListItem, *uuid.UUID, error) {
	var (
		item         types.BucketListItem
		activityType string
		status       string
		stateID      *uuid.UUID
	)
	err := rows.Scan(&item.ID, &item.LocationID, &item.ActivityName, &activityType, &status,
		&item.Place.MainText, &item.Place.SecondaryText, &stateID, &item.StateName)
	if err != nil {
		return item, nil, fmt.Errorf("failed to scan bucket item: %w", err)
	}
	item.ActivityType = types.BucketActivityType(activityType)
	item.Status = types.BucketItemStatus(status)
	return item, stateID, nil
}
