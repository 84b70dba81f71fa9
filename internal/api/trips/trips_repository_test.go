package trips

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

var tripCols = []string{
	"id", "user_id", "trip_name", "start_date", "duration_days", "duration_nights", "trip_type", "status",
	"group_type", "trip_purpose", "destinations", "budget_currency", "budget_total", "created_at", "updated_at",
}

func setupTripsRepoTest(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewRepository(mock, logger), mock
}

func tripRow(id uuid.UUID, dests string) []any {
	start := "2026-12-20"
	now := time.Now()
	return []any{
		id, "user-1", "Trip to Goa", &start, 5, 4, types.TripTypeSelfPlanned, types.TripStatusPlanning,
		"couple", "leisure", []byte(dests), "INR", float64(40000), now, now,
	}
}

// anyArgs matches n query arguments; pgxmock expects none unless told otherwise.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id and inserts", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trips")).
			WithArgs(pgxmock.AnyArg(), "user-1", "Trip to Goa", pgxmock.AnyArg(), 5, 4, types.TripTypeSelfPlanned, types.TripStatusPlanning,
				"couple", "leisure", []byte(`[{"location":"Goa"}]`), "INR", float64(40000), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		cfg := types.TripConfig{
			TripName:     "Trip to Goa",
			Destinations: []string{"Goa"},
			Duration:     types.TripDuration{Days: 5, Nights: 4},
			GroupType:    types.GroupCouple,
			TripPurpose:  types.PurposeLeisure,
			Budget:       40000,
		}
		created, err := repo.Create(ctx, TripFromConfig(cfg, "user-1", uuid.Nil, "INR"))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps db error", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trips")).
			WithArgs(anyArgs(15)...).
			WillReturnError(errors.New("conn reset"))

		_, err := repo.Create(ctx, &types.Trip{UserID: "user-1"})
		assert.ErrorContains(t, err, "failed to create trip")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("updates row", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE trips SET")).
			WithArgs(id, "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, &types.Trip{ID: id, UserID: "user-1"})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is ErrNotFound", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE trips SET")).
			WithArgs(anyArgs(11)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, &types.Trip{ID: id, UserID: "user-1"})
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM trips WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(tripCols).AddRow(tripRow(id, `[{"location":"Goa"}]`)...))

		trip, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, trip.ID)
		assert.Equal(t, types.GroupCouple, trip.GroupType)
		require.Len(t, trip.Destinations, 1)
		assert.Equal(t, "Goa", trip.Destinations[0].Location)
		assert.Equal(t, float64(40000), trip.Budget.TotalBudget)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM trips WHERE id = $1")).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestRepository_FindPlanningTripByDestinations(t *testing.T) {
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	t.Run("first overlapping trip wins", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND status = $2")).
			WithArgs("user-1", types.TripStatusPlanning, planningTripScanLimit).
			WillReturnRows(pgxmock.NewRows(tripCols).
				AddRow(tripRow(first, `[{"location":"Tokyo"}]`)...).
				AddRow(tripRow(second, `[{"location":"North Goa"}]`)...))

		trip, err := repo.FindPlanningTripByDestinations(ctx, "user-1", []string{"goa"})
		require.NoError(t, err)
		assert.Equal(t, second, trip.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no overlap", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND status = $2")).
			WithArgs("user-1", types.TripStatusPlanning, planningTripScanLimit).
			WillReturnRows(pgxmock.NewRows(tripCols).AddRow(tripRow(first, `[{"location":"Tokyo"}]`)...))

		_, err := repo.FindPlanningTripByDestinations(ctx, "user-1", []string{"Lisbon"})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("anonymous user skips the query", func(t *testing.T) {
		repo, mock := setupTripsRepoTest(t)
		_, err := repo.FindPlanningTripByDestinations(ctx, "", []string{"Goa"})
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNamesMatch(t *testing.T) {
	assert.True(t, NamesMatch("Paris", "France, Paris region"))
	assert.True(t, NamesMatch("France, Paris region", "paris"))
	assert.False(t, NamesMatch("Rome", "Paris"))
	assert.False(t, NamesMatch("", "Paris"))
}

func TestTripConfigRoundTrip(t *testing.T) {
	start := "2026-03-01"
	cfg := types.TripConfig{
		TripName:     "Trip to Goa & Kerala",
		Destinations: []string{"Goa", " ", "Kerala"},
		StartDate:    &start,
		Duration:     types.TripDuration{Days: 7, Nights: 6},
		GroupType:    types.GroupFamily,
		TripPurpose:  types.PurposeRelaxation,
		Budget:       80000,
	}
	trip := TripFromConfig(cfg, "user-9", uuid.Nil, "INR")
	assert.Equal(t, types.TripTypeSelfPlanned, trip.TripType)
	assert.Equal(t, types.TripStatusPlanning, trip.Status)
	assert.Len(t, trip.Destinations, 2)
	assert.Equal(t, types.TripBudget{Currency: "INR", TotalBudget: 80000}, trip.Budget)

	back := ConfigFromTrip(trip)
	assert.Equal(t, []string{"Goa", "Kerala"}, back.Destinations)
	assert.Equal(t, cfg.Duration, back.Duration)
	assert.Equal(t, start, *back.StartDate)
}
