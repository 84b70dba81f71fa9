package tripPlanning

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, message string, state types.PlanningState) types.TripConfig {
	args := m.Called(ctx, message, state)
	return args.Get(0).(types.TripConfig)
}

type MockMatcher struct {
	mock.Mock
}

func (m *MockMatcher) MatchDestinations(ctx context.Context, userID string, destinations []string) (*types.BucketListDetails, error) {
	args := m.Called(ctx, userID, destinations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.BucketListDetails), args.Error(1)
}

type MockTripsRepository struct {
	mock.Mock
}

func (m *MockTripsRepository) Create(ctx context.Context, trip *types.Trip) (*types.Trip, error) {
	args := m.Called(ctx, trip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

func (m *MockTripsRepository) Update(ctx context.Context, trip *types.Trip) error {
	args := m.Called(ctx, trip)
	return args.Error(0)
}

func (m *MockTripsRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

func (m *MockTripsRepository) FindPlanningTripByDestinations(ctx context.Context, userID string, destinations []string) (*types.Trip, error) {
	args := m.Called(ctx, userID, destinations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

type planningMocks struct {
	extractor *MockExtractor
	matcher   *MockMatcher
	trips     *MockTripsRepository
}

func setupPlanningServiceTest() (*ServiceImpl, planningMocks) {
	m := planningMocks{
		extractor: new(MockExtractor),
		matcher:   new(MockMatcher),
		trips:     new(MockTripsRepository),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewService(m.extractor, m.matcher, m.trips, "INR", logger), m
}

func completeConfig() types.TripConfig {
	sd := "2026-12-01"
	return types.TripConfig{
		TripName:     "Trip to Goa",
		Destinations: []string{"Goa"},
		StartDate:    &sd,
		Duration:     types.TripDuration{Days: 5, Nights: 4},
		GroupType:    types.GroupCouple,
		TripPurpose:  types.PurposeLeisure,
		Budget:       50000,
	}
}

func TestDetermineStage_Progression(t *testing.T) {
	cfg := types.TripConfig{}
	assert.Equal(t, types.StageDestination, DetermineStage(cfg, types.StageInit))

	cfg.Destinations = []string{"Goa"}
	assert.Equal(t, types.StageDates, DetermineStage(cfg, types.StageDestination))

	sd := "2026-12-01"
	cfg.StartDate = &sd
	assert.Equal(t, types.StageDuration, DetermineStage(cfg, types.StageDates))

	cfg.Duration = types.TripDuration{Days: 3, Nights: 2}
	assert.Equal(t, types.StageGroupType, DetermineStage(cfg, types.StageDuration))

	cfg.GroupType = types.GroupSolo
	assert.Equal(t, types.StageTripPurpose, DetermineStage(cfg, types.StageGroupType))

	cfg.TripPurpose = types.PurposeAdventure
	assert.Equal(t, types.StageBudget, DetermineStage(cfg, types.StageTripPurpose))

	cfg.Budget = 1000
	assert.Equal(t, types.StageBucketList, DetermineStage(cfg, types.StageBudget))
	assert.Equal(t, types.StageConfirm, DetermineStage(cfg, types.StageBucketList))
	assert.Equal(t, types.StageConfirm, DetermineStage(cfg, types.StageConfirm))
	assert.Equal(t, types.StageBucketList, DetermineStage(cfg, types.StageInit), "pre-populated configs jump to the bucket list")

	blank := ""
	cfg.StartDate = &blank
	assert.Equal(t, types.StageDates, DetermineStage(cfg, types.StageConfirm))
}

func TestRouteByField(t *testing.T) {
	tests := map[string]types.PlanningStage{
		"change the budget":         types.StageBudget,
		"update my bucket list":     types.StageBucketList,
		"different destination":     types.StageDestination,
		"move the dates":            types.StageDates,
		"make it a few days longer": types.StageDuration,
		"we'll travel with friends": types.StageGroupType,
		"change the purpose":        types.StageTripPurpose,
	}
	for msg, want := range tests {
		got, ok := routeByField(msg)
		assert.True(t, ok, msg)
		assert.Equal(t, want, got, msg)
	}
	_, ok := routeByField("sounds great")
	assert.False(t, ok)
}

func TestProcessInitialPlanningMessage_ScenarioA(t *testing.T) {
	s, m := setupPlanningServiceTest()
	ctx := context.Background()

	m.extractor.On("Extract", mock.Anything, "Plan a trip to Goa", mock.Anything).
		Return(types.TripConfig{TripName: "Trip to Goa", Destinations: []string{"Goa"}}).Once()
	m.trips.On("FindPlanningTripByDestinations", mock.Anything, "user-1", []string{"Goa"}).Return(nil, types.ErrNotFound)

	state := s.ProcessInitialPlanningMessage(ctx, "Plan a trip to Goa", nil, "user-1")
	assert.Equal(t, types.StageDates, state.Stage)
	assert.Nil(t, state.ExistingTripID)
	m.matcher.AssertNotCalled(t, "MatchDestinations", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessInitialPlanningMessage_AdoptsExistingTrip(t *testing.T) {
	s, m := setupPlanningServiceTest()
	ctx := context.Background()
	tripID := uuid.New()
	stored := completeConfig()

	m.extractor.On("Extract", mock.Anything, "continue my Goa trip", mock.MatchedBy(func(st types.PlanningState) bool {
		return st.ExistingTripID == nil
	})).Return(types.TripConfig{Destinations: []string{"Goa"}}).Once()
	m.trips.On("FindPlanningTripByDestinations", mock.Anything, "user-1", []string{"Goa"}).Return(&types.Trip{
		ID: tripID, UserID: "user-1", TripName: stored.TripName, StartDate: stored.StartDate,
		Duration: stored.Duration, GroupType: stored.GroupType, TripPurpose: stored.TripPurpose,
		Destinations: []types.TripDestination{{Location: "Goa"}},
		Budget:       types.TripBudget{Currency: "INR", TotalBudget: stored.Budget},
	}, nil)
	m.extractor.On("Extract", mock.Anything, "continue my Goa trip", mock.MatchedBy(func(st types.PlanningState) bool {
		return st.ExistingTripID != nil && st.TripConfig.Budget == 50000
	})).Return(stored).Once()
	m.matcher.On("MatchDestinations", mock.Anything, "user-1", []string{"Goa"}).
		Return(&types.BucketListDetails{TotalItems: 2}, nil)

	state := s.ProcessInitialPlanningMessage(ctx, "continue my Goa trip", nil, "user-1")
	require.NotNil(t, state.ExistingTripID)
	assert.Equal(t, tripID, *state.ExistingTripID)
	assert.Equal(t, types.StageBucketList, state.Stage)
	assert.Equal(t, 2, state.TripConfig.BucketList.TotalItems)
	m.extractor.AssertNumberOfCalls(t, "Extract", 2)
}

func TestProcessInitialPlanningMessage_IgnoresForeignTrip(t *testing.T) {
	s, m := setupPlanningServiceTest()
	tripID := uuid.New()

	m.extractor.On("Extract", mock.Anything, "hi", mock.Anything).Return(types.TripConfig{}).Once()
	m.trips.On("GetByID", mock.Anything, tripID).Return(&types.Trip{ID: tripID, UserID: "someone-else"}, nil)

	state := s.ProcessInitialPlanningMessage(context.Background(), "hi", &tripID, "user-1")
	assert.Nil(t, state.ExistingTripID)
	assert.Equal(t, types.StageDestination, state.Stage)
}

func TestProcessUserResponse_ConfirmRouting(t *testing.T) {
	ctx := context.Background()

	t.Run("scenario D routes back to budget", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageConfirm, completeConfig())
		prior.TripConfig.BucketList.TotalItems = 1
		m.extractor.On("Extract", mock.Anything, "change the budget", mock.Anything).Return(prior.TripConfig)

		next := s.ProcessUserResponse(ctx, "change the budget", prior)
		assert.Equal(t, types.StageBudget, next.Stage)
		assert.False(t, next.Confirmed)
	})

	t.Run("confirmation", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageConfirm, completeConfig())
		prior.TripConfig.BucketList.TotalItems = 1
		m.extractor.On("Extract", mock.Anything, "yes, create trip", mock.Anything).Return(prior.TripConfig)

		next := s.ProcessUserResponse(ctx, "yes, create trip", prior)
		assert.Equal(t, types.StageConfirm, next.Stage)
		assert.True(t, next.Confirmed)
		assert.True(t, next.ReadyToPersist())
	})

	t.Run("unrelated message stays", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageConfirm, completeConfig())
		prior.TripConfig.BucketList.TotalItems = 1
		m.extractor.On("Extract", mock.Anything, "hmm let me think", mock.Anything).Return(prior.TripConfig)

		next := s.ProcessUserResponse(ctx, "hmm let me think", prior)
		assert.Equal(t, types.StageConfirm, next.Stage)
		assert.False(t, next.Confirmed)
	})
}

func TestProcessUserResponse_BudgetStage(t *testing.T) {
	ctx := context.Background()

	t.Run("unchanged budget without mention stays", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageBudget, completeConfig())
		m.extractor.On("Extract", mock.Anything, "ok", mock.Anything).Return(prior.TripConfig)

		next := s.ProcessUserResponse(ctx, "ok", prior)
		assert.Equal(t, types.StageBudget, next.Stage)
	})

	t.Run("new budget advances and refreshes bucket list", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		cfg := completeConfig()
		cfg.Budget = 0
		prior := stateWith(types.StageBudget, cfg)
		updated := completeConfig()
		m.extractor.On("Extract", mock.Anything, "50000", mock.Anything).Return(updated)
		m.matcher.On("MatchDestinations", mock.Anything, "user-1", []string{"Goa"}).
			Return(&types.BucketListDetails{TotalItems: 1, Items: []types.BucketListItem{{ActivityName: "Scuba"}}}, nil)

		next := s.ProcessUserResponse(ctx, "50000", prior)
		assert.Equal(t, types.StageBucketList, next.Stage)
		assert.Equal(t, 1, next.TripConfig.BucketList.TotalItems)
		assert.Zero(t, prior.TripConfig.Budget, "prior state must not change")
	})

	t.Run("confirmation with a new budget still visits the bucket list", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageBudget, completeConfig())
		updated := completeConfig()
		updated.Budget = 60000
		m.extractor.On("Extract", mock.Anything, "yes, 60000", mock.Anything).Return(updated)
		m.matcher.On("MatchDestinations", mock.Anything, "user-1", []string{"Goa"}).
			Return(&types.BucketListDetails{}, nil)

		next := s.ProcessUserResponse(ctx, "yes, 60000", prior)
		assert.Equal(t, types.StageBucketList, next.Stage)
		assert.False(t, next.Confirmed)
		assert.Equal(t, float64(60000), next.TripConfig.Budget)
	})

	t.Run("bare confirmation with an unchanged budget stays", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageBudget, completeConfig())
		m.extractor.On("Extract", mock.Anything, "yes", mock.Anything).Return(prior.TripConfig)

		next := s.ProcessUserResponse(ctx, "yes", prior)
		assert.Equal(t, types.StageBudget, next.Stage)
		assert.False(t, next.Confirmed)
	})

	t.Run("matcher failure keeps state usable", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageBudget, completeConfig())
		m.extractor.On("Extract", mock.Anything, "budget is fine", mock.Anything).Return(prior.TripConfig)
		m.matcher.On("MatchDestinations", mock.Anything, "user-1", mock.Anything).Return(nil, errors.New("db down"))

		next := s.ProcessUserResponse(ctx, "budget is fine", prior)
		assert.Equal(t, types.StageBucketList, next.Stage)
		assert.Zero(t, next.TripConfig.BucketList.TotalItems)
	})
}

func TestProcessUserResponse_BucketListStage(t *testing.T) {
	s, m := setupPlanningServiceTest()
	prior := stateWith(types.StageBucketList, completeConfig())
	prior.TripConfig.BucketList.TotalItems = 3
	m.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(prior.TripConfig)
	m.matcher.On("MatchDestinations", mock.Anything, "user-1", mock.Anything).Return(&types.BucketListDetails{TotalItems: 3}, nil)

	stay := s.ProcessUserResponse(context.Background(), "tell me more about the first one", prior)
	assert.Equal(t, types.StageBucketList, stay.Stage)

	next := s.ProcessUserResponse(context.Background(), "looks good, move on", prior)
	assert.Equal(t, types.StageConfirm, next.Stage)
	assert.False(t, next.Confirmed)
}

func TestProcessUserResponse_Overrides(t *testing.T) {
	ctx := context.Background()

	t.Run("itinerary request confirms from any stage", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageGroupType, completeConfig())
		prior.TripConfig.BucketList.TotalItems = 1

		next := s.ProcessUserResponse(ctx, "just generate the itinerary", prior)
		assert.Equal(t, types.StageConfirm, next.Stage)
		assert.True(t, next.Confirmed)
		m.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("confirmation on an incomplete trip does not skip stages", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		cfg := types.TripConfig{Destinations: []string{"Goa"}}
		m.extractor.On("Extract", mock.Anything, "yes", mock.Anything).Return(cfg)

		next := s.ProcessUserResponse(ctx, "yes", stateWith(types.StageDates, cfg))
		assert.Equal(t, types.StageDates, next.Stage)
		assert.False(t, next.Confirmed)
	})

	t.Run("panic returns the prior state", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		prior := stateWith(types.StageDuration, types.TripConfig{Destinations: []string{"Goa"}})
		m.extractor.On("Extract", mock.Anything, "boom", mock.Anything).Run(func(mock.Arguments) {
			panic("extractor exploded")
		}).Return(types.TripConfig{})

		next := s.ProcessUserResponse(ctx, "boom", prior)
		assert.Equal(t, prior, next)
	})
}

func TestPersistTrip(t *testing.T) {
	ctx := context.Background()
	confirmed := func() types.PlanningState {
		st := stateWith(types.StageConfirm, completeConfig())
		st.Confirmed = true
		return st
	}

	t.Run("creates a new trip", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		newID := uuid.New()
		m.trips.On("Create", mock.Anything, mock.MatchedBy(func(tr *types.Trip) bool {
			return tr.ID == uuid.Nil && tr.Budget.Currency == "INR" && tr.TripType == types.TripTypeSelfPlanned
		})).Return(&types.Trip{ID: newID}, nil)

		out, err := s.PersistTrip(ctx, confirmed())
		require.NoError(t, err)
		assert.True(t, out.Persisted)
		assert.Equal(t, newID, *out.ExistingTripID)

		again, err := s.PersistTrip(ctx, out)
		require.NoError(t, err)
		assert.Equal(t, out, again)
		m.trips.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("updates an existing trip", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		st := confirmed()
		id := uuid.New()
		st.ExistingTripID = &id
		m.trips.On("Update", mock.Anything, mock.MatchedBy(func(tr *types.Trip) bool { return tr.ID == id })).Return(nil)

		out, err := s.PersistTrip(ctx, st)
		require.NoError(t, err)
		assert.True(t, out.Persisted)
		m.trips.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("vanished trip is recreated", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		st := confirmed()
		id, newID := uuid.New(), uuid.New()
		st.ExistingTripID = &id
		m.trips.On("Update", mock.Anything, mock.Anything).Return(types.ErrNotFound)
		m.trips.On("Create", mock.Anything, mock.Anything).Return(&types.Trip{ID: newID}, nil)

		out, err := s.PersistTrip(ctx, st)
		require.NoError(t, err)
		assert.Equal(t, newID, *out.ExistingTripID)
	})

	t.Run("failure leaves state unpersisted", func(t *testing.T) {
		s, m := setupPlanningServiceTest()
		m.trips.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("insert failed"))

		out, err := s.PersistTrip(ctx, confirmed())
		assert.Error(t, err)
		assert.False(t, out.Persisted)
	})

	t.Run("anonymous user", func(t *testing.T) {
		s, _ := setupPlanningServiceTest()
		st := confirmed()
		st.UserID = ""
		_, err := s.PersistTrip(ctx, st)
		assert.ErrorIs(t, err, ErrAnonymousTrip)
	})
}

func TestBuildStagePrompt(t *testing.T) {
	st := stateWith(types.StageDates, types.TripConfig{Destinations: []string{"Goa"}})
	p := BuildStagePrompt(st)
	assert.Contains(t, p, "Destinations: Goa")
	assert.Contains(t, p, "when they plan to start")

	st = stateWith(types.StageBucketList, completeConfig())
	st.TripConfig.BucketList = types.BucketListDetails{TotalItems: 1, Items: []types.BucketListItem{{
		ActivityName: "Scuba diving", ActivityType: types.BucketActivityActivity,
		Place: types.BucketPlace{MainText: "Grande Island"},
	}}}
	assert.Contains(t, BuildStagePrompt(st), "- Scuba diving (Grande Island, activity)")

	st.Stage = types.StageConfirm
	st.Confirmed = true
	assert.Contains(t, BuildStagePrompt(st), "trip is saved")
}
