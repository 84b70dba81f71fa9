package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/auth"
	generativeAI "github.com/FACorreiaa/go-trip-planner-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/session"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, message string) types.IntentType {
	args := m.Called(ctx, message)
	return args.Get(0).(types.IntentType)
}

type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) ProcessInitialPlanningMessage(ctx context.Context, message string, existingTripID *uuid.UUID, userID string) types.PlanningState {
	args := m.Called(ctx, message, existingTripID, userID)
	return args.Get(0).(types.PlanningState)
}

func (m *MockPlanner) ProcessUserResponse(ctx context.Context, message string, state types.PlanningState) types.PlanningState {
	args := m.Called(ctx, message, state)
	return args.Get(0).(types.PlanningState)
}

func (m *MockPlanner) PersistTrip(ctx context.Context, state types.PlanningState) (types.PlanningState, error) {
	args := m.Called(ctx, state)
	return args.Get(0).(types.PlanningState), args.Error(1)
}

// MockStreamer streams the chunk list given to Return.
type MockStreamer struct {
	mock.Mock
}

func (m *MockStreamer) Complete(ctx context.Context, msgs []types.ChatMessage, opts generativeAI.CompletionOptions) (string, error) {
	args := m.Called(ctx, msgs)
	return args.String(0), args.Error(1)
}

func (m *MockStreamer) Stream(ctx context.Context, msgs []types.ChatMessage, opts generativeAI.CompletionOptions, onChunk func(string)) error {
	args := m.Called(ctx, msgs)
	if chunks, ok := args.Get(0).([]string); ok {
		for _, c := range chunks {
			onChunk(c)
		}
	}
	return args.Error(1)
}

func (m *MockStreamer) Provider() string { return "mock" }

type chatMocks struct {
	classifier *MockClassifier
	planner    *MockPlanner
	llm        *MockStreamer
	sessions   *session.StoreImpl
}

func setupChatServiceTest() (*ServiceImpl, chatMocks) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := chatMocks{
		classifier: new(MockClassifier),
		planner:    new(MockPlanner),
		llm:        new(MockStreamer),
		sessions:   session.NewStore(session.NewMemoryKVStore("test"), time.Hour, logger),
	}
	svc := NewService(m.classifier, m.planner, m.llm, m.sessions, session.NewKeyedLocker(), fastRelay, 10, logger)
	return svc, m
}

func planningAt(stage types.PlanningStage) types.PlanningState {
	st := types.NewPlanningState("user-1")
	st.Stage = stage
	st.TripConfig.Destinations = []string{"Goa"}
	return st
}

func TestRunTurn_StartsPlanning(t *testing.T) {
	svc, m := setupChatServiceTest()
	ctx := context.Background()
	msg := "Plan a trip to Goa"

	m.classifier.On("Classify", mock.Anything, msg).Return(types.IntentTripPlanning)
	m.planner.On("ProcessInitialPlanningMessage", mock.Anything, msg, (*uuid.UUID)(nil), "user-1").Return(planningAt(types.StageDates))
	m.llm.On("Stream", mock.Anything, mock.MatchedBy(func(msgs []types.ChatMessage) bool {
		return msgs[0].Role == types.RoleSystem && strings.Contains(msgs[0].Content, "Destinations: Goa") &&
			msgs[len(msgs)-1].Content == msg
	})).Return([]string{"When do ", "you leave?"}, nil)

	w := NewBufferWriter()
	res, err := svc.RunTurn(ctx, TurnRequest{ConversationID: "conv-1", UserID: "user-1", Message: msg}, w)
	require.NoError(t, err)

	assert.Equal(t, types.IntentTripPlanning, res.Intent)
	assert.Equal(t, "When do you leave?", res.Reply)
	assert.Equal(t, "When do you leave?", w.Text())
	assert.True(t, w.Finished())

	events := w.Events()
	require.Len(t, events, 4)
	meta, ok := events[0].(MetaEvent)
	require.True(t, ok)
	assert.True(t, meta.PlanningMode)
	assert.Equal(t, "conv-1", meta.ConversationID)
	assert.Equal(t, types.StageDates, meta.PlanningState.Stage)
	assert.Nil(t, events[1].(ChunkEvent).PlanningState)
	assert.Nil(t, events[2].(ChunkEvent).PlanningState)
	closing := events[3].(ChunkEvent)
	require.NotNil(t, closing.PlanningState)
	assert.Equal(t, types.StageDates, closing.PlanningState.Stage)
	assert.Empty(t, closing.Choices[0].Delta.Content)

	stored, err := m.sessions.Load(ctx, "conv-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored.PlanningState)
	assert.Equal(t, types.StageDates, stored.PlanningState.Stage)
	assert.Len(t, stored.History, 2)
}

func TestRunTurn_ContinuesPlanningAndPersists(t *testing.T) {
	svc, m := setupChatServiceTest()
	ctx := context.Background()

	prior := planningAt(types.StageConfirm)
	require.NoError(t, m.sessions.Save(ctx, &session.Session{ConversationID: "conv-2", UserID: "user-1", PlanningState: &prior}))

	confirmed := prior.Clone()
	confirmed.Confirmed = true
	saved := confirmed.Clone()
	saved.Persisted = true
	tripID := uuid.New()
	saved.ExistingTripID = &tripID

	m.classifier.On("Classify", mock.Anything, "yes").Return(types.IntentChat)
	m.planner.On("ProcessUserResponse", mock.Anything, "yes", prior).Return(confirmed)
	m.planner.On("PersistTrip", mock.Anything, confirmed).Return(saved, nil)
	m.llm.On("Stream", mock.Anything, mock.Anything).Return([]string{"Saved!"}, nil)

	res, err := svc.RunTurn(ctx, TurnRequest{ConversationID: "conv-2", UserID: "user-1", Message: "yes"}, NewBufferWriter())
	require.NoError(t, err)
	assert.True(t, res.PlanningState.Persisted)

	stored, err := m.sessions.Load(ctx, "conv-2", "user-1")
	require.NoError(t, err)
	assert.True(t, stored.PlanningState.Persisted)
	assert.Equal(t, tripID, *stored.PlanningState.ExistingTripID)
	m.planner.AssertNotCalled(t, "ProcessInitialPlanningMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunTurn_PersistFailureIsNotSurfaced(t *testing.T) {
	svc, m := setupChatServiceTest()
	ctx := context.Background()

	confirmed := planningAt(types.StageConfirm)
	confirmed.Confirmed = true
	m.classifier.On("Classify", mock.Anything, mock.Anything).Return(types.IntentTripPlanning)
	m.planner.On("ProcessInitialPlanningMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(confirmed)
	m.planner.On("PersistTrip", mock.Anything, confirmed).Return(confirmed, errors.New("db down"))
	m.llm.On("Stream", mock.Anything, mock.Anything).Return([]string{"Done"}, nil)

	res, err := svc.RunTurn(ctx, TurnRequest{UserID: "user-1", Message: "create my Goa trip"}, NewBufferWriter())
	require.NoError(t, err)
	assert.False(t, res.PlanningState.Persisted)
	assert.NotEmpty(t, res.ConversationID)
}

func TestRunTurn_WidgetDuringPlanningKeepsState(t *testing.T) {
	svc, m := setupChatServiceTest()
	ctx := context.Background()

	prior := planningAt(types.StageDuration)
	require.NoError(t, m.sessions.Save(ctx, &session.Session{ConversationID: "conv-3", UserID: "user-1", PlanningState: &prior}))

	m.classifier.On("Classify", mock.Anything, mock.Anything).Return(types.IntentWidgetWeather)
	m.llm.On("Stream", mock.Anything, mock.MatchedBy(func(msgs []types.ChatMessage) bool {
		return strings.Contains(msgs[0].Content, "typical weather")
	})).Return([]string{"Warm and sunny."}, nil)

	w := NewBufferWriter()
	res, err := svc.RunTurn(ctx, TurnRequest{ConversationID: "conv-3", UserID: "user-1", Message: "what's the weather in Goa?"}, w)
	require.NoError(t, err)
	assert.Equal(t, types.IntentWidgetWeather, res.Intent)
	assert.False(t, w.Events()[0].(MetaEvent).PlanningMode)
	m.planner.AssertNotCalled(t, "ProcessUserResponse", mock.Anything, mock.Anything, mock.Anything)

	stored, err := m.sessions.Load(ctx, "conv-3", "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.StageDuration, stored.PlanningState.Stage)
}

func TestRunTurn_StreamFailureKeepsCommittedState(t *testing.T) {
	svc, m := setupChatServiceTest()
	ctx := context.Background()

	m.classifier.On("Classify", mock.Anything, mock.Anything).Return(types.IntentChat)
	m.llm.On("Stream", mock.Anything, mock.Anything).Return(nil, errors.New("vendor down"))

	w := NewBufferWriter()
	_, err := svc.RunTurn(ctx, TurnRequest{ConversationID: "conv-4", Message: "hello"}, w)
	require.Error(t, err)

	events := w.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ErrorEvent{Error: apologyMessage}, events[1])
	assert.True(t, w.Finished())

	stored, err := m.sessions.Load(ctx, "conv-4", "")
	require.NoError(t, err)
	assert.Empty(t, stored.History)
}

func TestRunTurn_Ownership(t *testing.T) {
	ctx := context.Background()
	owned := func(m chatMocks, id string) types.PlanningState {
		st := planningAt(types.StageBudget)
		require.NoError(t, m.sessions.Save(ctx, &session.Session{ConversationID: id, UserID: "user-1", PlanningState: &st}))
		return st
	}

	t.Run("guest cannot continue an owned session", func(t *testing.T) {
		svc, m := setupChatServiceTest()
		owned(m, "conv-5")

		w := NewBufferWriter()
		_, err := svc.RunTurn(ctx, TurnRequest{ConversationID: "conv-5", Message: "yes, 60000"}, w)
		require.ErrorIs(t, err, session.ErrNotOwner)
		assert.Empty(t, w.Events())
		m.classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)

		stored, err := m.sessions.Load(ctx, "conv-5", "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", stored.UserID)
		assert.Equal(t, types.StageBudget, stored.PlanningState.Stage)
	})

	t.Run("guest cannot read or reset an owned session", func(t *testing.T) {
		svc, m := setupChatServiceTest()
		owned(m, "conv-6")

		_, err := svc.GetSession(ctx, "conv-6", "")
		assert.ErrorIs(t, err, session.ErrNotOwner)
		assert.ErrorIs(t, svc.ResetSession(ctx, "conv-6", "user-2"), session.ErrNotOwner)

		require.NoError(t, svc.ResetSession(ctx, "conv-6", "user-1"))
		stored, err := m.sessions.Load(ctx, "conv-6", "")
		require.NoError(t, err)
		assert.Nil(t, stored.PlanningState)
	})

	t.Run("relinked whatsapp number starts fresh for the new owner", func(t *testing.T) {
		svc, m := setupChatServiceTest()
		owned(m, "whatsapp:+15550001")
		m.classifier.On("Classify", mock.Anything, "hello").Return(types.IntentChat)
		m.llm.On("Stream", mock.Anything, mock.Anything).Return([]string{"Hi!"}, nil)

		_, err := svc.RunTurn(ctx, TurnRequest{
			ConversationID: "whatsapp:+15550001",
			UserID:         "user-2",
			Message:        "hello",
			Channel:        ChannelWhatsApp,
		}, NewBufferWriter())
		require.NoError(t, err)

		stored, err := m.sessions.Load(ctx, "whatsapp:+15550001", "user-2")
		require.NoError(t, err)
		assert.Equal(t, "user-2", stored.UserID)
		assert.Nil(t, stored.PlanningState)
	})

	t.Run("guest planning state is adopted after sign in", func(t *testing.T) {
		svc, m := setupChatServiceTest()
		guest := planningAt(types.StageDuration)
		guest.UserID = ""
		require.NoError(t, m.sessions.Save(ctx, &session.Session{ConversationID: "conv-7", PlanningState: &guest}))

		adopted := guest.Clone()
		adopted.UserID = "user-3"
		m.classifier.On("Classify", mock.Anything, "5 days").Return(types.IntentTripPlanning)
		m.planner.On("ProcessUserResponse", mock.Anything, "5 days", adopted).Return(adopted)
		m.llm.On("Stream", mock.Anything, mock.Anything).Return([]string{"Great."}, nil)

		_, err := svc.RunTurn(ctx, TurnRequest{ConversationID: "conv-7", UserID: "user-3", Message: "5 days"}, NewBufferWriter())
		require.NoError(t, err)
		m.planner.AssertExpectations(t)
	})
}

func TestRunTurn_EmptyMessage(t *testing.T) {
	svc, _ := setupChatServiceTest()
	_, err := svc.RunTurn(context.Background(), TurnRequest{}, NewBufferWriter())
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) RunTurn(ctx context.Context, req TurnRequest, w EventWriter) (*TurnResult, error) {
	args := m.Called(ctx, req, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TurnResult), args.Error(1)
}

func (m *MockChatService) GetSession(ctx context.Context, conversationID, userID string) (*session.Session, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockChatService) ResetSession(ctx context.Context, conversationID, userID string) error {
	return m.Called(ctx, conversationID, userID).Error(0)
}

func TestStreamHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("streams events", func(t *testing.T) {
		svc := new(MockChatService)
		h := NewHandler(svc, logger)
		svc.On("RunTurn", mock.Anything, mock.MatchedBy(func(req TurnRequest) bool {
			return req.Message == "hi" && req.Channel == ChannelWeb
		}), mock.Anything).Run(func(args mock.Arguments) {
			w := args.Get(2).(EventWriter)
			_ = w.WriteEvent(MetaEvent{ConversationID: "c", IntentType: types.IntentChat})
			_ = w.WriteEvent(NewChunkEvent("Hello", nil))
			_ = w.Done()
		}).Return(&TurnResult{ConversationID: "c", Intent: types.IntentChat}, nil)

		rr := httptest.NewRecorder()
		h.StreamHandler(rr, httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"message":" hi "}`)))

		assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
		body := rr.Body.String()
		assert.Contains(t, body, `data: {"conversationId":"c","intentType":"chat","planningMode":false}`)
		assert.Contains(t, body, `data: {"choices":[{"delta":{"content":"Hello"}}]}`)
		assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
	})

	t.Run("rejects whatsapp conversations", func(t *testing.T) {
		svc := new(MockChatService)
		h := NewHandler(svc, logger)
		rr := httptest.NewRecorder()
		h.StreamHandler(rr, httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream",
			strings.NewReader(`{"conversationId":"whatsapp:+15550001","message":"hi"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "RunTurn", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("foreign conversation is forbidden", func(t *testing.T) {
		svc := new(MockChatService)
		h := NewHandler(svc, logger)
		svc.On("RunTurn", mock.Anything, mock.Anything, mock.Anything).Return(nil, session.ErrNotOwner)
		rr := httptest.NewRecorder()
		h.StreamHandler(rr, httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream",
			strings.NewReader(`{"conversationId":"conv-1","message":"hi"}`)))
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	})

	t.Run("rejects empty message", func(t *testing.T) {
		h := NewHandler(new(MockChatService), logger)
		rr := httptest.NewRecorder()
		h.StreamHandler(rr, httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"message":"   "}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		h := NewHandler(new(MockChatService), logger)
		rr := httptest.NewRecorder()
		h.StreamHandler(rr, httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"msg":"hi"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSessionHandlers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	withID := func(method, id string) *http.Request {
		req := httptest.NewRequest(method, "/api/v1/chat/sessions/"+id, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("conversationID", id)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("get forbids other users", func(t *testing.T) {
		svc := new(MockChatService)
		svc.On("GetSession", mock.Anything, "conv-1", "").Return(nil, session.ErrNotOwner)
		rr := httptest.NewRecorder()
		NewHandler(svc, logger).GetSessionHandler(rr, withID(http.MethodGet, "conv-1"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("get rejects whatsapp conversations", func(t *testing.T) {
		svc := new(MockChatService)
		rr := httptest.NewRecorder()
		NewHandler(svc, logger).GetSessionHandler(rr, withID(http.MethodGet, "whatsapp:+15550001"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete passes the caller and forbids other users", func(t *testing.T) {
		svc := new(MockChatService)
		svc.On("ResetSession", mock.Anything, "conv-1", "user-2").Return(session.ErrNotOwner)
		req := withID(http.MethodDelete, "conv-1")
		req = req.WithContext(auth.WithUserID(req.Context(), "user-2"))
		rr := httptest.NewRecorder()
		NewHandler(svc, logger).DeleteSessionHandler(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("delete own session", func(t *testing.T) {
		svc := new(MockChatService)
		svc.On("ResetSession", mock.Anything, "conv-1", "user-1").Return(nil)
		req := withID(http.MethodDelete, "conv-1")
		req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
		rr := httptest.NewRecorder()
		NewHandler(svc, logger).DeleteSessionHandler(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
