package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-trip-planner-ai/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner-ai/config"
	generativeAI "github.com/FACorreiaa/go-trip-planner-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/intent"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/session"
	tripPlanning "github.com/FACorreiaa/go-trip-planner-ai/internal/api/trip_planning"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const (
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"

	// WhatsAppConversationPrefix namespaces conversations keyed by phone number.
	WhatsAppConversationPrefix = "whatsapp:"

	apologyMessage = "Sorry, something went wrong on my side. Please send that again."
)

var ErrEmptyMessage = errors.New("message must not be empty")

type TurnRequest struct {
	ConversationID string
	UserID         string
	Message        string
	ExistingTripID *uuid.UUID
	Channel        string
}

type TurnResult struct {
	ConversationID string
	Intent         types.IntentType
	Reply          string
	PlanningState  *types.PlanningState
	TimedOut       bool
}

var _ Service = (*ServiceImpl)(nil)

// Service runs conversation turns. Every entry point (SSE, WhatsApp) goes through RunTurn.
type Service interface {
	RunTurn(ctx context.Context, req TurnRequest, w EventWriter) (*TurnResult, error)
	GetSession(ctx context.Context, conversationID, userID string) (*session.Session, error)
	ResetSession(ctx context.Context, conversationID, userID string) error
}

type ServiceImpl struct {
	logger       *slog.Logger
	classifier   intent.Classifier
	planner      tripPlanning.Service
	llm          generativeAI.CompletionService
	sessions     session.Store
	locker       *session.KeyedLocker
	relay        config.RelayConfig
	historyLimit int
}

func NewService(
	classifier intent.Classifier,
	planner tripPlanning.Service,
	llm generativeAI.CompletionService,
	sessions session.Store,
	locker *session.KeyedLocker,
	relay config.RelayConfig,
	historyLimit int,
	logger *slog.Logger,
) *ServiceImpl {
	if locker == nil {
		locker = session.NewKeyedLocker()
	}
	return &ServiceImpl{
		logger:       logger,
		classifier:   classifier,
		planner:      planner,
		llm:          llm,
		sessions:     sessions,
		locker:       locker,
		relay:        relay,
		historyLimit: historyLimit,
	}
}

func (s *ServiceImpl) RunTurn(ctx context.Context, req TurnRequest, w EventWriter) (*TurnResult, error) {
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	if req.Channel == "" {
		req.Channel = ChannelWeb
	}

	ctx, span := otel.Tracer("ChatService").Start(ctx, "RunTurn", trace.WithAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.String("chat.channel", req.Channel),
	))
	defer span.End()
	l := s.logger.With(
		slog.String("conversation_id", req.ConversationID),
		slog.String("channel", req.Channel))
	startedAt := time.Now()

	unlock := s.locker.Lock(req.ConversationID)
	defer unlock()

	sess, err := s.sessions.Load(ctx, req.ConversationID, req.UserID)
	switch {
	case errors.Is(err, session.ErrNotOwner) && req.Channel == ChannelWhatsApp:
		// The phone number is the credential here; it was re-linked to another account.
		l.InfoContext(ctx, "WhatsApp conversation changed owner, starting fresh")
		sess = &session.Session{ConversationID: req.ConversationID, UserID: req.UserID}
	case errors.Is(err, session.ErrNotOwner):
		span.RecordError(err)
		span.SetStatus(codes.Error, "not owner")
		return nil, err
	case err != nil:
		l.WarnContext(ctx, "Session load failed, continuing with a fresh session", slog.Any("error", err))
		sess = &session.Session{ConversationID: req.ConversationID, UserID: req.UserID}
	}
	if sess.PlanningState != nil && sess.PlanningState.UserID == "" {
		sess.PlanningState.UserID = sess.UserID
	}

	label := s.classifier.Classify(ctx, req.Message)
	planningActive := sess.PlanningState != nil && !sess.PlanningState.Persisted
	planning := label == types.IntentTripPlanning || (planningActive && !label.IsWidget())

	var (
		state  *types.PlanningState
		system string
	)
	if planning {
		label = types.IntentTripPlanning
		var next types.PlanningState
		if planningActive {
			next = s.planner.ProcessUserResponse(ctx, req.Message, *sess.PlanningState)
		} else {
			next = s.planner.ProcessInitialPlanningMessage(ctx, req.Message, req.ExistingTripID, req.UserID)
		}
		state = &next
		system = tripPlanning.BuildStagePrompt(next)
	} else {
		system = IntentPrompt(label)
	}
	span.SetAttributes(attribute.String("intent", string(label)))

	if err := w.WriteEvent(MetaEvent{
		ConversationID: req.ConversationID,
		IntentType:     label,
		PlanningMode:   planning,
		PlanningState:  state,
	}); err != nil {
		return nil, fmt.Errorf("writing meta event: %w", err)
	}

	msgs := make([]types.ChatMessage, 0, len(sess.History)+2)
	msgs = append(msgs, types.ChatMessage{Role: types.RoleSystem, Content: system})
	msgs = append(msgs, sess.History...)
	msgs = append(msgs, types.ChatMessage{Role: types.RoleUser, Content: req.Message})

	result, err := Relay(ctx, s.relay,
		func(ctx context.Context, onChunk func(string)) error {
			return s.llm.Stream(ctx, msgs, generativeAI.CompletionOptions{}, onChunk)
		},
		func(chunk string) error {
			return w.WriteEvent(NewChunkEvent(chunk, nil))
		},
	)
	if err != nil || result.Text == "" {
		if err == nil {
			err = errors.New("model returned an empty reply")
		}
		l.ErrorContext(ctx, "Turn failed while streaming", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
		_ = w.WriteEvent(ErrorEvent{Error: apologyMessage})
		_ = w.Done()
		s.recordTurn(ctx, req.Channel, label, startedAt)
		return nil, fmt.Errorf("streaming reply: %w", err)
	}
	if result.TimedOut {
		l.WarnContext(ctx, "Reply cut off by the safety timeout", slog.Int("reply_len", len(result.Text)))
	}
	if state != nil {
		// The planning state travels on the meta event and once more on the closing chunk.
		if err := w.WriteEvent(NewChunkEvent("", state)); err != nil {
			l.WarnContext(ctx, "Failed to write closing chunk", slog.Any("error", err))
		}
	}
	if err := w.Done(); err != nil {
		l.WarnContext(ctx, "Failed to terminate event stream", slog.Any("error", err))
	}

	if state != nil && state.ReadyToPersist() {
		persisted, err := s.planner.PersistTrip(ctx, *state)
		switch {
		case errors.Is(err, tripPlanning.ErrAnonymousTrip):
			l.InfoContext(ctx, "Trip confirmed by a guest, not saved")
		case err != nil:
			l.ErrorContext(ctx, "Trip persistence failed", slog.Any("error", err))
		default:
			state = &persisted
		}
	}

	if planning {
		sess.PlanningState = state
	}
	sess.AppendTurn(req.Message, result.Text, s.historyLimit)
	if err := s.sessions.Save(ctx, sess); err != nil {
		l.ErrorContext(ctx, "Session save failed", slog.Any("error", err))
	}

	s.recordTurn(ctx, req.Channel, label, startedAt)
	span.SetStatus(codes.Ok, "turn complete")
	return &TurnResult{
		ConversationID: req.ConversationID,
		Intent:         label,
		Reply:          result.Text,
		PlanningState:  state,
		TimedOut:       result.TimedOut,
	}, nil
}

func (s *ServiceImpl) recordTurn(ctx context.Context, channel string, label types.IntentType, startedAt time.Time) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("channel", channel), attribute.String("intent", string(label)))
	m.ChatTurnsTotal.Add(ctx, 1, attrs)
	m.ChatTurnDurationSeconds.Record(ctx, time.Since(startedAt).Seconds(), attrs)
}

func (s *ServiceImpl) GetSession(ctx context.Context, conversationID, userID string) (*session.Session, error) {
	return s.sessions.Load(ctx, conversationID, userID)
}

// ResetSession deletes a conversation. Owned sessions can only be reset by their owner.
func (s *ServiceImpl) ResetSession(ctx context.Context, conversationID, userID string) error {
	unlock := s.locker.Lock(conversationID)
	defer unlock()
	if _, err := s.sessions.Load(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, conversationID)
}
