package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

// ErrNotOwner is returned when a session belongs to a different user than the caller.
var ErrNotOwner = errors.New("session belongs to another user")

// Session is the server-side record of one conversation.
type Session struct {
	ConversationID string               `json:"conversationId"`
	UserID         string               `json:"userId"`
	PlanningState  *types.PlanningState `json:"planningState,omitempty"`
	History        []types.ChatMessage  `json:"history"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// AppendTurn records a user/assistant exchange keeping at most limit messages.
func (s *Session) AppendTurn(user, assistant string, limit int) {
	s.History = append(s.History,
		types.ChatMessage{Role: types.RoleUser, Content: user},
		types.ChatMessage{Role: types.RoleAssistant, Content: assistant},
	)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]types.ChatMessage(nil), s.History[len(s.History)-limit:]...)
	}
}

var _ Store = (*StoreImpl)(nil)

type Store interface {
	// Load returns the stored session or a fresh one when none exists.
	// A session with an owner is only returned to that owner.
	Load(ctx context.Context, conversationID, userID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, conversationID string) error
}

type StoreImpl struct {
	kv     KVStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewStore(kv KVStore, ttl time.Duration, logger *slog.Logger) *StoreImpl {
	return &StoreImpl{kv: kv, ttl: ttl, logger: logger}
}

func (s *StoreImpl) Load(ctx context.Context, conversationID, userID string) (*Session, error) {
	ctx, span := otel.Tracer("SessionStore").Start(ctx, "Load", trace.WithAttributes(
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	var sess Session
	err := s.kv.Get(ctx, conversationID, &sess)
	switch {
	case errors.Is(err, types.ErrNotFound):
		span.SetAttributes(attribute.Bool("session.new", true))
		return &Session{ConversationID: conversationID, UserID: userID, History: []types.ChatMessage{}}, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "Load failed")
		return nil, fmt.Errorf("failed to load session %s: %w", conversationID, err)
	}

	// A conversation id is not a credential. Guests included, nobody but the owner
	// may read or continue an owned session.
	if sess.UserID != "" && sess.UserID != userID {
		s.logger.WarnContext(ctx, "Session owned by another user", slog.String("conversationID", conversationID))
		span.SetStatus(codes.Error, "not owner")
		return nil, fmt.Errorf("session %s: %w", conversationID, ErrNotOwner)
	}
	if sess.UserID == "" {
		sess.UserID = userID
	}
	return &sess, nil
}

func (s *StoreImpl) Save(ctx context.Context, sess *Session) error {
	ctx, span := otel.Tracer("SessionStore").Start(ctx, "Save", trace.WithAttributes(
		attribute.String("conversation.id", sess.ConversationID),
	))
	defer span.End()

	sess.UpdatedAt = time.Now().UTC()
	if err := s.kv.Set(ctx, sess.ConversationID, sess, s.ttl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Save failed")
		return fmt.Errorf("failed to save session %s: %w", sess.ConversationID, err)
	}
	return nil
}

func (s *StoreImpl) Delete(ctx context.Context, conversationID string) error {
	if err := s.kv.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", conversationID, err)
	}
	return nil
}
