package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/api"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/auth"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/session"
)

const errWhatsAppConversation = "WhatsApp conversations are only available over WhatsApp"

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	StreamHandler(w http.ResponseWriter, r *http.Request)
	GetSessionHandler(w http.ResponseWriter, r *http.Request)
	DeleteSessionHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{logger: logger, service: service}
}

type StreamRequest struct {
	ConversationID string     `json:"conversationId,omitempty"`
	Message        string     `json:"message"`
	ExistingTripID *uuid.UUID `json:"existingTripId,omitempty"`
}

// StreamHandler godoc
// @Summary      Send a chat message
// @Description  Streams the assistant reply as server-sent events. The first event carries the intent, planning mode, planning state and conversation id; later events carry choices[0].delta.content. The stream ends with data: [DONE].
// @Tags         chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request body StreamRequest true "Chat message"
// @Success      200 {string} string "event stream"
// @Failure      400 {object} map[string]interface{}
// @Router       /chat/stream [post]
func (h *HandlerImpl) StreamHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "Stream")
	defer span.End()
	l := h.logger.With(slog.String("handler", "StreamHandler"))

	var req StreamRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "message is required")
		return
	}
	if strings.HasPrefix(req.ConversationID, WhatsAppConversationPrefix) {
		api.ErrorResponse(w, r, http.StatusBadRequest, errWhatsAppConversation)
		return
	}

	flusher, ok := api.PrepareSSE(w)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	userID, _ := auth.GetUserIDFromContext(ctx)
	span.SetAttributes(attribute.String("user.id", userID))

	result, err := h.service.RunTurn(ctx, TurnRequest{
		ConversationID: req.ConversationID,
		UserID:         userID,
		Message:        req.Message,
		ExistingTripID: req.ExistingTripID,
		Channel:        ChannelWeb,
	}, NewSSEWriter(w, flusher))
	if errors.Is(err, session.ErrNotOwner) {
		span.SetStatus(codes.Error, "Not owner")
		api.ErrorResponse(w, r, http.StatusForbidden, "Conversation belongs to another user")
		return
	}
	if err != nil {
		// The service already sent an error event and [DONE].
		l.WarnContext(ctx, "Chat turn failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Turn failed")
		return
	}
	span.SetAttributes(
		attribute.String("conversation.id", result.ConversationID),
		attribute.String("intent", string(result.Intent)),
	)
	span.SetStatus(codes.Ok, "Turn streamed")
}

// GetSessionHandler godoc
// @Summary      Get a conversation
// @Tags         chat
// @Produce      json
// @Param        conversationID path string true "Conversation ID"
// @Success      200 {object} session.Session
// @Failure      403 {object} map[string]interface{}
// @Router       /chat/sessions/{conversationID} [get]
func (h *HandlerImpl) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "conversation id is required")
		return
	}
	if strings.HasPrefix(conversationID, WhatsAppConversationPrefix) {
		api.ErrorResponse(w, r, http.StatusBadRequest, errWhatsAppConversation)
		return
	}
	userID, _ := auth.GetUserIDFromContext(ctx)

	sess, err := h.service.GetSession(ctx, conversationID, userID)
	if errors.Is(err, session.ErrNotOwner) {
		api.ErrorResponse(w, r, http.StatusForbidden, "Conversation belongs to another user")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sess)
}

// DeleteSessionHandler godoc
// @Summary      Reset a conversation
// @Tags         chat
// @Param        conversationID path string true "Conversation ID"
// @Success      204
// @Failure      403 {object} map[string]interface{}
// @Router       /chat/sessions/{conversationID} [delete]
func (h *HandlerImpl) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "conversation id is required")
		return
	}
	if strings.HasPrefix(conversationID, WhatsAppConversationPrefix) {
		api.ErrorResponse(w, r, http.StatusBadRequest, errWhatsAppConversation)
		return
	}
	userID, _ := auth.GetUserIDFromContext(ctx)

	err := h.service.ResetSession(ctx, conversationID, userID)
	if errors.Is(err, session.ErrNotOwner) {
		api.ErrorResponse(w, r, http.StatusForbidden, "Conversation belongs to another user")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to reset session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to reset conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
