package whatsapp

import (
	"context"
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/api"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/auth"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/chat"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const (
	deliveryTimeout = 5 * time.Minute
	apologyReply    = "Sorry, I ran into a problem. Please try again in a moment."
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	WebhookHandler(w http.ResponseWriter, r *http.Request)
	SendOTPHandler(w http.ResponseWriter, r *http.Request)
	VerifyOTPHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger     *slog.Logger
	chat       chat.Service
	contexts   *ContextManager
	deliverer  *Deliverer
	otp        *OTPService
	signatures *SignatureVerifier
	inflight   sync.WaitGroup
}

func NewHandler(chatService chat.Service, contexts *ContextManager, deliverer *Deliverer, otp *OTPService, signatures *SignatureVerifier, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:     logger,
		chat:       chatService,
		contexts:   contexts,
		deliverer:  deliverer,
		otp:        otp,
		signatures: signatures,
	}
}

// Wait blocks until background deliveries started by the webhook have finished.
func (h *HandlerImpl) Wait() {
	h.inflight.Wait()
}

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

func writeTwiML(w http.ResponseWriter, messages ...string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(twimlResponse{Messages: messages})
}

// WebhookHandler godoc
// @Summary      Inbound WhatsApp message
// @Description  Runs one conversation turn and answers with TwiML holding the first reply segment. Remaining segments are sent asynchronously.
// @Tags         whatsapp
// @Accept       x-www-form-urlencoded
// @Produce      xml
// @Param        From formData string true "Sender, e.g. whatsapp:+14155550100"
// @Param        Body formData string true "Message text"
// @Param        ProfileName formData string false "Sender display name"
// @Param        X-Twilio-Signature header string true "Twilio request signature"
// @Success      200 {string} string "TwiML"
// @Failure      403 {object} map[string]interface{}
// @Router       /whatsapp/webhook [post]
func (h *HandlerImpl) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("WhatsAppHandler").Start(r.Context(), "Webhook")
	defer span.End()
	l := h.logger.With(slog.String("handler", "WebhookHandler"))

	if err := r.ParseForm(); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid form body")
		return
	}
	if !h.signatures.Verify(r) {
		l.WarnContext(ctx, "Rejected webhook with an invalid signature")
		span.SetStatus(codes.Error, "invalid signature")
		api.ErrorResponse(w, r, http.StatusForbidden, "invalid signature")
		return
	}
	phone := NormalizePhone(r.PostFormValue("From"))
	body := strings.TrimSpace(r.PostFormValue("Body"))
	if phone == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "From is required")
		return
	}
	if body == "" {
		writeTwiML(w)
		return
	}

	cc, fresh, err := h.contexts.Load(ctx, phone, r.PostFormValue("ProfileName"))
	if err != nil {
		l.ErrorContext(ctx, "Failed to load conversation context", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "context load failed")
		writeTwiML(w, apologyReply)
		return
	}

	buf := chat.NewBufferWriter()
	res, err := h.chat.RunTurn(ctx, chat.TurnRequest{
		ConversationID: chat.WhatsAppConversationPrefix + phone,
		UserID:         LinkedUserID(cc),
		Message:        body,
		Channel:        chat.ChannelWhatsApp,
	}, buf)
	if err != nil {
		l.ErrorContext(ctx, "WhatsApp turn failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		writeTwiML(w, apologyReply)
		return
	}

	h.contexts.Transition(cc, StateForIntent(res.Intent))
	if err := h.contexts.Save(ctx, cc); err != nil {
		l.WarnContext(ctx, "Failed to save conversation context", slog.Any("error", err))
	}

	recap := res.PlanningState != nil &&
		(res.PlanningState.Stage == types.StageConfirm || res.PlanningState.Stage == types.StageBucketList)
	parts := Segment(res.Reply, ContextFor(res.Intent.IsWidget(), recap, res.Reply))
	span.SetAttributes(
		attribute.String("intent", string(res.Intent)),
		attribute.Int("reply.parts", len(parts)),
	)

	var immediate []string
	if fresh {
		immediate = append(immediate, Greeting(cc))
	}
	if len(parts) > 0 {
		immediate = append(immediate, parts[0])
	}
	if len(parts) > 1 {
		h.deliverLater(ctx, phone, parts[1:])
	}

	span.SetStatus(codes.Ok, "replied")
	writeTwiML(w, immediate...)
}

func (h *HandlerImpl) deliverLater(ctx context.Context, phone string, parts []string) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer cancel()
		sent := h.deliverer.DeliverRemaining(bg, phone, parts)
		h.logger.DebugContext(bg, "Follow-up delivery finished", slog.Int("sent", sent), slog.Int("total", len(parts)))
	}()
}

type SendOTPRequest struct {
	Phone string `json:"phone"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// SendOTPHandler godoc
// @Summary      Send a WhatsApp verification code
// @Tags         whatsapp
// @Accept       json
// @Produce      json
// @Param        request body SendOTPRequest true "Phone number"
// @Success      202 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Router       /whatsapp/otp/send [post]
func (h *HandlerImpl) SendOTPHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SendOTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	phone := NormalizePhone(req.Phone)
	if !phonePattern.MatchString(phone) {
		api.ErrorResponse(w, r, http.StatusBadRequest, "phone must be in international format")
		return
	}
	if err := h.otp.Send(ctx, phone); err != nil {
		h.logger.ErrorContext(ctx, "Failed to send verification code", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadGateway, "Could not send verification code")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusAccepted, map[string]any{"success": true})
}

// VerifyOTPHandler godoc
// @Summary      Verify a WhatsApp number
// @Description  Links the verified phone number to the signed-in account so WhatsApp trips are saved to it.
// @Tags         whatsapp
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body VerifyOTPRequest true "Phone and code"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      429 {object} map[string]interface{}
// @Router       /whatsapp/otp/verify [post]
func (h *HandlerImpl) VerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req VerifyOTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	phone := NormalizePhone(req.Phone)

	switch err := h.otp.Verify(phone, strings.TrimSpace(req.Code)); {
	case errors.Is(err, ErrOTPTooManyAttempts):
		api.ErrorResponse(w, r, http.StatusTooManyRequests, err.Error())
		return
	case err != nil:
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.contexts.LinkUser(ctx, phone, userID); err != nil {
		h.logger.ErrorContext(ctx, "Failed to link phone to user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Could not link phone number")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]any{"success": true, "phone": phone})
}
