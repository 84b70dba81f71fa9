package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-trip-planner-ai/config"
)

const (
	defaultTwilioBaseURL = "https://api.twilio.com"
	whatsappPrefix       = "whatsapp:"
)

// Sender delivers one outbound text message.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

var _ Sender = (*TwilioSender)(nil)

// TwilioSender posts to the Twilio Messages REST API.
type TwilioSender struct {
	client     *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
	logger     *slog.Logger
}

func NewTwilioSender(cfg config.WhatsAppConfig, client *http.Client, logger *slog.Logger) *TwilioSender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultTwilioBaseURL
	}
	return &TwilioSender{
		client:     client,
		baseURL:    base,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       withWhatsAppPrefix(cfg.From),
		logger:     logger,
	}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	ctx, span := otel.Tracer("WhatsAppSender").Start(ctx, "Send", trace.WithAttributes(
		attribute.Int("message.length", len(body)),
	))
	defer span.End()

	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", withWhatsAppPrefix(to))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("sending whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var te twilioError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &te)
		err := fmt.Errorf("twilio returned %d: code=%d %s", resp.StatusCode, te.Code, te.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, "twilio rejected message")
		return err
	}
	span.SetStatus(codes.Ok, "sent")
	return nil
}

func withWhatsAppPrefix(phone string) string {
	if phone == "" || strings.HasPrefix(phone, whatsappPrefix) {
		return phone
	}
	return whatsappPrefix + phone
}

// NormalizePhone strips the channel prefix and spaces from a sender address.
func NormalizePhone(from string) string {
	p := strings.TrimPrefix(strings.TrimSpace(from), whatsappPrefix)
	return strings.ReplaceAll(p, " ", "")
}
