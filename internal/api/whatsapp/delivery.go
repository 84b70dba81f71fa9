package whatsapp

import (
	"context"
	"log/slog"

	"github.com/FACorreiaa/go-trip-planner-ai/app/observability/metrics"
)

// Deliverer sends follow-up segments in order with human-like pacing.
type Deliverer struct {
	sender Sender
	pacer  *Pacer
	logger *slog.Logger
}

func NewDeliverer(sender Sender, pacer *Pacer, logger *slog.Logger) *Deliverer {
	if pacer == nil {
		pacer = NewPacer()
	}
	return &Deliverer{sender: sender, pacer: pacer, logger: logger}
}

// DeliverRemaining sends parts after the synchronous first reply. A failed send is logged
// and followed by a recovery pause; the rest of the queue is still delivered.
// It returns the number of parts sent successfully.
func (d *Deliverer) DeliverRemaining(ctx context.Context, to string, parts []string) int {
	l := d.logger.With(slog.String("component", "Deliverer"), slog.Int("parts", len(parts)))
	sent := 0
	for i, part := range parts {
		delay := InitialDelay
		if i > 0 {
			delay = d.pacer.Delay(part)
		}
		if err := d.pacer.Sleep(ctx, delay); err != nil {
			l.WarnContext(ctx, "Delivery cancelled", slog.Int("sent", sent), slog.Any("error", err))
			return sent
		}

		if err := d.sender.Send(ctx, to, part); err != nil {
			l.ErrorContext(ctx, "Failed to send segment", slog.Int("index", i), slog.Any("error", err))
			metrics.Get().WhatsAppSendFailuresTotal.Add(ctx, 1)
			if err := d.pacer.Sleep(ctx, RecoveryPause); err != nil {
				return sent
			}
			continue
		}
		sent++
	}
	return sent
}
