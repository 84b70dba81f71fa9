package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ChatTurnsTotal            metric.Int64Counter
	ChatTurnDurationSeconds   metric.Float64Histogram
	LLMRequestsTotal          metric.Int64Counter
	LLMRequestErrorsTotal     metric.Int64Counter
	BudgetFallbackTotal       metric.Int64Counter
	TripsPersistedTotal       metric.Int64Counter
	WhatsAppSendFailuresTotal metric.Int64Counter
	DbQueryDurationSeconds    metric.Float64Histogram
	DbQueryErrorsTotal        metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider, so call it after
// the tracer package has installed the prometheus-backed provider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TripPlannerAI")
		var err error
		m := &AppMetrics{}

		m.ChatTurnsTotal, err = meter.Int64Counter(
			"chat_turns_total",
			metric.WithDescription("Total number of conversation turns processed"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turns_total: %v", err)
		}

		m.ChatTurnDurationSeconds, err = meter.Float64Histogram(
			"chat_turn_duration_seconds",
			metric.WithDescription("Duration of a full conversation turn in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turn_duration_seconds: %v", err)
		}

		m.LLMRequestsTotal, err = meter.Int64Counter(
			"llm_requests_total",
			metric.WithDescription("Total number of completion and stream requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_requests_total: %v", err)
		}

		m.LLMRequestErrorsTotal, err = meter.Int64Counter(
			"llm_request_errors_total",
			metric.WithDescription("Total number of failed completion and stream requests"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_request_errors_total: %v", err)
		}

		m.BudgetFallbackTotal, err = meter.Int64Counter(
			"budget_fallback_total",
			metric.WithDescription("Budget inference stages that ended on a fallback constant"),
			metric.WithUnit("{fallback}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create budget_fallback_total: %v", err)
		}

		m.TripsPersistedTotal, err = meter.Int64Counter(
			"trips_persisted_total",
			metric.WithDescription("Trips created or updated on confirmation"),
			metric.WithUnit("{trip}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create trips_persisted_total: %v", err)
		}

		m.WhatsAppSendFailuresTotal, err = meter.Int64Counter(
			"whatsapp_send_failures_total",
			metric.WithDescription("Outbound WhatsApp segments that failed to send"),
			metric.WithUnit("{message}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create whatsapp_send_failures_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the global AppMetrics. Packages and tests that run before startup wiring
// get instruments from whatever provider is global at that point (the otel no-op by default).
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
