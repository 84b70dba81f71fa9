package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appMiddleware "github.com/FACorreiaa/go-trip-planner-ai/app/middleware"
	bucketList "github.com/FACorreiaa/go-trip-planner-ai/internal/api/bucket_list"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/chat"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/whatsapp"

	_ "github.com/FACorreiaa/go-trip-planner-ai/docs"
)

// Config contains dependencies needed for the router setup
type Config struct {
	ChatHandler            chat.Handler
	BucketListHandler      bucketList.Handler
	WhatsAppHandler        whatsapp.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
	OptionalAuthMiddleware func(http.Handler) http.Handler
	WebhookRateLimiter     *appMiddleware.RateLimiter
	OTPRateLimiter         *appMiddleware.RateLimiter
	AllowedOrigins         []string
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, request id, recoverer) is applied in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		// Chat works for guests; a valid token attaches the user so trips can be saved.
		r.Group(func(r chi.Router) {
			r.Use(cfg.OptionalAuthMiddleware)
			r.Post("/chat/stream", cfg.ChatHandler.StreamHandler)
			r.Get("/chat/sessions/{conversationID}", cfg.ChatHandler.GetSessionHandler)
			r.Delete("/chat/sessions/{conversationID}", cfg.ChatHandler.DeleteSessionHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.WebhookRateLimiter.Middleware)
			r.Post("/whatsapp/webhook", cfg.WhatsAppHandler.WebhookHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.OTPRateLimiter.Middleware)
			r.Post("/whatsapp/otp/send", cfg.WhatsAppHandler.SendOTPHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Post("/whatsapp/otp/verify", cfg.WhatsAppHandler.VerifyOTPHandler)
			r.Get("/bucket-list/summary", cfg.BucketListHandler.GetSummaryHandler)
			r.Get("/bucket-list/hierarchy", cfg.BucketListHandler.GetHierarchyHandler)
		})
	})

	return r
}
