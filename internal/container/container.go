package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	database "github.com/FACorreiaa/go-trip-planner-ai/app/db"
	"github.com/FACorreiaa/go-trip-planner-ai/config"
	bucketList "github.com/FACorreiaa/go-trip-planner-ai/internal/api/bucket_list"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/chat"
	generativeAI "github.com/FACorreiaa/go-trip-planner-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/intent"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/places"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/session"
	tripPlanning "github.com/FACorreiaa/go-trip-planner-ai/internal/api/trip_planning"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/trips"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/whatsapp"
)

const deliveryDrainTimeout = 30 * time.Second

// Container holds all application dependencies
type Container struct {
	Config            *config.Config
	Logger            *slog.Logger
	Pool              *pgxpool.Pool
	Redis             *redis.Client
	ChatHandler       *chat.HandlerImpl
	BucketListHandler *bucketList.HandlerImpl
	WhatsAppHandler   *whatsapp.HandlerImpl
}

// NewContainer connects the stores and wires every service and handler.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		return nil, err
	}

	maxWait := database.MaxConnWait(cfg)
	pool, err := database.Init(ctx, dbConfig.ConnectionURL, maxWait, logger)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: logger, Pool: pool}
	if !database.WaitForDB(ctx, pool, logger) {
		c.Close()
		return nil, fmt.Errorf("database not ready")
	}

	sessionKV, contextKV, err := c.keyValueStores(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	llm, err := generativeAI.NewCompletionService(ctx, cfg.LLM, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating completion service: %w", err)
	}
	logger.Info("Language model configured", slog.String("provider", llm.Provider()), slog.String("model", cfg.LLM.Model))

	// Repositories
	tripsRepo := trips.NewRepository(pool, logger)
	bucketRepo := bucketList.NewRepository(pool, logger)

	// Services
	placesService := places.NewService(llm, logger)
	classifier := intent.NewClassifier(llm, logger)
	extractor := tripPlanning.NewExtractor(llm, placesService, cfg.Planning.DefaultCurrency, logger)
	matcher := bucketList.NewMatcher(bucketRepo, logger)
	planner := tripPlanning.NewService(extractor, matcher, tripsRepo, cfg.Planning.DefaultCurrency, logger)
	sessions := session.NewStore(sessionKV, cfg.Planning.SessionTTL, logger)
	chatService := chat.NewService(classifier, planner, llm, sessions, session.NewKeyedLocker(), cfg.Relay, cfg.Planning.HistoryLimit, logger)

	sender := whatsapp.NewTwilioSender(cfg.WhatsApp, nil, logger)
	contexts := whatsapp.NewContextManager(contextKV, logger)
	deliverer := whatsapp.NewDeliverer(sender, whatsapp.NewPacer(), logger)
	otp := whatsapp.NewOTPService(sender, cfg.WhatsApp.OTPTTL, logger)
	if cfg.WhatsApp.AuthToken == "" {
		logger.Warn("WhatsApp auth token not set, inbound webhooks will be rejected")
	}
	signatures := whatsapp.NewSignatureVerifier(cfg.WhatsApp.AuthToken, cfg.WhatsApp.WebhookURL)

	// Handlers
	c.ChatHandler = chat.NewHandler(chatService, logger)
	c.BucketListHandler = bucketList.NewHandler(bucketRepo, logger)
	c.WhatsAppHandler = whatsapp.NewHandler(chatService, contexts, deliverer, otp, signatures, logger)
	return c, nil
}

// keyValueStores returns Redis-backed stores when Redis is enabled and reachable,
// otherwise in-process ones.
func (c *Container) keyValueStores(ctx context.Context) (sessions, contexts session.KVStore, err error) {
	rc := c.Config.Repositories.Redis
	if !rc.Enabled {
		c.Logger.Warn("Redis disabled, sessions are kept in process memory")
		return session.NewMemoryKVStore("chat:"), session.NewMemoryKVStore("wa:"), nil
	}

	client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", rc.Addr, err)
	}
	c.Redis = client
	c.Logger.Info("Redis connected", slog.String("addr", rc.Addr))
	return session.NewRedisKVStore(client, "chat:"), session.NewRedisKVStore(client, "wa:"), nil
}

// Close waits for queued WhatsApp deliveries, then releases the stores.
func (c *Container) Close() {
	if c.WhatsAppHandler != nil {
		done := make(chan struct{})
		go func() {
			c.WhatsAppHandler.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(deliveryDrainTimeout):
			c.Logger.Warn("Gave up waiting for WhatsApp deliveries", slog.Duration("waited", deliveryDrainTimeout))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
