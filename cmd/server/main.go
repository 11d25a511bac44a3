package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/archive"
	"github.com/dzekuza/pav4-sub004/internal/attribution"
	"github.com/dzekuza/pav4-sub004/internal/config"
	"github.com/dzekuza/pav4-sub004/internal/forwarder"
	httpHandler "github.com/dzekuza/pav4-sub004/internal/handler/http"
	"github.com/dzekuza/pav4-sub004/internal/publisher"
	"github.com/dzekuza/pav4-sub004/internal/ratelimit"
	"github.com/dzekuza/pav4-sub004/internal/repository/postgres"
	redisRepo "github.com/dzekuza/pav4-sub004/internal/repository/redis"
	"github.com/dzekuza/pav4-sub004/internal/service"
	"github.com/dzekuza/pav4-sub004/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	shutdownTimeout = 30 * time.Second
	openAPIPath     = "api/openapi.json"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.App.LogLevel)
	appLogger.Info("Starting referral attribution service",
		"environment", cfg.App.Environment,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	db, err := postgres.InitDB(
		ctx,
		cfg.Database.DatabaseDSN(),
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()
	appLogger.Info("Database connection established")

	if err := postgres.Migrate(ctx, db, appLogger.Logger); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	businessRepo := postgres.NewBusinessRepository(db)
	referralRepo := postgres.NewReferralRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	checkoutRepo := postgres.NewCheckoutRepository(db)
	journeyRepo := postgres.NewJourneyRepository(db)

	var (
		businessCache service.BusinessCache
		dedupe        service.Deduplicator
		limiter       ratelimit.Limiter
		redisClient   *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisRepo.InitRedis(cfg.Redis.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache and dedupe", "error", err)
		} else {
			defer redisClient.Close()
			businessCache = redisRepo.NewBusinessCache(redisClient, cfg.Redis.CacheTTL)
			dedupe = redisRepo.NewDeduplicator(redisClient, "webhook", cfg.Tracking.DedupeTTL)
			appLogger.Info("Redis connection established")
		}
	}

	if cfg.App.RateLimitEnabled {
		if redisClient != nil {
			limiter = ratelimit.NewRedisLimiter(redisClient, cfg.App.RateLimitPerMinute, time.Minute)
		} else {
			limiter = ratelimit.NewLocalLimiter(cfg.App.RateLimitPerMinute, time.Minute)
		}
	}

	var (
		webhookForwarder service.Forwarder
		payloadArchive   service.Archiver
		eventPublisher   service.Publisher
	)
	if cfg.Tracking.ForwardURL != "" {
		webhookForwarder = forwarder.New(cfg.Tracking.ForwardURL, cfg.Tracking.ForwardAPIKey, cfg.Tracking.ForwardTimeout)
	}
	if cfg.Archive.Enabled {
		archiver, err := archive.NewMinIOArchiver(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			log.Fatalf("Archive setup failed: %v", err)
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			appLogger.Warn("Archive bucket check failed", "bucket", cfg.Archive.Bucket, "error", err)
		}
		payloadArchive = archiver
	}
	if cfg.Kafka.Enabled {
		kafka, err := publisher.NewKafkaPublisher(publisher.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, appLogger)
		if err != nil {
			log.Fatalf("Kafka setup failed: %v", err)
		}
		defer kafka.Close()
		eventPublisher = kafka
	}

	resolver := service.NewBusinessResolver(businessRepo, businessCache, appLogger)
	composer := attribution.NewComposer(cfg.Tracking.ErrorPageURL, appLogger.Logger)

	webhookService := service.NewWebhookService(resolver, orderRepo, checkoutRepo, service.WebhookSinks{
		Dedupe:    dedupe,
		Archive:   payloadArchive,
		Forwarder: webhookForwarder,
	}, appLogger)

	handler := httpHandler.NewHandler(httpHandler.Services{
		Referrals: service.NewReferralService(resolver, referralRepo, composer, appLogger),
		Analytics: service.NewAnalyticsService(resolver, orderRepo, referralRepo, checkoutRepo, journeyRepo, appLogger),
		Tracking:  service.NewTrackingService(resolver, referralRepo, journeyRepo, eventPublisher, appLogger),
		Webhooks:  webhookService,
		DB:        db,
	}, appLogger)

	router := httpHandler.NewRouter(handler, httpHandler.RouterConfig{
		AllowedOrigins: cfg.App.CORSAllowedOrigins,
		Limiter:        limiter,
		EnableMetrics:  cfg.App.EnableMetrics,
		OpenAPIPath:    openAPIPath,
	}, appLogger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited gracefully")
}
