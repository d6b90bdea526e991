// Package main runs the event ticketing HTTP server with WebSocket check-in feeds and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reservas-events/backend/config"
	"github.com/reservas-events/backend/internal/attendees"
	"github.com/reservas-events/backend/internal/auth"
	"github.com/reservas-events/backend/internal/events"
	"github.com/reservas-events/backend/internal/middleware"
	"github.com/reservas-events/backend/internal/notifications"
	"github.com/reservas-events/backend/internal/organizations"
	"github.com/reservas-events/backend/internal/purchases"
	"github.com/reservas-events/backend/internal/raffle"
	"github.com/reservas-events/backend/internal/realtime"
	"github.com/reservas-events/backend/internal/tickets"
	"github.com/reservas-events/backend/pkg/broker"
	"github.com/reservas-events/backend/pkg/database"
	"github.com/reservas-events/backend/pkg/queue"
	"github.com/reservas-events/backend/pkg/redis"
	"github.com/reservas-events/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Asset uploads and exports stay disabled without S3; keep the interfaces nil rather than a nil *S3.
	var assets events.AssetSigner
	var exports attendees.ExportStore
	if cfg.AWS.S3Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			assets, exports = s3Client, s3Client
		}
	}

	var publisher broker.Publisher = broker.Noop{}
	if cfg.RabbitMQ.URL != "" {
		mq, err := broker.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Warn("rabbitmq disabled", zap.Error(err))
		} else {
			publisher = mq
		}
	}
	defer publisher.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours), cfg.Auth.SuperAdminEmails, logger)
	authHandler := auth.NewHandler(authSvc, logger)

	// Organizations
	orgSvc := organizations.NewService(organizations.NewRepository(pool), authRepo, logger)
	orgHandler := organizations.NewHandler(orgSvc, logger)

	// Events; the gate is shared by every event-scoped service
	eventRepo := events.NewRepository(pool)
	eventSvc := events.NewService(eventRepo, assets, logger)
	eventHandler := events.NewHandler(eventSvc, logger)
	gate := eventSvc.Gate()

	// Tickets and capacity pools
	ticketHandler := tickets.NewHandler(tickets.NewService(tickets.NewRepository(pool), gate, logger), logger)

	// Purchases
	purchaseHandler := purchases.NewHandler(purchases.NewService(purchases.NewRepository(pool), gate, publisher, jobQueue, logger), logger)

	// Attendees
	attendeeRepo := attendees.NewRepository(pool)
	attendeeHandler := attendees.NewHandler(attendees.NewService(attendeeRepo, eventRepo, hub, exports, logger), logger)

	// Raffle
	raffleHandler := raffle.NewHandler(raffle.NewService(raffle.NewRepository(pool), gate, logger), logger)

	// Notifications
	notificationRepo := notifications.NewRepository(pool)
	notificationHandler := notifications.NewHandler(notifications.NewService(notificationRepo, gate, attendeeRepo, jobQueue, logger), logger)

	bucket := redis.BucketConfig{
		Capacity:       cfg.RateLimit.Capacity,
		RefillTokens:   cfg.RateLimit.RefillTokens,
		RefillInterval: cfg.RateLimit.RefillInterval,
		TTL:            cfg.RateLimit.TTL,
	}
	loginLimit := middleware.RateLimit(redis.NewTokenBucket(rdb.Client, bucket), "login", logger)
	lookupLimit := middleware.RateLimit(redis.NewTokenBucket(rdb.Client, bucket), "ticket-lookup", logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	registerRoutes(router, handlers{
		auth:          authHandler,
		organizations: orgHandler,
		events:        eventHandler,
		attendees:     attendeeHandler,
		tickets:       ticketHandler,
		purchases:     purchaseHandler,
		raffle:        raffleHandler,
		notifications: notificationHandler,
	}, routeDeps{
		authenticate:   authSvc.Authenticate,
		gate:           gate,
		hub:            hub,
		loginLimit:     loginLimit,
		lookupLimit:    lookupLimit,
		allowedOrigins: cfg.Server.CORSAllowedOrigins,
		logger:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Worker.InProcess {
		mailer := notifications.LogMailer{From: cfg.Email.FromAddress, Logger: logger}
		go notifications.NewProcessor(jobQueue, notificationRepo, mailer, logger).Run(workerCtx)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
