// Package main runs the background worker: queued email delivery and the purchase event consumer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reservas-events/backend/config"
	"github.com/reservas-events/backend/internal/notifications"
	"github.com/reservas-events/backend/pkg/broker"
	"github.com/reservas-events/backend/pkg/database"
	"github.com/reservas-events/backend/pkg/queue"
	"github.com/reservas-events/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	mailer := notifications.LogMailer{From: cfg.Email.FromAddress, Logger: logger}
	processor := notifications.NewProcessor(jobQueue, notifications.NewRepository(pool), mailer, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	if cfg.RabbitMQ.URL != "" {
		go broker.Consume(workerCtx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, "purchase.*", purchaseEventLogger(logger), logger)
	}
	logger.Info("worker started", zap.Bool("broker", cfg.RabbitMQ.URL != ""))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	if n, err := jobQueue.DeadLetterCount(context.Background()); err == nil && n > 0 {
		logger.Warn("dead-lettered email jobs pending", zap.Int64("count", n))
	}
	logger.Info("worker stopped")
}

// purchaseEventLogger records purchase lifecycle events. Malformed or unknown events are rejected.
func purchaseEventLogger(logger *zap.Logger) broker.Handler {
	return func(_ context.Context, routingKey string, body []byte) error {
		var ev broker.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		switch routingKey {
		case broker.PurchaseCreated, broker.PurchaseStatusChanged:
		default:
			return fmt.Errorf("unexpected routing key %q", routingKey)
		}
		var purchase struct {
			ID       string `json:"id"`
			EventID  string `json:"event_id"`
			Status   string `json:"status"`
			Quantity int    `json:"quantity"`
			Previous string `json:"previous_status"`
		}
		if err := json.Unmarshal(ev.Data, &purchase); err != nil {
			return fmt.Errorf("decode purchase: %w", err)
		}
		logger.Info("purchase event",
			zap.String("type", ev.Type),
			zap.Time("occurred_at", ev.OccurredAt),
			zap.String("purchase_id", purchase.ID),
			zap.String("event_id", purchase.EventID),
			zap.String("status", purchase.Status),
			zap.Int("quantity", purchase.Quantity),
			zap.String("previous_status", purchase.Previous),
		)
		return nil
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
