package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nomadhq/popup-registration/internal/api"
	"github.com/nomadhq/popup-registration/internal/cache"
	"github.com/nomadhq/popup-registration/internal/config"
	"github.com/nomadhq/popup-registration/internal/gateway"
	"github.com/nomadhq/popup-registration/internal/lock"
	"github.com/nomadhq/popup-registration/internal/notify"
	"github.com/nomadhq/popup-registration/internal/pricing"
	"github.com/nomadhq/popup-registration/internal/repository"
	"github.com/nomadhq/popup-registration/internal/service"
	"github.com/nomadhq/popup-registration/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("popup-registration"); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting popup registration service")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.InitDB(db); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	applications := repository.NewApplicationRepository(db)
	products := repository.NewProductRepository(db)
	coupons := repository.NewCouponRepository(db)
	groups := repository.NewGroupRepository(db)
	popupCities := repository.NewPopupCityRepository(db)
	payments := repository.NewPaymentRepository(db)

	// Connect to Redis (advisory locks)
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	locker := lock.NewRedisLocker(redisClient)

	// Connect to NATS (mailer events)
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Connect to Kafka (payment status events)
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "payment.status.changed",
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	notifier := notify.New(kafkaWriter, nc)
	engine := pricing.NewEngine(products, coupons, groups)
	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL)
	webhookCache := cache.New(cfg.WebhookCacheTTL)

	orchestrator := service.NewOrchestrator(
		applications, payments, coupons, popupCities,
		engine, gatewayClient, webhookCache, locker, notifier,
	)

	r := api.NewRouter(applications, payments, orchestrator)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Popup registration service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
