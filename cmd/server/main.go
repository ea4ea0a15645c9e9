package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/gigmarket-backend/config"
	"github.com/ikkim/gigmarket-backend/internal/app/controller"
	"github.com/ikkim/gigmarket-backend/internal/app/repository"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/ikkim/gigmarket-backend/internal/db"
	"github.com/ikkim/gigmarket-backend/internal/metrics"
	"github.com/ikkim/gigmarket-backend/internal/middleware"
	"github.com/ikkim/gigmarket-backend/internal/router"
	"github.com/ikkim/gigmarket-backend/internal/scheduler"
	"github.com/ikkim/gigmarket-backend/internal/storage"
	"github.com/ikkim/gigmarket-backend/internal/websocket"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"github.com/ikkim/gigmarket-backend/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting GigMarket KYC Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis is optional; without it webhook deliveries are serialized only by
	// the receipt table.
	var locker service.KeyLocker
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, webhook lock disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			locker = redis.NewKeyLocker(redis.GetClient(), "kyc:webhook:", cfg.Webhook.LockTTL)
			defer func() {
				if err := redis.Close(); err != nil {
					logger.Error("Failed to close redis connection", err)
				}
			}()
		}
	}

	objectStorage, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize repositories
	kycRepo := repository.NewKYCRepository(db.GetDB())
	userRepo := repository.NewUserRepository(db.GetDB())
	receiptRepo := repository.NewWebhookReceiptRepository(db.GetDB())

	// Status push hub
	hub := websocket.NewHub()
	go hub.Run(ctx)
	notifier := websocket.NewKYCNotifier(hub)

	// Initialize services
	policy := service.NewKYCPolicy(cfg.KYC)
	kycService := service.NewKYCService(db.GetDB(), kycRepo, objectStorage, policy, notifier, m)
	reviewService := service.NewKYCReviewService(kycRepo, userRepo, m)
	webhookService := service.NewKYCWebhookService(
		db.GetDB(),
		kycRepo,
		receiptRepo,
		policy,
		service.WebhookSettings{
			Secret:       cfg.Webhook.Secret,
			MaxClockSkew: cfg.Webhook.MaxClockSkew,
		},
		locker,
		notifier,
		m,
	)
	if cfg.Webhook.Secret == "" {
		logger.Warn("KYC_WEBHOOK_SECRET is not set, provider webhooks will be rejected", nil)
	}

	// Initialize controllers
	kycController := controller.NewKYCController(kycService, hub, cfg.CORS.AllowedOrigins)
	adminKYCController := controller.NewAdminKYCController(kycService, reviewService)
	webhookController := controller.NewWebhookController(webhookService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Setup router
	r := router.NewRouter(
		kycController,
		adminKYCController,
		webhookController,
		authMiddleware,
		registry,
		cfg,
	)
	engine := r.Setup()

	pruner := scheduler.NewReceiptPruner(receiptRepo, cfg.Scheduler.ReceiptPruneSpec, cfg.Webhook.ReceiptRetention)
	if err := pruner.Start(); err != nil {
		logger.Fatal("Failed to start webhook receipt pruner", err)
	}
	defer pruner.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()

	logger.Info("Shutting down server gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	logger.Info("Server stopped successfully")
}
