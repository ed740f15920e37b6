package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/hookbridge/hookbridge/internal/archive"
	"github.com/hookbridge/hookbridge/internal/config"
	"github.com/hookbridge/hookbridge/internal/dlq"
	"github.com/hookbridge/hookbridge/internal/handlers"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/ratelimit"
	"github.com/hookbridge/hookbridge/internal/repository"
	"github.com/hookbridge/hookbridge/internal/router"
	"github.com/hookbridge/hookbridge/internal/server"
	"github.com/hookbridge/hookbridge/internal/service"
	"github.com/hookbridge/hookbridge/internal/verifier"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("gateway"))
	logging.SetDefault(logger)

	slog.Info("Starting webhook gateway",
		slog.Int("port", cfg.Server.Port),
		slog.Int("sources", len(cfg.Sources)),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Run database migrations
	m, err := migrate.New("file://"+cfg.Database.MigrationsPath, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database migrations applied")

	// Initialize store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := repository.NewPostgresStore(ctx, cfg.Database.URL)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	// Initialize signature verification registry
	verifierRegistry, err := verifier.NewRegistry(cfg.Sources)
	if err != nil {
		log.Fatalf("Failed to build verifier registry: %v", err)
	}

	// Initialize rate limiter
	var rateLimiter ratelimit.RateLimiter
	if cfg.Redis.Enabled && cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewRedisRateLimiter(
			cfg.Redis.URL,
			cfg.RateLimit.Requests,
			cfg.RateLimit.Window,
		)
		if err != nil {
			log.Printf("WARNING: Failed to initialize Redis rate limiter: %v", err)
			log.Println("Continuing without rate limiting")
			rateLimiter = &ratelimit.NoOpRateLimiter{}
		} else {
			rateLimiter = limiter
			log.Printf("Rate limiting enabled: %d requests per %s per source", cfg.RateLimit.Requests, cfg.RateLimit.Window)
		}
	} else {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
		log.Println("Rate limiting disabled")
	}
	defer rateLimiter.Close()

	// Initialize dead letter recorder
	var recorder dlq.Recorder = dlq.NewStoreRecorder(store)
	switch cfg.DLQ.Backend {
	case "store", "":
		log.Println("Dead letter queue backend: store")
	case "jetstream":
		jsCtx, jsCancel := context.WithTimeout(context.Background(), 10*time.Second)
		jsRecorder, err := dlq.NewJetStreamRecorder(jsCtx, cfg.DLQ.NatsURL)
		jsCancel()
		if err != nil {
			log.Fatalf("Failed to initialize JetStream DLQ: %v", err)
		}
		defer jsRecorder.Close()
		recorder = dlq.MultiRecorder{dlq.NewStoreRecorder(store), jsRecorder}
		log.Printf("Dead letter queue backend: store + jetstream (nats: %s)", cfg.DLQ.NatsURL)
	default:
		log.Fatalf("Unknown DLQ backend: %s (supported: store, jetstream)", cfg.DLQ.Backend)
	}

	// Initialize topic handlers
	topicRegistry := router.NewRegistry(
		router.NewDeploymentHandler(store),
		router.NewIncidentHandler(store),
	)
	slog.Info("Topic handlers registered", slog.Any("topics", topicRegistry.Topics()))

	// Initialize gateway pipeline
	gateway := service.NewGatewayService(store, topicRegistry, recorder, logger)

	// Optional audit archive
	if cfg.Archive.Enabled {
		archiveClient, err := archive.NewClient(archive.Config{
			URL:           cfg.Archive.URL,
			Username:      cfg.Archive.Username,
			Password:      cfg.Archive.Password,
			TLSSkipVerify: cfg.Archive.TLSSkipVerify,
			Index:         cfg.Archive.Index,
		})
		if err != nil {
			log.Fatalf("Failed to create audit archive client: %v", err)
		}
		initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := archiveClient.Initialize(initCtx); err != nil {
			log.Printf("WARNING: Failed to initialize audit archive: %v", err)
			log.Println("Audit records may fail to index until OpenSearch is reachable")
		}
		initCancel()
		gateway.SetArchiver(archiveClient)
		log.Printf("Audit archive enabled (index: %s)", cfg.Archive.Index)
	}

	// Initialize HTTP handlers
	webhookHandler := handlers.NewWebhookHandler(
		cfg.Sources, verifierRegistry, gateway, rateLimiter, logger, cfg.Server.MaxBodySize,
	)
	adminHandler := handlers.NewAdminHandler(store)
	mux := server.NewRouter(webhookHandler, adminHandler)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Webhook gateway listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
