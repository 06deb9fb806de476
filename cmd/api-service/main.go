package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fileforge/fileforge/internal/api/handler"
	"github.com/fileforge/fileforge/internal/api/router"
	"github.com/fileforge/fileforge/internal/cloudstore"
	"github.com/fileforge/fileforge/internal/config"
	"github.com/fileforge/fileforge/internal/conversion"
	"github.com/fileforge/fileforge/internal/convert"
	"github.com/fileforge/fileforge/internal/events"
	"github.com/fileforge/fileforge/internal/metrics"
	"github.com/fileforge/fileforge/internal/quota"
	"github.com/fileforge/fileforge/internal/ratelimit"
	"github.com/fileforge/fileforge/internal/storage"
	"github.com/fileforge/fileforge/internal/webhook"
	"github.com/fileforge/fileforge/shared/logger"
	"github.com/fileforge/fileforge/shared/postgresql"
	"github.com/fileforge/fileforge/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting conversion API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Lifecycle events are optional; without a broker host publishing is off
	var broker events.Broker
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Host != "" {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		broker = rabbitClient
		appLogger.Info("RabbitMQ connection established")
	} else {
		appLogger.Info("RabbitMQ not configured, lifecycle events disabled")
	}

	// Admission counter: Redis when configured, in-process otherwise
	var counter ratelimit.Counter
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		counter = ratelimit.NewRedisCounter(redisClient, cfg.Redis.Prefix)
		appLogger.Info("Redis rate limit counter enabled", slog.String("addr", cfg.Redis.Addr))
	} else {
		counter = ratelimit.NewMemoryCounter()
		appLogger.Info("Redis not configured, using in-process rate limit counter")
	}

	// Output storage: S3 when enabled, inline bytes otherwise
	var store cloudstore.Store = cloudstore.DisabledStore{}
	if cfg.Storage.Enabled {
		store = cloudstore.NewS3Store(&cloudstore.Config{
			Bucket:       cfg.Storage.Bucket,
			Region:       cfg.Storage.Region,
			AccessKey:    cfg.Storage.AccessKey,
			SecretKey:    cfg.Storage.SecretKey,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.UsePathStyle,
		})
		appLogger.Info("S3 output storage enabled", slog.String("bucket", cfg.Storage.Bucket))
	}

	registry, err := initRegistry(&cfg.Converter)
	if err != nil {
		return fmt.Errorf("failed to initialize converter registry: %w", err)
	}

	appLogger.Info("Converter registry initialized",
		slog.Any("pairs", registry.Pairs()),
	)

	notifier := webhook.NewNotifier(webhook.Config{
		Workers:   cfg.Webhook.Workers,
		QueueSize: cfg.Webhook.QueueSize,
		Timeout:   cfg.Webhook.Timeout,
	}, appLogger.Logger)

	ledger := quota.NewLedger(
		storage.NewQuotaStorage(dbClient),
		quota.Defaults{
			ConversionsLimit: cfg.Quota.DefaultConversionsLimit,
			BytesLimit:       cfg.Quota.DefaultBytesLimit,
		},
		appLogger.Logger,
	)

	resolver := ratelimit.NewResolver(
		storage.NewSettingsStorage(dbClient),
		ratelimit.Options{
			Tiers:          cfg.RateLimit.Tiers,
			AdminExemption: cfg.RateLimit.AdminExemption,
			CacheTTL:       cfg.RateLimit.CacheTTL,
		},
		appLogger.Logger,
	)

	conversionService := conversion.NewService(conversion.Dependencies{
		Jobs:     storage.NewJobStorage(dbClient),
		Quota:    ledger,
		Registry: registry,
		Store:    store,
		Notifier: notifier,
		Events:   events.NewPublisher(broker, appLogger.Logger),
		Metrics:  metrics.NewPrometheusRecorder(),
		Logger:   appLogger.Logger,
	})

	batchProcessor := conversion.NewBatchProcessor(map[string]conversion.Submitter{
		"document": conversionService,
		"image":    conversionService,
	}, appLogger.Logger)

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, conversionService, batchProcessor, dbClient, ledger, resolver, counter)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Conversion API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		notifier.Close()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
		if redisClient != nil {
			redisClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client for lifecycle events
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		User:          cfg.User,
		Password:      cfg.Password,
		VHost:         cfg.VHost,
		Exchange:      cfg.Exchange,
		RoutingKey:    cfg.RoutingKey,
		RetryAttempts: cfg.RetryAttempts,
		RetryInterval: cfg.RetryInterval,
		Heartbeat:     cfg.Heartbeat,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRegistry builds the converter registry from the configured format pairs.
// Every pair shares one HTTP client against the conversion engine.
func initRegistry(cfg *config.ConverterConfig) (*convert.Registry, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	registry := convert.NewRegistry()
	for _, pair := range cfg.Pairs {
		if pair.Source == "" || pair.Target == "" || pair.Route == "" {
			return nil, fmt.Errorf("converter pair %q -> %q needs source, target, and route", pair.Source, pair.Target)
		}
		registry.Register(pair.Source, pair.Target, convert.NewRemoteConverter(cfg.BaseURL, pair.Route, "input", client))
	}

	return registry, nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(
	cfg *config.Config,
	logger *slog.Logger,
	conversions *conversion.Service,
	batches *conversion.BatchProcessor,
	dbClient *postgresql.Client,
	ledger *quota.Ledger,
	resolver *ratelimit.Resolver,
	counter ratelimit.Counter,
) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	handlerDeps := &handler.Dependencies{
		Logger:      logger,
		Conversions: conversions,
		Batches:     batches,
		Jobs:        storage.NewJobStorage(dbClient),
		Quotas:      ledger,
		Limits:      resolver,
	}

	return router.SetupRouter(handlerDeps, ratelimit.NewLimiter(counter))
}
