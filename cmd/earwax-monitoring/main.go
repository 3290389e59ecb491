package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/earwax-monitoring/internal/api/http"
	"github.com/i474232898/earwax-monitoring/internal/config"
	"github.com/i474232898/earwax-monitoring/internal/earwax"
	"github.com/i474232898/earwax-monitoring/internal/earwax/providers"
	"github.com/i474232898/earwax-monitoring/internal/logging"
	"github.com/i474232898/earwax-monitoring/internal/publish"
	"github.com/i474232898/earwax-monitoring/internal/scheduler"
	"github.com/i474232898/earwax-monitoring/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()

	if err != nil {
		logger.Error("earwax-monitoring stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run wires the service and serves until ctx is done. Every resource opened
// here is released before it returns, on success and on error alike.
func run(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) error {
	tz, err := cfg.TimeZone()
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	// Append-only ledger, optionally fronted by a Redis cache.
	ledger, closeLedger, err := store.NewLedger(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open ledger (%s): %w", cfg.Store.Driver, err)
	}
	defer func() {
		if err := closeLedger(); err != nil {
			logger.Warn("failed to close ledger", zap.Error(err))
		}
	}()

	if cfg.Cache.RedisAddr != "" {
		client, err := store.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable; serving latest from the ledger", zap.Error(err))
		} else {
			defer func() { _ = client.Close() }()
			ledger = store.NewCachedLedger(ledger, client, cfg.Cache.TTL, logger.Named("cache"))
		}
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}
	weatherSource, pollutionSource, err := providers.Select(cfg, providers.NewHTTPClientConfig(httpClient, cfg.FetchMaxRetries))
	if err != nil {
		return fmt.Errorf("configure data sources: %w", err)
	}

	loc, err := providers.ResolveCoordinates(cfg.EarwaxLocation(), cfg.GeocoderAPIKey)
	if err != nil && cfg.PollutionProvider != config.ProviderWeatherAPI {
		return fmt.Errorf("resolve coordinates for %s: %w", loc.Key(), err)
	}

	opts := []earwax.Option{
		earwax.WithLogger(logger.Named("earwax")),
		earwax.WithTimeZone(tz),
		earwax.WithFetchTimeout(cfg.FetchTimeout),
	}
	if cfg.MQTT.Broker != "" {
		pub, err := publish.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err != nil {
			logger.Warn("mqtt unavailable; observations will not be published", zap.Error(err))
		} else {
			defer func() { _ = pub.Close() }()
			opts = append(opts, earwax.WithPublisher(pub))
		}
	}

	// Core service orchestrating sources, engine and ledger.
	service := earwax.NewService(ledger, weatherSource, pollutionSource, loc, cfg.EarwaxProfile(), opts...)

	// Scheduler: one cycle now, then daily at the configured time.
	sched := scheduler.New(cfg.DailyAt, tz, service, logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	logger.Info("scheduler started", zap.String("daily_at", cfg.DailyAt), zap.Time("next_run", sched.NextRun()))

	app := fiber.New(fiber.Config{
		AppName:               "earwax-monitoring",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Reset runs two upstream fetches before it answers.
		WriteTimeout: 2*cfg.FetchTimeout + 5*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "earwax-monitoring",
		})
	})

	httpapi.RegisterRoutes(app, service)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(":" + cfg.Port)
	}()
	logger.Info("listening", zap.String("port", cfg.Port))

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		return fmt.Errorf("fiber server stopped: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	return nil
}
