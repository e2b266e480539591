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
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/skywatch/internal/api/http"
	"github.com/i474232898/skywatch/internal/config"
	"github.com/i474232898/skywatch/internal/logger"
	"github.com/i474232898/skywatch/internal/netcheck"
	"github.com/i474232898/skywatch/internal/store"
	"github.com/i474232898/skywatch/internal/weather"
	"github.com/i474232898/skywatch/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	// run owns every deferred cleanup, so they complete before the exit.
	err = run(cfg, lg)
	if err != nil {
		lg.Error("skywatch stopped", logger.Error(err))
	}
	_ = lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, lg *logger.Logger) error {

	if cfg.OpenWeatherAPIKey == "" {
		lg.Warn("OPENWEATHER_API_KEY is not set; every search will fail as invalid city")
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider := providers.NewOpenWeatherProvider(httpClient, providers.OpenWeatherConfig{
		BaseURL:    cfg.OpenWeatherBaseURL,
		MaxRetries: cfg.ProviderMaxRetries,
	}, lg)

	reach, stopReach, err := newReachability(cfg, lg)
	if err != nil {
		return err
	}
	defer stopReach()
	lg.Info("reachability ready",
		logger.String("mode", cfg.NetcheckMode),
		logger.Bool("reachable", reach.InternetReachable()))

	// Single-slot store for the current outcome.
	outcomes := store.NewMemoryStore()

	coord := weather.NewCoordinator(provider, reach, outcomes,
		weather.WithOrdering(weather.Ordering(cfg.OutcomeOrdering)),
		weather.WithLogger(lg),
	)

	app := fiber.New(fiber.Config{
		AppName:               "skywatch",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Long-polling GET /weather/current may hold a response for up to 30s.
		WriteTimeout: 40 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "skywatch",
			"reachable": reach.InternetReachable(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, coord, httpapi.Options{
		Credential: cfg.OpenWeatherAPIKey,
		Location:   cfg.DisplayLocation,
	})

	go func() {
		lg.Info("listening", logger.String("addr", cfg.Addr()))
		if err := app.Listen(cfg.Addr()); err != nil {
			lg.Error("fiber server stopped", logger.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", logger.Error(err))
	}
	if err := coord.Shutdown(shutdownCtx); err != nil {
		lg.Warn("in-flight fetches abandoned", logger.Error(err))
	}
	return nil
}

// newReachability builds the checker selected by NETCHECK_MODE and returns
// a func that releases it.
func newReachability(cfg *config.AppConfig, lg *logger.Logger) (weather.Reachability, func(), error) {
	switch cfg.NetcheckMode {
	case config.NetcheckOff:
		return netcheck.Static(true), func() {}, nil
	case config.NetcheckProbe:
		p := netcheck.NewProber(cfg.NetcheckTarget, cfg.NetcheckInterval, netcheck.NewInterfaceChecker(), lg)
		if err := p.Start(); err != nil {
			return nil, nil, fmt.Errorf("start reachability checker: %w", err)
		}
		return p, p.Stop, nil
	default:
		return netcheck.NewInterfaceChecker(), func() {}, nil
	}
}
