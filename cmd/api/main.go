package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/placemap/internal/adapters/device"
	"github.com/samirrijal/placemap/internal/adapters/http"
	natsadapter "github.com/samirrijal/placemap/internal/adapters/nats"
	"github.com/samirrijal/placemap/internal/adapters/nominatim"
	"github.com/samirrijal/placemap/internal/adapters/scene"
	"github.com/samirrijal/placemap/internal/adapters/valkey"
	"github.com/samirrijal/placemap/internal/core/ports"
	"github.com/samirrijal/placemap/internal/core/usecases"
	"github.com/samirrijal/placemap/internal/pkg/config"
	"github.com/samirrijal/placemap/internal/pkg/logging"
	"github.com/samirrijal/placemap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("placemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Cache
	var cache *valkey.Cache
	var geocodeCache ports.CacheService
	if cfg.Valkey.Enabled {
		cache, err = valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
		if err != nil {
			slog.Warn("valkey unavailable, geocode cache disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			geocodeCache = cache
		}
	}

	// NATS: session events out, WebSocket relay in
	var publisher ports.EventPublisher
	var subscriber ports.EventSubscriber
	var natsPub *natsadapter.Publisher
	if cfg.NATS.Enabled {
		natsPub, err = natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, session events disabled", "error", err)
			natsPub = nil
		} else {
			defer natsPub.Close()
			publisher = natsPub
			subscriber = natsadapter.NewSubscriber(natsPub.Conn())
		}
	}

	// Geocoding
	upstream := nominatim.New(nominatim.Options{
		BaseURL:           cfg.Geocoder.BaseURL,
		UserAgent:         cfg.Geocoder.UserAgent,
		AcceptLanguage:    cfg.Geocoder.AcceptLanguage,
		CountryCodes:      cfg.Geocoder.CountryCodes,
		Timeout:           cfg.Geocoder.Timeout,
		RequestsPerSecond: cfg.Geocoder.RequestsPerSecond,
	})
	geocoder := usecases.NewGeocodeService(upstream, geocodeCache, cfg.Geocoder.CacheTTL, cfg.Geocoder.NegativeCacheTTL,
		time.Duration(cfg.Server.RequestTimeout)*time.Second)

	// Sessions
	sessions := usecases.NewSessionService(
		geocoder,
		publisher,
		func(id string) ports.RenderedDisplay { return scene.New(id, publisher) },
		func(id string) ports.DeviceLocation { return device.NewLocation(id, publisher) },
		usecases.SessionOptions{
			IdleTTL:     cfg.Sessions.IdleTTL,
			MaxSessions: cfg.Sessions.Max,
		},
	)
	go sessions.Run(ctx, cfg.Sessions.SweepInterval)

	deps := &http.Dependencies{
		Sessions:       sessions,
		Geocoder:       geocoder,
		Events:         subscriber,
		Cache:          cache,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}
	if natsPub != nil {
		deps.NATS = natsPub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // search bodies are tiny
		AppName:      "PlaceMap API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "geocoder", cfg.Geocoder.BaseURL)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped", "open_sessions", sessions.Count())
}
