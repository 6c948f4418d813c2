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
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/campusaid/aidmap/internal/adapters/http"
	natsadapter "github.com/campusaid/aidmap/internal/adapters/nats"
	"github.com/campusaid/aidmap/internal/adapters/postgres"
	"github.com/campusaid/aidmap/internal/adapters/valkey"
	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/ports"
	"github.com/campusaid/aidmap/internal/core/usecases"
	"github.com/campusaid/aidmap/internal/pkg/config"
	"github.com/campusaid/aidmap/internal/pkg/logging"
	"github.com/campusaid/aidmap/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("aidmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	deps := &http.Dependencies{DB: db, Version: version}

	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr, "aidmap"); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache = c
		deps.Cache = c
	}

	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	// Raw NATS connection for WebSocket relay
	if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer nc.Close()
		deps.NATS = nc
	}

	mapCfg, err := mapConfig(cfg)
	if err != nil {
		log.Fatalf("clustering config: %v", err)
	}

	repo := postgres.NewRequestRepo(db)
	deps.Requests = usecases.NewRequestService(repo, publisher, cache)
	deps.Map = usecases.NewMapService(repo, cache, mapCfg)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024,
		AppName:      "AidMap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "campus", cfg.Campus.Name)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// mapConfig builds the clustering policies from configuration.
func mapConfig(cfg *config.Config) (usecases.MapConfig, error) {
	mc := usecases.DefaultMapConfig()

	policy, err := mc.Policy.WithScaling(cfg.Clustering.Divisor, cfg.Clustering.MinZoom)
	if err != nil {
		return mc, err
	}
	current, err := mc.CurrentLocationPolicy.WithScaling(cfg.Clustering.Divisor, cfg.Clustering.MinZoom)
	if err != nil {
		return mc, err
	}

	mc.Policy = policy
	mc.CurrentLocationPolicy = current
	mc.IndexThreshold = cfg.Clustering.IndexThreshold
	mc.CacheTTLSeconds = cfg.Clustering.CacheTTLSeconds
	mc.DefaultLocation = domain.GeoPoint{Lat: cfg.Campus.Lat, Lon: cfg.Campus.Lon}
	return mc, nil
}
