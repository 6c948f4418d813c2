package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/campusaid/aidmap/internal/adapters/nats"
	"github.com/campusaid/aidmap/internal/adapters/postgres"
	"github.com/campusaid/aidmap/internal/adapters/valkey"
	"github.com/campusaid/aidmap/internal/core/ports"
	"github.com/campusaid/aidmap/internal/core/usecases"
	"github.com/campusaid/aidmap/internal/pkg/config"
	"github.com/campusaid/aidmap/internal/pkg/logging"
	"github.com/campusaid/aidmap/internal/pkg/telemetry"
	"github.com/campusaid/aidmap/internal/workflows"
)

const (
	sweepCron      = "*/5 * * * *"
	expiryConsumer = "aidmap-expiry"
)

func main() {
	cfg, err := config.Load("aidmap-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
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

	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, expiry events will not be published", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	scheduler := workflows.NewScheduler(c, cfg.Temporal.TaskQueue)
	expiry := usecases.NewExpiryService(postgres.NewRequestRepo(db), publisher, scheduler)
	if cfg.Valkey.Addr != "" {
		if vc, err := valkey.New(cfg.Valkey.Addr, "aidmap"); err != nil {
			slog.Warn("valkey unavailable, cached requests expire by TTL", "error", err)
		} else {
			defer vc.Close()
			expiry.WithCache(vc)
		}
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.RequestExpiryWorkflow)
	w.RegisterWorkflow(workflows.ExpirySweepWorkflow)
	w.RegisterActivity(&workflows.ExpiryActivities{Expiry: expiry})

	if err := scheduler.StartSweep(ctx, sweepCron); err != nil {
		slog.Warn("expiry sweep not scheduled", "error", err)
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, expiryConsumer)
	if err != nil {
		slog.Warn("nats subscriber unavailable, relying on sweep", "error", err)
	} else {
		defer sub.Close()
		if err := sub.SubscribeRequestChanges(ctx, expiry.HandleRequestEvent); err != nil {
			slog.Warn("subscribe to request changes failed", "error", err)
		}
	}

	slog.Info("expiry worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
