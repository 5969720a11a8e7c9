package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/taxiportal/internal/adapters/dispatch"
	natsadapter "github.com/samirrijal/taxiportal/internal/adapters/nats"
	"github.com/samirrijal/taxiportal/internal/adapters/postgres"
	"github.com/samirrijal/taxiportal/internal/pkg/config"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
	"github.com/samirrijal/taxiportal/internal/workflows"
)

func main() {
	cfg, err := config.Load("taxiportal-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	gateway, err := dispatch.New(dispatch.Config{
		BaseURL: cfg.Dispatch.BaseURL,
		APIKey:  cfg.Dispatch.APIKey,
		Timeout: cfg.Dispatch.Timeout,
	})
	if err != nil {
		log.Fatalf("dispatch: %v", err)
	}

	acts := &workflows.BookingActivities{
		Gateway:      gateway,
		Reservations: postgres.NewReservationRepo(db),
	}
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, booking events will not be published", "error", err)
	} else {
		defer pub.Close()
		acts.Events = pub
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.BookingWorkflow)
	w.RegisterActivity(acts)

	slog.Info("booking worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
