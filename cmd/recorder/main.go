package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/taxiportal/internal/adapters/nats"
	"github.com/samirrijal/taxiportal/internal/adapters/postgres"
	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/usecases"
	"github.com/samirrijal/taxiportal/internal/pkg/config"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
)

// recorder persists the activity feed from the broker, audits reservation
// events and relays queued emails.
func main() {
	cfg, err := config.Load("taxiportal-recorder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// NATS
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	activities := usecases.NewActivityService(postgres.NewActivityRepo(db), nil)

	if err := sub.SubscribeActivities(ctx, func(ctx context.Context, a *domain.Activity) error {
		if err := activities.Record(ctx, a); err != nil {
			slog.Error("record activity", "user_id", a.UserID, "type", a.Type, "error", err)
			return err
		}
		return nil
	}); err != nil {
		log.Fatalf("subscribe activities: %v", err)
	}

	if err := sub.SubscribeReservationEvents(ctx, func(ctx context.Context, e *domain.ReservationEvent) error {
		slog.Info("reservation event",
			"kind", e.Kind,
			"user_id", e.UserID,
			"booking_id", e.BookingID,
			"lag", time.Since(e.Time).Round(time.Millisecond),
		)
		return nil
	}); err != nil {
		log.Fatalf("subscribe reservation events: %v", err)
	}

	// TODO: deliver through an SMTP relay once the mail provider is chosen.
	if err := sub.SubscribeEmails(ctx, func(ctx context.Context, m *natsadapter.EmailMessage) error {
		slog.Info("email delivered", "to", m.To, "subject", m.Subject, "queued_at", m.Queued)
		return nil
	}); err != nil {
		log.Fatalf("subscribe emails: %v", err)
	}

	slog.Info("recorder started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down recorder", "signal", sig.String())
	cancel()
}
