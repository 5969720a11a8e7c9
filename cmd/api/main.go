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
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/taxiportal/internal/adapters/dispatch"
	"github.com/samirrijal/taxiportal/internal/adapters/http"
	natsadapter "github.com/samirrijal/taxiportal/internal/adapters/nats"
	"github.com/samirrijal/taxiportal/internal/adapters/postgres"
	"github.com/samirrijal/taxiportal/internal/adapters/valkey"
	"github.com/samirrijal/taxiportal/internal/core/geofence"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/core/usecases"
	"github.com/samirrijal/taxiportal/internal/core/wizard"
	"github.com/samirrijal/taxiportal/internal/pkg/config"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
	"github.com/samirrijal/taxiportal/internal/pkg/telemetry"
	"github.com/samirrijal/taxiportal/internal/workflows"
)

func main() {
	cfg, err := config.Load("taxiportal-api")
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

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache. Two-factor codes and reset tokens need it, so it is required.
	cache, err := valkey.New(cfg.Valkey.Addr, valkey.Options{
		Prefix:   cfg.Valkey.KeyPrefix,
		LocalTTL: cfg.Valkey.LocalTTL,
	})
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	// NATS. Events and emails are dropped while it is unavailable.
	var (
		events   ports.EventPublisher
		notifier ports.NotificationService = logNotifier{}
	)
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events, notifier = pub, pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Dispatch API
	gateway, err := dispatch.New(dispatch.Config{
		BaseURL: cfg.Dispatch.BaseURL,
		APIKey:  cfg.Dispatch.APIKey,
		Timeout: cfg.Dispatch.Timeout,
	})
	if err != nil {
		log.Fatalf("dispatch: %v", err)
	}

	// Repos
	userRepo := postgres.NewUserRepo(db)
	locationRepo := postgres.NewLocationRepo(db)
	reservationRepo := postgres.NewReservationRepo(db)
	activityRepo := postgres.NewActivityRepo(db)

	// Submission goes through Temporal when enabled, otherwise in-process.
	var submitter ports.ReservationSubmitter = usecases.NewBookingService(gateway, reservationRepo, events, nil)
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			log.Fatalf("temporal client: %v", err)
		}
		defer tc.Close()
		submitter = workflows.NewSubmitter(tc, cfg.Temporal.TaskQueue)
		slog.Info("submitting reservations through temporal", "task_queue", cfg.Temporal.TaskQueue)
	}

	fence, err := geofence.New(geofence.Config{
		Enabled:      cfg.Geofence.Enabled,
		Polygon:      cfg.Geofence.ServicePolygon(),
		ErrorMessage: cfg.Geofence.ErrorMessage,
	})
	if err != nil {
		log.Fatalf("geofence: %v", err)
	}

	// Use cases
	authSvc := usecases.NewAuthService(userRepo, cache, notifier, events, nil, usecases.AuthConfig{
		Secret:          []byte(cfg.Auth.JWTSecret),
		AccessTTL:       cfg.Auth.AccessTTL,
		RefreshTTL:      cfg.Auth.RefreshTTL,
		TwoFactorTTL:    cfg.Auth.TwoFactorTTL,
		BcryptCost:      cfg.Auth.BcryptCost,
		PasswordMinSize: cfg.Auth.PasswordMinSize,
	})
	locationSvc := usecases.NewLocationService(locationRepo, cache)
	wizardSvc := usecases.NewWizardService(
		wizard.Config{MinLeadTime: cfg.Wizard.MinLeadTime, AirportKeyword: cfg.Wizard.AirportKeyword},
		wizard.Deps{Fence: fence, Submitter: submitter},
		locationSvc,
		cfg.Wizard.IdleTTL,
	)
	reservationSvc := usecases.NewReservationService(reservationRepo, gateway, events, nil)
	activitySvc := usecases.NewActivityService(activityRepo, nil)

	go wizardSvc.Run(ctx, time.Minute)
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				metrics.UpdateDBPoolMetrics(db.Stat())
			}
		}
	}()

	deps := &http.Dependencies{
		Auth:           authSvc,
		Locations:      locationSvc,
		Wizards:        wizardSvc,
		Reservations:   reservationSvc,
		Activities:     activitySvc,
		Fence:          fence,
		LoginRateLimit: cfg.Auth.LoginRateLimit,
		NATS:           natsConn,
		DB:             db,
		Cache:          cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Taxi Portal API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// logNotifier stands in for the mail queue while NATS is down.
type logNotifier struct{}

func (logNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	logging.FromContext(ctx).Warn("email not queued, broker unavailable", "to", to, "subject", subject)
	return nil
}
