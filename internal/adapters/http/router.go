package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

func rateLimited(c *fiber.Ctx) error {
	return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:          120,
		Expiration:   1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimited,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(LegacyRoutes))

	// Health & readiness (no timeout: fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	t := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }
	requireAuth := AuthMiddleware(deps.Auth)

	loginMax := deps.LoginRateLimit
	if loginMax <= 0 {
		loginMax = 10
	}
	authLimiter := limiter.New(limiter.Config{
		Max:          loginMax,
		Expiration:   1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return "auth:" + c.IP() },
		LimitReached: rateLimited,
	})

	v1 := app.Group("/v1")

	// Authentication
	v1.Post("/auth/login", authLimiter, t(LoginHandler(deps)))
	v1.Post("/auth/verify-2fa", authLimiter, t(VerifyTwoFactorHandler(deps)))
	v1.Post("/auth/refresh", t(RefreshHandler(deps)))
	v1.Post("/auth/forgot-password", authLimiter, t(ForgotPasswordHandler(deps)))
	v1.Post("/auth/reset-password", authLimiter, t(ResetPasswordHandler(deps)))
	v1.Get("/auth/me", requireAuth, t(MeHandler(deps)))

	// Profile
	v1.Put("/profile", requireAuth, t(UpdateProfileHandler(deps)))
	v1.Post("/profile/password", requireAuth, t(ChangePasswordHandler(deps)))
	v1.Post("/profile/2fa/enable", requireAuth, t(EnableTwoFactorHandler(deps)))
	v1.Post("/profile/2fa/confirm", requireAuth, t(ConfirmTwoFactorHandler(deps)))
	v1.Post("/profile/2fa/disable", requireAuth, t(DisableTwoFactorHandler(deps)))

	// Locations and service area
	v1.Get("/locations", t(ListLocationsHandler(deps)))
	v1.Get("/locations/search", t(SearchLocationsHandler(deps)))
	v1.Get("/service-area", ServiceAreaHandler(deps))

	// Reservation wizard
	v1.Post("/wizards", requireAuth, StartWizardHandler(deps))
	v1.Get("/wizards/:id", requireAuth, GetWizardHandler(deps))
	v1.Patch("/wizards/:id", requireAuth, t(UpdateWizardHandler(deps)))
	v1.Delete("/wizards/:id", requireAuth, DiscardWizardHandler(deps))
	v1.Post("/wizards/:id/advance", requireAuth, t(AdvanceWizardHandler(deps)))
	v1.Post("/wizards/:id/retreat", requireAuth, RetreatWizardHandler(deps))
	v1.Post("/wizards/:id/jump", requireAuth, JumpWizardHandler(deps))
	v1.Post("/wizards/:id/reset", requireAuth, ResetWizardHandler(deps))

	// Reservation history. Legacy and fixed paths come before /:id.
	v1.Get("/reservations/list", requireAuth, t(ListReservationsHandler(deps)))
	v1.Get("/reservations/detail/:id", requireAuth, t(GetReservationHandler(deps)))
	v1.Post("/reservations/cancel/:id", requireAuth, t(CancelReservationHandler(deps)))
	v1.Get("/reservations/receipt/:id", requireAuth, t(ReceiptHandler(deps)))
	v1.Get("/reservations", requireAuth, t(ListReservationsHandler(deps)))
	v1.Get("/reservations/stats", requireAuth, t(ReservationStatsHandler(deps)))
	v1.Get("/reservations/:id", requireAuth, t(GetReservationHandler(deps)))
	v1.Post("/reservations/:id/cancel", requireAuth, t(CancelReservationHandler(deps)))
	v1.Get("/reservations/:id/receipt", requireAuth, t(ReceiptHandler(deps)))

	// Activity feed
	v1.Get("/activities", requireAuth, t(ListActivitiesHandler(deps)))

	// GraphQL
	app.Post("/graphql", requireAuth, t(GraphQLHandler(deps)))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", requireAuth, websocket.New(WebSocketHandler(deps.NATS)))
}
