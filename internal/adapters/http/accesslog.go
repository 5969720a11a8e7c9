package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/taxiportal/internal/pkg/logging"
)

// probePaths are polled by the orchestrator and logged at debug only.
var probePaths = map[string]bool{
	"/v1/health": true,
	"/v1/ready":  true,
	"/metrics":   true,
}

// AccessLogMiddleware writes one line per request through the request
// logger. Wizard and booking identifiers from the route are included so a
// passenger's session can be followed across requests.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		if id := c.Params("id"); id != "" {
			key := "booking_id"
			if strings.HasPrefix(c.Route().Path, "/v1/wizards") {
				key = "wizard_id"
			}
			attrs = append(attrs, slog.String(key, id))
		}
		if s := session(c); s.UserID != "" {
			attrs = append(attrs, slog.String("user_id", s.UserID))
		}

		level := slog.LevelInfo
		switch {
		case err != nil, status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case probePaths[c.Path()]:
			level = slog.LevelDebug
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		logging.FromContext(c.UserContext()).LogAttrs(c.UserContext(), level, "http request", attrs...)
		return err
	}
}
