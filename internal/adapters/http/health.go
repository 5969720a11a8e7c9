package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": Version,
		})
	}
}

var errNotConfigured = errors.New("not configured")

// dependencyCheck probes one backing service. Optional services only
// degrade the API when down; required ones make it unready.
type dependencyCheck struct {
	name     string
	required bool
	probe    func(ctx context.Context) error
}

type checkResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Required  bool   `json:"required"`
}

func readinessChecks(deps *Dependencies) []dependencyCheck {
	return []dependencyCheck{
		{name: "database", required: true, probe: func(ctx context.Context) error {
			if deps.DB == nil {
				return errNotConfigured
			}
			return deps.DB.Ping(ctx)
		}},
		// Two-factor codes and reset tokens live in the cache.
		{name: "cache", required: true, probe: func(ctx context.Context) error {
			if deps.Cache == nil {
				return errNotConfigured
			}
			return deps.Cache.Ping(ctx)
		}},
		{name: "nats", probe: func(ctx context.Context) error {
			if deps.NATS == nil {
				return errNotConfigured
			}
			if !deps.NATS.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}},
	}
}

// ReadyHandler reports each dependency with its probe latency. The service
// is ready when every required dependency answers.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := readinessChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]checkResult, len(checks))
		ready, degraded := true, false
		for _, chk := range checks {
			start := time.Now()
			err := chk.probe(ctx)
			r := checkResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds(), Required: chk.required}
			if err != nil {
				r.Status = "error: " + err.Error()
				if chk.required {
					ready = false
				} else {
					degraded = true
				}
			}
			results[chk.name] = r
		}

		status, code := "ready", fiber.StatusOK
		switch {
		case !ready:
			status, code = "not ready", fiber.StatusServiceUnavailable
		case degraded:
			status = "degraded"
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
