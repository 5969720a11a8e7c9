package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/taxiportal/internal/pkg/logging"
	"github.com/samirrijal/taxiportal/internal/pkg/telemetry"
)

// RequestIDLogMiddleware opens a server span for the request, continuing an
// incoming traceparent, and stores a logger tagged with the Fiber request ID
// in the user context. Usecases pick both up from ctx.
func RequestIDLogMiddleware() fiber.Handler {
	tracer := telemetry.Tracer()

	return func(c *fiber.Ctx) error {
		carrier := propagation.HeaderCarrier(nethttp.Header(c.GetReqHeaders()))
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)
		ctx, span := tracer.Start(ctx, c.Method(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		logger := slog.Default()
		if rid, _ := c.Locals("requestid").(string); rid != "" {
			logger = logger.With("request_id", rid)
			span.SetAttributes(attribute.String("http.request_id", rid))
		}
		c.SetUserContext(logging.WithLogger(ctx, logger))

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		status := c.Response().StatusCode()
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if err != nil || status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, nethttp.StatusText(status))
		}
		return err
	}
}
