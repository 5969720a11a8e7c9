// Package dispatch is the client for the remote booking (dispatch) API.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/pkg/telemetry"
)

// Wire paths on the dispatch API.
const (
	createPath = "/reservations/create"
	cancelPath = "/reservations/cancel/"
)

// StatusError is returned when the dispatch API answers with a non-2xx
// status that carries no usable body.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dispatch: unexpected status %d: %s", e.Status, e.Body)
}

// Config for Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Dial overrides the network dialer; used by tests.
	Dial fasthttp.DialFunc
}

// Client implements ports.BookingGateway over fasthttp.
type Client struct {
	base    string
	apiKey  string
	timeout time.Duration
	http    *fasthttp.Client
	tracer  trace.Tracer
}

var _ ports.BookingGateway = (*Client)(nil)

// New creates a dispatch API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("dispatch: base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := &fasthttp.Client{
		Name:                "taxiportal",
		ReadTimeout:         cfg.Timeout,
		WriteTimeout:        cfg.Timeout,
		MaxConnsPerHost:     64,
		MaxIdleConnDuration: 30 * time.Second,
		Dial:                cfg.Dial,
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    hc,
		tracer:  telemetry.Tracer(),
	}, nil
}

// createResponse is the dispatch API answer to a create call.
type createResponse struct {
	Success   bool   `json:"success"`
	BookingID string `json:"bookingIdAuriga"`
	Message   string `json:"message"`
}

// CreateBooking posts the request. A well-formed rejection is returned as an
// unsuccessful result with no error.
func (c *Client) CreateBooking(ctx context.Context, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var out createResponse
	status, err := c.do(ctx, fasthttp.MethodPost, createPath, body, &out)
	if err != nil {
		return nil, err
	}
	if out.Success && out.BookingID == "" {
		return nil, fmt.Errorf("dispatch: status %d: success without booking id", status)
	}
	return &domain.SubmissionResult{
		Success:        out.Success,
		ConfirmationID: out.BookingID,
		Message:        out.Message,
	}, nil
}

// CancelBooking cancels a booking remotely.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return errors.New("dispatch: booking id is required")
	}
	var out createResponse
	if _, err := c.do(ctx, fasthttp.MethodPost, cancelPath+bookingID, nil, &out); err != nil {
		return err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "cancellation refused"
		}
		return fmt.Errorf("dispatch: %s", msg)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	ctx, span := c.tracer.Start(ctx, telemetry.SpanDispatchRequest, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{&req.Header})
	if body != nil {
		req.SetBodyRaw(body)
	}

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return 0, fmt.Errorf("dispatch %s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	// The API answers rejections as 4xx with the normal JSON envelope.
	decodeErr := json.Unmarshal(resp.Body(), out)
	switch {
	case status >= 500, status >= 300 && decodeErr != nil:
		err := &StatusError{Status: status, Body: truncate(string(resp.Body()), 200)}
		span.SetStatus(codes.Error, err.Error())
		return status, err
	case decodeErr != nil:
		span.SetStatus(codes.Error, "decode")
		return status, fmt.Errorf("dispatch: decode response: %w", decodeErr)
	}
	return status, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// headerCarrier adapts fasthttp headers to propagation.TextMapCarrier.
type headerCarrier struct {
	h *fasthttp.RequestHeader
}

func (c headerCarrier) Get(key string) string { return string(c.h.Peek(key)) }
func (c headerCarrier) Set(key, value string) { c.h.Set(key, value) }
func (c headerCarrier) Keys() []string {
	var keys []string
	c.h.VisitAll(func(k, _ []byte) { keys = append(keys, string(k)) })
	return keys
}

