package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/samirrijal/taxiportal/internal/adapters/dispatch"
	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// serve starts an in-memory dispatch API and returns a client wired to it.
func serve(t *testing.T, h fasthttp.RequestHandler) *dispatch.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	c, err := dispatch.New(dispatch.Config{
		BaseURL: "http://dispatch.test/",
		APIKey:  "secret-key",
		Timeout: 2 * time.Second,
		Dial:    func(string) (net.Conn, error) { return ln.Dial() },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func sampleRequest() domain.ReservationRequest {
	return domain.ReservationRequest{
		BookingDate: "2025-06-01T10:30:00+0200",
		PickupAddress: domain.ReservationStop{
			Type: domain.StopTypeAirport, Address: "Aeropuerto T1", Latitude: 41.2889, Longitude: 2.0727,
			Terminal: "T1", FlightNumber: "VY1234", FlightOrigin: "Madrid",
		},
		DestinationAddress: domain.ReservationStop{
			Type: domain.StopTypeAddress, Address: "Carrer de Mallorca 401", Latitude: 41.4036, Longitude: 2.1744,
		},
		NumberOfPassengers: 3,
	}
}

func TestCreateBooking_Success(t *testing.T) {
	var got domain.ReservationRequest
	var apiKey, path string
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		path = string(ctx.Path())
		apiKey = string(ctx.Request.Header.Peek("X-API-Key"))
		_ = json.Unmarshal(ctx.PostBody(), &got)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"success":true,"bookingIdAuriga":"AUR-1001","message":"ok"}`)
	})

	res, err := c.CreateBooking(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if !res.Success || res.ConfirmationID != "AUR-1001" {
		t.Errorf("result = %+v", res)
	}
	if path != "/reservations/create" {
		t.Errorf("path = %q", path)
	}
	if apiKey != "secret-key" {
		t.Errorf("api key = %q", apiKey)
	}
	if got.PickupAddress.FlightNumber != "VY1234" || got.BookingDate != "2025-06-01T10:30:00+0200" {
		t.Errorf("server received %+v", got)
	}
}

func TestCreateBooking_RejectionIsNotError(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusUnprocessableEntity)
		ctx.SetBodyString(`{"success":false,"message":"no vehicles available"}`)
	})

	res, err := c.CreateBooking(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if res.Success || res.Message != "no vehicles available" {
		t.Errorf("result = %+v", res)
	}
}

func TestCreateBooking_ServerError(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
		ctx.SetBodyString("upstream down")
	})

	_, err := c.CreateBooking(context.Background(), sampleRequest())
	var se *dispatch.StatusError
	if !errors.As(err, &se) || se.Status != fasthttp.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
}

func TestCreateBooking_SuccessWithoutID(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"success":true}`)
	})
	if _, err := c.CreateBooking(context.Background(), sampleRequest()); err == nil {
		t.Fatal("expected error for missing booking id")
	}
}

func TestCancelBooking(t *testing.T) {
	var path string
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		path = string(ctx.Path())
		if strings.HasSuffix(path, "/AUR-2") {
			ctx.SetBodyString(`{"success":false,"message":"too late to cancel"}`)
			return
		}
		ctx.SetBodyString(`{"success":true}`)
	})

	if err := c.CancelBooking(context.Background(), "AUR-1"); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if path != "/reservations/cancel/AUR-1" {
		t.Errorf("path = %q", path)
	}

	err := c.CancelBooking(context.Background(), "AUR-2")
	if err == nil || !strings.Contains(err.Error(), "too late") {
		t.Errorf("err = %v", err)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := dispatch.New(dispatch.Config{}); err == nil {
		t.Fatal("expected error")
	}
}
