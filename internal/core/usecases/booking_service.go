package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
	"github.com/samirrijal/taxiportal/internal/pkg/telemetry"
)

// BookingService books finalized requests on the dispatch API and records
// them in the user's history.
type BookingService struct {
	gateway      ports.BookingGateway
	reservations ports.ReservationRepository
	events       ports.EventPublisher
	clock        ports.Clock
	tracer       trace.Tracer
}

// NewBookingService creates a new BookingService. events may be nil.
func NewBookingService(gateway ports.BookingGateway, reservations ports.ReservationRepository, events ports.EventPublisher, clock ports.Clock) *BookingService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &BookingService{
		gateway:      gateway,
		reservations: reservations,
		events:       events,
		clock:        clock,
		tracer:       telemetry.Tracer(),
	}
}

var _ ports.ReservationSubmitter = (*BookingService)(nil)

// Submit implements ports.ReservationSubmitter. A rejection by the dispatch
// API is returned as an unsuccessful result, not an error.
func (s *BookingService) Submit(ctx context.Context, session ports.Session, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanSubmitReservation, trace.WithAttributes(
		attribute.String(telemetry.AttrUserID, session.UserID),
		attribute.String(telemetry.AttrPickup, req.PickupAddress.Type),
		attribute.Int(telemetry.AttrPassenger, req.NumberOfPassengers),
	))
	defer span.End()

	start := time.Now()
	defer func() { metrics.SubmissionDuration.Observe(time.Since(start).Seconds()) }()

	log := logging.FromContext(ctx).With("user_id", session.UserID)

	res, err := s.gateway.CreateBooking(ctx, req)
	if err != nil {
		metrics.Submissions.WithLabelValues("dispatch_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch create failed")
		return nil, fmt.Errorf("create booking: %w", err)
	}
	if !res.Success {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		span.SetStatus(codes.Error, "rejected by dispatch")
		log.Info("booking rejected", "message", res.Message)
		return res, nil
	}
	span.SetAttributes(attribute.String(telemetry.AttrBookingID, res.ConfirmationID))

	now := s.clock.Now()
	r, err := ReservationFromRequest(session.UserID, res.ConfirmationID, req, now)
	if err == nil {
		err = s.reservations.Create(ctx, r)
	}
	if err != nil {
		metrics.Submissions.WithLabelValues("store_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "store reservation failed")
		if cerr := s.gateway.CancelBooking(ctx, res.ConfirmationID); cerr != nil {
			log.Error("compensating cancel failed", "booking_id", res.ConfirmationID, "error", cerr)
			return nil, fmt.Errorf("store reservation: %w", errors.Join(err, cerr))
		}
		log.Warn("booking cancelled after store failure", "booking_id", res.ConfirmationID, "error", err)
		return nil, fmt.Errorf("store reservation: %w", err)
	}

	metrics.Submissions.WithLabelValues("ok").Inc()
	log.Info("reservation booked", "booking_id", res.ConfirmationID)
	s.publishCreated(ctx, r)
	return res, nil
}

func (s *BookingService) publishCreated(ctx context.Context, r *domain.Reservation) {
	if s.events == nil {
		return
	}
	log := logging.FromContext(ctx)
	ev, act := CreatedEvents(r)
	if err := s.events.PublishReservationEvent(ctx, ev); err != nil {
		log.Warn("publish reservation event", "booking_id", r.BookingID, "error", err)
	}
	if err := s.events.PublishActivity(ctx, act); err != nil {
		log.Warn("publish activity", "type", act.Type, "error", err)
	}
}

// CreatedEvents builds the broker messages announcing a new reservation.
func CreatedEvents(r *domain.Reservation) (*domain.ReservationEvent, *domain.Activity) {
	ev := &domain.ReservationEvent{
		Kind:        domain.EventReservationCreated,
		UserID:      r.UserID,
		BookingID:   r.BookingID,
		Reservation: r,
		Time:        r.CreatedAt,
	}
	act := &domain.Activity{
		UserID:      r.UserID,
		Type:        domain.ActivityReservationCreated,
		Description: fmt.Sprintf("Reserva %s creada para el %s", r.BookingID, r.BookingDate.Format("02/01/2006 15:04")),
		Metadata: map[string]any{
			"booking_id":  r.BookingID,
			"pickup":      r.Pickup.Address,
			"destination": r.Destination.Address,
		},
		CreatedAt: r.CreatedAt,
	}
	return ev, act
}

// ReservationFromRequest converts a booked request into a history record.
func ReservationFromRequest(userID, bookingID string, req domain.ReservationRequest, now time.Time) (*domain.Reservation, error) {
	at, err := time.Parse(domain.BookingDateLayout, req.BookingDate)
	if err != nil {
		return nil, fmt.Errorf("parse booking date %q: %w", req.BookingDate, err)
	}
	return &domain.Reservation{
		ID:                  uuid.NewString(),
		BookingID:           bookingID,
		UserID:              userID,
		BookingDate:         at,
		Pickup:              req.PickupAddress,
		Destination:         req.DestinationAddress,
		Passengers:          req.NumberOfPassengers,
		ChildSeat:           req.ChildSeat,
		Vehicle56Seats:      req.Vehicle56Seats,
		Vehicle7Seats:       req.Vehicle7Seats,
		SpecialInstructions: req.SpecialInstructions,
		Status:              domain.ReservationConfirmed,
		CreatedAt:           now,
	}, nil
}
