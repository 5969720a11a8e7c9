package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
	"github.com/samirrijal/taxiportal/internal/pkg/telemetry"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// ReservationView is a reservation with the fields derived for display.
type ReservationView struct {
	domain.Reservation
	DisplayStatus string `json:"display_status"`
	CanCancel     bool   `json:"can_cancel"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ReservationList is one page of a user's history.
type ReservationList struct {
	Data       []ReservationView `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// ReservationService handles the reservation history of a user.
type ReservationService struct {
	reservations ports.ReservationRepository
	gateway      ports.BookingGateway
	events       ports.EventPublisher
	clock        ports.Clock
	tracer       trace.Tracer
}

// NewReservationService creates a new ReservationService. events may be nil.
func NewReservationService(reservations ports.ReservationRepository, gateway ports.BookingGateway, events ports.EventPublisher, clock ports.Clock) *ReservationService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &ReservationService{
		reservations: reservations,
		gateway:      gateway,
		events:       events,
		clock:        clock,
		tracer:       telemetry.Tracer(),
	}
}

// List returns a page of the user's reservations, newest booking date first.
func (s *ReservationService) List(ctx context.Context, userID string, filter domain.ReservationFilter, page, limit int) (*ReservationList, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	now := s.clock.Now()
	res, err := s.reservations.List(ctx, userID, filter, now, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	views := make([]ReservationView, len(res.Reservations))
	for i := range res.Reservations {
		views[i] = s.view(&res.Reservations[i], now)
	}

	return &ReservationList{
		Data: views,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			TotalItems: res.Total,
			TotalPages: (res.Total + limit - 1) / limit,
		},
	}, nil
}

// Get returns one reservation of the user.
func (s *ReservationService) Get(ctx context.Context, userID, bookingID string) (*ReservationView, error) {
	r, err := s.reservations.GetByBookingID(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	v := s.view(r, s.clock.Now())
	return &v, nil
}

// Cancel cancels a future reservation on the dispatch API and locally.
func (s *ReservationService) Cancel(ctx context.Context, userID, bookingID string) (*ReservationView, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanCancelReservation, trace.WithAttributes(
		attribute.String(telemetry.AttrUserID, userID),
		attribute.String(telemetry.AttrBookingID, bookingID),
	))
	defer span.End()

	r, err := s.reservations.GetByBookingID(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !r.Cancellable(now) {
		metrics.Cancellations.WithLabelValues("rejected").Inc()
		if r.Status == domain.ReservationCancelled {
			return nil, fmt.Errorf("%w: reservation is already cancelled", domain.ErrConflict)
		}
		return nil, fmt.Errorf("%w: past reservations cannot be cancelled", domain.ErrConflict)
	}

	if err := s.gateway.CancelBooking(ctx, bookingID); err != nil {
		metrics.Cancellations.WithLabelValues("dispatch_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch cancel failed")
		return nil, fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}
	if err := s.reservations.MarkCancelled(ctx, userID, bookingID, now); err != nil {
		metrics.Cancellations.WithLabelValues("store_error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("mark cancelled: %w", err)
	}
	metrics.Cancellations.WithLabelValues("ok").Inc()

	r.Status = domain.ReservationCancelled
	r.CancelledAt = &now

	s.publish(ctx, &domain.ReservationEvent{
		Kind:        domain.EventReservationCancelled,
		UserID:      userID,
		BookingID:   bookingID,
		Reservation: r,
		Time:        now,
	}, &domain.Activity{
		UserID:      userID,
		Type:        domain.ActivityReservationCancelled,
		Description: fmt.Sprintf("Reserva %s cancelada", bookingID),
		Metadata:    map[string]any{"booking_id": bookingID},
		CreatedAt:   now,
	})

	v := s.view(r, now)
	return &v, nil
}

// Receipt renders a plain-text receipt for a reservation.
func (s *ReservationService) Receipt(ctx context.Context, userID, bookingID string) (string, error) {
	r, err := s.reservations.GetByBookingID(ctx, userID, bookingID)
	if err != nil {
		return "", err
	}
	return FormatReceipt(r, s.clock.Now()), nil
}

// Stats counts the user's upcoming, today, completed and total reservations.
func (s *ReservationService) Stats(ctx context.Context, userID string) (*domain.ReservationStats, error) {
	now := s.clock.Now()
	count := func(f domain.ReservationFilter) (int, error) {
		page, err := s.reservations.List(ctx, userID, f, now, 1, 0)
		if err != nil {
			return 0, fmt.Errorf("count %s reservations: %w", f, err)
		}
		return page.Total, nil
	}

	var st domain.ReservationStats
	var err error
	if st.Upcoming, err = count(domain.FilterUpcoming); err != nil {
		return nil, err
	}
	if st.Completed, err = count(domain.FilterPast); err != nil {
		return nil, err
	}
	if st.Total, err = count(domain.FilterAll); err != nil {
		return nil, err
	}
	if st.Today, err = s.reservations.CountToday(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("count today: %w", err)
	}
	return &st, nil
}

func (s *ReservationService) view(r *domain.Reservation, now time.Time) ReservationView {
	return ReservationView{
		Reservation:   *r,
		DisplayStatus: r.DisplayStatus(now),
		CanCancel:     r.Cancellable(now),
	}
}

// publish is best-effort; failures are logged.
func (s *ReservationService) publish(ctx context.Context, ev *domain.ReservationEvent, act *domain.Activity) {
	if s.events == nil {
		return
	}
	log := logging.FromContext(ctx)
	if err := s.events.PublishReservationEvent(ctx, ev); err != nil {
		log.Warn("publish reservation event", "kind", ev.Kind, "booking_id", ev.BookingID, "error", err)
	}
	if err := s.events.PublishActivity(ctx, act); err != nil {
		log.Warn("publish activity", "type", act.Type, "error", err)
	}
}

// FormatReceipt renders r as the plain-text receipt the portal offers for download.
func FormatReceipt(r *domain.Reservation, now time.Time) string {
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%-22s %s\n", label+":", value)
	}
	yesNo := func(v bool) string {
		if v {
			return "Sí"
		}
		return "No"
	}

	b.WriteString("COMPROBANTE DE RESERVA\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	line("Reserva", r.BookingID)
	line("Fecha del servicio", r.BookingDate.Format("02/01/2006 15:04"))
	line("Estado", r.DisplayStatus(now))
	b.WriteString("\n")
	line("Recogida", r.Pickup.Address)
	if r.Pickup.Type == domain.StopTypeAirport {
		if r.Pickup.Terminal != "" {
			line("Terminal", r.Pickup.Terminal)
		}
		line("Vuelo", r.Pickup.FlightNumber)
		line("Procedencia", r.Pickup.FlightOrigin)
	}
	line("Destino", r.Destination.Address)
	if r.Destination.Type == domain.StopTypeAirport && r.Destination.Terminal != "" {
		line("Terminal destino", r.Destination.Terminal)
	}
	b.WriteString("\n")
	line("Pasajeros", fmt.Sprintf("%d", r.Passengers))
	line("Silla infantil", yesNo(r.ChildSeat))
	line("Vehículo 5-6 plazas", yesNo(r.Vehicle56Seats))
	line("Vehículo 7 plazas", yesNo(r.Vehicle7Seats))
	if r.SpecialInstructions != "" {
		line("Instrucciones", r.SpecialInstructions)
	}
	if r.CancelledAt != nil {
		line("Cancelada el", r.CancelledAt.Format("02/01/2006 15:04"))
	}
	b.WriteString(strings.Repeat("=", 40) + "\n")
	line("Emitido", now.Format("02/01/2006 15:04"))
	return b.String()
}
