package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/core/usecases"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
)

// BookingActivities holds the activity implementations for the booking workflow.
type BookingActivities struct {
	Gateway      ports.BookingGateway
	Reservations ports.ReservationRepository
	Events       ports.EventPublisher // optional
	Clock        ports.Clock
}

// CreateBooking asks the dispatch API for a booking. A rejection comes back
// as an unsuccessful result.
func (a *BookingActivities) CreateBooking(ctx context.Context, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
	res, err := a.Gateway.CreateBooking(ctx, req)
	if err != nil {
		metrics.Submissions.WithLabelValues("dispatch_error").Inc()
		return nil, fmt.Errorf("create booking: %w", err)
	}
	if !res.Success {
		metrics.Submissions.WithLabelValues("rejected").Inc()
	}
	return res, nil
}

// StoreReservation records a booked request in the user's history. A retry
// that finds its own earlier insert returns the stored row.
func (a *BookingActivities) StoreReservation(ctx context.Context, userID, bookingID string, req domain.ReservationRequest) (*domain.Reservation, error) {
	clock := a.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	r, err := usecases.ReservationFromRequest(userID, bookingID, req, clock.Now())
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidBookingDate", err)
	}

	err = a.Reservations.Create(ctx, r)
	if errors.Is(err, domain.ErrConflict) {
		activity.GetLogger(ctx).Info("reservation already stored", "booking_id", bookingID)
		return a.Reservations.GetByBookingID(ctx, userID, bookingID)
	}
	if err != nil {
		metrics.Submissions.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("store reservation %s: %w", bookingID, err)
	}
	metrics.Submissions.WithLabelValues("ok").Inc()
	return r, nil
}

// CancelBooking cancels a booking on the dispatch API (saga compensation).
func (a *BookingActivities) CancelBooking(ctx context.Context, bookingID string) error {
	if err := a.Gateway.CancelBooking(ctx, bookingID); err != nil {
		return fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}
	activity.GetLogger(ctx).Warn("booking cancelled (saga compensation)", "booking_id", bookingID)
	return nil
}

// PublishCreated announces the new reservation and its activity entry.
func (a *BookingActivities) PublishCreated(ctx context.Context, r *domain.Reservation) error {
	if a.Events == nil {
		return nil
	}
	ev, act := usecases.CreatedEvents(r)
	if err := a.Events.PublishReservationEvent(ctx, ev); err != nil {
		return fmt.Errorf("publish reservation event: %w", err)
	}
	if err := a.Events.PublishActivity(ctx, act); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	return nil
}
