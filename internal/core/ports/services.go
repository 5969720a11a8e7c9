package ports

import (
	"context"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Session identifies the authenticated caller of an operation.
type Session struct {
	UserID string
	Email  string
}

// LocationDirectory backs pickup and destination selection.
type LocationDirectory interface {
	ListPredefined(ctx context.Context) ([]domain.PredefinedLocation, error)
	Search(ctx context.Context, query string) ([]domain.Location, error)
}

// ReservationSubmitter hands a finalized request to the booking API on
// behalf of the session that owns the wizard.
type ReservationSubmitter interface {
	Submit(ctx context.Context, session Session, req domain.ReservationRequest) (*domain.SubmissionResult, error)
}

// BookingGateway is the remote dispatch API.
type BookingGateway interface {
	CreateBooking(ctx context.Context, req domain.ReservationRequest) (*domain.SubmissionResult, error)
	CancelBooking(ctx context.Context, bookingID string) error
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, event *domain.ReservationEvent) error
	PublishActivity(ctx context.Context, activity *domain.Activity) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeActivities(ctx context.Context, handler func(ctx context.Context, a *domain.Activity) error) error
	SubscribeReservationEvents(ctx context.Context, handler func(ctx context.Context, e *domain.ReservationEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService delivers messages to users.
type NotificationService interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}
