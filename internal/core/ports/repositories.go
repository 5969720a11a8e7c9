package ports

import (
	"context"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// UserRepository persists portal accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id, name, phone string) error
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	SetTwoFactor(ctx context.Context, id string, enabled bool, email string) error
}

// LocationRepository persists predefined places.
type LocationRepository interface {
	List(ctx context.Context) ([]domain.PredefinedLocation, error)
	GetByID(ctx context.Context, id string) (*domain.PredefinedLocation, error)
	Search(ctx context.Context, query string, limit int) ([]domain.PredefinedLocation, error)
}

// ReservationPage is one page of a user's reservation history.
type ReservationPage struct {
	Reservations []domain.Reservation
	Total        int
}

// ReservationRepository persists booked reservations.
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	GetByBookingID(ctx context.Context, userID, bookingID string) (*domain.Reservation, error)
	List(ctx context.Context, userID string, filter domain.ReservationFilter, now time.Time, limit, offset int) (*ReservationPage, error)
	CountToday(ctx context.Context, userID string, now time.Time) (int, error)
	MarkCancelled(ctx context.Context, userID, bookingID string, at time.Time) error
}

// ActivityRepository persists the recent-activity feed.
type ActivityRepository interface {
	Insert(ctx context.Context, a *domain.Activity) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Activity, error)
}
