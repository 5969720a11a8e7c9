package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
)

// ReservationRepo implements ports.ReservationRepository with pgx.
type ReservationRepo struct {
	db *DB
}

// NewReservationRepo creates a new ReservationRepo.
func NewReservationRepo(db *DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

const reservationColumns = `
	id, booking_id, user_id, booking_date, pickup, destination, passengers,
	child_seat, vehicle_5_6, vehicle_7, special_instructions, status,
	created_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	var r domain.Reservation
	err := row.Scan(
		&r.ID, &r.BookingID, &r.UserID, &r.BookingDate, &r.Pickup, &r.Destination, &r.Passengers,
		&r.ChildSeat, &r.Vehicle56Seats, &r.Vehicle7Seats, &r.SpecialInstructions, &r.Status,
		&r.CreatedAt, &r.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a booked reservation.
func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, res.ID, res.BookingID, res.UserID, res.BookingDate, res.Pickup, res.Destination, res.Passengers,
		res.ChildSeat, res.Vehicle56Seats, res.Vehicle7Seats, res.SpecialInstructions, res.Status,
		res.CreatedAt, res.CancelledAt)
	return mapErr(err)
}

// GetByBookingID returns one of the user's reservations.
func (r *ReservationRepo) GetByBookingID(ctx context.Context, userID, bookingID string) (*domain.Reservation, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations WHERE user_id = $1 AND booking_id = $2
	`, userID, bookingID)
	res, err := scanReservation(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}

// filterClause returns the WHERE fragment and ordering for a history filter.
// $1 is the user, $2 the reference time.
func filterClause(f domain.ReservationFilter) (where, order string) {
	switch f {
	case domain.FilterUpcoming:
		return `user_id = $1 AND booking_date >= $2 AND status <> 'cancelled'`, `booking_date ASC`
	case domain.FilterPast:
		return `user_id = $1 AND booking_date < $2`, `booking_date DESC`
	default:
		return `user_id = $1 AND $2::timestamptz IS NOT NULL`, `booking_date DESC`
	}
}

// List returns a page of the user's reservations and the filter's total.
func (r *ReservationRepo) List(ctx context.Context, userID string, f domain.ReservationFilter, now time.Time, limit, offset int) (*ports.ReservationPage, error) {
	where, order := filterClause(f)

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM reservations WHERE `+where, userID, now).Scan(&total); err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations WHERE `+where+`
		ORDER BY `+order+`
		LIMIT $3 OFFSET $4
	`, userID, now, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &ports.ReservationPage{Total: total}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		page.Reservations = append(page.Reservations, *res)
	}
	return page, rows.Err()
}

// CountToday counts active reservations on now's calendar day.
func (r *ReservationRepo) CountToday(ctx context.Context, userID string, now time.Time) (int, error) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	var n int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM reservations
		WHERE user_id = $1 AND status <> 'cancelled'
		  AND booking_date >= $2 AND booking_date < $3
	`, userID, start, start.AddDate(0, 0, 1)).Scan(&n)
	return n, err
}

// MarkCancelled flags a reservation as cancelled.
func (r *ReservationRepo) MarkCancelled(ctx context.Context, userID, bookingID string, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE reservations SET status = 'cancelled', cancelled_at = $3
		WHERE user_id = $1 AND booking_id = $2 AND status <> 'cancelled'
	`, userID, bookingID, at)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
