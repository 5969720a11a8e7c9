package domain

import (
	"time"
)

// AirportDetails are required when the pickup is an airport.
type AirportDetails struct {
	Terminal     string `json:"terminal,omitempty"`
	FlightNumber string `json:"flight_number"`
	Origin       string `json:"origin"`
}

// Airport terminals offered by the booking form.
var AirportTerminals = []string{"T1", "PA", "T2A", "T2B", "T2C", "TC"}

// PassengerRequirements describes the party and the vehicle it needs.
type PassengerRequirements struct {
	PassengerCount int  `json:"passenger_count"`
	ChildSeat      bool `json:"child_seat"`
	Vehicle5to6    bool `json:"vehicle_5_6"`
	Vehicle7       bool `json:"vehicle_7"`
}

// WizardDraft accumulates the data of one in-progress reservation.
type WizardDraft struct {
	ScheduledAt                *time.Time             `json:"scheduled_at,omitempty"`
	Pickup                     Location               `json:"pickup,omitempty"`
	PickupAirport              *AirportDetails        `json:"pickup_airport,omitempty"`
	Destination                Location               `json:"destination,omitempty"`
	DestinationAirportTerminal string                 `json:"destination_airport_terminal,omitempty"`
	Passengers                 *PassengerRequirements `json:"passengers,omitempty"`
	Notes                      string                 `json:"notes"`
}

// Clone returns a copy that shares no pointers with d.
func (d WizardDraft) Clone() WizardDraft {
	c := d
	if d.ScheduledAt != nil {
		t := *d.ScheduledAt
		c.ScheduledAt = &t
	}
	if d.PickupAirport != nil {
		a := *d.PickupAirport
		c.PickupAirport = &a
	}
	if d.Passengers != nil {
		p := *d.Passengers
		c.Passengers = &p
	}
	return c
}

// Stop types sent to the booking API.
const (
	StopTypeAirport = "airport"
	StopTypeAddress = "address"
)

// ReservationStop is one end of a trip as sent to the booking API.
type ReservationStop struct {
	Type           string  `json:"type"`
	Address        string  `json:"address"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	PlaceReference string  `json:"placeReference,omitempty"`
	LocationID     string  `json:"locationId,omitempty"`
	Terminal       string  `json:"terminal,omitempty"`
	FlightNumber   string  `json:"flightNumber,omitempty"`
	FlightOrigin   string  `json:"flightOrigin,omitempty"`
}

// ReservationRequest is the finalized payload handed to the booking API.
type ReservationRequest struct {
	BookingDate         string          `json:"bookingDate"`
	PickupAddress       ReservationStop `json:"pickupAddress"`
	DestinationAddress  ReservationStop `json:"destinationAddress"`
	NumberOfPassengers  int             `json:"numberOfPassengers"`
	ChildSeat           bool            `json:"childSeat"`
	Vehicle56Seats      bool            `json:"vehicle56Seats"`
	Vehicle7Seats       bool            `json:"vehicle7Seats"`
	SpecialInstructions string          `json:"specialInstructions"`
}

// BookingDateLayout parses ReservationRequest.BookingDate.
const BookingDateLayout = "2006-01-02T15:04:05-0700"

// SubmissionResult is the booking API answer to a ReservationRequest.
type SubmissionResult struct {
	Success        bool   `json:"success"`
	ConfirmationID string `json:"confirmation_id"`
	Message        string `json:"message,omitempty"`
}

// Reservation statuses.
const (
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
)

// Display statuses derived for history listings.
const (
	DisplayCancelled = "cancelled"
	DisplayCompleted = "completed"
	DisplayToday     = "today"
	DisplayUpcoming  = "upcoming"
)

// Reservation is a booked trip in the user's history.
type Reservation struct {
	ID                  string          `json:"id"`
	BookingID           string          `json:"booking_id"`
	UserID              string          `json:"user_id"`
	BookingDate         time.Time       `json:"booking_date"`
	Pickup              ReservationStop `json:"pickup_address"`
	Destination         ReservationStop `json:"destination_address"`
	Passengers          int             `json:"passengers"`
	ChildSeat           bool            `json:"child_seat"`
	Vehicle56Seats      bool            `json:"vehicle_5_6"`
	Vehicle7Seats       bool            `json:"vehicle_7"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Status              string          `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
}

// DisplayStatus derives the history label the dashboard shows.
func (r *Reservation) DisplayStatus(now time.Time) string {
	switch {
	case r.Status == ReservationCancelled:
		return DisplayCancelled
	case r.BookingDate.Before(now):
		return DisplayCompleted
	case sameDay(r.BookingDate, now):
		return DisplayToday
	default:
		return DisplayUpcoming
	}
}

// Cancellable reports whether the trip is still in the future and active.
func (r *Reservation) Cancellable(now time.Time) bool {
	return r.Status != ReservationCancelled && r.BookingDate.After(now)
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ReservationFilter selects a slice of the history.
type ReservationFilter string

const (
	FilterAll      ReservationFilter = "all"
	FilterUpcoming ReservationFilter = "upcoming"
	FilterPast     ReservationFilter = "past"
)

// ParseReservationFilter maps a query value to a filter, defaulting to all.
func ParseReservationFilter(s string) ReservationFilter {
	switch ReservationFilter(s) {
	case FilterUpcoming, FilterPast:
		return ReservationFilter(s)
	default:
		return FilterAll
	}
}

// ReservationStats summarises a user's history.
type ReservationStats struct {
	Upcoming  int `json:"upcoming"`
	Today     int `json:"today"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// User is a portal account.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone,omitempty"`
	PasswordHash     []byte    `json:"-"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TwoFactorEmail   string    `json:"two_factor_email,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuthTokens is an access/refresh pair.
type AuthTokens struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LoginResult is either a token pair or a pending two-factor challenge.
type LoginResult struct {
	RequiresTwoFactor bool        `json:"requiresTwoFactor"`
	TempToken         string      `json:"tempToken,omitempty"`
	Tokens            *AuthTokens `json:"tokens,omitempty"`
	User              *User       `json:"user,omitempty"`
}

// Activity types.
const (
	ActivityLogin                = "login"
	ActivityReservationCreated   = "reservation_created"
	ActivityReservationCancelled = "reservation_cancelled"
	ActivityTwoFactorEnabled     = "two_factor_enabled"
	ActivityTwoFactorDisabled    = "two_factor_disabled"
	ActivityPasswordChanged      = "password_changed"
	ActivityProfileUpdated       = "profile_updated"
)

// Activity is an entry in the user's recent-activity feed.
type Activity struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Reservation event kinds published on the broker.
const (
	EventReservationCreated   = "created"
	EventReservationCancelled = "cancelled"
)

// ReservationEvent is published when a reservation changes.
type ReservationEvent struct {
	Kind        string       `json:"kind"`
	UserID      string       `json:"user_id"`
	BookingID   string       `json:"booking_id"`
	Reservation *Reservation `json:"reservation,omitempty"`
	Time        time.Time    `json:"time"`
}
