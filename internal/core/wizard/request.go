package wizard

import (
	"errors"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// bookingDateSuffix is appended to the local wall-clock time. The booking
// API expects the offset without a colon. No zone conversion happens.
const bookingDateSuffix = "+0200"

const bookingDateLocalLayout = "2006-01-02T15:04:05"

// FormatBookingDate renders t's wall clock tagged with the fixed offset.
func FormatBookingDate(t time.Time) string {
	return t.Format(bookingDateLocalLayout) + bookingDateSuffix
}

// BuildRequest assembles the booking payload from a validated draft.
func BuildRequest(d domain.WizardDraft, cfg Config) (domain.ReservationRequest, error) {
	cfg = cfg.withDefaults()
	if d.ScheduledAt == nil || d.Pickup == nil || d.Destination == nil || d.Passengers == nil {
		return domain.ReservationRequest{}, errors.New("draft is incomplete")
	}

	pickup := stop(d.Pickup, cfg.AirportKeyword)
	if pickup.Type == domain.StopTypeAirport && d.PickupAirport != nil {
		pickup.Terminal = d.PickupAirport.Terminal
		pickup.FlightNumber = d.PickupAirport.FlightNumber
		pickup.FlightOrigin = d.PickupAirport.Origin
	}

	destination := stop(d.Destination, cfg.AirportKeyword)
	if destination.Type == domain.StopTypeAirport {
		destination.Terminal = d.DestinationAirportTerminal
	}

	return domain.ReservationRequest{
		BookingDate:         FormatBookingDate(*d.ScheduledAt),
		PickupAddress:       pickup,
		DestinationAddress:  destination,
		NumberOfPassengers:  d.Passengers.PassengerCount,
		ChildSeat:           d.Passengers.ChildSeat,
		Vehicle56Seats:      d.Passengers.Vehicle5to6,
		Vehicle7Seats:       d.Passengers.Vehicle7,
		SpecialInstructions: d.Notes,
	}, nil
}

func stop(loc domain.Location, keyword string) domain.ReservationStop {
	s := domain.ReservationStop{
		Type:      domain.StopTypeAddress,
		Address:   loc.Address(),
		Latitude:  loc.Coordinates().Lat,
		Longitude: loc.Coordinates().Lon,
	}
	if domain.IsAirport(loc, keyword) {
		s.Type = domain.StopTypeAirport
	}

	switch l := loc.(type) {
	case domain.PredefinedLocation:
		s.LocationID = l.ID
	case domain.FreeformAddress:
		s.PlaceReference = l.PlaceReference
	}
	return s
}
