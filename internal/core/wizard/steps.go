package wizard

import (
	"fmt"
	"slices"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// Steps of the booking flow.
const (
	StepDateTime = iota
	StepTrip
	StepPassengers
	StepConfirmation

	StepCount
)

const (
	// DefaultMinLeadTime is the minimum gap between now and the pickup time.
	DefaultMinLeadTime = 3 * time.Hour

	// DefaultAirportKeyword marks airport locations by name or address.
	DefaultAirportKeyword = "aeropuerto"

	// MinPassengers and MaxPassengers bound the party size; 7 is the largest vehicle.
	MinPassengers = 1
	MaxPassengers = 7
)

// Config tunes the step rules.
type Config struct {
	MinLeadTime    time.Duration
	AirportKeyword string
}

func (c Config) withDefaults() Config {
	if c.MinLeadTime <= 0 {
		c.MinLeadTime = DefaultMinLeadTime
	}
	if c.AirportKeyword == "" {
		c.AirportKeyword = DefaultAirportKeyword
	}
	return c
}

// StepName returns a short label for a step index.
func StepName(step int) string {
	switch step {
	case StepDateTime:
		return "datetime"
	case StepTrip:
		return "trip"
	case StepPassengers:
		return "passengers"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// CheckStep reports why step is incomplete for draft at now, or nil if complete.
// It is a pure function of its arguments.
func CheckStep(step int, d domain.WizardDraft, now time.Time, cfg Config) error {
	cfg = cfg.withDefaults()

	switch step {
	case StepDateTime:
		return checkDateTime(d, now, cfg)
	case StepTrip:
		return checkTrip(d, cfg)
	case StepPassengers:
		return checkPassengers(d)
	case StepConfirmation:
		return domain.ErrConfirmationPending
	default:
		return fmt.Errorf("step %d out of range", step)
	}
}

func checkDateTime(d domain.WizardDraft, now time.Time, cfg Config) error {
	if d.ScheduledAt == nil {
		return domain.NewValidationError(StepDateTime, "scheduled_at", "select a date and time for the service")
	}
	if d.ScheduledAt.Before(now.Add(cfg.MinLeadTime)) {
		return domain.NewValidationError(StepDateTime, "scheduled_at",
			fmt.Sprintf("service must be requested at least %s in advance", formatLead(cfg.MinLeadTime)))
	}
	return nil
}

func checkTrip(d domain.WizardDraft, cfg Config) error {
	if d.Pickup == nil {
		return domain.NewValidationError(StepTrip, "pickup", "select a pickup location")
	}
	if d.Destination == nil {
		return domain.NewValidationError(StepTrip, "destination", "select a destination")
	}
	if d.Pickup.Address() == d.Destination.Address() {
		return domain.NewValidationError(StepTrip, "destination", "pickup and destination cannot be the same")
	}

	if domain.IsAirport(d.Pickup, cfg.AirportKeyword) {
		var a domain.AirportDetails
		if d.PickupAirport != nil {
			a = *d.PickupAirport
		}
		if a.FlightNumber == "" {
			return domain.NewValidationError(StepTrip, "pickup_airport.flight_number", "enter the flight number")
		}
		if a.Origin == "" {
			return domain.NewValidationError(StepTrip, "pickup_airport.origin", "enter the flight origin")
		}
	}
	return nil
}

func checkPassengers(d domain.WizardDraft) error {
	p := d.Passengers
	if p == nil || p.PassengerCount == 0 {
		return domain.NewValidationError(StepPassengers, "passengers", "enter the number of passengers")
	}
	if p.PassengerCount < MinPassengers || p.PassengerCount > MaxPassengers {
		return domain.NewValidationError(StepPassengers, "passengers",
			fmt.Sprintf("number of passengers must be between %d and %d", MinPassengers, MaxPassengers))
	}
	if p.Vehicle5to6 && p.Vehicle7 {
		return domain.NewValidationError(StepPassengers, "vehicle", "select only one vehicle type: 5-6 seats or 7 seats")
	}
	if p.PassengerCount == 7 && !p.Vehicle7 {
		return domain.NewValidationError(StepPassengers, "vehicle_7", "7 passengers require a 7-seat vehicle")
	}
	if (p.PassengerCount == 5 || p.PassengerCount == 6) && !p.Vehicle5to6 && !p.Vehicle7 {
		return domain.NewValidationError(StepPassengers, "vehicle_5_6", "5-6 passengers require a 5-6 seat vehicle or larger")
	}
	return nil
}

// ValidTerminal reports whether t is empty or one of the known terminals.
func ValidTerminal(t string) bool {
	return t == "" || slices.Contains(domain.AirportTerminals, t)
}

func formatLead(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}
