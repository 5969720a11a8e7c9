package wizard_test

import (
	"testing"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/wizard"
)

func TestFormatBookingDate(t *testing.T) {
	utc := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	if got := wizard.FormatBookingDate(utc); got != "2025-06-01T10:30:00+0200" {
		t.Errorf("expected wall clock with fixed suffix, got %s", got)
	}

	// The wall clock is kept as-is, with no zone conversion.
	ny := time.Date(2025, 6, 1, 10, 30, 0, 0, time.FixedZone("EDT", -4*3600))
	if got := wizard.FormatBookingDate(ny); got != "2025-06-01T10:30:00+0200" {
		t.Errorf("expected no conversion, got %s", got)
	}
}

func TestBuildRequest_AirportPickup(t *testing.T) {
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	d := domain.WizardDraft{
		ScheduledAt:   &at,
		Pickup:        airport,
		PickupAirport: &domain.AirportDetails{Terminal: "T1", FlightNumber: "IB1234", Origin: "Madrid"},
		Destination:   hotel,
		// ignored: destination is not an airport
		DestinationAirportTerminal: "T2A",
		Passengers:                 &domain.PassengerRequirements{PassengerCount: 5, Vehicle5to6: true, ChildSeat: true},
		Notes:                      "call on arrival",
	}

	req, err := wizard.BuildRequest(d, wizard.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := req.PickupAddress
	if p.Type != domain.StopTypeAirport || p.LocationID != "loc-bcn" {
		t.Errorf("unexpected pickup: %+v", p)
	}
	if p.Terminal != "T1" || p.FlightNumber != "IB1234" || p.FlightOrigin != "Madrid" {
		t.Errorf("flight details missing: %+v", p)
	}

	dst := req.DestinationAddress
	if dst.Type != domain.StopTypeAddress || dst.Terminal != "" || dst.PlaceReference != "ChIJ-place" {
		t.Errorf("unexpected destination: %+v", dst)
	}
	if dst.Latitude != hotel.Location.Lat || dst.Longitude != hotel.Location.Lon {
		t.Errorf("coordinates not copied: %+v", dst)
	}

	if req.NumberOfPassengers != 5 || !req.Vehicle56Seats || req.Vehicle7Seats || !req.ChildSeat {
		t.Errorf("passenger fields wrong: %+v", req)
	}
	if req.BookingDate != "2025-06-02T09:00:00+0200" || req.SpecialInstructions != "call on arrival" {
		t.Errorf("unexpected header fields: %+v", req)
	}
}

func TestBuildRequest_LocationTypes(t *testing.T) {
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		pickup, dst domain.Location
		wantPickup  string
		wantDst     string
	}{
		{"address to airport", hotel, airport, domain.StopTypeAddress, domain.StopTypeAirport},
		{"station to address", sants, hotel, domain.StopTypeAddress, domain.StopTypeAddress},
		{"freeform airport by keyword", domain.FreeformAddress{
			FormattedAddress: "Aeropuerto de Girona-Costa Brava",
			Location:         domain.GeoPoint{Lat: 41.90, Lon: 2.76},
		}, sants, domain.StopTypeAirport, domain.StopTypeAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := domain.WizardDraft{
				ScheduledAt: &at,
				Pickup:      tt.pickup,
				Destination: tt.dst,
				Passengers:  &domain.PassengerRequirements{PassengerCount: 1},
			}
			if tt.wantDst == domain.StopTypeAirport {
				d.DestinationAirportTerminal = "T2B"
			}
			req, err := wizard.BuildRequest(d, wizard.Config{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.PickupAddress.Type != tt.wantPickup {
				t.Errorf("pickup type: expected %s, got %s", tt.wantPickup, req.PickupAddress.Type)
			}
			if req.DestinationAddress.Type != tt.wantDst {
				t.Errorf("destination type: expected %s, got %s", tt.wantDst, req.DestinationAddress.Type)
			}
			if tt.wantDst == domain.StopTypeAirport && req.DestinationAddress.Terminal != "T2B" {
				t.Errorf("expected destination terminal, got %q", req.DestinationAddress.Terminal)
			}
		})
	}
}

func TestBuildRequest_Incomplete(t *testing.T) {
	if _, err := wizard.BuildRequest(domain.WizardDraft{}, wizard.Config{}); err == nil {
		t.Error("expected error for empty draft")
	}
}
