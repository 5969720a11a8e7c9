package domain

import (
	"fmt"
	"strings"
)

// LocationKind discriminates Location variants.
type LocationKind string

const (
	LocationPredefined LocationKind = "predefined"
	LocationFreeform   LocationKind = "address"
)

// CategoryAirport tags predefined locations that need flight details.
const CategoryAirport = "airport"

// Location is either a predefined place or a free-form geocoded address.
type Location interface {
	Kind() LocationKind
	Address() string
	Coordinates() GeoPoint
}

// PredefinedLocation is a curated place (airport terminal, station, hotel).
type PredefinedLocation struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	FullAddress string   `json:"address"`
	Location    GeoPoint `json:"location"`
	Category    string   `json:"category,omitempty"`
	Distance    *float64 `json:"distance,omitempty"` // computed field
}

func (p PredefinedLocation) Kind() LocationKind    { return LocationPredefined }
func (p PredefinedLocation) Address() string       { return p.FullAddress }
func (p PredefinedLocation) Coordinates() GeoPoint { return p.Location }

// FreeformAddress is an address picked from a geocoder.
type FreeformAddress struct {
	FormattedAddress string   `json:"address"`
	Location         GeoPoint `json:"location"`
	PlaceReference   string   `json:"place_reference,omitempty"`
}

func (f FreeformAddress) Kind() LocationKind    { return LocationFreeform }
func (f FreeformAddress) Address() string       { return f.FormattedAddress }
func (f FreeformAddress) Coordinates() GeoPoint { return f.Location }

// IsAirport reports whether loc requires flight-specific fields.
// Matching on keyword is case-insensitive over name and address.
func IsAirport(loc Location, keyword string) bool {
	if loc == nil {
		return false
	}
	kw := strings.ToLower(strings.TrimSpace(keyword))
	has := func(s string) bool {
		return kw != "" && strings.Contains(strings.ToLower(s), kw)
	}

	switch l := loc.(type) {
	case PredefinedLocation:
		return strings.EqualFold(l.Category, CategoryAirport) || has(l.Name) || has(l.FullAddress)
	case *PredefinedLocation:
		return l != nil && IsAirport(*l, keyword)
	default:
		return has(loc.Address())
	}
}

// LocationInput is the wire form of a Location chosen by a client.
// Predefined entries are resolved by ID against the directory.
type LocationInput struct {
	Type           LocationKind `json:"type"`
	ID             string       `json:"id,omitempty"`
	Address        string       `json:"address,omitempty"`
	Lat            float64      `json:"lat,omitempty"`
	Lon            float64      `json:"lon,omitempty"`
	PlaceReference string       `json:"place_reference,omitempty"`
}

// Freeform converts an address input into a FreeformAddress.
func (in LocationInput) Freeform() (FreeformAddress, error) {
	if in.Type != LocationFreeform {
		return FreeformAddress{}, fmt.Errorf("location type %q is not a free-form address", in.Type)
	}
	if strings.TrimSpace(in.Address) == "" {
		return FreeformAddress{}, NewValidationError(-1, "address", "address is required")
	}
	if in.Lat < -90 || in.Lat > 90 || in.Lon < -180 || in.Lon > 180 {
		return FreeformAddress{}, NewValidationError(-1, "location", "coordinates out of range")
	}
	return FreeformAddress{
		FormattedAddress: in.Address,
		Location:         GeoPoint{Lat: in.Lat, Lon: in.Lon},
		PlaceReference:   in.PlaceReference,
	}, nil
}
