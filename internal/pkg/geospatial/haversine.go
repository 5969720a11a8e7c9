package geospatial

import (
	"math"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(a, b domain.GeoPoint) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c * 1000 // meters
}

// BoundsOf returns the smallest axis-aligned box containing every point.
// An empty slice yields the zero Bounds.
func BoundsOf(points []domain.GeoPoint) domain.Bounds {
	if len(points) == 0 {
		return domain.Bounds{}
	}
	b := domain.Bounds{
		North: points[0].Lat, South: points[0].Lat,
		East: points[0].Lon, West: points[0].Lon,
	}
	for _, p := range points[1:] {
		b.North = math.Max(b.North, p.Lat)
		b.South = math.Min(b.South, p.Lat)
		b.East = math.Max(b.East, p.Lon)
		b.West = math.Min(b.West, p.Lon)
	}
	return b
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
