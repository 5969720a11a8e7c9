// Package geofence restricts pickup locations to a service-area polygon.
package geofence

import (
	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/pkg/geospatial"
)

// Contains reports whether point lies inside polygon using the even-odd rule.
// Points exactly on an edge may fall either way.
func Contains(point domain.GeoPoint, polygon domain.Polygon) (bool, error) {
	if n := polygon.DistinctVertices(); n < 3 {
		return false, &domain.InvalidPolygonError{Vertices: n}
	}

	v := polygon.Vertices
	inside := false
	for i, j := 0, len(v)-1; i < len(v); j, i = i, i+1 {
		xi, yi := v[i].Lon, v[i].Lat
		xj, yj := v[j].Lon, v[j].Lat

		if (yi > point.Lat) != (yj > point.Lat) &&
			point.Lon < (xj-xi)*(point.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside, nil
}

// Config is the service-area restriction.
type Config struct {
	Enabled      bool
	Polygon      domain.Polygon
	ErrorMessage string
}

// Fence checks locations against a validated Config.
type Fence struct {
	cfg    Config
	bounds domain.Bounds
}

// New validates the polygon up front so Check never sees a bad shape.
// A disabled config is accepted without a polygon.
func New(cfg Config) (*Fence, error) {
	if !cfg.Enabled {
		return &Fence{cfg: cfg}, nil
	}
	if n := cfg.Polygon.DistinctVertices(); n < 3 {
		return nil, &domain.InvalidPolygonError{Vertices: n}
	}
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = "pickup location is outside the service area"
	}
	return &Fence{cfg: cfg, bounds: geospatial.BoundsOf(cfg.Polygon.Vertices)}, nil
}

// Enabled reports whether the restriction is active.
func (f *Fence) Enabled() bool { return f != nil && f.cfg.Enabled }

// Bounds is the bounding box of the service area, for use as a search hint.
func (f *Fence) Bounds() domain.Bounds { return f.bounds }

// Polygon is the configured service area.
func (f *Fence) Polygon() domain.Polygon {
	if f == nil {
		return domain.Polygon{}
	}
	return f.cfg.Polygon
}

// Check returns a ValidationError on field "pickup" when loc is outside the area.
func (f *Fence) Check(loc domain.Location) error {
	if !f.Enabled() || loc == nil {
		return nil
	}
	p := loc.Coordinates()
	if !f.bounds.Contains(p) {
		return domain.NewValidationError(1, "pickup", f.cfg.ErrorMessage)
	}
	ok, err := Contains(p, f.cfg.Polygon)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewValidationError(1, "pickup", f.cfg.ErrorMessage)
	}
	return nil
}
