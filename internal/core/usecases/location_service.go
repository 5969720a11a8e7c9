package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/pkg/geospatial"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
)

const (
	predefinedCacheKey = "locations:predefined"
	predefinedCacheTTL = 600
)

// LocationService serves predefined pickup and destination places.
type LocationService struct {
	locations ports.LocationRepository
	cache     ports.CacheService
}

// NewLocationService creates a new LocationService.
func NewLocationService(locations ports.LocationRepository, cache ports.CacheService) *LocationService {
	return &LocationService{locations: locations, cache: cache}
}

var _ ports.LocationDirectory = (*LocationService)(nil)

// ListPredefined returns every predefined location.
func (s *LocationService) ListPredefined(ctx context.Context) ([]domain.PredefinedLocation, error) {
	var locs []domain.PredefinedLocation
	if s.cacheGet(ctx, "list", predefinedCacheKey, &locs) {
		return locs, nil
	}

	locs, err := s.locations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	s.cacheSet(ctx, predefinedCacheKey, locs, predefinedCacheTTL)
	return locs, nil
}

// GetByID returns a single predefined location.
func (s *LocationService) GetByID(ctx context.Context, id string) (*domain.PredefinedLocation, error) {
	cacheKey := "locations:id:" + id
	var loc domain.PredefinedLocation
	if s.cacheGet(ctx, "get", cacheKey, &loc) {
		return &loc, nil
	}

	found, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, found, predefinedCacheTTL)
	return found, nil
}

// SearchPredefined matches name or address. When near is set, results are
// ordered by distance from it and carry Distance in meters.
func (s *LocationService) SearchPredefined(ctx context.Context, query string, near *domain.GeoPoint, limit int) ([]domain.PredefinedLocation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	locs, err := s.locations.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search locations: %w", err)
	}

	if near != nil {
		for i := range locs {
			d := geospatial.Haversine(*near, locs[i].Location)
			locs[i].Distance = &d
		}
		sort.SliceStable(locs, func(i, j int) bool {
			return *locs[i].Distance < *locs[j].Distance
		})
	}
	return locs, nil
}

// Search implements ports.LocationDirectory.
func (s *LocationService) Search(ctx context.Context, query string) ([]domain.Location, error) {
	locs, err := s.SearchPredefined(ctx, query, nil, 0)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Location, len(locs))
	for i, l := range locs {
		out[i] = l
	}
	return out, nil
}

// Resolve turns client input into a Location. Predefined entries must exist.
func (s *LocationService) Resolve(ctx context.Context, in domain.LocationInput) (domain.Location, error) {
	switch in.Type {
	case domain.LocationPredefined:
		if in.ID == "" {
			return nil, domain.NewValidationError(-1, "id", "predefined location id is required")
		}
		loc, err := s.GetByID(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		return *loc, nil
	case domain.LocationFreeform:
		return in.Freeform()
	default:
		return nil, domain.NewValidationError(-1, "type", fmt.Sprintf("unknown location type %q", in.Type))
	}
}

func (s *LocationService) cacheGet(ctx context.Context, op, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil || json.Unmarshal(data, dst) != nil {
		metrics.CacheMisses.WithLabelValues("locations_" + op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues("locations_" + op).Inc()
	return true
}

func (s *LocationService) cacheSet(ctx context.Context, key string, v any, ttl int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttl)
	}
}
