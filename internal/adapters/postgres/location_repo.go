package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// LocationRepo implements ports.LocationRepository with pgx.
type LocationRepo struct {
	db *DB
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

// List returns every predefined location in display order.
func (r *LocationRepo) List(ctx context.Context) ([]domain.PredefinedLocation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, address, lat, lon, category
		FROM predefined_locations
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, err
	}
	return scanLocations(rows)
}

// GetByID returns a predefined location.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*domain.PredefinedLocation, error) {
	var l domain.PredefinedLocation
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, address, lat, lon, category
		FROM predefined_locations WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.FullAddress, &l.Location.Lat, &l.Location.Lon, &l.Category)
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

// Search matches name or address by substring, best trigram match first.
func (r *LocationRepo) Search(ctx context.Context, query string, limit int) ([]domain.PredefinedLocation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, address, lat, lon, category
		FROM predefined_locations
		WHERE name ILIKE '%' || $1 || '%'
		   OR address ILIKE '%' || $1 || '%'
		   OR name % $1
		ORDER BY similarity(name, $1) DESC, sort_order
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	return scanLocations(rows)
}

func scanLocations(rows pgx.Rows) ([]domain.PredefinedLocation, error) {
	defer rows.Close()

	var locs []domain.PredefinedLocation
	for rows.Next() {
		var l domain.PredefinedLocation
		if err := rows.Scan(&l.ID, &l.Name, &l.FullAddress, &l.Location.Lat, &l.Location.Lon, &l.Category); err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}
