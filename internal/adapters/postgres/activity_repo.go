package postgres

import (
	"context"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// ActivityRepo implements ports.ActivityRepository with pgx.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates a new ActivityRepo.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Insert stores an activity. Replays of the same ID are ignored.
func (r *ActivityRepo) Insert(ctx context.Context, a *domain.Activity) error {
	meta := a.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO activities (id, user_id, type, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.UserID, a.Type, a.Description, meta, a.CreatedAt)
	return mapErr(err)
}

// ListByUser returns the user's activities, newest first.
func (r *ActivityRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Activity, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, type, description, metadata, created_at
		FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acts []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Description, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}
