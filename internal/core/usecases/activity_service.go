package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
)

const (
	defaultActivityLimit = 15
	maxActivityLimit     = 100
)

// ActivityService persists and lists the recent-activity feed.
type ActivityService struct {
	activities ports.ActivityRepository
	clock      ports.Clock
}

// NewActivityService creates a new ActivityService.
func NewActivityService(activities ports.ActivityRepository, clock ports.Clock) *ActivityService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &ActivityService{activities: activities, clock: clock}
}

// Record stores an activity, filling in its ID and timestamp when absent.
func (s *ActivityService) Record(ctx context.Context, a *domain.Activity) error {
	if a == nil || a.UserID == "" || a.Type == "" {
		return errors.New("activity needs a user and a type")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock.Now()
	}
	if err := s.activities.Insert(ctx, a); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// List returns the user's most recent activities.
func (s *ActivityService) List(ctx context.Context, userID string, limit, offset int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	if offset < 0 {
		offset = 0
	}
	acts, err := s.activities.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if acts == nil {
		acts = []domain.Activity{}
	}
	return acts, nil
}
