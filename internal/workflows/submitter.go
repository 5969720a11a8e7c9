package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
)

// Starter is the part of client.Client the submitter needs.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Submitter implements ports.ReservationSubmitter by running BookingWorkflow
// and waiting for its result.
type Submitter struct {
	client    Starter
	taskQueue string
}

var _ ports.ReservationSubmitter = (*Submitter)(nil)

// NewSubmitter creates a Submitter. An empty taskQueue means DefaultTaskQueue.
func NewSubmitter(c Starter, taskQueue string) *Submitter {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Submitter{client: c, taskQueue: taskQueue}
}

// Submit starts a booking workflow and blocks until it completes or ctx ends.
// A cancelled ctx abandons the wait; the workflow keeps running.
func (s *Submitter) Submit(ctx context.Context, session ports.Session, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
	start := time.Now()
	defer func() { metrics.SubmissionDuration.Observe(time.Since(start).Seconds()) }()

	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       "booking-" + session.UserID + "-" + uuid.NewString(),
		TaskQueue:                s.taskQueue,
		WorkflowExecutionTimeout: 5 * time.Minute,
	}, BookingWorkflow, BookingInput{UserID: session.UserID, Email: session.Email, Request: req})
	if err != nil {
		return nil, fmt.Errorf("start booking workflow: %w", err)
	}

	var res domain.SubmissionResult
	if err := run.Get(ctx, &res); err != nil {
		return nil, fmt.Errorf("booking workflow %s: %w", run.GetID(), err)
	}
	return &res, nil
}
