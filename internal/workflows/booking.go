package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// DefaultTaskQueue is used when temporal.task_queue is not configured.
const DefaultTaskQueue = "taxiportal-bookings"

// BookingInput is the input for the booking workflow.
type BookingInput struct {
	UserID  string
	Email   string
	Request domain.ReservationRequest
}

// BookingWorkflow books a reservation on the dispatch API and records it.
// If the record cannot be stored the remote booking is cancelled (saga
// compensation). Publishing the confirmation is best effort.
func BookingWorkflow(ctx workflow.Context, input BookingInput) (*domain.SubmissionResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting booking workflow", "userID", input.UserID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Creating is not idempotent on the remote side, so it runs once.
	createCtx := workflow.WithRetryPolicy(ctx, temporal.RetryPolicy{MaximumAttempts: 1})

	// Step 1: Book on the dispatch API
	var res domain.SubmissionResult
	if err := workflow.ExecuteActivity(createCtx, "CreateBooking", input.Request).Get(ctx, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		logger.Info("Booking rejected by dispatch", "message", res.Message)
		return &res, nil
	}

	// Step 2: Store in the user's history
	var stored domain.Reservation
	err := workflow.ExecuteActivity(ctx, "StoreReservation", input.UserID, res.ConfirmationID, input.Request).Get(ctx, &stored)
	if err != nil {
		logger.Warn("store failed, compensating", "bookingID", res.ConfirmationID, "error", err)
		// Compensate: cancel the remote booking. A disconnected context keeps
		// the compensation running if the workflow is cancelled.
		cctx, _ := workflow.NewDisconnectedContext(ctx)
		if cerr := workflow.ExecuteActivity(cctx, "CancelBooking", res.ConfirmationID).Get(cctx, nil); cerr != nil {
			logger.Error("compensating cancel failed", "bookingID", res.ConfirmationID, "error", cerr)
		}
		return nil, err
	}

	// Step 3: Announce
	if err := workflow.ExecuteActivity(ctx, "PublishCreated", &stored).Get(ctx, nil); err != nil {
		logger.Warn("publish failed", "bookingID", res.ConfirmationID, "error", err)
	}

	logger.Info("Reservation booked", "bookingID", res.ConfirmationID)
	return &res, nil
}
