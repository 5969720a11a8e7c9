// Package wizard drives the four-step reservation flow:
// datetime, trip details, passengers, confirmation.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/geofence"
	"github.com/samirrijal/taxiportal/internal/core/ports"
)

// Deps are the collaborators a Wizard calls into.
type Deps struct {
	Clock     ports.Clock
	Fence     *geofence.Fence
	Submitter ports.ReservationSubmitter
}

// Wizard is one in-progress reservation owned by a single session.
// Methods are safe for concurrent use; only submission blocks.
type Wizard struct {
	mu sync.Mutex

	id      string
	session ports.Session
	cfg     Config
	deps    Deps

	step    int
	visited map[int]bool
	draft   domain.WizardDraft

	submitted    bool
	confirmation *domain.SubmissionResult

	// seq tags submission attempts; inflight is the seq of the pending one.
	seq      uint64
	inflight uint64

	touchedAt time.Time
}

// Snapshot is a read-only view of a Wizard.
type Snapshot struct {
	ID                   string                   `json:"id"`
	CurrentStep          int                      `json:"current_step"`
	VisitedSteps         []int                    `json:"visited_steps"`
	Draft                domain.WizardDraft       `json:"draft"`
	Submitted            bool                     `json:"submitted"`
	Confirmation         *domain.SubmissionResult `json:"confirmation,omitempty"`
	Busy                 bool                     `json:"busy"`
	PickupIsAirport      bool                     `json:"pickup_is_airport"`
	DestinationIsAirport bool                     `json:"destination_is_airport"`
}

// Outcome is the result of a successful Advance.
type Outcome struct {
	Step         int
	Submitted    bool
	Confirmation *domain.SubmissionResult
}

// New starts a fresh wizard at step 0.
func New(id string, session ports.Session, cfg Config, deps Deps) *Wizard {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	w := &Wizard{
		id:      id,
		session: session,
		cfg:     cfg.withDefaults(),
		deps:    deps,
	}
	w.resetLocked()
	return w
}

// ID returns the wizard identifier.
func (w *Wizard) ID() string { return w.id }

// Owner returns the session that started the wizard.
func (w *Wizard) Owner() ports.Session { return w.session }

// TouchedAt is the time of the last state change.
func (w *Wizard) TouchedAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.touchedAt
}

// Snapshot returns a copy of the current state.
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	visited := make([]int, 0, len(w.visited))
	for s := range w.visited {
		visited = append(visited, s)
	}
	sort.Ints(visited)

	var conf *domain.SubmissionResult
	if w.confirmation != nil {
		c := *w.confirmation
		conf = &c
	}

	return Snapshot{
		ID:                   w.id,
		CurrentStep:          w.step,
		VisitedSteps:         visited,
		Draft:                w.draft.Clone(),
		Submitted:            w.submitted,
		Confirmation:         conf,
		Busy:                 w.inflight != 0,
		PickupIsAirport:      domain.IsAirport(w.draft.Pickup, w.cfg.AirportKeyword),
		DestinationIsAirport: domain.IsAirport(w.draft.Destination, w.cfg.AirportKeyword),
	}
}

// IsStepComplete reports why step is incomplete, or nil.
func (w *Wizard) IsStepComplete(step int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return CheckStep(step, w.draft, w.deps.Clock.Now(), w.cfg)
}

// Advance validates the current step and moves forward. From the
// confirmation step it submits the reservation.
func (w *Wizard) Advance(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	step := w.step
	if err := w.mutableLocked(); err != nil {
		w.mu.Unlock()
		return Outcome{Step: step}, err
	}

	if w.step < StepConfirmation {
		defer w.mu.Unlock()
		if err := CheckStep(w.step, w.draft, w.deps.Clock.Now(), w.cfg); err != nil {
			return Outcome{Step: w.step}, err
		}
		w.step++
		w.visited[w.step] = true
		w.touch()
		return Outcome{Step: w.step}, nil
	}

	req, err := w.finalizeLocked()
	if err != nil {
		w.mu.Unlock()
		return Outcome{Step: step}, err
	}
	if w.deps.Submitter == nil {
		w.mu.Unlock()
		return Outcome{Step: step}, &domain.SubmissionError{Cause: errors.New("no submitter configured")}
	}

	w.seq++
	attempt := w.seq
	w.inflight = attempt
	session := w.session
	w.mu.Unlock()

	res, err := w.deps.Submitter.Submit(ctx, session, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seq != attempt {
		return Outcome{Step: w.step}, domain.ErrSupersededSubmission
	}
	w.inflight = 0

	if err != nil {
		return Outcome{Step: w.step}, &domain.SubmissionError{Cause: err}
	}
	if res == nil || !res.Success {
		msg := "booking was rejected"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		return Outcome{Step: w.step}, &domain.SubmissionError{Cause: errors.New(msg)}
	}

	w.submitted = true
	c := *res
	w.confirmation = &c
	w.touch()
	return Outcome{Step: w.step, Submitted: true, Confirmation: &c}, nil
}

// finalizeLocked re-checks the draft at submit time and builds the payload.
// The lead time is only enforced when leaving step 0; here the pickup just
// must not be in the past.
func (w *Wizard) finalizeLocked() (domain.ReservationRequest, error) {
	now := w.deps.Clock.Now()
	if w.draft.ScheduledAt == nil {
		return domain.ReservationRequest{}, domain.NewValidationError(StepDateTime, "scheduled_at", "select a date and time for the service")
	}
	if w.draft.ScheduledAt.Before(now) {
		return domain.ReservationRequest{}, domain.NewValidationError(StepConfirmation, "scheduled_at", "the selected date is in the past")
	}
	for _, s := range []int{StepTrip, StepPassengers} {
		if err := CheckStep(s, w.draft, now, w.cfg); err != nil {
			return domain.ReservationRequest{}, err
		}
	}
	return BuildRequest(w.draft, w.cfg)
}

// Retreat moves back one step. It never re-validates.
func (w *Wizard) Retreat() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutableLocked(); err != nil {
		return err
	}
	if w.step > 0 {
		w.step--
		w.touch()
	}
	return nil
}

// JumpTo moves to a visited step. Forward jumps require every step in
// between to be complete.
func (w *Wizard) JumpTo(target int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutableLocked(); err != nil {
		return err
	}
	if !w.visited[target] {
		return fmt.Errorf("jump to step %d: %w", target, domain.ErrStepNotVisited)
	}
	if target > w.step {
		now := w.deps.Clock.Now()
		for s := w.step; s < target; s++ {
			if err := CheckStep(s, w.draft, now, w.cfg); err != nil {
				return err
			}
		}
	}
	w.step = target
	w.touch()
	return nil
}

// Reset discards the draft and supersedes any in-flight submission.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.resetLocked()
}

func (w *Wizard) resetLocked() {
	w.step = StepDateTime
	w.visited = map[int]bool{StepDateTime: true}
	w.draft = domain.WizardDraft{}
	w.submitted = false
	w.confirmation = nil
	w.inflight = 0
	w.touch()
}

// Change edits a draft. A Change that returns an error must be treated as
// having made no edit.
type Change func(d *domain.WizardDraft) error

// Apply runs changes in order against a copy of the draft and stores the
// copy only if every change succeeds, so a rejected update leaves the
// wizard as it was.
func (w *Wizard) Apply(changes ...Change) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutableLocked(); err != nil {
		return err
	}
	next := w.draft.Clone()
	for _, change := range changes {
		if err := change(&next); err != nil {
			return err
		}
	}
	w.draft = next
	w.touch()
	return nil
}

// ChangeSchedule sets the requested pickup time.
func ChangeSchedule(at time.Time) Change {
	return func(d *domain.WizardDraft) error {
		d.ScheduledAt = &at
		return nil
	}
}

// ChangePickup sets the pickup location after the service-area check.
// Leaving the airport drops the flight details.
func (w *Wizard) ChangePickup(loc domain.Location) Change {
	return func(d *domain.WizardDraft) error {
		if loc == nil {
			return domain.NewValidationError(StepTrip, "pickup", "select a pickup location")
		}
		if err := w.deps.Fence.Check(loc); err != nil {
			return err
		}
		d.Pickup = loc
		if !domain.IsAirport(loc, w.cfg.AirportKeyword) {
			d.PickupAirport = nil
		}
		return nil
	}
}

// ChangePickupAirport records flight details for an airport pickup.
func ChangePickupAirport(details domain.AirportDetails) Change {
	return func(d *domain.WizardDraft) error {
		if !ValidTerminal(details.Terminal) {
			return domain.NewValidationError(StepTrip, "pickup_airport.terminal", "unknown terminal")
		}
		d.PickupAirport = &details
		return nil
	}
}

// ChangeDestination sets the drop-off location.
func (w *Wizard) ChangeDestination(loc domain.Location) Change {
	return func(d *domain.WizardDraft) error {
		if loc == nil {
			return domain.NewValidationError(StepTrip, "destination", "select a destination")
		}
		d.Destination = loc
		if !domain.IsAirport(loc, w.cfg.AirportKeyword) {
			d.DestinationAirportTerminal = ""
		}
		return nil
	}
}

// ChangeDestinationTerminal sets the optional drop-off terminal.
func ChangeDestinationTerminal(terminal string) Change {
	return func(d *domain.WizardDraft) error {
		if !ValidTerminal(terminal) {
			return domain.NewValidationError(StepTrip, "destination_airport_terminal", "unknown terminal")
		}
		d.DestinationAirportTerminal = terminal
		return nil
	}
}

// ChangePassengers sets the party size and vehicle requirements.
func ChangePassengers(p domain.PassengerRequirements) Change {
	return func(d *domain.WizardDraft) error {
		d.Passengers = &p
		return nil
	}
}

// ChangeNotes sets free-text instructions for the driver.
func ChangeNotes(notes string) Change {
	return func(d *domain.WizardDraft) error {
		d.Notes = notes
		return nil
	}
}

func (w *Wizard) SetSchedule(at time.Time) error { return w.Apply(ChangeSchedule(at)) }

// SetPickup stores loc unless the service-area check rejects it.
func (w *Wizard) SetPickup(loc domain.Location) error { return w.Apply(w.ChangePickup(loc)) }

func (w *Wizard) SetPickupAirport(details domain.AirportDetails) error {
	return w.Apply(ChangePickupAirport(details))
}

func (w *Wizard) SetDestination(loc domain.Location) error {
	return w.Apply(w.ChangeDestination(loc))
}

func (w *Wizard) SetDestinationTerminal(terminal string) error {
	return w.Apply(ChangeDestinationTerminal(terminal))
}

func (w *Wizard) SetPassengers(p domain.PassengerRequirements) error {
	return w.Apply(ChangePassengers(p))
}

func (w *Wizard) SetNotes(notes string) error { return w.Apply(ChangeNotes(notes)) }

func (w *Wizard) mutableLocked() error {
	if w.submitted {
		return domain.ErrAlreadySubmitted
	}
	if w.inflight != 0 {
		return domain.ErrSubmissionInFlight
	}
	return nil
}

func (w *Wizard) touch() {
	w.touchedAt = w.deps.Clock.Now()
}
