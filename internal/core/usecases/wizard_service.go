package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/core/wizard"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
	"github.com/samirrijal/taxiportal/internal/pkg/metrics"
)

// LocationResolver turns client location input into a Location.
type LocationResolver interface {
	Resolve(ctx context.Context, in domain.LocationInput) (domain.Location, error)
}

// WizardUpdate carries the draft fields a client wants to change.
// Nil fields are left alone.
type WizardUpdate struct {
	ScheduledAt         *time.Time                    `json:"scheduled_at,omitempty"`
	Pickup              *domain.LocationInput         `json:"pickup,omitempty"`
	PickupAirport       *domain.AirportDetails        `json:"pickup_airport,omitempty"`
	Destination         *domain.LocationInput         `json:"destination,omitempty"`
	DestinationTerminal *string                       `json:"destination_airport_terminal,omitempty"`
	Passengers          *domain.PassengerRequirements `json:"passengers,omitempty"`
	Notes               *string                       `json:"notes,omitempty"`
}

// WizardService keeps the in-progress wizards of all sessions in memory.
type WizardService struct {
	mu      sync.Mutex
	wizards map[string]*wizard.Wizard

	cfg       wizard.Config
	deps      wizard.Deps
	locations LocationResolver
	idleTTL   time.Duration
}

// NewWizardService creates a new WizardService. Wizards untouched for
// idleTTL are dropped by Sweep.
func NewWizardService(cfg wizard.Config, deps wizard.Deps, locations LocationResolver, idleTTL time.Duration) *WizardService {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if idleTTL <= 0 {
		idleTTL = 2 * time.Hour
	}
	return &WizardService{
		wizards:   make(map[string]*wizard.Wizard),
		cfg:       cfg,
		deps:      deps,
		locations: locations,
		idleTTL:   idleTTL,
	}
}

// Start begins a new wizard for the session.
func (s *WizardService) Start(session ports.Session) wizard.Snapshot {
	w := wizard.New(uuid.NewString(), session, s.cfg, s.deps)

	s.mu.Lock()
	s.wizards[w.ID()] = w
	n := len(s.wizards)
	s.mu.Unlock()

	metrics.ActiveWizards.Set(float64(n))
	return w.Snapshot()
}

// Get returns the state of one of the session's wizards.
func (s *WizardService) Get(session ports.Session, id string) (wizard.Snapshot, error) {
	w, err := s.lookup(session, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	return w.Snapshot(), nil
}

// Discard drops a wizard.
func (s *WizardService) Discard(session ports.Session, id string) error {
	if _, err := s.lookup(session, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.wizards, id)
	n := len(s.wizards)
	s.mu.Unlock()
	metrics.ActiveWizards.Set(float64(n))
	return nil
}

// Update applies the non-nil fields of u as one edit. Locations are resolved
// first; if any field is rejected the draft is left untouched.
func (s *WizardService) Update(ctx context.Context, session ports.Session, id string, u WizardUpdate) (wizard.Snapshot, error) {
	w, err := s.lookup(session, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}

	err = s.apply(ctx, w, u)
	s.observe("update", err)
	return w.Snapshot(), err
}

func (s *WizardService) apply(ctx context.Context, w *wizard.Wizard, u WizardUpdate) error {
	var changes []wizard.Change
	if u.ScheduledAt != nil {
		changes = append(changes, wizard.ChangeSchedule(*u.ScheduledAt))
	}
	if u.Pickup != nil {
		loc, err := s.resolve(ctx, *u.Pickup, "pickup")
		if err != nil {
			return err
		}
		changes = append(changes, w.ChangePickup(loc))
	}
	if u.PickupAirport != nil {
		changes = append(changes, wizard.ChangePickupAirport(*u.PickupAirport))
	}
	if u.Destination != nil {
		loc, err := s.resolve(ctx, *u.Destination, "destination")
		if err != nil {
			return err
		}
		changes = append(changes, w.ChangeDestination(loc))
	}
	if u.DestinationTerminal != nil {
		changes = append(changes, wizard.ChangeDestinationTerminal(*u.DestinationTerminal))
	}
	if u.Passengers != nil {
		changes = append(changes, wizard.ChangePassengers(*u.Passengers))
	}
	if u.Notes != nil {
		changes = append(changes, wizard.ChangeNotes(*u.Notes))
	}

	err := w.Apply(changes...)
	if isField(err, "pickup") {
		metrics.GeofenceRejections.Inc()
	}
	return err
}

// Advance moves the wizard forward, submitting from the confirmation step.
func (s *WizardService) Advance(ctx context.Context, session ports.Session, id string) (wizard.Snapshot, error) {
	w, err := s.lookup(session, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	out, err := w.Advance(ctx)
	s.observe("advance", err)
	if err == nil && out.Submitted {
		logging.FromContext(ctx).Info("wizard submitted", "wizard_id", id, "booking_id", out.Confirmation.ConfirmationID)
	}
	return w.Snapshot(), err
}

// Retreat moves the wizard back one step.
func (s *WizardService) Retreat(session ports.Session, id string) (wizard.Snapshot, error) {
	return s.navigate(session, id, "retreat", func(w *wizard.Wizard) error { return w.Retreat() })
}

// JumpTo moves the wizard to a visited step.
func (s *WizardService) JumpTo(session ports.Session, id string, step int) (wizard.Snapshot, error) {
	return s.navigate(session, id, "jump", func(w *wizard.Wizard) error { return w.JumpTo(step) })
}

// Reset clears the wizard back to step 0.
func (s *WizardService) Reset(session ports.Session, id string) (wizard.Snapshot, error) {
	return s.navigate(session, id, "reset", func(w *wizard.Wizard) error { w.Reset(); return nil })
}

func (s *WizardService) navigate(session ports.Session, id, action string, fn func(*wizard.Wizard) error) (wizard.Snapshot, error) {
	w, err := s.lookup(session, id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	err = fn(w)
	s.observe(action, err)
	return w.Snapshot(), err
}

// Sweep drops wizards idle since before now-idleTTL and returns how many.
func (s *WizardService) Sweep(now time.Time) int {
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, w := range s.wizards {
		if w.Snapshot().Busy {
			continue
		}
		if w.TouchedAt().Before(cutoff) {
			delete(s.wizards, id)
			dropped++
		}
	}
	metrics.ActiveWizards.Set(float64(len(s.wizards)))
	return dropped
}

// Run sweeps idle wizards every interval until ctx is done.
func (s *WizardService) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(s.deps.Clock.Now()); n > 0 {
				logging.FromContext(ctx).Debug("dropped idle wizards", "count", n)
			}
		}
	}
}

func (s *WizardService) lookup(session ports.Session, id string) (*wizard.Wizard, error) {
	s.mu.Lock()
	w, ok := s.wizards[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("wizard %s: %w", id, domain.ErrNotFound)
	}
	if w.Owner().UserID != session.UserID {
		return nil, fmt.Errorf("wizard %s: %w", id, domain.ErrForbidden)
	}
	return w, nil
}

func (s *WizardService) resolve(ctx context.Context, in domain.LocationInput, field string) (domain.Location, error) {
	if s.locations == nil {
		return in.Freeform()
	}
	loc, err := s.locations.Resolve(ctx, in)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) && verr.Step < 0 {
			return nil, domain.NewValidationError(wizard.StepTrip, field+"."+verr.Field, verr.Reason)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError(wizard.StepTrip, field, "unknown location")
		}
		return nil, err
	}
	return loc, nil
}

func (s *WizardService) observe(action string, err error) {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		metrics.WizardTransitions.WithLabelValues(action, "ok").Inc()
	case errors.As(err, &verr):
		metrics.WizardTransitions.WithLabelValues(action, "invalid").Inc()
		metrics.WizardValidationFailures.WithLabelValues(strconv.Itoa(verr.Step), verr.Field).Inc()
	case errors.Is(err, domain.ErrSubmissionInFlight), errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrStepNotVisited), errors.Is(err, domain.ErrSupersededSubmission):
		metrics.WizardTransitions.WithLabelValues(action, "rejected").Inc()
	default:
		metrics.WizardTransitions.WithLabelValues(action, "error").Inc()
	}
}

func isField(err error, field string) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr) && verr.Field == field
}
