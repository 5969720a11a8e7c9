package wizard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/geofence"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/core/wizard"
)

// --- Fakes ---

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type mockSubmitter struct {
	submitFn func(ctx context.Context, s ports.Session, req domain.ReservationRequest) (*domain.SubmissionResult, error)
	calls    int
	last     domain.ReservationRequest
}

func (m *mockSubmitter) Submit(ctx context.Context, s ports.Session, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
	m.calls++
	m.last = req
	if m.submitFn != nil {
		return m.submitFn(ctx, s, req)
	}
	return &domain.SubmissionResult{Success: true, ConfirmationID: "AUR-1001"}, nil
}

var now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newWizard(t *testing.T, sub ports.ReservationSubmitter) *wizard.Wizard {
	t.Helper()
	fence, err := geofence.New(geofence.Config{
		Enabled: true,
		Polygon: domain.Polygon{Vertices: []domain.GeoPoint{
			{Lat: 41.20, Lon: 1.90},
			{Lat: 41.20, Lon: 2.35},
			{Lat: 41.55, Lon: 2.35},
			{Lat: 41.55, Lon: 1.90},
		}},
		ErrorMessage: "outside the service area",
	})
	if err != nil {
		t.Fatalf("geofence: %v", err)
	}
	return wizard.New("wiz-1", ports.Session{UserID: "u1", Email: "ana@example.com"}, wizard.Config{}, wizard.Deps{
		Clock:     &fixedClock{now: now},
		Fence:     fence,
		Submitter: sub,
	})
}

var (
	airport = domain.PredefinedLocation{
		ID: "loc-bcn", Name: "Aeropuerto de Barcelona-El Prat T1", FullAddress: "Aeropuerto T1, El Prat de Llobregat",
		Location: domain.GeoPoint{Lat: 41.2889, Lon: 2.0727}, Category: "airport",
	}
	sants = domain.PredefinedLocation{
		ID: "loc-sants", Name: "Estació de Sants", FullAddress: "Plaça dels Països Catalans, Barcelona",
		Location: domain.GeoPoint{Lat: 41.3793, Lon: 2.1402}, Category: "station",
	}
	hotel = domain.FreeformAddress{
		FormattedAddress: "Passeig de Gràcia 43, Barcelona",
		Location:         domain.GeoPoint{Lat: 41.3917, Lon: 2.1649},
		PlaceReference:   "ChIJ-place",
	}
	girona = domain.FreeformAddress{
		FormattedAddress: "Plaça Independència, Girona",
		Location:         domain.GeoPoint{Lat: 41.9840, Lon: 2.8240},
	}
)

func mustValidation(t *testing.T, err error, field string) *domain.ValidationError {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError on %s, got %v", field, err)
	}
	if verr.Field != field {
		t.Fatalf("expected field %q, got %q (%s)", field, verr.Field, verr.Reason)
	}
	return verr
}

// fill completes steps 0..2 and advances to confirmation.
func fill(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	ctx := context.Background()
	if err := w.SetSchedule(now.Add(5 * time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Advance(ctx); err != nil {
		t.Fatalf("advance step 0: %v", err)
	}
	if err := w.SetPickup(hotel); err != nil {
		t.Fatal(err)
	}
	if err := w.SetDestination(sants); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Advance(ctx); err != nil {
		t.Fatalf("advance step 1: %v", err)
	}
	if err := w.SetPassengers(domain.PassengerRequirements{PassengerCount: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Advance(ctx); err != nil {
		t.Fatalf("advance step 2: %v", err)
	}
	if s := w.Snapshot(); s.CurrentStep != wizard.StepConfirmation {
		t.Fatalf("expected confirmation step, got %d", s.CurrentStep)
	}
}

// --- Step 0 ---

func TestAdvance_RequiresSchedule(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})

	_, err := w.Advance(context.Background())
	verr := mustValidation(t, err, "scheduled_at")
	if verr.Step != wizard.StepDateTime {
		t.Errorf("expected step 0, got %d", verr.Step)
	}
	if s := w.Snapshot(); s.CurrentStep != 0 || len(s.VisitedSteps) != 1 {
		t.Errorf("state changed on failure: %+v", s)
	}
}

func TestStepDateTime_LeadTime(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		ok     bool
	}{
		{"two hours ahead", 2 * time.Hour, false},
		{"just under three hours", 3*time.Hour - time.Minute, false},
		{"exactly three hours", 3 * time.Hour, true},
		{"four hours ahead", 4 * time.Hour, true},
		{"in the past", -time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWizard(t, &mockSubmitter{})
			_ = w.SetSchedule(now.Add(tt.offset))
			err := w.IsStepComplete(wizard.StepDateTime)
			if tt.ok && err != nil {
				t.Errorf("expected complete, got %v", err)
			}
			if !tt.ok {
				mustValidation(t, err, "scheduled_at")
			}
		})
	}
}

// --- Step 1 ---

func TestStepTrip(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})

	mustValidation(t, w.IsStepComplete(wizard.StepTrip), "pickup")

	_ = w.SetPickup(hotel)
	mustValidation(t, w.IsStepComplete(wizard.StepTrip), "destination")

	same := domain.FreeformAddress{FormattedAddress: hotel.FormattedAddress, Location: domain.GeoPoint{Lat: 41.40, Lon: 2.15}}
	_ = w.SetDestination(same)
	mustValidation(t, w.IsStepComplete(wizard.StepTrip), "destination")

	_ = w.SetDestination(sants)
	if err := w.IsStepComplete(wizard.StepTrip); err != nil {
		t.Errorf("expected complete, got %v", err)
	}
}

func TestStepTrip_AirportPickupNeedsFlight(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	_ = w.SetPickup(airport)
	_ = w.SetDestination(hotel)

	mustValidation(t, w.IsStepComplete(wizard.StepTrip), "pickup_airport.flight_number")

	_ = w.SetPickupAirport(domain.AirportDetails{Origin: "Madrid"})
	mustValidation(t, w.IsStepComplete(wizard.StepTrip), "pickup_airport.flight_number")

	_ = w.SetPickupAirport(domain.AirportDetails{FlightNumber: "IB1234"})
	mustValidation(t, w.IsStepComplete(wizard.StepTrip), "pickup_airport.origin")

	_ = w.SetPickupAirport(domain.AirportDetails{FlightNumber: "IB1234", Origin: "Madrid"})
	if err := w.IsStepComplete(wizard.StepTrip); err != nil {
		t.Errorf("terminal must stay optional, got %v", err)
	}

	// Any non-empty value counts as filled in, blanks included.
	_ = w.SetPickupAirport(domain.AirportDetails{FlightNumber: " ", Origin: " "})
	if err := w.IsStepComplete(wizard.StepTrip); err != nil {
		t.Errorf("non-empty flight fields rejected: %v", err)
	}
}

func TestStepTrip_AirportDestinationNeedsNothing(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	_ = w.SetPickup(hotel)
	_ = w.SetDestination(airport)
	if err := w.IsStepComplete(wizard.StepTrip); err != nil {
		t.Errorf("expected complete, got %v", err)
	}
}

func TestSetPickup_OutsideServiceArea(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	verr := mustValidation(t, w.SetPickup(girona), "pickup")
	if verr.Reason != "outside the service area" {
		t.Errorf("unexpected reason %q", verr.Reason)
	}
	if w.Snapshot().Draft.Pickup != nil {
		t.Error("rejected pickup must not be stored")
	}

	// destinations are not restricted
	if err := w.SetDestination(girona); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSetPickup_NonAirportClearsFlightDetails(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	_ = w.SetPickup(airport)
	_ = w.SetPickupAirport(domain.AirportDetails{Terminal: "T1", FlightNumber: "VY100", Origin: "París"})
	_ = w.SetPickup(hotel)
	if a := w.Snapshot().Draft.PickupAirport; a != nil {
		t.Errorf("expected airport details cleared, got %+v", a)
	}
}

func TestSetPickupAirport_UnknownTerminal(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	mustValidation(t, w.SetPickupAirport(domain.AirportDetails{Terminal: "T9"}), "pickup_airport.terminal")
}

func TestApply_AllOrNothing(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	at := now.Add(4 * time.Hour)
	if err := w.Apply(wizard.ChangeSchedule(at), w.ChangePickup(hotel)); err != nil {
		t.Fatal(err)
	}

	err := w.Apply(
		wizard.ChangeSchedule(now.Add(8*time.Hour)),
		wizard.ChangeNotes("llamar al llegar"),
		w.ChangePickup(girona),
	)
	mustValidation(t, err, "pickup")

	d := w.Snapshot().Draft
	if d.ScheduledAt == nil || !d.ScheduledAt.Equal(at) {
		t.Errorf("schedule changed by a rejected apply: %v", d.ScheduledAt)
	}
	if d.Notes != "" {
		t.Errorf("notes changed by a rejected apply: %q", d.Notes)
	}
	if d.Pickup == nil || d.Pickup.Address() != hotel.Address() {
		t.Errorf("pickup changed by a rejected apply: %v", d.Pickup)
	}
}

// --- Step 2 ---

func TestStepPassengers(t *testing.T) {
	tests := []struct {
		name  string
		p     *domain.PassengerRequirements
		field string // empty means complete
	}{
		{"missing", nil, "passengers"},
		{"zero", &domain.PassengerRequirements{}, "passengers"},
		{"too many", &domain.PassengerRequirements{PassengerCount: 8, Vehicle7: true}, "passengers"},
		{"four plain", &domain.PassengerRequirements{PassengerCount: 4}, ""},
		{"four with child seat", &domain.PassengerRequirements{PassengerCount: 4, ChildSeat: true}, ""},
		{"five without vehicle", &domain.PassengerRequirements{PassengerCount: 5}, "vehicle_5_6"},
		{"five with 5-6", &domain.PassengerRequirements{PassengerCount: 5, Vehicle5to6: true}, ""},
		{"six with 7", &domain.PassengerRequirements{PassengerCount: 6, Vehicle7: true}, ""},
		{"seven without 7", &domain.PassengerRequirements{PassengerCount: 7}, "vehicle_7"},
		{"seven with 5-6 only", &domain.PassengerRequirements{PassengerCount: 7, Vehicle5to6: true}, "vehicle_7"},
		{"seven with 7", &domain.PassengerRequirements{PassengerCount: 7, Vehicle7: true}, ""},
		{"seven with both", &domain.PassengerRequirements{PassengerCount: 7, Vehicle7: true, Vehicle5to6: true}, "vehicle"},
		{"two with both", &domain.PassengerRequirements{PassengerCount: 2, Vehicle7: true, Vehicle5to6: true}, "vehicle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := domain.WizardDraft{Passengers: tt.p}
			err := wizard.CheckStep(wizard.StepPassengers, draft, now, wizard.Config{})
			if tt.field == "" {
				if err != nil {
					t.Errorf("expected complete, got %v", err)
				}
				return
			}
			mustValidation(t, err, tt.field)
		})
	}
}

func TestStepConfirmation_NeverComplete(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	fill(t, w)
	if err := w.IsStepComplete(wizard.StepConfirmation); !errors.Is(err, domain.ErrConfirmationPending) {
		t.Errorf("expected ErrConfirmationPending, got %v", err)
	}
}

// --- Navigation ---

func TestAdvance_NeverSkipsValidation(t *testing.T) {
	drafts := []func(w *wizard.Wizard){
		func(w *wizard.Wizard) {},
		func(w *wizard.Wizard) { _ = w.SetSchedule(now.Add(time.Hour)) },
		func(w *wizard.Wizard) { _ = w.SetSchedule(now.Add(6 * time.Hour)) },
		func(w *wizard.Wizard) {
			_ = w.SetSchedule(now.Add(6 * time.Hour))
			_ = w.SetPickup(airport)
			_ = w.SetDestination(hotel)
		},
		func(w *wizard.Wizard) {
			_ = w.SetSchedule(now.Add(6 * time.Hour))
			_ = w.SetPickup(hotel)
			_ = w.SetDestination(sants)
			_ = w.SetPassengers(domain.PassengerRequirements{PassengerCount: 7})
		},
	}

	for i, setup := range drafts {
		w := newWizard(t, &mockSubmitter{})
		setup(w)
		for n := 0; n < 6; n++ {
			before := w.Snapshot().CurrentStep
			if before == wizard.StepConfirmation {
				break
			}
			check := w.IsStepComplete(before)
			_, err := w.Advance(context.Background())
			after := w.Snapshot().CurrentStep

			if check != nil && after != before {
				t.Errorf("draft %d: advanced from %d despite %v", i, before, check)
			}
			if check == nil && (err != nil || after != before+1) {
				t.Errorf("draft %d: expected advance from %d, got step %d err %v", i, before, after, err)
			}
			if after > wizard.StepConfirmation {
				t.Fatalf("draft %d: step went past confirmation", i)
			}
			if err != nil {
				break
			}
		}
	}
}

func TestRetreat(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	if err := w.Retreat(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := w.Snapshot(); s.CurrentStep != 0 {
		t.Errorf("expected step 0, got %d", s.CurrentStep)
	}

	fill(t, w)
	_ = w.SetPassengers(domain.PassengerRequirements{PassengerCount: 7}) // now invalid
	if err := w.Retreat(); err != nil {
		t.Fatalf("retreat must not validate: %v", err)
	}
	if s := w.Snapshot(); s.CurrentStep != wizard.StepPassengers {
		t.Errorf("expected step 2, got %d", s.CurrentStep)
	}
}

func TestJumpTo_UnvisitedRejected(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	_ = w.SetSchedule(now.Add(5 * time.Hour))
	before := w.Snapshot()

	for _, target := range []int{1, 2, 3, 7, -1} {
		if err := w.JumpTo(target); !errors.Is(err, domain.ErrStepNotVisited) {
			t.Errorf("target %d: expected ErrStepNotVisited, got %v", target, err)
		}
	}

	after := w.Snapshot()
	if after.CurrentStep != before.CurrentStep || len(after.VisitedSteps) != len(before.VisitedSteps) {
		t.Errorf("jump to unvisited step changed state: %+v -> %+v", before, after)
	}
}

func TestJumpTo_ForwardRequiresIntermediateSteps(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	fill(t, w)

	if err := w.JumpTo(0); err != nil {
		t.Fatalf("backward jump: %v", err)
	}
	if err := w.JumpTo(3); err != nil {
		t.Fatalf("forward jump over complete steps: %v", err)
	}

	_ = w.JumpTo(0)
	_ = w.SetPassengers(domain.PassengerRequirements{PassengerCount: 6})
	err := w.JumpTo(3)
	verr := mustValidation(t, err, "vehicle_5_6")
	if verr.Step != wizard.StepPassengers {
		t.Errorf("expected blocking step 2, got %d", verr.Step)
	}
	if s := w.Snapshot(); s.CurrentStep != 0 {
		t.Errorf("rejected jump moved wizard to %d", s.CurrentStep)
	}

	if err := w.JumpTo(2); err != nil {
		t.Errorf("jump up to the incomplete step itself should pass: %v", err)
	}
}

func TestReset(t *testing.T) {
	w := newWizard(t, &mockSubmitter{})
	fill(t, w)
	w.Reset()

	s := w.Snapshot()
	if s.CurrentStep != 0 || len(s.VisitedSteps) != 1 || s.VisitedSteps[0] != 0 {
		t.Errorf("unexpected state after reset: %+v", s)
	}
	if s.Draft.ScheduledAt != nil || s.Draft.Pickup != nil || s.Draft.Passengers != nil {
		t.Errorf("draft not discarded: %+v", s.Draft)
	}
}

// --- Submission ---

func TestSubmit_Success(t *testing.T) {
	sub := &mockSubmitter{}
	w := newWizard(t, sub)
	fill(t, w)
	_ = w.SetNotes("two suitcases")

	out, err := w.Advance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Submitted || out.Confirmation.ConfirmationID != "AUR-1001" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if sub.last.SpecialInstructions != "two suitcases" || sub.last.NumberOfPassengers != 2 {
		t.Errorf("payload not passed through: %+v", sub.last)
	}

	s := w.Snapshot()
	if !s.Submitted || s.Confirmation == nil {
		t.Errorf("expected submitted snapshot, got %+v", s)
	}
	if _, err := w.Advance(context.Background()); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}
	if sub.calls != 1 {
		t.Errorf("expected exactly one submission, got %d", sub.calls)
	}
}

func TestSubmit_FailureKeepsDraft(t *testing.T) {
	fail := true
	sub := &mockSubmitter{
		submitFn: func(ctx context.Context, s ports.Session, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
			if fail {
				return nil, errors.New("dispatch API unavailable")
			}
			return &domain.SubmissionResult{Success: true, ConfirmationID: "AUR-2"}, nil
		},
	}
	w := newWizard(t, sub)
	fill(t, w)
	before := w.Snapshot()

	_, err := w.Advance(context.Background())
	var serr *domain.SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}

	after := w.Snapshot()
	if after.CurrentStep != wizard.StepConfirmation || after.Submitted || after.Busy {
		t.Errorf("unexpected state after failure: %+v", after)
	}
	if len(after.VisitedSteps) != len(before.VisitedSteps) {
		t.Errorf("visited steps mutated: %v -> %v", before.VisitedSteps, after.VisitedSteps)
	}
	if after.Draft.Pickup == nil || after.Draft.Passengers == nil {
		t.Error("draft discarded after failure")
	}

	fail = false
	out, err := w.Advance(context.Background())
	if err != nil || out.Confirmation.ConfirmationID != "AUR-2" {
		t.Errorf("retry failed: %+v %v", out, err)
	}
}

func TestSubmit_RejectedByAPI(t *testing.T) {
	sub := &mockSubmitter{
		submitFn: func(ctx context.Context, s ports.Session, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
			return &domain.SubmissionResult{Success: false, Message: "no vehicles available"}, nil
		},
	}
	w := newWizard(t, sub)
	fill(t, w)

	_, err := w.Advance(context.Background())
	var serr *domain.SubmissionError
	if !errors.As(err, &serr) || serr.Cause.Error() != "no vehicles available" {
		t.Fatalf("expected SubmissionError with API message, got %v", err)
	}
}

func TestSubmit_PassesOwnerSession(t *testing.T) {
	var got ports.Session
	sub := &mockSubmitter{
		submitFn: func(ctx context.Context, s ports.Session, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
			got = s
			return &domain.SubmissionResult{Success: true, ConfirmationID: "X"}, nil
		},
	}
	w := newWizard(t, sub)
	fill(t, w)
	_, _ = w.Advance(context.Background())
	if got.UserID != "u1" {
		t.Errorf("expected owner session, got %+v", got)
	}
}

func TestSubmit_InFlightAndSuperseded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sub := &mockSubmitter{
		submitFn: func(ctx context.Context, s ports.Session, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
			close(started)
			<-release
			return &domain.SubmissionResult{Success: true, ConfirmationID: "late"}, nil
		},
	}
	w := newWizard(t, sub)
	fill(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := w.Advance(context.Background())
		done <- err
	}()
	<-started

	if !w.Snapshot().Busy {
		t.Error("expected busy during submission")
	}
	if err := w.Retreat(); !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Errorf("retreat: expected ErrSubmissionInFlight, got %v", err)
	}
	if _, err := w.Advance(context.Background()); !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Errorf("advance: expected ErrSubmissionInFlight, got %v", err)
	}
	if err := w.SetNotes("x"); !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Errorf("set: expected ErrSubmissionInFlight, got %v", err)
	}

	w.Reset()
	close(release)

	if err := <-done; !errors.Is(err, domain.ErrSupersededSubmission) {
		t.Errorf("expected ErrSupersededSubmission, got %v", err)
	}
	s := w.Snapshot()
	if s.Submitted || s.Confirmation != nil || s.CurrentStep != 0 {
		t.Errorf("late result leaked into reset wizard: %+v", s)
	}
}

func TestSubmit_PastDateRejected(t *testing.T) {
	clock := &fixedClock{now: now}
	sub := &mockSubmitter{}
	w := wizard.New("w", ports.Session{UserID: "u1"}, wizard.Config{}, wizard.Deps{Clock: clock, Submitter: sub})
	_ = w.SetSchedule(now.Add(4 * time.Hour))
	_, _ = w.Advance(context.Background())
	_ = w.SetPickup(hotel)
	_ = w.SetDestination(sants)
	_, _ = w.Advance(context.Background())
	_ = w.SetPassengers(domain.PassengerRequirements{PassengerCount: 1})
	_, _ = w.Advance(context.Background())

	clock.now = now.Add(5 * time.Hour)
	_, err := w.Advance(context.Background())
	verr := mustValidation(t, err, "scheduled_at")
	if verr.Step != wizard.StepConfirmation {
		t.Errorf("expected confirmation step error, got %d", verr.Step)
	}
	if sub.calls != 0 {
		t.Error("past reservation must not be submitted")
	}
}
