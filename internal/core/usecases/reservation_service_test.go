package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
	"github.com/samirrijal/taxiportal/internal/core/usecases"
)

func sampleReservation(bookingID string, at time.Time) *domain.Reservation {
	return &domain.Reservation{
		ID:          "r-" + bookingID,
		BookingID:   bookingID,
		UserID:      "u1",
		BookingDate: at,
		Pickup:      domain.ReservationStop{Type: domain.StopTypeAirport, Address: "Aeropuerto T1", Terminal: "T1", FlightNumber: "IB1234", FlightOrigin: "Madrid"},
		Destination: domain.ReservationStop{Type: domain.StopTypeAddress, Address: "Passeig de Gràcia 43"},
		Passengers:  3,
		ChildSeat:   true,
		Status:      domain.ReservationConfirmed,
		CreatedAt:   now.Add(-24 * time.Hour),
	}
}

func TestReservationService_List_Pagination(t *testing.T) {
	repo := &mockReservationRepo{
		listFn: func(ctx context.Context, userID string, f domain.ReservationFilter, n time.Time, limit, offset int) (*ports.ReservationPage, error) {
			if userID != "u1" || f != domain.FilterUpcoming {
				t.Errorf("unexpected args %s %s", userID, f)
			}
			if limit != 10 || offset != 20 {
				t.Errorf("expected limit 10 offset 20, got %d %d", limit, offset)
			}
			return &ports.ReservationPage{
				Reservations: []domain.Reservation{
					*sampleReservation("A", now.Add(2*time.Hour)),
					*sampleReservation("B", now.Add(48*time.Hour)),
				},
				Total: 22,
			}, nil
		},
	}
	svc := usecases.NewReservationService(repo, &mockGateway{}, nil, &fixedClock{now: now})

	list, err := svc.List(context.Background(), "u1", domain.FilterUpcoming, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := list.Pagination
	if p.Page != 3 || p.Limit != 10 || p.TotalItems != 22 || p.TotalPages != 3 {
		t.Errorf("unexpected pagination %+v", p)
	}
	if list.Data[0].DisplayStatus != domain.DisplayToday || list.Data[1].DisplayStatus != domain.DisplayUpcoming {
		t.Errorf("unexpected display statuses: %s, %s", list.Data[0].DisplayStatus, list.Data[1].DisplayStatus)
	}
	if !list.Data[0].CanCancel {
		t.Error("future reservation should be cancellable")
	}
}

func TestReservationService_List_ClampLimit(t *testing.T) {
	repo := &mockReservationRepo{
		listFn: func(ctx context.Context, userID string, f domain.ReservationFilter, n time.Time, limit, offset int) (*ports.ReservationPage, error) {
			if limit != 50 || offset != 0 {
				t.Errorf("expected limit 50 offset 0, got %d %d", limit, offset)
			}
			return &ports.ReservationPage{}, nil
		},
	}
	svc := usecases.NewReservationService(repo, &mockGateway{}, nil, &fixedClock{now: now})
	list, err := svc.List(context.Background(), "u1", domain.FilterAll, -1, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Pagination.TotalPages != 0 || len(list.Data) != 0 {
		t.Errorf("unexpected empty page %+v", list)
	}
}

func TestReservationService_Cancel(t *testing.T) {
	var markedAt time.Time
	repo := &mockReservationRepo{
		getFn: func(ctx context.Context, userID, bookingID string) (*domain.Reservation, error) {
			return sampleReservation(bookingID, now.Add(24*time.Hour)), nil
		},
		markCancelledFn: func(ctx context.Context, userID, bookingID string, at time.Time) error {
			markedAt = at
			return nil
		},
	}
	gw := &mockGateway{}
	pub := &mockPublisher{}
	svc := usecases.NewReservationService(repo, gw, pub, &fixedClock{now: now})

	v, err := svc.Cancel(context.Background(), "u1", "AUR-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Status != domain.ReservationCancelled || v.DisplayStatus != domain.DisplayCancelled || v.CanCancel {
		t.Errorf("unexpected view after cancel: %+v", v)
	}
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "AUR-9" {
		t.Errorf("expected dispatch cancel for AUR-9, got %v", gw.cancelled)
	}
	if !markedAt.Equal(now) {
		t.Errorf("expected local cancel at %s, got %s", now, markedAt)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != domain.EventReservationCancelled {
		t.Errorf("expected cancelled event, got %+v", pub.events)
	}
	if types := pub.activityTypes(); len(types) != 1 || types[0] != domain.ActivityReservationCancelled {
		t.Errorf("expected cancellation activity, got %v", types)
	}
}

func TestReservationService_Cancel_Rejected(t *testing.T) {
	tests := []struct {
		name string
		r    *domain.Reservation
	}{
		{"past", sampleReservation("P", now.Add(-time.Hour))},
		{"already cancelled", func() *domain.Reservation {
			r := sampleReservation("C", now.Add(time.Hour))
			r.Status = domain.ReservationCancelled
			return r
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockReservationRepo{
				getFn: func(ctx context.Context, userID, bookingID string) (*domain.Reservation, error) {
					return tt.r, nil
				},
			}
			gw := &mockGateway{}
			svc := usecases.NewReservationService(repo, gw, nil, &fixedClock{now: now})
			_, err := svc.Cancel(context.Background(), "u1", tt.r.BookingID)
			if !errors.Is(err, domain.ErrConflict) {
				t.Errorf("expected ErrConflict, got %v", err)
			}
			if len(gw.cancelled) != 0 {
				t.Error("dispatch API must not be called")
			}
		})
	}
}

func TestReservationService_Cancel_DispatchFailureKeepsLocal(t *testing.T) {
	marked := false
	repo := &mockReservationRepo{
		getFn: func(ctx context.Context, userID, bookingID string) (*domain.Reservation, error) {
			return sampleReservation(bookingID, now.Add(24*time.Hour)), nil
		},
		markCancelledFn: func(ctx context.Context, userID, bookingID string, at time.Time) error {
			marked = true
			return nil
		},
	}
	gw := &mockGateway{cancelFn: func(ctx context.Context, id string) error { return errors.New("timeout") }}
	svc := usecases.NewReservationService(repo, gw, nil, &fixedClock{now: now})

	if _, err := svc.Cancel(context.Background(), "u1", "AUR-9"); err == nil {
		t.Fatal("expected error")
	}
	if marked {
		t.Error("local record must stay confirmed when the dispatch API fails")
	}
}

func TestReservationService_Get_NotFound(t *testing.T) {
	svc := usecases.NewReservationService(&mockReservationRepo{}, &mockGateway{}, nil, &fixedClock{now: now})
	if _, err := svc.Get(context.Background(), "u1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReservationService_Stats(t *testing.T) {
	totals := map[domain.ReservationFilter]int{
		domain.FilterUpcoming: 4,
		domain.FilterPast:     7,
		domain.FilterAll:      11,
	}
	repo := &mockReservationRepo{
		listFn: func(ctx context.Context, userID string, f domain.ReservationFilter, n time.Time, limit, offset int) (*ports.ReservationPage, error) {
			return &ports.ReservationPage{Total: totals[f]}, nil
		},
		countTodayFn: func(ctx context.Context, userID string, n time.Time) (int, error) {
			return 1, nil
		},
	}
	svc := usecases.NewReservationService(repo, &mockGateway{}, nil, &fixedClock{now: now})

	st, err := svc.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.ReservationStats{Upcoming: 4, Today: 1, Completed: 7, Total: 11}
	if *st != want {
		t.Errorf("expected %+v, got %+v", want, *st)
	}
}

func TestFormatReceipt(t *testing.T) {
	r := sampleReservation("AUR-77", time.Date(2025, 6, 3, 14, 30, 0, 0, time.UTC))
	r.SpecialInstructions = "Dos maletas"

	out := usecases.FormatReceipt(r, now)
	for _, want := range []string{"AUR-77", "03/06/2025 14:30", "Aeropuerto T1", "IB1234", "Madrid", "Passeig de Gràcia 43", "Dos maletas", "upcoming"} {
		if !strings.Contains(out, want) {
			t.Errorf("receipt missing %q:\n%s", want, out)
		}
	}
}
