package usecases_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
)

// --- Clock ---

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

var now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// --- Mock LocationRepository ---

type mockLocationRepo struct {
	listFn    func(ctx context.Context) ([]domain.PredefinedLocation, error)
	getByIDFn func(ctx context.Context, id string) (*domain.PredefinedLocation, error)
	searchFn  func(ctx context.Context, query string, limit int) ([]domain.PredefinedLocation, error)
}

func (m *mockLocationRepo) List(ctx context.Context) ([]domain.PredefinedLocation, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockLocationRepo) GetByID(ctx context.Context, id string) (*domain.PredefinedLocation, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockLocationRepo) Search(ctx context.Context, query string, limit int) ([]domain.PredefinedLocation, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

// --- Mock ReservationRepository ---

type mockReservationRepo struct {
	createFn        func(ctx context.Context, r *domain.Reservation) error
	getFn           func(ctx context.Context, userID, bookingID string) (*domain.Reservation, error)
	listFn          func(ctx context.Context, userID string, f domain.ReservationFilter, now time.Time, limit, offset int) (*ports.ReservationPage, error)
	countTodayFn    func(ctx context.Context, userID string, now time.Time) (int, error)
	markCancelledFn func(ctx context.Context, userID, bookingID string, at time.Time) error
}

func (m *mockReservationRepo) Create(ctx context.Context, r *domain.Reservation) error {
	if m.createFn != nil {
		return m.createFn(ctx, r)
	}
	return nil
}

func (m *mockReservationRepo) GetByBookingID(ctx context.Context, userID, bookingID string) (*domain.Reservation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, bookingID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockReservationRepo) List(ctx context.Context, userID string, f domain.ReservationFilter, now time.Time, limit, offset int) (*ports.ReservationPage, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, f, now, limit, offset)
	}
	return &ports.ReservationPage{}, nil
}

func (m *mockReservationRepo) CountToday(ctx context.Context, userID string, now time.Time) (int, error) {
	if m.countTodayFn != nil {
		return m.countTodayFn(ctx, userID, now)
	}
	return 0, nil
}

func (m *mockReservationRepo) MarkCancelled(ctx context.Context, userID, bookingID string, at time.Time) error {
	if m.markCancelledFn != nil {
		return m.markCancelledFn(ctx, userID, bookingID, at)
	}
	return nil
}

// --- Mock UserRepository ---

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepo(users ...*domain.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, name, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Name, u.Phone = name, phone
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockUserRepo) SetTwoFactor(ctx context.Context, id string, enabled bool, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.TwoFactorEnabled, u.TwoFactorEmail = enabled, email
	return nil
}

// --- Mock ActivityRepository ---

type mockActivityRepo struct {
	inserted []domain.Activity
	listFn   func(ctx context.Context, userID string, limit, offset int) ([]domain.Activity, error)
}

func (m *mockActivityRepo) Insert(ctx context.Context, a *domain.Activity) error {
	m.inserted = append(m.inserted, *a)
	return nil
}

func (m *mockActivityRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Activity, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, limit, offset)
	}
	return nil, nil
}

// --- Mock BookingGateway ---

type mockGateway struct {
	createFn  func(ctx context.Context, req domain.ReservationRequest) (*domain.SubmissionResult, error)
	cancelFn  func(ctx context.Context, bookingID string) error
	cancelled []string
}

func (m *mockGateway) CreateBooking(ctx context.Context, req domain.ReservationRequest) (*domain.SubmissionResult, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &domain.SubmissionResult{Success: true, ConfirmationID: "AUR-1"}, nil
}

func (m *mockGateway) CancelBooking(ctx context.Context, bookingID string) error {
	m.cancelled = append(m.cancelled, bookingID)
	if m.cancelFn != nil {
		return m.cancelFn(ctx, bookingID)
	}
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu         sync.Mutex
	events     []domain.ReservationEvent
	activities []domain.Activity
	fail       bool
}

func (m *mockPublisher) PublishReservationEvent(ctx context.Context, e *domain.ReservationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("broker down")
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *mockPublisher) PublishActivity(ctx context.Context, a *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("broker down")
	}
	m.activities = append(m.activities, *a)
	return nil
}

func (m *mockPublisher) activityTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.activities))
	for i, a := range m.activities {
		out[i] = a.Type
	}
	return out
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock NotificationService ---

type sentEmail struct{ to, subject, body string }

type mockNotifier struct {
	sent []sentEmail
	err  error
}

func (m *mockNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{to, subject, body})
	return nil
}
