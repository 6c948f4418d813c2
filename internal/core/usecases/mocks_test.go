package usecases_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/campusaid/aidmap/internal/core/domain"
)

// --- Mock RequestRepository ---

type mockRequestRepo struct {
	upsertFn      func(ctx context.Context, req *domain.Request) error
	getByIDFn     func(ctx context.Context, id string) (*domain.Request, error)
	listFn        func(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error)
	inBoundsFn    func(ctx context.Context, b domain.Bounds) ([]domain.Request, error)
	markStatusFn  func(ctx context.Context, id string, status domain.RequestStatus) error
	listExpiredFn func(ctx context.Context, now time.Time, limit int) ([]domain.Request, error)
}

func (m *mockRequestRepo) Upsert(ctx context.Context, req *domain.Request) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, req)
	}
	return nil
}

func (m *mockRequestRepo) UpsertBatch(ctx context.Context, reqs []domain.Request) error { return nil }

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRequestRepo) List(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockRequestRepo) InBounds(ctx context.Context, b domain.Bounds) ([]domain.Request, error) {
	if m.inBoundsFn != nil {
		return m.inBoundsFn(ctx, b)
	}
	return nil, nil
}

func (m *mockRequestRepo) MarkStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	if m.markStatusFn != nil {
		return m.markStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockRequestRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Request, error) {
	if m.listExpiredFn != nil {
		return m.listExpiredFn(ctx, now, limit)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.RequestEvent
	err    error
}

func (m *mockPublisher) PublishRequestChanged(ctx context.Context, ev *domain.RequestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error { return nil }

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock ExpiryScheduler ---

type mockScheduler struct {
	scheduled map[string]time.Time
}

func (m *mockScheduler) ScheduleExpiry(ctx context.Context, requestID string, at time.Time) error {
	if m.scheduled == nil {
		m.scheduled = map[string]time.Time{}
	}
	m.scheduled[requestID] = at
	return nil
}

// --- Fixtures ---

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func openRequest(id, creator string, lat, lon float64) domain.Request {
	return domain.Request{
		ID:             id,
		Title:          "request " + id,
		Location:       domain.GeoPoint{Lat: lat, Lon: lon},
		Status:         domain.StatusOpen,
		StartTime:      testNow.Add(-time.Hour),
		ExpirationTime: testNow.Add(time.Hour),
		CreatorID:      creator,
		CreatedAt:      testNow.Add(-time.Hour),
	}
}
