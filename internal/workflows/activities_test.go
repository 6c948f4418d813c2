package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/usecases"
)

// memRepo keeps requests in a map; only the calls the expiry path makes are
// meaningful.
type memRepo struct {
	reqs map[string]domain.Request
}

func (m *memRepo) Upsert(ctx context.Context, req *domain.Request) error {
	m.reqs[req.ID] = *req
	return nil
}

func (m *memRepo) UpsertBatch(ctx context.Context, reqs []domain.Request) error {
	for _, r := range reqs {
		m.reqs[r.ID] = r
	}
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	r, ok := m.reqs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *memRepo) List(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	return nil, nil
}

func (m *memRepo) InBounds(ctx context.Context, b domain.Bounds) ([]domain.Request, error) {
	return nil, nil
}

func (m *memRepo) MarkStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	r, ok := m.reqs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	m.reqs[id] = r
	return nil
}

func (m *memRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Request, error) {
	var out []domain.Request
	for _, r := range m.reqs {
		if !r.Status.Terminal() && !r.ExpirationTime.After(now) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

var activityNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newActivities(reqs ...domain.Request) (*ExpiryActivities, *memRepo) {
	repo := &memRepo{reqs: map[string]domain.Request{}}
	for _, r := range reqs {
		repo.reqs[r.ID] = r
	}
	return &ExpiryActivities{
		Expiry: usecases.NewExpiryService(repo, nil, nil),
		Now:    func() time.Time { return activityNow },
	}, repo
}

func TestExpireRequest_Overdue(t *testing.T) {
	a, repo := newActivities(domain.Request{
		ID:             "r1",
		Status:         domain.StatusOpen,
		ExpirationTime: activityNow.Add(-time.Minute),
	})

	expired, err := a.ExpireRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, domain.StatusCompleted, repo.reqs["r1"].Status)
}

func TestExpireRequest_NotYetDue(t *testing.T) {
	a, repo := newActivities(domain.Request{
		ID:             "r1",
		Status:         domain.StatusOpen,
		ExpirationTime: activityNow.Add(time.Hour),
	})

	expired, err := a.ExpireRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, domain.StatusOpen, repo.reqs["r1"].Status)
}

func TestExpireRequest_MissingIsNonRetryable(t *testing.T) {
	a, _ := newActivities()

	_, err := a.ExpireRequest(context.Background(), "gone")
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "NotFound", appErr.Type())
}

func TestSweepExpired(t *testing.T) {
	a, repo := newActivities(
		domain.Request{ID: "old", Status: domain.StatusInProgress, ExpirationTime: activityNow.Add(-time.Hour)},
		domain.Request{ID: "done", Status: domain.StatusCancelled, ExpirationTime: activityNow.Add(-time.Hour)},
		domain.Request{ID: "live", Status: domain.StatusOpen, ExpirationTime: activityNow.Add(time.Hour)},
	)

	n, err := a.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.StatusCompleted, repo.reqs["old"].Status)
	assert.Equal(t, domain.StatusCancelled, repo.reqs["done"].Status)
	assert.Equal(t, domain.StatusOpen, repo.reqs["live"].Status)
}
