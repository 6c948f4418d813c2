//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/campusaid/aidmap/internal/adapters/postgres"
	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/migrations"
)

func setupTestDB(t *testing.T) *postgres.DB {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgis/postgis:16-3.4",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "aidmap",
			"POSTGRES_USER":     "aidmap",
			"POSTGRES_PASSWORD": "aidmap",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := postgres.New(ctx, "postgres://aidmap:aidmap@"+host+":"+port.Port()+"/aidmap?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	applied, err := db.Migrate(ctx, migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	return db
}

func newRequest(title string, lat, lon float64, start time.Time) domain.Request {
	return domain.Request{
		ID:             uuid.NewString(),
		Title:          title,
		Types:          []domain.RequestType{domain.TypeStudying},
		Location:       domain.GeoPoint{Lat: lat, Lon: lon},
		LocationName:   "BC",
		Status:         domain.StatusOpen,
		StartTime:      start,
		ExpirationTime: start.Add(2 * time.Hour),
		Tags:           []domain.Tag{domain.TagIndoor},
		CreatorID:      "alice",
		CreatedAt:      start,
	}
}

func TestRequestRepo(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewRequestRepo(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	bc := newRequest("algebra", 46.5186, 6.5616, now)
	rolex := newRequest("lunch", 46.5184, 6.5680, now.Add(time.Minute))
	geneva := newRequest("far away", 46.2044, 6.1432, now.Add(2*time.Minute))
	geneva.CreatorID = "bob"
	old := newRequest("yesterday", 46.5190, 6.5660, now.Add(-48*time.Hour))

	require.NoError(t, repo.Upsert(ctx, &bc))
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Request{rolex, geneva, old}))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, bc.ID)
		require.NoError(t, err)
		assert.Equal(t, bc.Title, got.Title)
		assert.InDelta(t, bc.Location.Lat, got.Location.Lat, 1e-9)
		assert.InDelta(t, bc.Location.Lon, got.Location.Lon, 1e-9)
		assert.Equal(t, bc.Types, got.Types)
		assert.Equal(t, bc.Tags, got.Tags)
		assert.True(t, bc.StartTime.Equal(got.StartTime))
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.NewString())
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("in bounds", func(t *testing.T) {
		got, err := repo.InBounds(ctx, domain.Bounds{MinLat: 46.5, MinLon: 6.5, MaxLat: 46.6, MaxLon: 6.6})
		require.NoError(t, err)
		ids := requestIDs(got)
		assert.Equal(t, []string{old.ID, bc.ID, rolex.ID}, ids)
	})

	t.Run("active filter", func(t *testing.T) {
		got, err := repo.List(ctx, domain.RequestFilter{ActiveAt: &now})
		require.NoError(t, err)
		assert.Equal(t, []string{bc.ID, rolex.ID, geneva.ID}, requestIDs(got))
	})

	t.Run("creator and pagination", func(t *testing.T) {
		got, err := repo.List(ctx, domain.RequestFilter{CreatorID: "alice", Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{bc.ID}, requestIDs(got))
	})

	t.Run("expired then marked", func(t *testing.T) {
		expired, err := repo.ListExpired(ctx, now, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{old.ID}, requestIDs(expired))

		require.NoError(t, repo.MarkStatus(ctx, old.ID, domain.StatusCompleted))
		expired, err = repo.ListExpired(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, expired)

		err = repo.MarkStatus(ctx, uuid.NewString(), domain.StatusCompleted)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		applied, err := db.Migrate(ctx, migrations.FS)
		require.NoError(t, err)
		assert.Empty(t, applied)
	})
}

func requestIDs(reqs []domain.Request) []string {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}
