//go:build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	handler "github.com/campusaid/aidmap/internal/adapters/http"
	"github.com/campusaid/aidmap/internal/adapters/postgres"
	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/usecases"
	"github.com/campusaid/aidmap/migrations"
)

// setupTestDB starts a PostGIS container and returns a migrated DB.
func setupTestDB(t *testing.T) *postgres.DB {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
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
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgis: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	db, err := postgres.New(ctx, "postgres://aidmap:aidmap@"+host+":"+port.Port()+"/aidmap?sslmode=disable")
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// setupTestDeps wires real services over the database, without cache or NATS.
func setupTestDeps(db *postgres.DB) *handler.Dependencies {
	repo := postgres.NewRequestRepo(db)
	return &handler.Dependencies{
		Requests: usecases.NewRequestService(repo, nil, nil),
		Map:      usecases.NewMapService(repo, nil, usecases.DefaultMapConfig()),
		DB:       db,
	}
}

func TestCreateThenCluster_Integration(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(db))

	exp := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	for _, loc := range []string{`{"lat":46.5191,"lon":6.5668}`, `{"lat":46.5194,"lon":6.5670}`} {
		body := `{"title":"Study session","creator_id":"alice","location":` + loc + `,"expiration_time":"` + exp + `"}`
		req := httptest.NewRequest("POST", "/v1/requests", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("create: expected 201, got %d", resp.StatusCode)
		}
	}

	req := httptest.NewRequest("GET", "/v1/map/clusters?zoom=12&min_lat=46.5&min_lon=6.5&max_lat=46.6&max_lon=6.6", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("clusters: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("clusters: expected 200, got %d", resp.StatusCode)
	}

	var view domain.ClusterView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.TotalRequests != 2 || len(view.Markers) != 1 || view.Markers[0].Count != 2 {
		t.Errorf("expected both requests in one marker, got %+v", view)
	}
}

func TestReady_Integration(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
