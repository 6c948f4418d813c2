package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/usecases"
)

func campusRequests() []domain.Request {
	return []domain.Request{
		openRequest("geneva", "bob", 46.2044, 6.1432),
		openRequest("rlc-1", "alice", 46.5186, 6.5616),
		openRequest("rlc-2", "bob", 46.5187, 6.5616),
	}
}

func listing(reqs []domain.Request) *mockRequestRepo {
	return &mockRequestRepo{listFn: func(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
		return reqs, nil
	}}
}

func TestMapService_Clusters(t *testing.T) {
	svc := usecases.NewMapService(listing(campusRequests()), nil, usecases.DefaultMapConfig()).WithClock(fixedClock)

	view, err := svc.Clusters(context.Background(), usecases.ClusterQuery{Zoom: 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.TotalRequests != 3 {
		t.Errorf("expected 3 requests, got %d", view.TotalRequests)
	}
	if math.Abs(view.RadiusMeters-400/(12.0/5)) > 1e-9 {
		t.Errorf("unexpected radius %v", view.RadiusMeters)
	}
	if len(view.Markers) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(view.Markers))
	}

	group := view.Markers[0]
	if group.Count != 2 || group.RequestIDs[0] != "rlc-1" || group.RequestIDs[1] != "rlc-2" {
		t.Errorf("unexpected first marker %+v", group)
	}
	if math.Abs(group.Center.Lat-46.51865) > 1e-9 {
		t.Errorf("expected mean latitude, got %v", group.Center.Lat)
	}
	if group.TapZoom != 14 {
		t.Errorf("expected tap zoom 14, got %v", group.TapZoom)
	}

	single := view.Markers[1]
	if single.Count != 1 || single.Center != (domain.GeoPoint{Lat: 46.2044, Lon: 6.1432}) {
		t.Errorf("unexpected single marker %+v", single)
	}
	if single.TapZoom != 17 {
		t.Errorf("expected tap zoom 17, got %v", single.TapZoom)
	}
}

func TestMapService_Clusters_SkipsInactiveAndFiltersOwnership(t *testing.T) {
	reqs := campusRequests()
	reqs[2].ExpirationTime = testNow.Add(-time.Minute)
	cancelled := openRequest("gone", "alice", 46.5186, 6.5617)
	cancelled.Status = domain.StatusCancelled
	reqs = append(reqs, cancelled)

	svc := usecases.NewMapService(listing(reqs), nil, usecases.DefaultMapConfig()).WithClock(fixedClock)

	view, err := svc.Clusters(context.Background(), usecases.ClusterQuery{Zoom: 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.TotalRequests != 2 {
		t.Errorf("expected expired and cancelled requests dropped, got %d", view.TotalRequests)
	}

	view, err = svc.Clusters(context.Background(), usecases.ClusterQuery{
		Zoom:      12,
		UserID:    "alice",
		Ownership: domain.OwnershipOwn,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.TotalRequests != 1 || view.Markers[0].RequestIDs[0] != "rlc-1" {
		t.Errorf("expected only alice's request, got %+v", view.Markers)
	}
}

func TestMapService_Clusters_UsesBounds(t *testing.T) {
	var gotBounds domain.Bounds
	repo := &mockRequestRepo{
		inBoundsFn: func(ctx context.Context, b domain.Bounds) ([]domain.Request, error) {
			gotBounds = b
			return campusRequests()[1:], nil
		},
		listFn: func(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
			t.Error("List must not be used when bounds are given")
			return nil, nil
		},
	}
	bounds := domain.Bounds{MinLat: 46.5, MinLon: 6.5, MaxLat: 46.6, MaxLon: 6.6}

	svc := usecases.NewMapService(repo, nil, usecases.DefaultMapConfig()).WithClock(fixedClock)
	view, err := svc.Clusters(context.Background(), usecases.ClusterQuery{Zoom: 12, Bounds: &bounds})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBounds != bounds {
		t.Errorf("expected bounds passed through, got %+v", gotBounds)
	}
	if len(view.Markers) != 1 {
		t.Errorf("expected 1 marker, got %d", len(view.Markers))
	}
}

func TestMapService_Clusters_CurrentLocation(t *testing.T) {
	svc := usecases.NewMapService(listing(campusRequests()), nil, usecases.DefaultMapConfig()).WithClock(fixedClock)

	near := domain.GeoPoint{Lat: 46.51866, Lon: 6.56161}
	view, err := svc.Clusters(context.Background(), usecases.ClusterQuery{Zoom: 12, CurrentLocation: &near})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.Markers[0].AtCurrentLocation || view.Markers[1].AtCurrentLocation {
		t.Errorf("expected only the campus marker tagged, got %+v", view.Markers)
	}
	if view.ShowCurrentLocation {
		t.Error("current location merged into a marker should not get its own pin")
	}

	far := domain.GeoPoint{Lat: 47.3769, Lon: 8.5417}
	view, err = svc.Clusters(context.Background(), usecases.ClusterQuery{Zoom: 12, CurrentLocation: &far})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.ShowCurrentLocation {
		t.Error("distant current location needs its own pin")
	}
}

func TestMapService_Clusters_Cache(t *testing.T) {
	cache := newMockCache()
	reqs := campusRequests()
	repo := &mockRequestRepo{listFn: func(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
		return reqs, nil
	}}

	svc := usecases.NewMapService(repo, cache, usecases.DefaultMapConfig()).WithClock(fixedClock)
	ctx := context.Background()

	first, err := svc.Clusters(ctx, usecases.ClusterQuery{Zoom: 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Clusters(ctx, usecases.ClusterQuery{Zoom: 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("expected one cache write, got %d", cache.sets)
	}
	if len(second.Markers) != len(first.Markers) || second.Markers[0].Count != first.Markers[0].Count {
		t.Errorf("cached view differs: %+v vs %+v", second, first)
	}

	reqs = reqs[:2]
	if _, err := svc.Clusters(ctx, usecases.ClusterQuery{Zoom: 12}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.sets != 2 {
		t.Errorf("changed request set should miss the cache, got %d writes", cache.sets)
	}
}

func TestMapService_Clusters_InvalidZoom(t *testing.T) {
	svc := usecases.NewMapService(&mockRequestRepo{}, nil, usecases.DefaultMapConfig())
	if _, err := svc.Clusters(context.Background(), usecases.ClusterQuery{Zoom: math.NaN()}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestMapService_Clusters_RepoError(t *testing.T) {
	repo := &mockRequestRepo{listFn: func(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
		return nil, errors.New("db down")
	}}
	svc := usecases.NewMapService(repo, nil, usecases.DefaultMapConfig())
	if _, err := svc.Clusters(context.Background(), usecases.ClusterQuery{Zoom: 10}); err == nil {
		t.Error("expected error")
	}
}

func TestMapService_Focus(t *testing.T) {
	cfg := usecases.DefaultMapConfig()
	cur := domain.GeoPoint{Lat: 46.2, Lon: 6.14}

	tests := []struct {
		name       string
		reqs       []domain.Request
		query      usecases.FocusQuery
		wantNil    bool
		wantTarget domain.GeoPoint
		wantSource string
		wantZoom   float64
	}{
		{
			name:    "no auto zoom",
			reqs:    campusRequests(),
			query:   usecases.FocusQuery{Preference: domain.ZoomNoAuto, CurrentLocation: &cur},
			wantNil: true,
		},
		{
			name:       "current location preferred",
			reqs:       campusRequests(),
			query:      usecases.FocusQuery{Preference: domain.ZoomCurrentLocation, CurrentLocation: &cur},
			wantTarget: cur,
			wantSource: usecases.SourceCurrentLocation,
			wantZoom:   13,
		},
		{
			name:       "nearest request",
			reqs:       campusRequests(),
			query:      usecases.FocusQuery{Preference: domain.ZoomNearestRequest, CurrentLocation: &cur},
			wantTarget: domain.GeoPoint{Lat: 46.2044, Lon: 6.1432},
			wantSource: usecases.SourceNearestRequest,
			wantZoom:   13,
		},
		{
			name:       "no requests falls back to current location",
			query:      usecases.FocusQuery{Preference: domain.ZoomNearestRequest, CurrentLocation: &cur},
			wantTarget: cur,
			wantSource: usecases.SourceCurrentLocation,
			wantZoom:   15,
		},
		{
			name:       "unknown location uses first request",
			reqs:       campusRequests()[1:],
			query:      usecases.FocusQuery{Preference: domain.ZoomNearestRequest},
			wantTarget: domain.GeoPoint{Lat: 46.5186, Lon: 6.5616},
			wantSource: usecases.SourceFirstRequest,
			wantZoom:   13,
		},
		{
			name:       "nothing known uses campus",
			query:      usecases.FocusQuery{},
			wantTarget: cfg.DefaultLocation,
			wantSource: usecases.SourceDefault,
			wantZoom:   15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := usecases.NewMapService(listing(tt.reqs), nil, cfg).WithClock(fixedClock)
			got, err := svc.Focus(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected no target, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a target")
			}
			if got.Target != tt.wantTarget || got.Source != tt.wantSource || got.Zoom != tt.wantZoom {
				t.Errorf("got %+v, want target=%v source=%s zoom=%v", got, tt.wantTarget, tt.wantSource, tt.wantZoom)
			}
		})
	}
}

func TestMapService_Radius(t *testing.T) {
	svc := usecases.NewMapService(&mockRequestRepo{}, nil, usecases.DefaultMapConfig())

	info := svc.Radius(10)
	if info.Tier != "city" {
		t.Errorf("expected city tier, got %s", info.Tier)
	}
	if info.ClusterRadius != 1500 {
		t.Errorf("expected 1500 m, got %v", info.ClusterRadius)
	}
	if info.CurrentLocationRadius != 500 {
		t.Errorf("expected 500 m, got %v", info.CurrentLocationRadius)
	}
	if r := svc.Radius(0); r.ClusterRadius <= 0 || math.IsInf(r.ClusterRadius, 0) {
		t.Errorf("zoom 0 must give a finite positive radius, got %v", r.ClusterRadius)
	}
}
