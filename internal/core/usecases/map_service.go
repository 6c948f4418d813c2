package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campusaid/aidmap/internal/core/clustering"
	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/ports"
	"github.com/campusaid/aidmap/internal/pkg/metrics"
	"github.com/campusaid/aidmap/internal/pkg/telemetry"
)

// Focus sources reported in CameraTarget.Source.
const (
	SourceCurrentLocation = "current_location"
	SourceNearestRequest  = "nearest_request"
	SourceFirstRequest    = "first_request"
	SourceDefault         = "default"
)

// MapConfig tunes MapService.
type MapConfig struct {
	Policy                clustering.RadiusPolicy
	CurrentLocationPolicy clustering.RadiusPolicy
	IndexThreshold        int
	CacheTTLSeconds       int
	DefaultLocation       domain.GeoPoint
}

// DefaultMapConfig returns the stock policies centred on EPFL.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Policy:                clustering.DefaultPolicy(),
		CurrentLocationPolicy: clustering.CurrentLocationPolicy(),
		CacheTTLSeconds:       30,
		DefaultLocation:       domain.GeoPoint{Lat: 46.5191, Lon: 6.5668},
	}
}

// ClusterQuery describes one camera state.
type ClusterQuery struct {
	Zoom            float64
	Bounds          *domain.Bounds
	CurrentLocation *domain.GeoPoint
	UserID          string
	Ownership       domain.RequestOwnership
}

// FocusQuery asks where the camera should go.
type FocusQuery struct {
	Preference      domain.ZoomPreference
	CurrentLocation *domain.GeoPoint
	UserID          string
	Ownership       domain.RequestOwnership
}

// RadiusInfo reports both radii used at a zoom level.
type RadiusInfo struct {
	Zoom                  float64 `json:"zoom"`
	Tier                  string  `json:"tier"`
	ClusterRadius         float64 `json:"cluster_radius_meters"`
	CurrentLocationRadius float64 `json:"current_location_radius_meters"`
}

// MapService turns stored requests into map markers.
type MapService struct {
	requests ports.RequestRepository
	cache    ports.CacheService
	cfg      MapConfig
	now      func() time.Time
}

// NewMapService creates a new MapService. cache may be nil.
func NewMapService(requests ports.RequestRepository, cache ports.CacheService, cfg MapConfig) *MapService {
	return &MapService{requests: requests, cache: cache, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source.
func (s *MapService) WithClock(now func() time.Time) *MapService {
	s.now = now
	return s
}

// Radius returns the clustering radii for zoom.
func (s *MapService) Radius(zoom float64) RadiusInfo {
	return RadiusInfo{
		Zoom:                  zoom,
		Tier:                  s.cfg.Policy.Tier(zoom).Name,
		ClusterRadius:         s.cfg.Policy.RadiusForZoom(zoom),
		CurrentLocationRadius: s.cfg.CurrentLocationPolicy.RadiusForZoom(zoom),
	}
}

// Clusters groups the visible requests for q into markers.
func (s *MapService) Clusters(ctx context.Context, q ClusterQuery) (*domain.ClusterView, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "MapService.Clusters")
	defer span.End()

	if math.IsNaN(q.Zoom) || math.IsInf(q.Zoom, 0) {
		return nil, fmt.Errorf("%w: zoom must be finite", domain.ErrInvalidRequest)
	}

	reqs, err := s.visible(ctx, q.Bounds, q.UserID, q.Ownership)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load requests")
		return nil, err
	}

	radius := s.cfg.Policy.RadiusForZoom(q.Zoom)
	span.SetAttributes(
		attribute.Float64(telemetry.AttrZoom, q.Zoom),
		attribute.Float64(telemetry.AttrRadiusMeters, radius),
		attribute.Int(telemetry.AttrItems, len(reqs)),
	)

	key := clusterCacheKey(q, radius, reqs)
	if view, ok := s.cached(ctx, key); ok {
		span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
		return view, nil
	}

	start := time.Now()
	clusters := clustering.ClusterWith(reqs, radius, clustering.Options{IndexThreshold: s.cfg.IndexThreshold})
	metrics.ClusterDuration.Observe(time.Since(start).Seconds())
	metrics.ItemsClustered.Observe(float64(len(reqs)))

	view := &domain.ClusterView{
		Zoom:          q.Zoom,
		RadiusMeters:  radius,
		Markers:       make([]domain.Marker, len(clusters)),
		TotalRequests: len(reqs),
	}
	for i, c := range clusters {
		ids := make([]string, len(c))
		for j, r := range c {
			ids[j] = r.ID
		}
		view.Markers[i] = domain.Marker{
			Center:     clustering.MarkerPosition(c),
			Count:      len(c),
			RequestIDs: ids,
			TapZoom:    clustering.TapZoom(len(c), q.Zoom),
		}
		if len(c) == 1 {
			metrics.ClustersTotal.WithLabelValues("single").Inc()
		} else {
			metrics.ClustersTotal.WithLabelValues("group").Inc()
		}
	}

	if q.CurrentLocation != nil {
		near := s.cfg.CurrentLocationPolicy.RadiusForZoom(q.Zoom)
		tags := clustering.TagCurrentLocation(clusters, *q.CurrentLocation, near)
		for i, tagged := range tags {
			view.Markers[i].AtCurrentLocation = tagged
		}
		view.ShowCurrentLocation = !clustering.NearAny(clusters, *q.CurrentLocation, near)
	}

	span.SetAttributes(
		attribute.Bool(telemetry.AttrCacheHit, false),
		attribute.Int(telemetry.AttrMarkers, len(view.Markers)),
	)
	s.store(ctx, key, view)
	return view, nil
}

// Focus decides where the camera goes for the visible requests.
// It returns nil when the user turned automatic zoom off.
func (s *MapService) Focus(ctx context.Context, q FocusQuery) (*domain.CameraTarget, error) {
	if q.Preference == domain.ZoomNoAuto {
		return nil, nil
	}

	reqs, err := s.visible(ctx, nil, q.UserID, q.Ownership)
	if err != nil {
		return nil, err
	}
	zoom := clustering.InitialZoom(len(reqs))

	if cur := q.CurrentLocation; cur != nil {
		if q.Preference == domain.ZoomCurrentLocation || len(reqs) == 0 {
			return &domain.CameraTarget{Target: *cur, Zoom: zoom, Source: SourceCurrentLocation}, nil
		}
		nearest, _ := clustering.Closest(*cur, reqs)
		return &domain.CameraTarget{Target: nearest.Location, Zoom: zoom, Source: SourceNearestRequest}, nil
	}

	if len(reqs) > 0 {
		return &domain.CameraTarget{Target: reqs[0].Location, Zoom: zoom, Source: SourceFirstRequest}, nil
	}
	return &domain.CameraTarget{Target: s.cfg.DefaultLocation, Zoom: zoom, Source: SourceDefault}, nil
}

// visible loads the requests that belong on the map right now.
func (s *MapService) visible(ctx context.Context, bounds *domain.Bounds, userID string, ownership domain.RequestOwnership) ([]domain.Request, error) {
	now := s.now()

	var (
		reqs []domain.Request
		err  error
	)
	if bounds != nil {
		reqs, err = s.requests.InBounds(ctx, *bounds)
	} else {
		reqs, err = s.requests.List(ctx, domain.RequestFilter{ActiveAt: &now})
	}
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	active := make([]domain.Request, 0, len(reqs))
	for _, r := range reqs {
		if r.Active(now) {
			active = append(active, r)
		}
	}
	return ownership.Filter(active, userID), nil
}

func (s *MapService) cached(ctx context.Context, key string) (*domain.ClusterView, bool) {
	if s.cache == nil || s.cfg.CacheTTLSeconds <= 0 {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("clusters").Inc()
		return nil, false
	}
	var view domain.ClusterView
	if err := json.Unmarshal(data, &view); err != nil {
		metrics.CacheMisses.WithLabelValues("clusters").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("clusters").Inc()
	return &view, true
}

func (s *MapService) store(ctx context.Context, key string, view *domain.ClusterView) {
	if s.cache == nil || s.cfg.CacheTTLSeconds <= 0 {
		return
	}
	if data, err := json.Marshal(view); err == nil {
		_ = s.cache.Set(ctx, key, data, s.cfg.CacheTTLSeconds)
	}
}

// clusterCacheKey fingerprints everything the view depends on: the ordered
// request positions, the radius, the zoom and the current location.
func clusterCacheKey(q ClusterQuery, radius float64, reqs []domain.Request) string {
	h := sha256.New()
	var buf [8]byte
	putFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}

	putFloat(q.Zoom)
	putFloat(radius)
	if q.CurrentLocation != nil {
		h.Write([]byte{1})
		putFloat(q.CurrentLocation.Lat)
		putFloat(q.CurrentLocation.Lon)
	} else {
		h.Write([]byte{0})
	}
	for _, r := range reqs {
		h.Write([]byte(r.ID))
		h.Write([]byte{0})
		putFloat(r.Location.Lat)
		putFloat(r.Location.Lon)
	}
	return "map:clusters:" + hex.EncodeToString(h.Sum(nil))
}
