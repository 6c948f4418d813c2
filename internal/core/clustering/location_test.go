package clustering_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campusaid/aidmap/internal/core/clustering"
	"github.com/campusaid/aidmap/internal/core/domain"
)

func TestMarkerPosition(t *testing.T) {
	x := at("x", 46.51, 6.56)
	assert.Equal(t, x.pos, clustering.MarkerPosition([]pin{x}))

	mid := clustering.MarkerPosition([]pin{at("a", 46.0, 6.0), at("b", 48.0, 8.0)})
	assert.Equal(t, domain.GeoPoint{Lat: 47, Lon: 7}, mid)
}

func TestNearAnyAndTagCurrentLocation(t *testing.T) {
	clusters := [][]pin{
		{at("a", 46.5200, 6.5700), at("b", 46.5202, 6.5700)},
		{at("c", 46.6000, 6.7000)},
	}
	current := domain.GeoPoint{Lat: 46.5201, Lon: 6.5701}

	assert.True(t, clustering.NearAny(clusters, current, 50))
	assert.Equal(t, []bool{true, false}, clustering.TagCurrentLocation(clusters, current, 50))

	far := domain.GeoPoint{Lat: 40, Lon: 0}
	assert.False(t, clustering.NearAny(clusters, far, 50))
	assert.Equal(t, []bool{false, false}, clustering.TagCurrentLocation(clusters, far, 50))

	assert.False(t, clustering.NearAny[pin](nil, current, 50))
	assert.Empty(t, clustering.TagCurrentLocation[pin](nil, current, 50))
}

func TestClosest(t *testing.T) {
	origin := domain.GeoPoint{Lat: 46.5191, Lon: 6.5668}

	_, ok := clustering.Closest[pin](origin, nil)
	assert.False(t, ok)

	items := []pin{
		at("far", 47.0, 7.0),
		at("near", 46.52, 6.567),
		at("near-twin", 46.52, 6.567),
	}
	got, ok := clustering.Closest(origin, items)
	assert.True(t, ok)
	assert.Equal(t, "near", got.id)
}

func TestInitialZoom(t *testing.T) {
	tests := []struct {
		count int
		want  float64
	}{
		{0, 15},
		{1, 15},
		{2, 13},
		{4, 13},
		{5, 10},
		{100, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clustering.InitialZoom(tt.count), "count %d", tt.count)
	}
}

func TestTapZoom(t *testing.T) {
	assert.Equal(t, clustering.ZoomAfterChosen, clustering.TapZoom(1, 8))
	assert.Equal(t, 10.0, clustering.TapZoom(3, 8))
	assert.Equal(t, clustering.MaxZoom, clustering.TapZoom(3, 20.5))
}
