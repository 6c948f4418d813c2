package clustering

import (
	"math"

	"github.com/campusaid/aidmap/internal/core/domain"
)

// Zoom levels used when the camera moves on its own.
const (
	ZoomAfterChosen   = 17.0
	ZoomFewRequests   = 15.0
	ZoomSomeRequests  = 13.0
	ZoomManyRequests  = 10.0
	tapZoomStep       = 2.0
	fewRequestsBelow  = 2
	someRequestsBelow = 5
)

// MarkerPosition is where a cluster is drawn: the exact coordinate for a
// single request, the mean position otherwise.
func MarkerPosition[T Item](cluster []T) domain.GeoPoint {
	return Center(cluster)
}

// NearAny reports whether any cluster marker lies within radiusMeters of
// current.
func NearAny[T Item](clusters [][]T, current domain.GeoPoint, radiusMeters float64) bool {
	for _, c := range clusters {
		if Distance(current, MarkerPosition(c)) <= radiusMeters {
			return true
		}
	}
	return false
}

// TagCurrentLocation reports, per cluster, whether its marker lies within
// radiusMeters of current.
func TagCurrentLocation[T Item](clusters [][]T, current domain.GeoPoint, radiusMeters float64) []bool {
	tags := make([]bool, len(clusters))
	for i, c := range clusters {
		tags[i] = Distance(current, MarkerPosition(c)) <= radiusMeters
	}
	return tags
}

// Closest returns the item nearest to position. Ties keep the earliest item.
func Closest[T Item](position domain.GeoPoint, items []T) (T, bool) {
	var (
		best  T
		found bool
		bestD = math.Inf(1)
	)
	for _, it := range items {
		if d := Distance(position, it.Position()); d < bestD {
			best, bestD, found = it, d, true
		}
	}
	return best, found
}

// InitialZoom picks a camera zoom from how many requests are on screen.
func InitialZoom(count int) float64 {
	switch {
	case count < fewRequestsBelow:
		return ZoomFewRequests
	case count < someRequestsBelow:
		return ZoomSomeRequests
	default:
		return ZoomManyRequests
	}
}

// TapZoom is the zoom to animate to when a marker of size members is tapped
// at zoom. A single request zooms straight in; a cluster steps in.
func TapZoom(size int, zoom float64) float64 {
	if size <= 1 {
		return ZoomAfterChosen
	}
	return math.Min(zoom+tapZoomStep, MaxZoom)
}
