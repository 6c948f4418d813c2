package clustering

import (
	"github.com/dhconnelly/rtreego"

	"github.com/campusaid/aidmap/internal/core/domain"
)

// pointTolerance gives each indexed point a tiny extent so that points on a
// query edge still intersect it.
const pointTolerance = 1e-9

type indexedPoint struct {
	idx  int
	rect rtreego.Rect
}

func (p *indexedPoint) Bounds() rtreego.Rect { return p.rect }

// rtreeIndex is a lon/lat R-tree over input positions.
type rtreeIndex struct {
	tree *rtreego.Rtree
}

func newRTreeIndex(points []domain.GeoPoint) *rtreeIndex {
	objs := make([]rtreego.Spatial, len(points))
	for i, p := range points {
		objs[i] = &indexedPoint{idx: i, rect: rtreego.Point{p.Lon, p.Lat}.ToRect(pointTolerance)}
	}
	return &rtreeIndex{tree: rtreego.NewTree(2, 25, 50, objs...)}
}

// search returns the input positions whose point intersects the box.
func (ix *rtreeIndex) search(minLat, minLon, maxLat, maxLon float64) ([]int, bool) {
	box, err := rtreego.NewRect(
		rtreego.Point{minLon, minLat},
		[]float64{maxLon - minLon, maxLat - minLat},
	)
	if err != nil {
		return nil, false
	}

	hits := ix.tree.SearchIntersect(box)
	ids := make([]int, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.(*indexedPoint).idx)
	}
	return ids, true
}
