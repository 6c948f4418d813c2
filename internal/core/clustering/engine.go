// Package clustering groups geotagged items into map markers.
//
// Grouping is greedy and density-first: items with the most neighbours
// inside the radius seed clusters first, and each seed absorbs every
// still-unassigned item within the radius, nearest first. Membership is
// proximity to the seed only, so two members of one cluster may be more
// than a radius apart. Output order is fully deterministic.
//
// Everything here is pure and safe for concurrent use.
package clustering

import (
	"cmp"
	"math"
	"slices"

	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/pkg/geospatial"
)

// DefaultIndexThreshold is the input size from which neighbour lookups use
// an R-tree instead of a linear scan.
const DefaultIndexThreshold = 64

// Item is anything that can be placed on the map.
type Item interface {
	Position() domain.GeoPoint
}

// Options tunes how clusters are computed. No option changes the result.
type Options struct {
	// IndexThreshold overrides DefaultIndexThreshold. Negative disables the
	// index entirely.
	IndexThreshold int
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.GeoPoint) float64 {
	return geospatial.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Cluster partitions items into clusters of radiusMeters.
// Every item lands in exactly one cluster; clusters come back in the order
// their seeds were processed. Empty input yields an empty slice.
func Cluster[T Item](items []T, radiusMeters float64) [][]T {
	return ClusterWith(items, radiusMeters, Options{})
}

// ClusterWith is Cluster with explicit options.
func ClusterWith[T Item](items []T, radiusMeters float64, opts Options) [][]T {
	points := make([]domain.GeoPoint, len(items))
	for i, it := range items {
		points[i] = it.Position()
	}

	groups := Partition(points, radiusMeters, opts)
	out := make([][]T, len(groups))
	for i, g := range groups {
		c := make([]T, len(g))
		for j, idx := range g {
			c[j] = items[idx]
		}
		out[i] = c
	}
	return out
}

// Partition is the index form of Cluster: each cluster is a list of
// positions into points. A negative or NaN radius is treated as zero, which
// still groups co-located points.
func Partition(points []domain.GeoPoint, radiusMeters float64, opts Options) [][]int {
	if len(points) == 0 {
		return [][]int{}
	}
	if math.IsNaN(radiusMeters) || radiusMeters < 0 {
		radiusMeters = 0
	}

	nf := newNeighbourFinder(points, radiusMeters, opts)

	density := make([]int, len(points))
	for i := range points {
		density[i] = len(nf.within(i))
	}

	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(density[b], density[a])
	})

	processed := make([]bool, len(points))
	clusters := make([][]int, 0, len(points))

	for _, seed := range order {
		if processed[seed] {
			continue
		}
		processed[seed] = true
		cluster := []int{seed}

		var near []neighbour
		for _, nb := range nf.within(seed) {
			if !processed[nb.idx] {
				near = append(near, nb)
			}
		}
		// Candidates arrive in input order; the stable sort keeps it for ties.
		slices.SortStableFunc(near, func(a, b neighbour) int {
			return cmp.Compare(a.dist, b.dist)
		})

		for _, nb := range near {
			processed[nb.idx] = true
			cluster = append(cluster, nb.idx)
		}
		clusters = append(clusters, cluster)
	}

	return clusters
}

type neighbour struct {
	idx  int
	dist float64
}

// neighbourFinder answers "which points lie within radius of point i",
// returning them in ascending input order.
type neighbourFinder struct {
	points []domain.GeoPoint
	radius float64
	index  *rtreeIndex
}

func newNeighbourFinder(points []domain.GeoPoint, radius float64, opts Options) *neighbourFinder {
	threshold := opts.IndexThreshold
	if threshold == 0 {
		threshold = DefaultIndexThreshold
	}

	nf := &neighbourFinder{points: points, radius: radius}
	if threshold > 0 && len(points) >= threshold {
		nf.index = newRTreeIndex(points)
	}
	return nf
}

func (nf *neighbourFinder) within(i int) []neighbour {
	p := nf.points[i]

	candidates, ok := nf.candidates(p)
	if !ok {
		var out []neighbour
		for j, q := range nf.points {
			if d := Distance(p, q); d <= nf.radius {
				out = append(out, neighbour{idx: j, dist: d})
			}
		}
		return out
	}

	out := make([]neighbour, 0, len(candidates))
	for _, j := range candidates {
		if d := Distance(p, nf.points[j]); d <= nf.radius {
			out = append(out, neighbour{idx: j, dist: d})
		}
	}
	return out
}

// candidates returns a sorted superset of the neighbours of p, or false
// when the index cannot bound the search.
func (nf *neighbourFinder) candidates(p domain.GeoPoint) ([]int, bool) {
	if nf.index == nil {
		return nil, false
	}
	minLat, minLon, maxLat, maxLon, ok := geospatial.BoundingBox(p.Lat, p.Lon, nf.radius)
	if !ok {
		return nil, false
	}
	ids, ok := nf.index.search(minLat, minLon, maxLat, maxLon)
	if !ok {
		return nil, false
	}
	slices.Sort(ids)
	return ids, true
}
