package clustering

import "github.com/campusaid/aidmap/internal/core/domain"

// Center returns the marker position of a cluster: the plain mean of member
// latitudes and of member longitudes. A single-item cluster returns that
// item's exact coordinate. Longitudes are not unwrapped at ±180°.
func Center[T Item](cluster []T) domain.GeoPoint {
	switch len(cluster) {
	case 0:
		return domain.GeoPoint{}
	case 1:
		return cluster[0].Position()
	}

	var lat, lon float64
	for _, it := range cluster {
		p := it.Position()
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(cluster))
	return domain.GeoPoint{Lat: lat / n, Lon: lon / n}
}
