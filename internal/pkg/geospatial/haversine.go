package geospatial

import "math"

// EarthRadiusMeters is the mean radius of the spherical earth model.
const EarthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	a = math.Min(a, 1) // near-antipodal rounding

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// BoundingBox returns a box guaranteed to contain every point within
// radiusMeters of (lat, lon). ok is false when the circle reaches a pole or
// crosses the antimeridian; callers must then fall back to a full scan.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64, ok bool) {
	// Angular radius, padded so float error never shrinks the box.
	ang := radiusMeters/EarthRadiusMeters*(1+1e-9) + 1e-12
	latDelta := toDeg(ang)

	minLat, maxLat = lat-latDelta, lat+latDelta
	if minLat <= -90 || maxLat >= 90 || ang >= math.Pi/2 {
		return 0, 0, 0, 0, false
	}

	lonDelta := toDeg(math.Asin(math.Sin(ang) / math.Cos(toRad(lat))))
	minLon, maxLon = lon-lonDelta, lon+lonDelta
	if minLon < -180 || maxLon > 180 {
		return 0, 0, 0, 0, false
	}
	return minLat, minLon, maxLat, maxLon, true
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
