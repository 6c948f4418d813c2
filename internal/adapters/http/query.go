package http

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusaid/aidmap/internal/core/domain"
)

// queryFloat parses an optional float parameter. ok is false when absent.
func queryFloat(c *fiber.Ctx, name string) (v float64, ok bool, err error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number", name)
	}
	return v, true, nil
}

// queryZoom parses the required, finite zoom parameter.
func queryZoom(c *fiber.Ctx) (float64, error) {
	z, ok, err := queryFloat(c, "zoom")
	switch {
	case err != nil:
		return 0, err
	case !ok:
		return 0, fmt.Errorf("zoom is required")
	case math.IsNaN(z) || math.IsInf(z, 0):
		return 0, fmt.Errorf("zoom must be finite")
	}
	return z, nil
}

// queryPoint parses an optional lat/lon pair. Supplying only one half is an
// error.
func queryPoint(c *fiber.Ctx, latKey, lonKey string) (*domain.GeoPoint, error) {
	lat, hasLat, err := queryFloat(c, latKey)
	if err != nil {
		return nil, err
	}
	lon, hasLon, err := queryFloat(c, lonKey)
	if err != nil {
		return nil, err
	}
	if !hasLat && !hasLon {
		return nil, nil
	}
	if hasLat != hasLon {
		return nil, fmt.Errorf("%s and %s must be given together", latKey, lonKey)
	}
	p := domain.GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return nil, fmt.Errorf("%s/%s out of range", latKey, lonKey)
	}
	return &p, nil
}

// queryBounds parses an optional min_lat/min_lon/max_lat/max_lon box.
func queryBounds(c *fiber.Ctx) (*domain.Bounds, error) {
	keys := [4]string{"min_lat", "min_lon", "max_lat", "max_lon"}
	var vals [4]float64
	present := 0
	for i, k := range keys {
		v, ok, err := queryFloat(c, k)
		if err != nil {
			return nil, err
		}
		if ok {
			vals[i] = v
			present++
		}
	}
	switch present {
	case 0:
		return nil, nil
	case len(keys):
	default:
		return nil, fmt.Errorf("min_lat, min_lon, max_lat and max_lon must be given together")
	}

	b := domain.Bounds{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
	if !b.Valid() {
		return nil, fmt.Errorf("bounds out of range")
	}
	return &b, nil
}

func queryOwnership(c *fiber.Ctx) (domain.RequestOwnership, error) {
	o, ok := domain.ParseOwnership(c.Query("ownership"))
	if !ok {
		return "", fmt.Errorf("unknown ownership %q", c.Query("ownership"))
	}
	return o, nil
}

func queryPreference(c *fiber.Ctx) (domain.ZoomPreference, error) {
	switch p := domain.ZoomPreference(c.Query("preference")); p {
	case "":
		return domain.ZoomNearestRequest, nil
	case domain.ZoomNearestRequest, domain.ZoomCurrentLocation, domain.ZoomNoAuto:
		return p, nil
	default:
		return "", fmt.Errorf("unknown preference %q", p)
	}
}
