package clustering

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultDivisor scales the tier radius continuously with zoom.
	DefaultDivisor = 5.0
	// DefaultMinZoom is the floor applied to zoom before dividing by it.
	DefaultMinZoom = 0.1
	// MaxZoom is the highest zoom level supported by map widgets.
	MaxZoom = 21.0
)

// Tier is one step of the zoom → base radius table.
// A tier applies to zoom levels strictly below MaxZoom.
type Tier struct {
	Name       string  `json:"name"`
	MaxZoom    float64 `json:"max_zoom"`
	BaseRadius float64 `json:"base_radius_meters"`
}

var clusterTiers = []Tier{
	{Name: "world", MaxZoom: 3, BaseRadius: 300_000},
	{Name: "wide-land", MaxZoom: 5, BaseRadius: 70_000},
	{Name: "land", MaxZoom: 7, BaseRadius: 40_000},
	{Name: "region", MaxZoom: 9, BaseRadius: 10_000},
	{Name: "city", MaxZoom: 11, BaseRadius: 3_000},
	{Name: "mid", MaxZoom: 13, BaseRadius: 400},
	{Name: "street-big", MaxZoom: 15, BaseRadius: 50},
	{Name: "street-small", MaxZoom: math.Inf(1), BaseRadius: 20},
}

var currentLocationTiers = []Tier{
	{Name: "world", MaxZoom: 3, BaseRadius: 100_000},
	{Name: "wide-land", MaxZoom: 5, BaseRadius: 40_000},
	{Name: "land", MaxZoom: 7, BaseRadius: 20_000},
	{Name: "region", MaxZoom: 9, BaseRadius: 5_000},
	{Name: "city", MaxZoom: 11, BaseRadius: 1_000},
	{Name: "mid", MaxZoom: 13, BaseRadius: 200},
	{Name: "street-big", MaxZoom: 15, BaseRadius: 35},
	{Name: "street-small", MaxZoom: math.Inf(1), BaseRadius: 15},
}

// RadiusPolicy maps a map zoom level to a clustering radius in meters.
// The zero value is not usable; build one with NewRadiusPolicy or the
// Default/CurrentLocation helpers.
//
// Within a tier the radius falls as base / (zoom / divisor). At each tier
// boundary the base drops, so the radius jumps down; with some tables the
// jump can be smaller than the within-tier decrease it replaces, which shows
// up as a small local increase right after a boundary. That is accepted.
type RadiusPolicy struct {
	tiers   []Tier
	divisor float64
	minZoom float64
}

// NewRadiusPolicy validates and copies a tier table.
// Tiers must be ordered by ascending MaxZoom with positive base radii, and the
// last tier must be unbounded.
func NewRadiusPolicy(tiers []Tier, divisor, minZoom float64) (RadiusPolicy, error) {
	if len(tiers) == 0 {
		return RadiusPolicy{}, errors.New("radius policy: no tiers")
	}
	if !(divisor > 0) {
		return RadiusPolicy{}, fmt.Errorf("radius policy: divisor must be positive, got %v", divisor)
	}
	if !(minZoom > 0) {
		return RadiusPolicy{}, fmt.Errorf("radius policy: min zoom must be positive, got %v", minZoom)
	}
	for i, t := range tiers {
		if !(t.BaseRadius > 0) {
			return RadiusPolicy{}, fmt.Errorf("radius policy: tier %q has non-positive radius", t.Name)
		}
		if i > 0 && t.MaxZoom <= tiers[i-1].MaxZoom {
			return RadiusPolicy{}, fmt.Errorf("radius policy: tier %q out of order", t.Name)
		}
	}
	if !math.IsInf(tiers[len(tiers)-1].MaxZoom, 1) {
		return RadiusPolicy{}, errors.New("radius policy: last tier must be unbounded")
	}

	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return RadiusPolicy{tiers: cp, divisor: divisor, minZoom: minZoom}, nil
}

// DefaultPolicy returns the radius policy used to group requests.
func DefaultPolicy() RadiusPolicy {
	p, _ := NewRadiusPolicy(clusterTiers, DefaultDivisor, DefaultMinZoom)
	return p
}

// CurrentLocationPolicy returns the tighter policy that decides whether the
// user's own position merges into a cluster marker.
func CurrentLocationPolicy() RadiusPolicy {
	p, _ := NewRadiusPolicy(currentLocationTiers, DefaultDivisor, DefaultMinZoom)
	return p
}

// WithScaling returns a copy of p using another divisor and zoom floor.
func (p RadiusPolicy) WithScaling(divisor, minZoom float64) (RadiusPolicy, error) {
	return NewRadiusPolicy(p.tiers, divisor, minZoom)
}

// Tiers returns a copy of the tier table.
func (p RadiusPolicy) Tiers() []Tier {
	cp := make([]Tier, len(p.tiers))
	copy(cp, p.tiers)
	return cp
}

// Tier returns the tier selected for zoom.
func (p RadiusPolicy) Tier(zoom float64) Tier {
	z := p.clamp(zoom)
	for _, t := range p.tiers {
		if z < t.MaxZoom {
			return t
		}
	}
	return p.tiers[len(p.tiers)-1]
}

// RadiusForZoom returns the clustering radius in meters for zoom.
// Zoom is floored at the policy's minimum, so the result is always finite
// and positive.
func (p RadiusPolicy) RadiusForZoom(zoom float64) float64 {
	z := p.clamp(zoom)
	return p.Tier(z).BaseRadius / (z / p.divisor)
}

func (p RadiusPolicy) clamp(zoom float64) float64 {
	if math.IsNaN(zoom) || zoom < p.minZoom {
		return p.minZoom
	}
	if math.IsInf(zoom, 1) {
		return MaxZoom
	}
	return zoom
}
