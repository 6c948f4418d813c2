package telemetry

// Span attribute keys.
const (
	AttrZoom         = "aidmap.zoom"
	AttrRadiusMeters = "aidmap.radius_meters"
	AttrItems        = "aidmap.items"
	AttrMarkers      = "aidmap.markers"
	AttrCacheHit     = "aidmap.cache_hit"
	AttrRequestID    = "aidmap.request_id"
	AttrExpired      = "aidmap.expired"
)
