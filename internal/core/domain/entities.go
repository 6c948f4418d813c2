package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a request does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrForbidden is returned when a user acts on a request they do not own.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a request is already in a terminal state.
	ErrConflict = errors.New("conflict")
)

// RequestStatus is the lifecycle state of a help-request.
type RequestStatus string

const (
	StatusOpen       RequestStatus = "OPEN"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusArchived   RequestStatus = "ARCHIVED"
	StatusCompleted  RequestStatus = "COMPLETED"
	StatusCancelled  RequestStatus = "CANCELLED"
)

// Terminal reports whether the status can no longer change on its own.
func (s RequestStatus) Terminal() bool {
	return s == StatusArchived || s == StatusCompleted || s == StatusCancelled
}

// RequestType categorises what kind of help is asked for.
type RequestType string

const (
	TypeStudying     RequestType = "STUDYING"
	TypeStudyGroup   RequestType = "STUDY_GROUP"
	TypeHangingOut   RequestType = "HANGING_OUT"
	TypeEating       RequestType = "EATING"
	TypeSport        RequestType = "SPORT"
	TypeHardware     RequestType = "HARDWARE"
	TypeLostAndFound RequestType = "LOST_AND_FOUND"
	TypeOther        RequestType = "OTHER"
)

// Tag is a free label attached to a request.
type Tag string

const (
	TagUrgent    Tag = "URGENT"
	TagEasy      Tag = "EASY"
	TagGroupWork Tag = "GROUP_WORK"
	TagSoloWork  Tag = "SOLO_WORK"
	TagOutdoor   Tag = "OUTDOOR"
	TagIndoor    Tag = "INDOOR"
)

// Request is a geotagged call for help posted by a student.
type Request struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Types          []RequestType `json:"types"`
	Location       GeoPoint      `json:"location"`
	LocationName   string        `json:"location_name"`
	Status         RequestStatus `json:"status"`
	StartTime      time.Time     `json:"start_time"`
	ExpirationTime time.Time     `json:"expiration_time"`
	People         []string      `json:"people"`
	Tags           []Tag         `json:"tags"`
	CreatorID      string        `json:"creator_id"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Validate checks the fields a client must supply.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	case !r.Location.Valid():
		return fmt.Errorf("%w: location (%v, %v) is out of range", ErrInvalidRequest, r.Location.Lat, r.Location.Lon)
	case r.CreatorID == "":
		return fmt.Errorf("%w: creator is required", ErrInvalidRequest)
	case r.StartTime.IsZero() || r.ExpirationTime.IsZero():
		return fmt.Errorf("%w: start and expiration time are required", ErrInvalidRequest)
	case !r.ExpirationTime.After(r.StartTime):
		return fmt.Errorf("%w: expiration must be after start", ErrInvalidRequest)
	}
	return nil
}

// Position returns the request's coordinate.
func (r Request) Position() GeoPoint { return r.Location }

// ViewStatus derives the status shown to users at instant now.
// Terminal statuses are preserved; otherwise the time window decides.
func (r Request) ViewStatus(now time.Time) RequestStatus {
	switch {
	case r.Status.Terminal():
		return r.Status
	case !r.ExpirationTime.After(now):
		return StatusCompleted
	case r.StartTime.After(now):
		return StatusOpen
	default:
		return StatusInProgress
	}
}

// Active reports whether the request should appear on the map at now.
func (r Request) Active(now time.Time) bool {
	s := r.ViewStatus(now)
	return s == StatusOpen || s == StatusInProgress
}

// RequestOwnership filters requests relative to the viewing user.
type RequestOwnership string

const (
	OwnershipAll             RequestOwnership = "ALL"
	OwnershipOwn             RequestOwnership = "OWN"
	OwnershipOther           RequestOwnership = "OTHER"
	OwnershipAccepted        RequestOwnership = "ACCEPTED"
	OwnershipNotAccepted     RequestOwnership = "NOT_ACCEPTED"
	OwnershipNotAcceptedByMe RequestOwnership = "NOT_ACCEPTED_BY_ME"
)

// ParseOwnership maps a query value onto an ownership filter.
// Empty input means ALL.
func ParseOwnership(s string) (RequestOwnership, bool) {
	switch o := RequestOwnership(s); o {
	case "":
		return OwnershipAll, true
	case OwnershipAll, OwnershipOwn, OwnershipOther, OwnershipAccepted,
		OwnershipNotAccepted, OwnershipNotAcceptedByMe:
		return o, true
	}
	return "", false
}

// Keep reports whether r passes the filter for userID.
func (o RequestOwnership) Keep(r Request, userID string) bool {
	switch o {
	case OwnershipOwn:
		return r.CreatorID == userID
	case OwnershipOther:
		return r.CreatorID != userID
	case OwnershipAccepted:
		return slices.Contains(r.People, userID)
	case OwnershipNotAcceptedByMe:
		return !slices.Contains(r.People, userID)
	case OwnershipNotAccepted:
		return len(r.People) == 0
	default:
		return true
	}
}

// Filter returns the requests that pass the filter, preserving order.
func (o RequestOwnership) Filter(requests []Request, userID string) []Request {
	if o == OwnershipAll || o == "" {
		return requests
	}
	out := make([]Request, 0, len(requests))
	for _, r := range requests {
		if o.Keep(r, userID) {
			out = append(out, r)
		}
	}
	return out
}

// ZoomPreference controls where the map camera goes when requests change.
type ZoomPreference string

const (
	ZoomNearestRequest  ZoomPreference = "NEAREST_REQUEST"
	ZoomCurrentLocation ZoomPreference = "CURRENT_LOCATION"
	ZoomNoAuto          ZoomPreference = "NO_AUTO_ZOOM"
)

// RequestFilter narrows repository listings.
type RequestFilter struct {
	Bounds    *Bounds
	ActiveAt  *time.Time
	CreatorID string
	Limit     int
	Offset    int
}

// Marker is one rendered cluster on the map.
type Marker struct {
	Center            GeoPoint `json:"center"`
	Count             int      `json:"count"`
	RequestIDs        []string `json:"request_ids"`
	AtCurrentLocation bool     `json:"at_current_location"`
	TapZoom           float64  `json:"tap_zoom"`
}

// ClusterView is the clustering result for one camera state.
type ClusterView struct {
	Zoom          float64  `json:"zoom"`
	RadiusMeters  float64  `json:"radius_meters"`
	Markers       []Marker `json:"markers"`
	TotalRequests int      `json:"total_requests"`
	// ShowCurrentLocation is true when the user's position did not merge
	// into any marker and needs its own pin.
	ShowCurrentLocation bool `json:"show_current_location"`
}

// CameraTarget is where the map should animate to.
type CameraTarget struct {
	Target GeoPoint `json:"target"`
	Zoom   float64  `json:"zoom"`
	Source string   `json:"source"` // current_location | nearest_request | first_request | default
}

// RequestEventKind says what happened to a request.
type RequestEventKind string

const (
	EventCreated   RequestEventKind = "created"
	EventUpdated   RequestEventKind = "updated"
	EventCancelled RequestEventKind = "cancelled"
	EventExpired   RequestEventKind = "expired"
)

// RequestEvent is broadcast whenever the request set changes.
type RequestEvent struct {
	Kind           RequestEventKind `json:"kind"`
	RequestID      string           `json:"request_id"`
	Status         RequestStatus    `json:"status"`
	Location       GeoPoint         `json:"location"`
	ExpirationTime time.Time        `json:"expiration_time"`
	OccurredAt     time.Time        `json:"occurred_at"`
}
