package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/ports"
	"github.com/campusaid/aidmap/internal/pkg/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	requestCacheTTL  = 60
)

// RequestCacheKey is the cache key holding a single stored request.
func RequestCacheKey(id string) string { return "requests:id:" + id }

// CreateRequestInput is what a client supplies to open a request.
type CreateRequestInput struct {
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Types          []domain.RequestType `json:"types"`
	Location       domain.GeoPoint      `json:"location"`
	LocationName   string               `json:"location_name"`
	StartTime      time.Time            `json:"start_time"`
	ExpirationTime time.Time            `json:"expiration_time"`
	Tags           []domain.Tag         `json:"tags"`
	CreatorID      string               `json:"creator_id"`
}

// ListRequestsInput narrows a request listing.
type ListRequestsInput struct {
	UserID     string
	Ownership  domain.RequestOwnership
	Bounds     *domain.Bounds
	ActiveOnly bool
	Limit      int
	Offset     int
}

// RequestService handles the request lifecycle.
type RequestService struct {
	requests  ports.RequestRepository
	publisher ports.EventPublisher
	cache     ports.CacheService
	now       func() time.Time
}

// NewRequestService creates a new RequestService. publisher and cache may be nil.
func NewRequestService(requests ports.RequestRepository, publisher ports.EventPublisher, cache ports.CacheService) *RequestService {
	return &RequestService{requests: requests, publisher: publisher, cache: cache, now: time.Now}
}

// WithClock replaces the time source.
func (s *RequestService) WithClock(now func() time.Time) *RequestService {
	s.now = now
	return s
}

// Create validates and stores a new request, then announces it.
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*domain.Request, error) {
	now := s.now().UTC()
	start := in.StartTime
	if start.IsZero() {
		start = now
	}

	req := &domain.Request{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Description:    in.Description,
		Types:          in.Types,
		Location:       in.Location,
		LocationName:   in.LocationName,
		StartTime:      start,
		ExpirationTime: in.ExpirationTime,
		Tags:           in.Tags,
		CreatorID:      in.CreatorID,
		People:         []string{},
		CreatedAt:      now,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.ExpirationTime.After(now) {
		return nil, fmt.Errorf("%w: expiration must be in the future", domain.ErrInvalidRequest)
	}
	req.Status = req.ViewStatus(now)

	if err := s.requests.Upsert(ctx, req); err != nil {
		return nil, fmt.Errorf("store request: %w", err)
	}

	s.publish(ctx, domain.EventCreated, req)
	return req, nil
}

// Get returns a single request with its status as seen at the current time,
// so a cached copy never reports an elapsed window as still running.
func (s *RequestService) Get(ctx context.Context, id string) (*domain.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("request %q: %w", id, domain.ErrNotFound)
	}

	cacheKey := RequestCacheKey(id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var req domain.Request
			if err := json.Unmarshal(data, &req); err == nil {
				metrics.CacheHits.WithLabelValues("request").Inc()
				req.Status = req.ViewStatus(s.now())
				return &req, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("request").Inc()
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(req); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, requestCacheTTL)
		}
	}
	req.Status = req.ViewStatus(s.now())
	return req, nil
}

// List returns requests visible to the user. Ownership filtering happens
// after the page is read, so a page may hold fewer than Limit items.
func (s *RequestService) List(ctx context.Context, in ListRequestsInput) ([]domain.Request, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(in.Offset, 0)

	filter := domain.RequestFilter{Bounds: in.Bounds, Limit: limit, Offset: offset}
	if in.ActiveOnly {
		now := s.now()
		filter.ActiveAt = &now
	}
	if in.Ownership == domain.OwnershipOwn {
		filter.CreatorID = in.UserID
	}

	reqs, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return in.Ownership.Filter(reqs, in.UserID), nil
}

// Cancel closes a request on behalf of its creator.
func (s *RequestService) Cancel(ctx context.Context, id, userID string) (*domain.Request, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CreatorID != userID {
		return nil, fmt.Errorf("cancel request %s: %w", id, domain.ErrForbidden)
	}
	if req.ViewStatus(s.now()).Terminal() {
		return nil, fmt.Errorf("cancel request %s in state %s: %w", id, req.ViewStatus(s.now()), domain.ErrConflict)
	}

	if err := s.requests.MarkStatus(ctx, id, domain.StatusCancelled); err != nil {
		return nil, err
	}
	req.Status = domain.StatusCancelled

	if s.cache != nil {
		_ = s.cache.Delete(ctx, RequestCacheKey(id))
	}
	s.publish(ctx, domain.EventCancelled, req)
	return req, nil
}

// publish is best-effort; the request is already stored.
func (s *RequestService) publish(ctx context.Context, kind domain.RequestEventKind, req *domain.Request) {
	if s.publisher == nil {
		return
	}
	ev := newEvent(kind, req, s.now())
	if err := s.publisher.PublishRequestChanged(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish request event failed", "request_id", req.ID, "kind", kind, "error", err)
		return
	}
	metrics.RequestEvents.WithLabelValues(string(kind)).Inc()
}

func newEvent(kind domain.RequestEventKind, req *domain.Request, now time.Time) *domain.RequestEvent {
	return &domain.RequestEvent{
		Kind:           kind,
		RequestID:      req.ID,
		Status:         req.Status,
		Location:       req.Location,
		ExpirationTime: req.ExpirationTime,
		OccurredAt:     now.UTC(),
	}
}
