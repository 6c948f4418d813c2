package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/ports"
	"github.com/campusaid/aidmap/internal/pkg/metrics"
	"github.com/campusaid/aidmap/internal/pkg/telemetry"
)

const expiryBatchSize = 100

// ExpiryService closes requests whose time window has passed.
type ExpiryService struct {
	requests  ports.RequestRepository
	publisher ports.EventPublisher
	scheduler ports.ExpiryScheduler
	cache     ports.CacheService
}

// NewExpiryService creates a new ExpiryService. publisher and scheduler may be nil.
func NewExpiryService(requests ports.RequestRepository, publisher ports.EventPublisher, scheduler ports.ExpiryScheduler) *ExpiryService {
	return &ExpiryService{requests: requests, publisher: publisher, scheduler: scheduler}
}

// WithCache drops cached copies of requests as they expire.
func (s *ExpiryService) WithCache(cache ports.CacheService) *ExpiryService {
	s.cache = cache
	return s
}

// ExpireDue marks every overdue request COMPLETED and returns how many it closed.
func (s *ExpiryService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		due, err := s.requests.ListExpired(ctx, now, expiryBatchSize)
		if err != nil {
			return total, fmt.Errorf("list expired: %w", err)
		}
		for i := range due {
			if err := s.complete(ctx, &due[i], now); err != nil {
				return total, err
			}
			total++
		}
		if len(due) < expiryBatchSize {
			return total, nil
		}
	}
}

// ExpireOne closes a single request if it is overdue at now. It reports
// whether the request was closed; terminal or still-running requests are
// left alone.
func (s *ExpiryService) ExpireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ExpiryService.ExpireOne",
		trace.WithAttributes(attribute.String(telemetry.AttrRequestID, id)))
	defer span.End()

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if req.Status.Terminal() || req.ExpirationTime.After(now) {
		span.SetAttributes(attribute.Bool(telemetry.AttrExpired, false))
		return false, nil
	}
	if err := s.complete(ctx, req, now); err != nil {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrExpired, true))
	return true, nil
}

// HandleRequestEvent schedules expiry for newly created requests.
func (s *ExpiryService) HandleRequestEvent(ctx context.Context, ev *domain.RequestEvent) error {
	if ev.Kind != domain.EventCreated || s.scheduler == nil {
		return nil
	}
	if err := s.scheduler.ScheduleExpiry(ctx, ev.RequestID, ev.ExpirationTime); err != nil {
		return fmt.Errorf("schedule expiry for %s: %w", ev.RequestID, err)
	}
	slog.DebugContext(ctx, "expiry scheduled", "request_id", ev.RequestID, "at", ev.ExpirationTime)
	return nil
}

func (s *ExpiryService) complete(ctx context.Context, req *domain.Request, now time.Time) error {
	if err := s.requests.MarkStatus(ctx, req.ID, domain.StatusCompleted); err != nil {
		return fmt.Errorf("complete request %s: %w", req.ID, err)
	}
	req.Status = domain.StatusCompleted
	metrics.RequestsExpired.Inc()

	if s.cache != nil {
		if err := s.cache.Delete(ctx, RequestCacheKey(req.ID)); err != nil {
			slog.WarnContext(ctx, "drop cached request failed", "request_id", req.ID, "error", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRequestChanged(ctx, newEvent(domain.EventExpired, req, now)); err != nil {
			slog.WarnContext(ctx, "publish expiry event failed", "request_id", req.ID, "error", err)
		} else {
			metrics.RequestEvents.WithLabelValues(string(domain.EventExpired)).Inc()
		}
	}
	return nil
}
