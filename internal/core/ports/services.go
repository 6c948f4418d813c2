package ports

import (
	"context"
	"time"

	"github.com/campusaid/aidmap/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishRequestChanged(ctx context.Context, event *domain.RequestEvent) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeRequestChanges(ctx context.Context, handler func(ctx context.Context, event *domain.RequestEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ExpiryScheduler arranges for a request to be closed once it expires.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, requestID string, at time.Time) error
}
