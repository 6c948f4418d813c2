package ports

import (
	"context"
	"time"

	"github.com/campusaid/aidmap/internal/core/domain"
)

// RequestRepository persists help-requests.
type RequestRepository interface {
	Upsert(ctx context.Context, req *domain.Request) error
	UpsertBatch(ctx context.Context, reqs []domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	List(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error)
	// InBounds returns requests whose location lies inside b, ordered by
	// creation time so clustering input is stable between calls.
	InBounds(ctx context.Context, b domain.Bounds) ([]domain.Request, error)
	MarkStatus(ctx context.Context, id string, status domain.RequestStatus) error
	// ListExpired returns non-terminal requests whose expiration time is at
	// or before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Request, error)
}
