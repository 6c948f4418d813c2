package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/usecases"
)

// ExpiryActivities holds the activity implementations for the expiry workflows.
type ExpiryActivities struct {
	Expiry *usecases.ExpiryService
	Now    func() time.Time
}

func (a *ExpiryActivities) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// ExpireRequest closes one request if it is overdue.
func (a *ExpiryActivities) ExpireRequest(ctx context.Context, requestID string) (bool, error) {
	expired, err := a.Expiry.ExpireOne(ctx, requestID, a.now())
	if errors.Is(err, domain.ErrNotFound) {
		return false, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("request %s not found", requestID), "NotFound", err)
	}
	if err != nil {
		return false, fmt.Errorf("expire request %s: %w", requestID, err)
	}
	return expired, nil
}

// SweepExpired closes every overdue request.
func (a *ExpiryActivities) SweepExpired(ctx context.Context) (int, error) {
	n, err := a.Expiry.ExpireDue(ctx, a.now())
	if err != nil {
		return n, fmt.Errorf("sweep expired: %w", err)
	}
	return n, nil
}
