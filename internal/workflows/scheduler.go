package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// SweepWorkflowID identifies the single cron sweep execution.
const SweepWorkflowID = "aidmap-expiry-sweep"

// ExpiryWorkflowID is the workflow ID used for one request's expiry.
func ExpiryWorkflowID(requestID string) string {
	return "request-expiry-" + requestID
}

// Scheduler implements ports.ExpiryScheduler on Temporal.
type Scheduler struct {
	client    client.Client
	taskQueue string
}

// NewScheduler creates a Scheduler starting workflows on taskQueue.
func NewScheduler(c client.Client, taskQueue string) *Scheduler {
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// ScheduleExpiry starts the expiry workflow for requestID. Scheduling the
// same request twice joins the running workflow.
func (s *Scheduler) ScheduleExpiry(ctx context.Context, requestID string, at time.Time) error {
	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        ExpiryWorkflowID(requestID),
		TaskQueue: s.taskQueue,
	}, RequestExpiryWorkflow, RequestExpiryInput{RequestID: requestID, ExpiresAt: at})
	if err != nil {
		return fmt.Errorf("start expiry workflow: %w", err)
	}
	return nil
}

// StartSweep registers the cron sweep. An already running sweep is left in
// place.
func (s *Scheduler) StartSweep(ctx context.Context, cron string) error {
	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       SweepWorkflowID,
		TaskQueue:                                s.taskQueue,
		CronSchedule:                             cron,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, ExpirySweepWorkflow)

	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("start sweep workflow: %w", err)
	}
	return nil
}
