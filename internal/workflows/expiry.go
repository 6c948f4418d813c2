package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SignalExtendExpiry moves a pending expiry to the time.Time sent with it.
const SignalExtendExpiry = "extend-expiry"

// RequestExpiryInput is the input for the request expiry workflow.
type RequestExpiryInput struct {
	RequestID string
	ExpiresAt time.Time
}

var activityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Second,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2,
		MaximumAttempts:    5,
	},
}

// RequestExpiryWorkflow sleeps until a request's expiration time and then
// closes it. The deadline can be moved with SignalExtendExpiry while the
// workflow is waiting. It returns whether the request was closed.
func RequestExpiryWorkflow(ctx workflow.Context, input RequestExpiryInput) (bool, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("waiting for request expiry", "requestID", input.RequestID, "expiresAt", input.ExpiresAt)

	expiresAt := input.ExpiresAt
	extend := workflow.GetSignalChannel(ctx, SignalExtendExpiry)

	for {
		wait := expiresAt.Sub(workflow.Now(ctx))
		if wait <= 0 {
			break
		}

		timerCtx, cancelTimer := workflow.WithCancel(ctx)
		timer := workflow.NewTimer(timerCtx, wait)

		fired := false
		sel := workflow.NewSelector(ctx)
		sel.AddFuture(timer, func(f workflow.Future) {
			fired = f.Get(ctx, nil) == nil
		})
		sel.AddReceive(extend, func(c workflow.ReceiveChannel, more bool) {
			var next time.Time
			c.Receive(ctx, &next)
			logger.Info("request expiry moved", "requestID", input.RequestID, "expiresAt", next)
			expiresAt = next
			cancelTimer()
		})
		sel.Select(ctx)

		if fired {
			break
		}
	}

	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var expired bool
	if err := workflow.ExecuteActivity(ctx, "ExpireRequest", input.RequestID).Get(ctx, &expired); err != nil {
		return false, err
	}
	logger.Info("request expiry handled", "requestID", input.RequestID, "expired", expired)
	return expired, nil
}

// ExpirySweepWorkflow closes every overdue request in one pass. It runs on
// a cron schedule to catch requests whose own workflow was never started.
func ExpirySweepWorkflow(ctx workflow.Context) (int, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var n int
	if err := workflow.ExecuteActivity(ctx, "SweepExpired").Get(ctx, &n); err != nil {
		return 0, err
	}
	if n > 0 {
		workflow.GetLogger(ctx).Info("expiry sweep closed requests", "count", n)
	}
	return n, nil
}
