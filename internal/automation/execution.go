package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/dwsmith1983/standbyprobe/internal/lifecycle"
	"github.com/dwsmith1983/standbyprobe/internal/metrics"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// StatusCallback is invoked once per execution status poll.
type StatusCallback func(ctx context.Context, result StatusResult)

// Start begins an execution of the named document and returns its ID.
func (r *Runner) Start(ctx context.Context, document string, params map[string][]string) (string, error) {
	if document == "" {
		return "", fmt.Errorf("automation execution: document name is required")
	}
	client, err := r.getSSMClient(ctx)
	if err != nil {
		return "", fmt.Errorf("automation execution: getting client: %w", err)
	}

	out, err := client.StartAutomationExecution(ctx, &ssm.StartAutomationExecutionInput{
		DocumentName: aws.String(document),
		Parameters:   params,
	})
	if err != nil {
		return "", fmt.Errorf("automation execution: StartAutomationExecution failed: %w", err)
	}
	id := aws.ToString(out.AutomationExecutionId)
	if id == "" {
		return "", fmt.Errorf("automation execution: no execution id returned for %s", document)
	}
	r.logger.Info("started automation execution", "document", document, "execution", id)
	return id, nil
}

// CheckStatus fetches and normalizes the status of an execution.
func (r *Runner) CheckStatus(ctx context.Context, executionID string) (StatusResult, error) {
	client, err := r.getSSMClient(ctx)
	if err != nil {
		return StatusResult{}, fmt.Errorf("automation status: getting client: %w", err)
	}

	out, err := client.GetAutomationExecution(ctx, &ssm.GetAutomationExecutionInput{
		AutomationExecutionId: aws.String(executionID),
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("automation status: GetAutomationExecution failed: %w", err)
	}
	metrics.ExecutionPolls.Add(ctx, 1)

	if out.AutomationExecution == nil {
		return StatusResult{ExecutionID: executionID, State: CheckRunning, Message: "missing execution details"}, nil
	}
	status := types.ExecutionStatus(out.AutomationExecution.AutomationExecutionStatus)
	state, category := classify(status)
	return StatusResult{
		ExecutionID:     executionID,
		State:           state,
		Status:          status,
		Message:         aws.ToString(out.AutomationExecution.FailureMessage),
		FailureCategory: category,
	}, nil
}

// Wait follows an execution until it reaches a terminal status, invoking
// callback after every status check, including the final one. Status check
// errors are logged and retried. When ctx is cancelled or the wait budget
// runs out the execution is stopped on a best-effort basis.
func (r *Runner) Wait(ctx context.Context, executionID string, callback StatusCallback) (StatusResult, error) {
	start := time.Now()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var last StatusResult
	for {
		res, err := r.CheckStatus(ctx, executionID)
		if err != nil {
			if ctx.Err() != nil {
				r.stop(executionID)
				return last, ctx.Err()
			}
			r.logger.Warn("execution status check failed", "execution", executionID, "error", err)
		} else {
			last = res
			r.logger.Debug("execution status", "execution", executionID, "status", res.Status)
			if callback != nil {
				callback(ctx, res)
			}
			if res.Terminal() {
				r.logger.Info("automation execution finished", "execution", executionID, "status", res.Status)
				return res, nil
			}
		}

		if time.Since(start)+r.pollInterval > r.maxWait {
			r.stop(executionID)
			return last, fmt.Errorf("%w: execution %s still %q after %s", lifecycle.ErrTimeoutExceeded, executionID, last.Status, r.maxWait)
		}

		select {
		case <-ctx.Done():
			r.stop(executionID)
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// stop cancels an execution. It uses its own context because the caller's
// is usually already done.
func (r *Runner) stop(executionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := r.getSSMClient(ctx)
	if err != nil {
		return
	}
	if _, err := client.StopAutomationExecution(ctx, &ssm.StopAutomationExecutionInput{
		AutomationExecutionId: aws.String(executionID),
	}); err != nil {
		r.logger.Warn("failed to stop automation execution", "execution", executionID, "error", err)
		return
	}
	r.logger.Info("stopped automation execution", "execution", executionID)
}
