package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwsmith1983/standbyprobe/internal/lifecycle"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// ErrExecutionFailed reports that the automation finished without success.
var ErrExecutionFailed = errors.New("automation execution failed")

// ExecutionError describes an automation that reached a failed terminal
// status.
type ExecutionError struct {
	ExecutionID string
	Status      types.ExecutionStatus
	Message     string
	Category    types.FailureCategory
}

func (e *ExecutionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("automation execution %s ended %s", e.ExecutionID, e.Status)
	}
	return fmt.Sprintf("automation execution %s ended %s: %s", e.ExecutionID, e.Status, e.Message)
}

// Is makes errors.Is(err, ErrExecutionFailed) succeed.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecutionFailed }

// categorize maps a run error onto the failure category stored with the
// result.
func categorize(err error) types.FailureCategory {
	var execErr *ExecutionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, lifecycle.ErrSequenceMismatch):
		return types.FailureMismatch
	case errors.As(err, &execErr) && execErr.Category != "":
		return execErr.Category
	case errors.Is(err, lifecycle.ErrTimeoutExceeded), errors.Is(err, context.DeadlineExceeded):
		return types.FailureTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, lifecycle.ErrResourceNotFound):
		return types.FailureTransient
	default:
		return types.FailurePermanent
	}
}
