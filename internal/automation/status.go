package automation

import "github.com/dwsmith1983/standbyprobe/pkg/types"

// CheckState represents the normalized outcome of an execution status check.
type CheckState string

const (
	CheckRunning   CheckState = "running"
	CheckSucceeded CheckState = "succeeded"
	CheckFailed    CheckState = "failed"
)

// StatusResult is the normalized result of checking an automation execution.
type StatusResult struct {
	ExecutionID     string
	State           CheckState
	Status          types.ExecutionStatus // raw SSM status
	Message         string                // failure message reported by SSM, if any
	FailureCategory types.FailureCategory
}

// Terminal reports whether the execution has finished.
func (r StatusResult) Terminal() bool {
	return r.State != CheckRunning
}

// classify maps a raw SSM status onto a StatusResult.
func classify(status types.ExecutionStatus) (CheckState, types.FailureCategory) {
	switch status {
	case types.ExecutionSuccess:
		return CheckSucceeded, ""
	case types.ExecutionTimedOut:
		return CheckFailed, types.FailureTimeout
	case types.ExecutionFailed:
		return CheckFailed, types.FailureTransient
	case types.ExecutionCancelled, "Rejected", "CompletedWithFailure", "Exited":
		return CheckFailed, types.FailurePermanent
	case "CompletedWithSuccess":
		return CheckSucceeded, ""
	default:
		return CheckRunning, ""
	}
}
