// Package types defines the public domain types for the standbyprobe harness.
package types

// LifecycleState is an Auto Scaling instance lifecycle state as reported by
// the Auto Scaling control plane. Values are compared by identity only.
type LifecycleState string

// LifecycleState values enumerate the states an Auto Scaling instance can
// report. Warm pool states are passed through as-is.
const (
	StatePending            LifecycleState = "Pending"
	StatePendingWait        LifecycleState = "Pending:Wait"
	StatePendingProceed     LifecycleState = "Pending:Proceed"
	StateQuarantined        LifecycleState = "Quarantined"
	StateInService          LifecycleState = "InService"
	StateTerminating        LifecycleState = "Terminating"
	StateTerminatingWait    LifecycleState = "Terminating:Wait"
	StateTerminatingProceed LifecycleState = "Terminating:Proceed"
	StateTerminated         LifecycleState = "Terminated"
	StateDetaching          LifecycleState = "Detaching"
	StateDetached           LifecycleState = "Detached"
	StateEnteringStandby    LifecycleState = "EnteringStandby"
	StateStandby            LifecycleState = "Standby"
)

// ParseLifecycleStates converts raw strings into lifecycle states.
func ParseLifecycleStates(raw []string) []LifecycleState {
	out := make([]LifecycleState, 0, len(raw))
	for _, s := range raw {
		out = append(out, LifecycleState(s))
	}
	return out
}

// ExecutionStatus is the raw status of an SSM automation execution.
type ExecutionStatus string

// ExecutionStatus values mirror the SSM automation execution statuses.
const (
	ExecutionPending    ExecutionStatus = "Pending"
	ExecutionInProgress ExecutionStatus = "InProgress"
	ExecutionWaiting    ExecutionStatus = "Waiting"
	ExecutionSuccess    ExecutionStatus = "Success"
	ExecutionTimedOut   ExecutionStatus = "TimedOut"
	ExecutionCancelling ExecutionStatus = "Cancelling"
	ExecutionCancelled  ExecutionStatus = "Cancelled"
	ExecutionFailed     ExecutionStatus = "Failed"
)

// ScenarioKind selects which standby direction a scenario exercises.
type ScenarioKind string

const (
	ScenarioEnterStandby ScenarioKind = "enter-standby"
	ScenarioExitStandby  ScenarioKind = "exit-standby"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertFile    AlertType = "file"
	AlertSNS     AlertType = "sns"
	AlertS3      AlertType = "s3"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// FailureCategory classifies why a scenario or execution failed.
type FailureCategory string

const (
	FailureTransient FailureCategory = "TRANSIENT"
	FailurePermanent FailureCategory = "PERMANENT"
	FailureTimeout   FailureCategory = "TIMEOUT"
	FailureMismatch  FailureCategory = "SEQUENCE_MISMATCH"
)
