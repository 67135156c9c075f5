package types

import "time"

// InstanceSnapshot is the observed state of one instance within a group.
type InstanceSnapshot struct {
	InstanceID       string         `json:"instanceId"`
	LifecycleState   LifecycleState `json:"lifecycleState"`
	HealthStatus     string         `json:"healthStatus,omitempty"`
	AvailabilityZone string         `json:"availabilityZone,omitempty"`
}

// GroupSnapshot is the full state of an Auto Scaling group at one poll.
type GroupSnapshot struct {
	GroupName  string             `json:"groupName"`
	Instances  []InstanceSnapshot `json:"instances"`
	ObservedAt time.Time          `json:"observedAt"`
}

// Lookup returns the lifecycle state of instanceID and whether it is present.
func (s GroupSnapshot) Lookup(instanceID string) (LifecycleState, bool) {
	for _, inst := range s.Instances {
		if inst.InstanceID == instanceID {
			return inst.LifecycleState, true
		}
	}
	return "", false
}

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	RunID           string           `json:"runId" dynamodbav:"runId"`
	Scenario        string           `json:"scenario" dynamodbav:"scenario"`
	Kind            ScenarioKind     `json:"kind" dynamodbav:"kind"`
	GroupName       string           `json:"groupName,omitempty" dynamodbav:"groupName,omitempty"`
	InstanceID      string           `json:"instanceId,omitempty" dynamodbav:"instanceId,omitempty"`
	ExecutionID     string           `json:"executionId,omitempty" dynamodbav:"executionId,omitempty"`
	ExecutionStatus ExecutionStatus  `json:"executionStatus,omitempty" dynamodbav:"executionStatus,omitempty"`
	Observed        []LifecycleState `json:"observed" dynamodbav:"observed"`
	Expected        []LifecycleState `json:"expected" dynamodbav:"expected"`
	Passed          bool             `json:"passed" dynamodbav:"passed"`
	FailureCategory FailureCategory  `json:"failureCategory,omitempty" dynamodbav:"failureCategory,omitempty"`
	FailureMessage  string           `json:"failureMessage,omitempty" dynamodbav:"failureMessage,omitempty"`
	StartedAt       time.Time        `json:"startedAt" dynamodbav:"startedAt"`
	FinishedAt      time.Time        `json:"finishedAt" dynamodbav:"finishedAt"`
}

// Duration returns how long the run took.
func (r ScenarioResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Alert is a notification emitted when a scenario fails or needs attention.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	Scenario  string                 `json:"scenario,omitempty"`
	RunID     string                 `json:"runId,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
