package scenario

import (
	"context"
	"time"

	"github.com/dwsmith1983/standbyprobe/internal/asg"
	"github.com/dwsmith1983/standbyprobe/internal/automation"
	"github.com/dwsmith1983/standbyprobe/internal/iamrole"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// Fleet observes and steers the scenario's Auto Scaling group.
type Fleet interface {
	Snapshot(ctx context.Context, group string) (types.GroupSnapshot, error)
	FetchState(ctx context.Context, group, instanceID string) (types.LifecycleState, error)
	EnterStandby(ctx context.Context, group, instanceID string, decrementDesired bool) error
	ExitStandby(ctx context.Context, group, instanceID string) error
	WaitForHealthyInstances(ctx context.Context, group string, n int, maxWait time.Duration) ([]string, error)
	DefaultSubnets(ctx context.Context) ([]asg.Subnet, error)
}

// Automation registers and drives automation documents.
type Automation interface {
	CreateDocument(ctx context.Context, name, path, format string) error
	DeleteDocument(ctx context.Context, name string) error
	Start(ctx context.Context, document string, params map[string][]string) (string, error)
	Wait(ctx context.Context, executionID string, callback automation.StatusCallback) (automation.StatusResult, error)
}

// Stacks provisions the CloudFormation stack hosting the group.
type Stacks interface {
	Create(ctx context.Context, name, templatePath string, params map[string]string) (map[string]string, error)
	Delete(ctx context.Context, name string) error
}

// Roles provisions the administrator role automations assume.
type Roles interface {
	CallerARN(ctx context.Context) (string, error)
	Acquire(ctx context.Context, name, callerARN string) (*iamrole.Role, error)
	Release(ctx context.Context, name string)
}

// Dispatcher delivers alerts.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert types.Alert)
}

// Compile-time checks against the production collaborators.
var (
	_ Fleet      = (*asg.Client)(nil)
	_ Automation = (*automation.Runner)(nil)
	_ Roles      = (*iamrole.Manager)(nil)
)
