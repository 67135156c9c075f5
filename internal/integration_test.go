package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/standbyprobe/internal/alert"
	"github.com/dwsmith1983/standbyprobe/internal/asg"
	"github.com/dwsmith1983/standbyprobe/internal/automation"
	"github.com/dwsmith1983/standbyprobe/internal/cfnstack"
	"github.com/dwsmith1983/standbyprobe/internal/config"
	"github.com/dwsmith1983/standbyprobe/internal/iamrole"
	"github.com/dwsmith1983/standbyprobe/internal/lifecycle"
	"github.com/dwsmith1983/standbyprobe/internal/scenario"
	"github.com/dwsmith1983/standbyprobe/internal/testutil"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// ---------------------------------------------------------------------------
// Simulated account
// ---------------------------------------------------------------------------

const (
	simGroup    = "probe-asg"
	simInstance = "i-0aaaabbbbccccdddd"
	simCaller   = "arn:aws:iam::123456789012:user/ci"
)

// account simulates the slice of AWS one scenario touches. Each automation
// status poll advances the instance through script, the way a real document
// moves it while SSM reports InProgress.
type account struct {
	mu sync.Mutex

	stack    bool
	params   []cftypes.Parameter
	state    astypes.LifecycleState
	document bool
	role     bool

	script     []astypes.LifecycleState
	step       int
	final      ssmtypes.AutomationExecutionStatus
	execParams map[string][]string
	calls      []string
}

func newAccount(final ssmtypes.AutomationExecutionStatus, script ...astypes.LifecycleState) *account {
	return &account{final: final, script: script}
}

func (a *account) record(call string) {
	a.calls = append(a.calls, call)
}

func (a *account) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// CloudFormation

func (a *account) CreateStack(_ context.Context, in *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("CreateStack")
	a.stack = true
	a.params = in.Parameters
	a.state = astypes.LifecycleStateInService
	return &cloudformation.CreateStackOutput{StackId: aws.String("stack-1")}, nil
}

func (a *account) DeleteStack(_ context.Context, _ *cloudformation.DeleteStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stack {
		a.record("DeleteStack")
	}
	a.stack = false
	return &cloudformation.DeleteStackOutput{}, nil
}

func (a *account) DescribeStacks(_ context.Context, in *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.stack {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id " + aws.ToString(in.StackName) + " does not exist"}
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cftypes.Stack{{
		StackName:   in.StackName,
		StackStatus: cftypes.StackStatusCreateComplete,
		Outputs:     []cftypes.Output{{OutputKey: aws.String("ASGName"), OutputValue: aws.String(simGroup)}},
	}}}, nil
}

// Auto Scaling

func (a *account) DescribeAutoScalingGroups(_ context.Context, _ *autoscaling.DescribeAutoScalingGroupsInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.stack {
		return &autoscaling.DescribeAutoScalingGroupsOutput{}, nil
	}
	return &autoscaling.DescribeAutoScalingGroupsOutput{AutoScalingGroups: []astypes.AutoScalingGroup{{
		AutoScalingGroupName: aws.String(simGroup),
		Instances: []astypes.Instance{{
			InstanceId:       aws.String(simInstance),
			LifecycleState:   a.state,
			HealthStatus:     aws.String("Healthy"),
			AvailabilityZone: aws.String("us-west-2a"),
		}},
	}}}, nil
}

func (a *account) DescribeAutoScalingInstances(_ context.Context, _ *autoscaling.DescribeAutoScalingInstancesInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingInstancesOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.stack {
		return &autoscaling.DescribeAutoScalingInstancesOutput{}, nil
	}
	return &autoscaling.DescribeAutoScalingInstancesOutput{AutoScalingInstances: []astypes.AutoScalingInstanceDetails{{
		InstanceId:           aws.String(simInstance),
		AutoScalingGroupName: aws.String(simGroup),
		LifecycleState:       aws.String(string(a.state)),
	}}}, nil
}

func (a *account) EnterStandby(_ context.Context, _ *autoscaling.EnterStandbyInput, _ ...func(*autoscaling.Options)) (*autoscaling.EnterStandbyOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("EnterStandby")
	a.state = astypes.LifecycleStateStandby
	return &autoscaling.EnterStandbyOutput{}, nil
}

func (a *account) ExitStandby(_ context.Context, _ *autoscaling.ExitStandbyInput, _ ...func(*autoscaling.Options)) (*autoscaling.ExitStandbyOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("ExitStandby")
	a.state = astypes.LifecycleStateInService
	return &autoscaling.ExitStandbyOutput{}, nil
}

// EC2

func (a *account) DescribeInstanceStatus(_ context.Context, _ *ec2.DescribeInstanceStatusInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstanceStatusOutput, error) {
	return &ec2.DescribeInstanceStatusOutput{InstanceStatuses: []ec2types.InstanceStatus{{
		InstanceId:     aws.String(simInstance),
		InstanceStatus: &ec2types.InstanceStatusSummary{Status: ec2types.SummaryStatusOk},
	}}}, nil
}

func (a *account) DescribeSubnets(_ context.Context, _ *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	return &ec2.DescribeSubnetsOutput{Subnets: []ec2types.Subnet{
		{SubnetId: aws.String("subnet-a"), AvailabilityZone: aws.String("us-west-2a")},
		{SubnetId: aws.String("subnet-b"), AvailabilityZone: aws.String("us-west-2b")},
	}}, nil
}

// SSM

func (a *account) CreateDocument(_ context.Context, in *ssm.CreateDocumentInput, _ ...func(*ssm.Options)) (*ssm.CreateDocumentOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("CreateDocument")
	a.document = true
	return &ssm.CreateDocumentOutput{DocumentDescription: &ssmtypes.DocumentDescription{
		Name:   in.Name,
		Status: ssmtypes.DocumentStatusCreating,
	}}, nil
}

func (a *account) DescribeDocument(_ context.Context, in *ssm.DescribeDocumentInput, _ ...func(*ssm.Options)) (*ssm.DescribeDocumentOutput, error) {
	return &ssm.DescribeDocumentOutput{Document: &ssmtypes.DocumentDescription{
		Name:   in.Name,
		Status: ssmtypes.DocumentStatusActive,
	}}, nil
}

func (a *account) DeleteDocument(_ context.Context, _ *ssm.DeleteDocumentInput, _ ...func(*ssm.Options)) (*ssm.DeleteDocumentOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.document {
		return nil, &ssmtypes.InvalidDocument{Message: aws.String("not found")}
	}
	a.record("DeleteDocument")
	a.document = false
	return &ssm.DeleteDocumentOutput{}, nil
}

func (a *account) StartAutomationExecution(_ context.Context, in *ssm.StartAutomationExecutionInput, _ ...func(*ssm.Options)) (*ssm.StartAutomationExecutionOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("StartAutomationExecution")
	a.execParams = in.Parameters
	return &ssm.StartAutomationExecutionOutput{AutomationExecutionId: aws.String("exec-1")}, nil
}

func (a *account) GetAutomationExecution(_ context.Context, in *ssm.GetAutomationExecutionInput, _ ...func(*ssm.Options)) (*ssm.GetAutomationExecutionOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := a.final
	if a.step < len(a.script) {
		a.state = a.script[a.step]
		a.step++
		status = ssmtypes.AutomationExecutionStatusInprogress
	}
	exec := &ssmtypes.AutomationExecution{
		AutomationExecutionId:     in.AutomationExecutionId,
		AutomationExecutionStatus: status,
	}
	if status == ssmtypes.AutomationExecutionStatusFailed {
		exec.FailureMessage = aws.String("Step fails when it is Executing")
	}
	return &ssm.GetAutomationExecutionOutput{AutomationExecution: exec}, nil
}

func (a *account) StopAutomationExecution(_ context.Context, _ *ssm.StopAutomationExecutionInput, _ ...func(*ssm.Options)) (*ssm.StopAutomationExecutionOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("StopAutomationExecution")
	return &ssm.StopAutomationExecutionOutput{}, nil
}

// IAM and STS

func (a *account) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("CreateRole")
	a.role = true
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{
		RoleName: in.RoleName,
		Arn:      aws.String("arn:aws:iam::123456789012:role/" + aws.ToString(in.RoleName)),
	}}, nil
}

func (a *account) AttachRolePolicy(_ context.Context, _ *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	return &iam.AttachRolePolicyOutput{}, nil
}

func (a *account) DetachRolePolicy(_ context.Context, _ *iam.DetachRolePolicyInput, _ ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	return &iam.DetachRolePolicyOutput{}, nil
}

func (a *account) DeleteRole(_ context.Context, _ *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.role {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("no such role")}
	}
	a.record("DeleteRole")
	a.role = false
	return &iam.DeleteRoleOutput{}, nil
}

func (a *account) AssumeRole(_ context.Context, _ *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	return &sts.AssumeRoleOutput{}, nil
}

func (a *account) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Arn: aws.String(simCaller)}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type harness struct {
	dir      string
	alertLog string
	acct     *account
	store    *testutil.MockProvider
	runner   *scenario.Runner
}

func writeProjectFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newHarness(t *testing.T, acct *account) *harness {
	t.Helper()
	dir := t.TempDir()
	writeProjectFile(t, dir, config.DefaultTemplateFile, "Resources: {}\n")
	writeProjectFile(t, dir, "documents/enter-standby.json", `{"schemaVersion":"0.3","mainSteps":[]}`)
	writeProjectFile(t, dir, "documents/exit-standby.json", `{"schemaVersion":"0.3","mainSteps":[]}`)

	alertLog := filepath.Join(dir, "alerts", "alerts.jsonl")
	project := config.Default("us-west-2", "ami-0abc")
	project.Dir = dir
	project.Polling = types.PollingConfig{
		StateInterval:   "1ms",
		StateMaxWait:    "1s",
		InstanceMaxWait: "1s",
	}
	project.Alerts = []types.AlertConfig{{Type: types.AlertFile, Path: alertLog}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := testutil.NewMockProvider()
	dispatcher, err := alert.NewDispatcher(project.Alerts, alert.WithLogger(logger), alert.WithStore(store))
	require.NoError(t, err)

	runner, err := scenario.New(project, scenario.Deps{
		Fleet: asg.New(acct, acct, asg.WithLogger(logger), asg.WithHealthyInterval(time.Millisecond)),
		Automation: automation.NewRunner(
			automation.WithSSMClient(acct),
			automation.WithLogger(logger),
			automation.WithPollInterval(time.Millisecond),
			automation.WithMaxWait(time.Second)),
		Stacks: cfnstack.New(acct,
			cfnstack.WithLogger(logger),
			cfnstack.WithMaxWait(time.Second),
			cfnstack.WithWaiterDelays(time.Millisecond, 5*time.Millisecond)),
		Roles:  iamrole.New(acct, acct, iamrole.WithLogger(logger), iamrole.WithAssumeRetry(2, 0)),
		Store:  store,
		Alerts: dispatcher,
	}, scenario.WithLogger(logger))
	require.NoError(t, err)

	return &harness{dir: dir, alertLog: alertLog, acct: acct, store: store, runner: runner}
}

func readAlertLog(t *testing.T, path string) []types.Alert {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var alerts []types.Alert
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var a types.Alert
		if err := json.Unmarshal(sc.Bytes(), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts
}

func scenarioByKind(kind types.ScenarioKind) types.ScenarioConfig {
	return types.ScenarioConfig{Name: string(kind), Kind: kind}
}

// ---------------------------------------------------------------------------
// Test 1: enter-standby document moves the instance to Standby
// ---------------------------------------------------------------------------

func TestIntegration_EnterStandby(t *testing.T) {
	acct := newAccount(ssmtypes.AutomationExecutionStatusSuccess,
		astypes.LifecycleStateEnteringStandby, astypes.LifecycleStateStandby)
	h := newHarness(t, acct)

	res, err := h.runner.Run(context.Background(), scenarioByKind(types.ScenarioEnterStandby))
	require.NoError(t, err)

	assert.True(t, res.Passed)
	assert.Equal(t, simGroup, res.GroupName)
	assert.Equal(t, simInstance, res.InstanceID)
	assert.Equal(t, []types.LifecycleState{types.StateInService, types.StateStandby}, res.Observed)

	roleARN := "arn:aws:iam::123456789012:role/standbyprobe-enter-standby-test"
	assert.Equal(t, []string{roleARN}, acct.execParams["AutomationAssumeRole"])
	assert.Equal(t, []string{simInstance}, acct.execParams["InstanceId"])

	assert.Equal(t, []string{
		"CreateRole", "CreateStack", "CreateDocument", "StartAutomationExecution",
		"ExitStandby", "DeleteDocument", "DeleteStack", "DeleteRole",
	}, acct.Calls())

	stored, err := h.store.ListResults(context.Background(), "enter-standby", 5)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Passed)
	assert.Empty(t, readAlertLog(t, h.alertLog))
}

// ---------------------------------------------------------------------------
// Test 2: exit-standby document returns a Standby instance to service
// ---------------------------------------------------------------------------

func TestIntegration_ExitStandby(t *testing.T) {
	acct := newAccount(ssmtypes.AutomationExecutionStatusSuccess,
		astypes.LifecycleStatePending, astypes.LifecycleStateInService)
	h := newHarness(t, acct)

	res, err := h.runner.Run(context.Background(), scenarioByKind(types.ScenarioExitStandby))
	require.NoError(t, err)

	assert.True(t, res.Passed)
	assert.Equal(t, []types.LifecycleState{types.StateStandby, types.StateInService}, res.Observed)
	assert.Equal(t, []string{
		"CreateRole", "CreateStack", "EnterStandby", "CreateDocument", "StartAutomationExecution",
		"DeleteDocument", "DeleteStack", "DeleteRole",
	}, acct.Calls())
}

// ---------------------------------------------------------------------------
// Test 3: a document that never moves the instance is a sequence mismatch
// ---------------------------------------------------------------------------

func TestIntegration_DocumentDoesNothing(t *testing.T) {
	acct := newAccount(ssmtypes.AutomationExecutionStatusSuccess)
	h := newHarness(t, acct)

	res, err := h.runner.Run(context.Background(), scenarioByKind(types.ScenarioEnterStandby))
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrSequenceMismatch)

	assert.False(t, res.Passed)
	assert.Equal(t, types.FailureMismatch, res.FailureCategory)
	assert.Equal(t, []types.LifecycleState{types.StateInService}, res.Observed)
	assert.NotContains(t, acct.Calls(), "ExitStandby", "instance never left service")
	assert.Contains(t, acct.Calls(), "DeleteStack")

	alerts := readAlertLog(t, h.alertLog)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertLevelError, alerts[0].Level)
	assert.Equal(t, res.RunID, alerts[0].RunID)

	storedAlerts, err := h.store.ListAlerts(context.Background(), "enter-standby", 5)
	require.NoError(t, err)
	assert.Len(t, storedAlerts, 1)
}

// ---------------------------------------------------------------------------
// Test 4: a failed execution fails the scenario even with the right sequence
// ---------------------------------------------------------------------------

func TestIntegration_ExecutionFailed(t *testing.T) {
	acct := newAccount(ssmtypes.AutomationExecutionStatusFailed,
		astypes.LifecycleStateEnteringStandby, astypes.LifecycleStateStandby)
	h := newHarness(t, acct)

	res, err := h.runner.Run(context.Background(), scenarioByKind(types.ScenarioEnterStandby))
	require.Error(t, err)
	assert.ErrorIs(t, err, scenario.ErrExecutionFailed)
	assert.Equal(t, types.ExecutionFailed, res.ExecutionStatus)
	assert.Contains(t, res.FailureMessage, "Step fails when it is Executing")
	assert.Contains(t, acct.Calls(), "ExitStandby")
}
