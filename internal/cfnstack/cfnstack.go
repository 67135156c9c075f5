// Package cfnstack creates and tears down the CloudFormation stacks that
// hold test infrastructure.
package cfnstack

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// CloudFormationAPI is the subset of the CloudFormation client used by Manager.
type CloudFormationAPI interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// Manager creates and deletes stacks, blocking until each settles.
type Manager struct {
	client   CloudFormationAPI
	logger   *slog.Logger
	maxWait  time.Duration
	minDelay time.Duration
	maxDelay time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMaxWait bounds how long create and delete wait for completion.
func WithMaxWait(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxWait = d
		}
	}
}

// WithWaiterDelays overrides the waiter polling backoff bounds.
func WithWaiterDelays(minDelay, maxDelay time.Duration) Option {
	return func(m *Manager) {
		m.minDelay = minDelay
		m.maxDelay = maxDelay
	}
}

// New creates a Manager.
func New(client CloudFormationAPI, opts ...Option) *Manager {
	m := &Manager{
		client:   client,
		logger:   slog.Default(),
		maxWait:  30 * time.Minute,
		minDelay: 10 * time.Second,
		maxDelay: 60 * time.Second,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewFromConfig creates a Manager from an AWS config.
func NewFromConfig(cfg aws.Config, opts ...Option) *Manager {
	return New(cloudformation.NewFromConfig(cfg), opts...)
}

// Create deletes any stale stack called name, creates it from the template
// at templatePath and waits for CREATE_COMPLETE. It returns the stack outputs.
func (m *Manager) Create(ctx context.Context, name, templatePath string, params map[string]string) (map[string]string, error) {
	body, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", templatePath, err)
	}

	if err := m.Delete(ctx, name); err != nil {
		return nil, fmt.Errorf("removing stale stack: %w", err)
	}

	m.logger.Info("creating stack", "stack", name, "template", templatePath)
	_, err = m.client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(name),
		TemplateBody: aws.String(string(body)),
		Parameters:   parameters(params),
		Capabilities: []cftypes.Capability{cftypes.CapabilityCapabilityIam, cftypes.CapabilityCapabilityNamedIam},
	})
	if err != nil {
		return nil, fmt.Errorf("creating stack %s: %w", name, err)
	}

	waiter := cloudformation.NewStackCreateCompleteWaiter(m.client, func(o *cloudformation.StackCreateCompleteWaiterOptions) {
		o.MinDelay = m.minDelay
		o.MaxDelay = m.maxDelay
	})
	out, err := waiter.WaitForOutput(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)}, m.maxWait)
	if err != nil {
		return nil, fmt.Errorf("waiting for stack %s: %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s vanished after creation", name)
	}

	outputs := make(map[string]string, len(out.Stacks[0].Outputs))
	for _, o := range out.Stacks[0].Outputs {
		outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	m.logger.Info("stack created", "stack", name, "outputs", outputs)
	return outputs, nil
}

// Delete removes the stack and waits for DELETE_COMPLETE. Deleting a stack
// that does not exist succeeds.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if _, err := m.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{StackName: aws.String(name)}); err != nil {
		return fmt.Errorf("deleting stack %s: %w", name, err)
	}

	waiter := cloudformation.NewStackDeleteCompleteWaiter(m.client, func(o *cloudformation.StackDeleteCompleteWaiterOptions) {
		o.MinDelay = m.minDelay
		o.MaxDelay = m.maxDelay
	})
	if err := waiter.Wait(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)}, m.maxWait); err != nil {
		return fmt.Errorf("waiting for stack %s deletion: %w", name, err)
	}
	m.logger.Info("stack deleted", "stack", name)
	return nil
}

func parameters(params map[string]string) []cftypes.Parameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]cftypes.Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, cftypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(params[k]),
		})
	}
	return out
}
