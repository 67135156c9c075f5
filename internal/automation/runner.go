// Package automation registers SSM Automation documents, starts executions
// and follows them to completion.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSMAPI is the subset of the SSM client used by the automation package.
type SSMAPI interface {
	CreateDocument(ctx context.Context, params *ssm.CreateDocumentInput, optFns ...func(*ssm.Options)) (*ssm.CreateDocumentOutput, error)
	DescribeDocument(ctx context.Context, params *ssm.DescribeDocumentInput, optFns ...func(*ssm.Options)) (*ssm.DescribeDocumentOutput, error)
	DeleteDocument(ctx context.Context, params *ssm.DeleteDocumentInput, optFns ...func(*ssm.Options)) (*ssm.DeleteDocumentOutput, error)
	StartAutomationExecution(ctx context.Context, params *ssm.StartAutomationExecutionInput, optFns ...func(*ssm.Options)) (*ssm.StartAutomationExecutionOutput, error)
	GetAutomationExecution(ctx context.Context, params *ssm.GetAutomationExecutionInput, optFns ...func(*ssm.Options)) (*ssm.GetAutomationExecutionOutput, error)
	StopAutomationExecution(ctx context.Context, params *ssm.StopAutomationExecutionInput, optFns ...func(*ssm.Options)) (*ssm.StopAutomationExecutionOutput, error)
}

// Runner holds an injectable SSM client and drives documents and executions.
type Runner struct {
	mu        sync.Mutex
	ssmClient SSMAPI
	region    string

	logger          *slog.Logger
	pollInterval    time.Duration
	maxWait         time.Duration
	documentMaxWait time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSSMClient sets a custom SSM client (useful for testing).
func WithSSMClient(c SSMAPI) RunnerOption {
	return func(r *Runner) { r.ssmClient = c }
}

// WithRegion sets the region used when the client is created lazily.
func WithRegion(region string) RunnerOption {
	return func(r *Runner) { r.region = region }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPollInterval sets the delay between execution and document status checks.
func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithMaxWait bounds how long Wait follows an execution.
func WithMaxWait(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.maxWait = d
		}
	}
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:          slog.Default(),
		pollInterval:    5 * time.Second,
		maxWait:         30 * time.Minute,
		documentMaxWait: 2 * time.Minute,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) getSSMClient(ctx context.Context) (SSMAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ssmClient != nil {
		return r.ssmClient, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if r.region != "" {
		opts = append(opts, awsconfig.WithRegion(r.region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	r.ssmClient = ssm.NewFromConfig(cfg)
	return r.ssmClient, nil
}
