// Package iamrole provisions the short-lived administrator role that test
// automations and their Lambda steps assume.
package iamrole

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	// AdministratorAccessARN is the AWS managed policy attached to every role.
	AdministratorAccessARN = "arn:aws:iam::aws:policy/AdministratorAccess"

	policyVersion    = "2012-10-17"
	effectAllow      = "Allow"
	actionAssumeRole = "sts:AssumeRole"
	sessionName      = "checking_assume"
	roleDescription  = "Administrator role for standbyprobe scenarios"
)

// trustedServices may assume the role on the harness's behalf.
var trustedServices = []string{
	"lambda.amazonaws.com",
	"ssm.amazonaws.com",
	"cloudformation.amazonaws.com",
	"ec2.amazonaws.com",
}

var (
	errRoleCreate       = errors.New("failed to create IAM role")
	errRoleAttachPolicy = errors.New("failed to attach policy to IAM role")
	errRoleDetachPolicy = errors.New("failed to detach policy from IAM role")
	errRoleDelete       = errors.New("failed to delete IAM role")
	errTrustPolicy      = errors.New("failed to marshal trust policy")
	errAssumeRole       = errors.New("role could not be assumed")
	errCallerIdentity   = errors.New("failed to resolve caller identity")
)

// IAMAPI is the subset of the IAM client used by Manager.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

// STSAPI is the subset of the STS client used by Manager.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Manager creates and removes administrator roles.
type Manager struct {
	iam    IAMAPI
	sts    STSAPI
	logger *slog.Logger

	assumeAttempts int
	assumeDelay    time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithAssumeRetry sets how many times a fresh role is assumed before
// giving up, and the delay between attempts.
func WithAssumeRetry(attempts int, delay time.Duration) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.assumeAttempts = attempts
		}
		if delay >= 0 {
			m.assumeDelay = delay
		}
	}
}

// New creates a Manager over the given APIs.
func New(iamc IAMAPI, stsc STSAPI, opts ...Option) *Manager {
	m := &Manager{
		iam:            iamc,
		sts:            stsc,
		logger:         slog.Default(),
		assumeAttempts: 6,
		assumeDelay:    10 * time.Second,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewFromConfig creates a Manager from an AWS config.
func NewFromConfig(cfg aws.Config, opts ...Option) *Manager {
	return New(iam.NewFromConfig(cfg), sts.NewFromConfig(cfg), opts...)
}

// Role is an acquired administrator role.
type Role struct {
	Name string
	ARN  string

	manager *Manager
}

// CallerARN returns the ARN of the identity the harness runs as.
func (m *Manager) CallerARN(ctx context.Context) (string, error) {
	out, err := m.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", errCallerIdentity, err)
	}
	return aws.ToString(out.Arn), nil
}

// Acquire creates the named role trusted by the automation services and by
// callerARN, attaches AdministratorAccess, and blocks until STS accepts the
// role. Leftovers from an earlier run are removed first. On failure the
// partially created role is released before returning.
func (m *Manager) Acquire(ctx context.Context, name, callerARN string) (*Role, error) {
	m.cleanup(ctx, name)

	doc, err := trustPolicy(callerARN)
	if err != nil {
		return nil, err
	}

	m.logger.Info("creating IAM role", "role_name", name)
	out, err := m.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(doc),
		Description:              aws.String(roleDescription),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRoleCreate, err)
	}
	role := &Role{Name: name, ARN: aws.ToString(out.Role.Arn), manager: m}

	if _, err := m.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(AdministratorAccessARN),
	}); err != nil {
		role.Release(ctx)
		return nil, fmt.Errorf("%w: %w", errRoleAttachPolicy, err)
	}

	if err := m.waitAssumable(ctx, role.ARN); err != nil {
		role.Release(ctx)
		return nil, err
	}

	m.logger.Info("IAM role ready", "role_name", name, "role_arn", role.ARN)
	return role, nil
}

// waitAssumable retries AssumeRole until IAM has propagated the new role.
func (m *Manager) waitAssumable(ctx context.Context, arn string) error {
	var lastErr error
	for attempt := 1; attempt <= m.assumeAttempts; attempt++ {
		_, err := m.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
			RoleArn:         aws.String(arn),
			RoleSessionName: aws.String(sessionName),
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == m.assumeAttempts {
			break
		}

		m.logger.Info("unable to assume role, retrying", "role_arn", arn, "attempt", attempt, "delay", m.assumeDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.assumeDelay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", errAssumeRole, m.assumeAttempts, lastErr)
}

// Release detaches the policy and deletes the role. Failures are logged and
// otherwise ignored so Release is safe on every exit path.
func (r *Role) Release(ctx context.Context) {
	if r == nil || r.manager == nil {
		return
	}
	r.manager.Release(ctx, r.Name)
}

// Release removes the named role and its policy attachment, ignoring
// failures.
func (m *Manager) Release(ctx context.Context, name string) {
	m.cleanup(ctx, name)
}

func (m *Manager) cleanup(ctx context.Context, name string) {
	if _, err := m.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(AdministratorAccessARN),
	}); err != nil {
		m.logger.Debug("ignoring role cleanup error", "role_name", name, "error", fmt.Errorf("%w: %w", errRoleDetachPolicy, err))
	}
	if _, err := m.iam.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(name),
	}); err != nil {
		m.logger.Debug("ignoring role cleanup error", "role_name", name, "error", fmt.Errorf("%w: %w", errRoleDelete, err))
	}
}

func trustPolicy(callerARN string) (string, error) {
	statements := []map[string]any{
		{
			"Effect":    effectAllow,
			"Principal": map[string]any{"Service": trustedServices},
			"Action":    actionAssumeRole,
		},
	}
	if callerARN != "" {
		statements = append(statements, map[string]any{
			"Effect":    effectAllow,
			"Principal": map[string]any{"AWS": callerARN},
			"Action":    actionAssumeRole,
		})
	}

	b, err := json.Marshal(map[string]any{
		"Version":   policyVersion,
		"Statement": statements,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTrustPolicy, err)
	}
	return string(b), nil
}
