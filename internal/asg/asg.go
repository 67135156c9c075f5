// Package asg wraps the Auto Scaling and EC2 APIs the harness needs to
// observe and steer instances of a test Auto Scaling group.
package asg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/standbyprobe/internal/lifecycle"
	"github.com/dwsmith1983/standbyprobe/internal/metrics"
	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// AutoScalingAPI is the subset of the Auto Scaling client used by Client.
type AutoScalingAPI interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	DescribeAutoScalingInstances(ctx context.Context, params *autoscaling.DescribeAutoScalingInstancesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingInstancesOutput, error)
	EnterStandby(ctx context.Context, params *autoscaling.EnterStandbyInput, optFns ...func(*autoscaling.Options)) (*autoscaling.EnterStandbyOutput, error)
	ExitStandby(ctx context.Context, params *autoscaling.ExitStandbyInput, optFns ...func(*autoscaling.Options)) (*autoscaling.ExitStandbyOutput, error)
}

// EC2API is the subset of the EC2 client used by Client.
type EC2API interface {
	DescribeInstanceStatus(ctx context.Context, params *ec2.DescribeInstanceStatusInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceStatusOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
}

// Compile-time check that Client can drive a lifecycle.Poller.
var _ lifecycle.StateFetcher = (*Client)(nil)

// Client observes and steers instances of Auto Scaling groups.
type Client struct {
	autoscaling AutoScalingAPI
	ec2         EC2API
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
	now         func() time.Time

	healthyInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHealthyInterval sets the delay between healthy-instance checks.
func WithHealthyInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthyInterval = d
		}
	}
}

// WithBreakerSettings replaces the describe circuit breaker settings.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = newBreaker(st, c) }
}

// New creates a Client over the given APIs.
func New(as AutoScalingAPI, ec2c EC2API, opts ...Option) *Client {
	c := &Client{
		autoscaling:     as,
		ec2:             ec2c,
		logger:          slog.Default(),
		now:             time.Now,
		healthyInterval: 10 * time.Second,
	}
	c.breaker = newBreaker(gobreaker.Settings{
		Name:    "asg-describe",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}, c)
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromConfig creates a Client from an AWS config.
func NewFromConfig(cfg aws.Config, opts ...Option) *Client {
	return New(autoscaling.NewFromConfig(cfg), ec2.NewFromConfig(cfg), opts...)
}

func newBreaker(st gobreaker.Settings, c *Client) *gobreaker.CircuitBreaker {
	if st.IsSuccessful == nil {
		st.IsSuccessful = func(err error) bool { return err == nil || !isServerFault(err) }
	}
	userHook := st.OnStateChange
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			metrics.BreakerTrips.Add(context.Background(), 1)
		}
		if c.logger != nil {
			c.logger.Warn("describe circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		}
		if userHook != nil {
			userHook(name, from, to)
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

// isServerFault reports whether err is a throttling or server-side API
// failure. Client-side faults (validation, access denied) do not count
// against the circuit breaker.
func isServerFault(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		// Transport errors and timeouts.
		return true
	}
	switch ae.ErrorCode() {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded":
		return true
	}
	return ae.ErrorFault() == smithy.FaultServer
}

// Snapshot returns the current state of every instance in group.
func (c *Client) Snapshot(ctx context.Context, group string) (types.GroupSnapshot, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.autoscaling.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
			AutoScalingGroupNames: []string{group},
		})
	})
	if err != nil {
		return types.GroupSnapshot{}, fmt.Errorf("describing group %s: %w", group, err)
	}
	out := res.(*autoscaling.DescribeAutoScalingGroupsOutput)
	if len(out.AutoScalingGroups) == 0 {
		return types.GroupSnapshot{}, fmt.Errorf("group %s: %w", group, lifecycle.ErrResourceNotFound)
	}

	g := out.AutoScalingGroups[0]
	snap := types.GroupSnapshot{
		GroupName:  aws.ToString(g.AutoScalingGroupName),
		ObservedAt: c.now(),
	}
	for _, inst := range g.Instances {
		snap.Instances = append(snap.Instances, types.InstanceSnapshot{
			InstanceID:       aws.ToString(inst.InstanceId),
			LifecycleState:   types.LifecycleState(inst.LifecycleState),
			HealthStatus:     aws.ToString(inst.HealthStatus),
			AvailabilityZone: aws.ToString(inst.AvailabilityZone),
		})
	}
	return snap, nil
}

// FetchState returns the lifecycle state of a single instance.
func (c *Client) FetchState(ctx context.Context, group, instanceID string) (types.LifecycleState, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.autoscaling.DescribeAutoScalingInstances(ctx, &autoscaling.DescribeAutoScalingInstancesInput{
			InstanceIds: []string{instanceID},
			MaxRecords:  aws.Int32(1),
		})
	})
	if err != nil {
		return "", fmt.Errorf("describing instance %s: %w", instanceID, err)
	}
	out := res.(*autoscaling.DescribeAutoScalingInstancesOutput)
	for _, inst := range out.AutoScalingInstances {
		if aws.ToString(inst.InstanceId) != instanceID {
			continue
		}
		if group != "" && aws.ToString(inst.AutoScalingGroupName) != group {
			continue
		}
		return types.LifecycleState(aws.ToString(inst.LifecycleState)), nil
	}
	return "", fmt.Errorf("instance %s in group %s: %w", instanceID, group, lifecycle.ErrResourceNotFound)
}

// EnterStandby moves instanceID into Standby.
func (c *Client) EnterStandby(ctx context.Context, group, instanceID string, decrementDesired bool) error {
	c.logger.Info("entering standby", "group", group, "instance", instanceID, "decrementDesired", decrementDesired)
	_, err := c.autoscaling.EnterStandby(ctx, &autoscaling.EnterStandbyInput{
		AutoScalingGroupName:           aws.String(group),
		InstanceIds:                    []string{instanceID},
		ShouldDecrementDesiredCapacity: aws.Bool(decrementDesired),
	})
	if err != nil {
		return fmt.Errorf("entering standby for %s: %w", instanceID, err)
	}
	return nil
}

// ExitStandby moves instanceID from Standby back into service.
func (c *Client) ExitStandby(ctx context.Context, group, instanceID string) error {
	c.logger.Info("exiting standby", "group", group, "instance", instanceID)
	_, err := c.autoscaling.ExitStandby(ctx, &autoscaling.ExitStandbyInput{
		AutoScalingGroupName: aws.String(group),
		InstanceIds:          []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("exiting standby for %s: %w", instanceID, err)
	}
	return nil
}
