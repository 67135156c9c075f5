package asg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/dwsmith1983/standbyprobe/internal/lifecycle"
)

// Subnet is a default subnet usable for test groups.
type Subnet struct {
	ID               string
	AvailabilityZone string
}

// WaitForHealthyInstances polls group until n of its instances report an
// EC2 instance status of "ok" and returns their IDs in discovery order. A
// missing group is a hard failure.
func (c *Client) WaitForHealthyInstances(ctx context.Context, group string, n int, maxWait time.Duration) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("instance count must be positive, got %d", n)
	}

	start := c.now()
	ticker := time.NewTicker(c.healthyInterval)
	defer ticker.Stop()

	var found []string
	seen := make(map[string]bool)
	for {
		snap, err := c.Snapshot(ctx, group)
		if err != nil {
			if errors.Is(err, lifecycle.ErrResourceNotFound) {
				return nil, fmt.Errorf("no Auto Scaling group found: %w", err)
			}
			return nil, err
		}

		if len(snap.Instances) > 0 {
			ids := make([]string, 0, len(snap.Instances))
			for _, inst := range snap.Instances {
				ids = append(ids, inst.InstanceID)
			}
			out, err := c.ec2.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
				InstanceIds:         ids,
				IncludeAllInstances: aws.Bool(true),
			})
			if err != nil {
				return nil, fmt.Errorf("describing instance status: %w", err)
			}
			for _, st := range out.InstanceStatuses {
				id := aws.ToString(st.InstanceId)
				if seen[id] || st.InstanceStatus == nil || st.InstanceStatus.Status != ec2types.SummaryStatusOk {
					continue
				}
				seen[id] = true
				found = append(found, id)
				c.logger.Info("instance healthy", "group", group, "instance", id)
				if len(found) == n {
					return found, nil
				}
			}
		}

		if c.now().Sub(start)+c.healthyInterval > maxWait {
			return nil, fmt.Errorf("%w: found %d of %d running instances in %s", lifecycle.ErrTimeoutExceeded, len(found), n, group)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DefaultSubnets returns the default-for-AZ subnets of the account's default VPC.
func (c *Client) DefaultSubnets(ctx context.Context) ([]Subnet, error) {
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("default-for-az"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("describing default subnets: %w", err)
	}

	subnets := make([]Subnet, 0, len(out.Subnets))
	for _, s := range out.Subnets {
		subnets = append(subnets, Subnet{
			ID:               aws.ToString(s.SubnetId),
			AvailabilityZone: aws.ToString(s.AvailabilityZone),
		})
	}
	return subnets, nil
}
