package ec2client

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// State returns the current lifecycle state of an instance.
// It never caches: every call is a fresh DescribeInstanceStatus request.
func (c *Client) State(ctx context.Context, instanceID string) (types.InstanceStateName, error) {
	status, err := c.describeStatus(ctx, instanceID)
	if err != nil {
		return "", err
	}

	if status.InstanceState == nil {
		return "", fmt.Errorf("%w: AWS returned no state for %s", ErrTransient, instanceID)
	}

	c.logger.WithField("instance_id", instanceID).Debugf("instance state is %s", status.InstanceState.Name)

	return status.InstanceState.Name, nil
}

// Healthy reports whether both the instance and system status checks pass.
// Instances that are not running are never healthy.
func (c *Client) Healthy(ctx context.Context, instanceID string) (bool, error) {
	status, err := c.describeStatus(ctx, instanceID)
	if err != nil {
		return false, err
	}

	if status.InstanceState == nil || status.InstanceState.Name != types.InstanceStateNameRunning {
		return false, nil
	}

	instanceOK := status.InstanceStatus != nil && status.InstanceStatus.Status == types.SummaryStatusOk
	systemOK := status.SystemStatus != nil && status.SystemStatus.Status == types.SummaryStatusOk

	c.logger.WithField("instance_id", instanceID).Debugf("status checks: instance=%t system=%t", instanceOK, systemOK)

	return instanceOK && systemOK, nil
}

func (c *Client) describeStatus(ctx context.Context, instanceID string) (types.InstanceStatus, error) {
	input := &ec2.DescribeInstanceStatusInput{
		InstanceIds:         []string{instanceID},
		IncludeAllInstances: aws.Bool(true),
	}

	result, err := c.ec2Client.DescribeInstanceStatus(ctx, input)
	if err != nil {
		return types.InstanceStatus{}, wrapAPIError("describe status of", instanceID, err)
	}

	for _, status := range result.InstanceStatuses {
		if aws.ToString(status.InstanceId) == instanceID {
			return status, nil
		}
	}

	return types.InstanceStatus{}, fmt.Errorf("%w: %s in %s", ErrNotFound, instanceID, c.region)
}
