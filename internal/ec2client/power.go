package ec2client

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// StartInstance requests a start of a stopped instance. It does not wait.
func (c *Client) StartInstance(ctx context.Context, instanceID string) error {
	logger := c.logger.WithField("instance_id", instanceID)
	logger.Debug("sending start request")

	result, err := c.ec2Client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return wrapAPIError("start", instanceID, err)
	}

	logStateChanges(logger, result.StartingInstances)

	return nil
}

// StopInstance requests a stop of a running instance. It does not wait.
func (c *Client) StopInstance(ctx context.Context, instanceID string) error {
	logger := c.logger.WithField("instance_id", instanceID)
	logger.Debug("sending stop request")

	result, err := c.ec2Client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return wrapAPIError("stop", instanceID, err)
	}

	logStateChanges(logger, result.StoppingInstances)

	return nil
}

func logStateChanges(logger interface{ Debugf(string, ...any) }, changes []types.InstanceStateChange) {
	for _, change := range changes {
		var previous, current types.InstanceStateName
		if change.PreviousState != nil {
			previous = change.PreviousState.Name
		}
		if change.CurrentState != nil {
			current = change.CurrentState.Name
		}

		logger.Debugf("instance %s changed state %s -> %s", aws.ToString(change.InstanceId), previous, current)
	}
}
