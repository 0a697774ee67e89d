package ssm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// waitOnline returns once the instance's agent reports Online. An instance
// that is not registered at all fails immediately.
func (s *Strategy) waitOnline(ctx context.Context, instanceID string) error {
	logger := s.logger.WithField("instance_id", instanceID)
	deadline := s.now().Add(s.opts.AgentTimeout)

	for {
		status, err := s.pingStatus(ctx, instanceID)
		if err != nil {
			return err
		}

		if status == ssmtypes.PingStatusOnline {
			logger.Debug("SSM agent is online")
			return nil
		}

		if !s.now().Before(deadline) {
			return fmt.Errorf("%w: SSM agent on %s is %s after %s", ErrSSMUnavailable, instanceID, status, s.opts.AgentTimeout)
		}

		logger.Infof("waiting for SSM agent (status %s)", status)

		if err := s.sleep(ctx, s.opts.AgentPollInterval); err != nil {
			return err
		}
	}
}

func (s *Strategy) pingStatus(ctx context.Context, instanceID string) (ssmtypes.PingStatus, error) {
	result, err := s.api.DescribeInstanceInformation(ctx, &ssm.DescribeInstanceInformationInput{
		Filters: []ssmtypes.InstanceInformationStringFilter{
			{
				Key:    aws.String("InstanceIds"),
				Values: []string{instanceID},
			},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("unable to describe SSM registration of %s: %w", instanceID, err)
	}

	for _, info := range result.InstanceInformationList {
		if aws.ToString(info.InstanceId) == instanceID {
			return info.PingStatus, nil
		}
	}

	return "", fmt.Errorf("%w: %s is not registered with SSM", ErrSSMUnavailable, instanceID)
}
