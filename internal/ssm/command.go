package ssm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

const (
	commandDocument        = "AWS-RunShellScript"
	commandPollInterval    = 100 * time.Millisecond
	commandPollIntervalMax = 5 * time.Second
)

// runCommand executes command with RunCommand and copies its output to the
// strategy's writers. SSM truncates captured output to 24000 characters.
func (s *Strategy) runCommand(ctx context.Context, instanceID, command string) (int, error) {
	logger := s.logger.WithField("instance_id", instanceID)
	logger.Debugf("sending command %q", command)

	sendOutput, err := s.api.SendCommand(ctx, &ssm.SendCommandInput{
		InstanceIds:  []string{instanceID},
		DocumentName: aws.String(commandDocument),
		Parameters:   map[string][]string{"commands": {command}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}

		var invalid *ssmtypes.InvalidInstanceId
		if errors.As(err, &invalid) {
			return -1, fmt.Errorf("%w: %w", ErrSSMUnavailable, err)
		}

		return -1, fmt.Errorf("%w: unable to send command: %w", ErrSSMSession, err)
	}

	if sendOutput.Command == nil || sendOutput.Command.CommandId == nil {
		return -1, fmt.Errorf("%w: SSM returned empty command response", ErrSSMSession)
	}

	commandID := aws.ToString(sendOutput.Command.CommandId)
	logger.Debugf("command %s sent", commandID)

	output, err := s.waitForCompletion(ctx, commandID, instanceID)
	if err != nil {
		return -1, err
	}

	_, _ = io.WriteString(s.stdout, aws.ToString(output.StandardOutputContent))
	_, _ = io.WriteString(s.stderr, aws.ToString(output.StandardErrorContent))

	switch output.Status {
	case ssmtypes.CommandInvocationStatusSuccess:
		return 0, nil
	case ssmtypes.CommandInvocationStatusFailed:
		code := int(output.ResponseCode)
		if code <= 0 {
			code = 1
		}
		return code, nil
	case ssmtypes.CommandInvocationStatusTimedOut:
		return -1, fmt.Errorf("%w: command timed out on %s", ErrSSMSession, instanceID)
	case ssmtypes.CommandInvocationStatusCancelled, ssmtypes.CommandInvocationStatusCancelling:
		return -1, fmt.Errorf("%w: command was cancelled", ErrSSMSession)
	default:
		return -1, fmt.Errorf("%w: unexpected command status %s", ErrSSMSession, output.Status)
	}
}

// waitForCompletion polls with exponential backoff until the invocation leaves
// the pending states.
func (s *Strategy) waitForCompletion(ctx context.Context, commandID, instanceID string) (*ssm.GetCommandInvocationOutput, error) {
	interval := commandPollInterval

	for {
		output, err := s.api.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
			CommandId:  aws.String(commandID),
			InstanceId: aws.String(instanceID),
		})

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			// The invocation may not exist for a moment after SendCommand.
			var notFound *ssmtypes.InvocationDoesNotExist
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: unable to get command status: %w", ErrSSMSession, err)
			}
		case isPending(output.Status):
			s.logger.Debugf("command %s is %s", commandID, output.Status)
		default:
			return output, nil
		}

		if err := s.sleep(ctx, interval); err != nil {
			return nil, err
		}
		interval = min(interval*2, commandPollIntervalMax)
	}
}

func isPending(status ssmtypes.CommandInvocationStatus) bool {
	switch status {
	case ssmtypes.CommandInvocationStatusPending,
		ssmtypes.CommandInvocationStatusInProgress,
		ssmtypes.CommandInvocationStatusDelayed:
		return true
	}
	return false
}
