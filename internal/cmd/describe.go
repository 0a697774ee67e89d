package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/ivoronin/ec2bastion/internal/lifecycle"
	"github.com/ivoronin/ec2bastion/internal/session"
	"github.com/ivoronin/ec2bastion/internal/ssh"
	"github.com/ivoronin/ec2bastion/internal/ssm"
)

// report prints why a session failed and any stop warning.
func report(w io.Writer, outcome session.Outcome) {
	if outcome.Kind != session.Connected {
		fmt.Fprintf(w, "ec2bastion: %s\n", describeFailure(outcome))
	}

	if outcome.StopErr != nil {
		fmt.Fprintf(w, "ec2bastion: warning: instance %s may still be running: %v\n", outcome.InstanceID, outcome.StopErr)
	}
}

// describeFailure turns an outcome into a message that tells the user what to do next.
func describeFailure(outcome session.Outcome) string {
	err := outcome.Err

	var hint string

	switch {
	case outcome.Kind == session.Cancelled:
		hint = "cancelled"
	case errors.Is(err, session.ErrInvalidRequest):
		hint = "invalid request"
	case errors.Is(err, ec2client.ErrNotFound):
		hint = "instance does not exist in this region"
	case errors.Is(err, ec2client.ErrPermission):
		hint = "AWS denied the request, check your credentials and IAM permissions"
	case errors.Is(err, lifecycle.ErrInstanceUnavailable):
		hint = "instance can no longer be started"
	case errors.Is(err, lifecycle.ErrStartTimeout):
		hint = "instance did not reach running in time, try again or raise --start-timeout"
	case errors.Is(err, lifecycle.ErrStartRequest):
		hint = "AWS refused to start the instance"
	case errors.Is(err, ssm.ErrSSMUnavailable):
		hint = "instance is not reachable via SSM, check the agent and the instance profile"
	case errors.Is(err, ssm.ErrSSMSession):
		hint = "SSM session failed"
	case errors.Is(err, ssh.ErrSSHLaunch):
		hint = "unable to run ssh, is it installed?"
	case errors.Is(err, ssh.ErrSSHConnect):
		hint = "ssh could not connect, check security groups and keys"
	case errors.Is(err, ec2client.ErrTransient):
		hint = "AWS is throttling or unavailable, try again"
	default:
		hint = outcome.Kind.String()
	}

	msg := hint
	if outcome.LastState != "" {
		msg = fmt.Sprintf("%s (instance %s is %s)", msg, outcome.InstanceID, outcome.LastState)
	}
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}

	return msg
}
