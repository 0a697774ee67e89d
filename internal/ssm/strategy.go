// Package ssm connects to bastion instances through AWS Systems Manager.
package ssm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/ivoronin/ec2bastion/internal/lifecycle"
	"github.com/ivoronin/ec2bastion/internal/session"
	"github.com/mmmorris1975/ssm-session-client/ssmclient"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSSMUnavailable is returned when the instance is not registered with SSM
	// or its agent does not come online in time.
	ErrSSMUnavailable = errors.New("instance is not available via SSM")
	// ErrSSMSession is returned when the shell session or remote command fails
	// for reasons other than the remote exit code.
	ErrSSMSession = errors.New("SSM session failed")
)

const (
	DefaultAgentTimeout      = 2 * time.Minute
	DefaultAgentPollInterval = 5 * time.Second
)

// API is the subset of the SSM client the strategy needs.
type API interface {
	DescribeInstanceInformation(ctx context.Context, params *ssm.DescribeInstanceInformationInput, optFns ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error)
	SendCommand(ctx context.Context, params *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
	GetCommandInvocation(ctx context.Context, params *ssm.GetCommandInvocationInput, optFns ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error)
}

var _ API = (*ssm.Client)(nil)

// Options configures the SSM strategy.
type Options struct {
	Shell Shell
	// AgentTimeout bounds the wait for a registered agent to report Online.
	AgentTimeout      time.Duration
	AgentPollInterval time.Duration
	// PluginBinary is the aws CLI used with ShellPlugin. Defaults to "aws".
	PluginBinary string
	Region       string
	Profile      string
}

// Strategy implements session.Strategy over SSM.
type Strategy struct {
	api    API
	cfg    aws.Config
	opts   Options
	logger logrus.FieldLogger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	shellSession func(cfg aws.Config, target string) error
	lookPath     func(file string) (string, error)
}

var _ session.Strategy = (*Strategy)(nil)

// New creates an SSM strategy using cfg for both the API client and the shell session.
func New(cfg aws.Config, opts Options, logger logrus.FieldLogger) *Strategy {
	return newStrategy(ssm.NewFromConfig(cfg), cfg, opts, logger)
}

func newStrategy(api API, cfg aws.Config, opts Options, logger logrus.FieldLogger) *Strategy {
	if opts.AgentTimeout == 0 {
		opts.AgentTimeout = DefaultAgentTimeout
	}
	if opts.AgentPollInterval == 0 {
		opts.AgentPollInterval = DefaultAgentPollInterval
	}
	if opts.PluginBinary == "" {
		opts.PluginBinary = "aws"
	}

	return &Strategy{
		api:          api,
		cfg:          cfg,
		opts:         opts,
		logger:       logger,
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		now:          time.Now,
		sleep:        lifecycle.Sleep,
		shellSession: func(cfg aws.Config, target string) error {
			return ssmclient.ShellSession(cfg, target)
		},
		lookPath:     exec.LookPath,
	}
}

// Kind implements session.Strategy.
func (s *Strategy) Kind() session.Kind {
	return session.KindSSM
}

// Connect waits for the SSM agent and then opens a shell or runs the command.
// Unregistered instances fail with ErrSSMUnavailable.
func (s *Strategy) Connect(ctx context.Context, req session.Request) (int, error) {
	if err := s.waitOnline(ctx, req.InstanceID); err != nil {
		return -1, err
	}

	if req.Mode == session.ModeCommand {
		return s.runCommand(ctx, req.InstanceID, req.Command)
	}

	if s.opts.Shell == ShellPlugin {
		return s.runPlugin(ctx, req.InstanceID)
	}

	return s.runShell(ctx, req.InstanceID)
}

// runShell runs the in-process shell session. The session client has no
// context support, so on cancellation it is abandoned.
func (s *Strategy) runShell(ctx context.Context, instanceID string) (int, error) {
	s.logger.WithField("instance_id", instanceID).Debug("starting SSM shell session")

	shell := s.shellSession
	errCh := make(chan error, 1)
	go func() {
		errCh <- shell(s.cfg, instanceID)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return -1, fmt.Errorf("%w: %w", ErrSSMSession, err)
		}
		return 0, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// aws CLI reserves exit codes from 252 up for its own failures.
const pluginFailureCode = 252

func (s *Strategy) runPlugin(ctx context.Context, instanceID string) (int, error) {
	binary, err := s.lookPath(s.opts.PluginBinary)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrSSMSession, err)
	}

	args := []string{"ssm", "start-session", "--target", instanceID}
	if s.opts.Region != "" {
		args = append(args, "--region", s.opts.Region)
	}
	if s.opts.Profile != "" {
		args = append(args, "--profile", s.opts.Profile)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	s.logger.Debugf("running %s with args: %v", binary, args)

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}

	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	var exitError *exec.ExitError
	if !errors.As(err, &exitError) {
		return -1, fmt.Errorf("%w: %w", ErrSSMSession, err)
	}

	code := exitError.ExitCode()
	if code < 0 || code >= pluginFailureCode {
		return code, fmt.Errorf("%w: %s exited with status %d", ErrSSMSession, binary, code)
	}

	return code, nil
}
