// Package ssh connects to bastion instances with the system ssh client.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"strconv"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/ivoronin/ec2bastion/internal/lifecycle"
	"github.com/ivoronin/ec2bastion/internal/session"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSSHLaunch is returned when the ssh binary is missing or cannot be started.
	ErrSSHLaunch = errors.New("unable to launch ssh")
	// ErrSSHConnect is returned when ssh itself fails (exit status 255).
	ErrSSHConnect = errors.New("ssh connection failed")
)

// sshFailureCode is what ssh exits with on its own errors.
const sshFailureCode = 255

// InstanceAPI is the subset of ec2client.Client the strategy needs.
type InstanceAPI interface {
	GetInstanceByID(ctx context.Context, instanceID string) (types.Instance, error)
	SendSSHPublicKey(ctx context.Context, instance types.Instance, instanceOSUser, sshPublicKey string) error
	GuessEICEByVPCAndSubnet(ctx context.Context, vpcID, subnetID string) (types.Ec2InstanceConnectEndpoint, error)
}

var _ InstanceAPI = (*ec2client.Client)(nil)

// Options configures the SSH strategy.
type Options struct {
	// Binary is the ssh executable, looked up in PATH. Defaults to "ssh".
	Binary   string
	Port     int
	AddrType ec2client.AddrType
	// SendKeys pushes the public key with EC2 Instance Connect before connecting.
	SendKeys bool
	UseEICE  bool
	EICEID   string
	UseSSM   bool
	// ExtraArgs are passed to ssh before the destination.
	ExtraArgs []string

	// Passed to the tunnel helper started as ProxyCommand.
	Executable string
	Region     string
	Profile    string
	Debug      bool
}

// Strategy implements session.Strategy with the system ssh client.
type Strategy struct {
	api    InstanceAPI
	opts   Options
	logger logrus.FieldLogger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	lookPath        func(file string) (string, error)
	generateKeypair func(dir string) (string, string, error)
	getPublicKey    func(path string) (string, error)
	currentUser     func() (string, error)
	// interrupts reports SIGINT/SIGTERM received while ssh runs.
	interrupts func() (<-chan os.Signal, func())
}

var _ session.Strategy = (*Strategy)(nil)

// New creates an SSH strategy attached to the process stdio.
func New(api InstanceAPI, opts Options, logger logrus.FieldLogger) *Strategy {
	if opts.Binary == "" {
		opts.Binary = "ssh"
	}

	if opts.Executable == "" {
		opts.Executable = os.Args[0]
	}

	return &Strategy{
		api:             api,
		opts:            opts,
		logger:          logger,
		stdin:           os.Stdin,
		stdout:          os.Stdout,
		stderr:          os.Stderr,
		lookPath:        exec.LookPath,
		generateKeypair: GenerateKeypair,
		getPublicKey:    GetPublicKey,
		currentUser: func() (string, error) {
			u, err := user.Current()
			if err != nil {
				return "", err
			}
			return u.Username, nil
		},
		interrupts: notifyInterrupts,
	}
}

func notifyInterrupts() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	return ch, func() { signal.Stop(ch) }
}

// Kind implements session.Strategy.
func (s *Strategy) Kind() session.Kind {
	return session.KindSSH
}

// Connect runs ssh against the instance and returns the remote exit code.
func (s *Strategy) Connect(ctx context.Context, req session.Request) (int, error) {
	binary, err := s.lookPath(s.opts.Binary)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrSSHLaunch, err)
	}

	instance, err := s.api.GetInstanceByID(ctx, req.InstanceID)
	if err != nil {
		return -1, fmt.Errorf("unable to get instance: %w", err)
	}

	// Sanity check: AWS API should always return InstanceId
	if instance.InstanceId == nil {
		panic("ec2bastion: AWS returned instance without InstanceId - this should never happen")
	}

	login := req.User
	if login == "" {
		if login, err = s.currentUser(); err != nil {
			return -1, fmt.Errorf("unable to determine current user: %w", err)
		}
	}

	identityFile := req.IdentityFile

	if s.opts.SendKeys {
		tmpDir, err := os.MkdirTemp("", "ec2bastion")
		if err != nil {
			return -1, err
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()

		identityFile, err = s.pushKey(ctx, instance, login, identityFile, tmpDir)
		if err != nil {
			return -1, err
		}
	}

	host, proxyCommand, err := s.destination(ctx, instance)
	if err != nil {
		return -1, err
	}

	args := s.buildArgs(instance, login, identityFile, proxyCommand, host, req)

	return s.run(ctx, binary, args)
}

// pushKey sends the public half of identityFile, or of a fresh ephemeral key
// when identityFile is empty, to the instance. It returns the private key path.
func (s *Strategy) pushKey(ctx context.Context, instance types.Instance, login, identityFile, tmpDir string) (string, error) {
	var publicKey string
	var err error

	if identityFile == "" {
		identityFile, publicKey, err = s.generateKeypair(tmpDir)
		if err != nil {
			return "", fmt.Errorf("unable to generate ephemeral SSH keypair: %w", err)
		}
	} else {
		publicKey, err = s.getPublicKey(identityFile)
		if err != nil {
			return "", fmt.Errorf("unable to read public key from %s: %w", identityFile, err)
		}
	}

	if err := s.api.SendSSHPublicKey(ctx, instance, login, publicKey); err != nil {
		return "", fmt.Errorf("unable to send SSH public key: %w", err)
	}

	return identityFile, nil
}

// destination returns the ssh host argument and an optional ProxyCommand.
// Tunnelled connections use the instance ID as host; %p is substituted by ssh.
func (s *Strategy) destination(ctx context.Context, instance types.Instance) (string, string, error) {
	instanceID := aws.ToString(instance.InstanceId)

	var args []string

	switch {
	case s.opts.UseSSM:
		args = []string{s.opts.Executable, "tunnel", "ssm", "--instance-id", instanceID, "--port", "%p"}
	case s.opts.UseEICE:
		if instance.PrivateIpAddress == nil {
			return "", "", fmt.Errorf("%w: EICE requires a private IP address on %s", ec2client.ErrNoAddress, instanceID)
		}

		eiceID := s.opts.EICEID
		if eiceID == "" {
			eice, err := s.api.GuessEICEByVPCAndSubnet(ctx, aws.ToString(instance.VpcId), aws.ToString(instance.SubnetId))
			if err != nil {
				return "", "", fmt.Errorf("unable to find EICE endpoint: %w", err)
			}
			eiceID = aws.ToString(eice.InstanceConnectEndpointId)
		}

		args = []string{s.opts.Executable, "tunnel", "eice",
			"--host", aws.ToString(instance.PrivateIpAddress), "--port", "%p", "--eice-id", eiceID}
	default:
		addr, err := ec2client.GetInstanceAddr(instance, s.opts.AddrType)
		if err != nil {
			return "", "", err
		}
		return addr, "", nil
	}

	if s.opts.Region != "" {
		args = append(args, "--region", s.opts.Region)
	}
	if s.opts.Profile != "" {
		args = append(args, "--profile", s.opts.Profile)
	}
	if s.opts.Debug {
		args = append(args, "--debug")
	}

	return instanceID, strings.Join(args, " "), nil
}

// appendOptArg appends a formatted option to args if value is non-empty.
func appendOptArg(args []string, format, value string) []string {
	if value != "" {
		return append(args, fmt.Sprintf(format, value))
	}
	return args
}

func (s *Strategy) buildArgs(instance types.Instance, login, identityFile, proxyCommand, host string, req session.Request) []string {
	var args []string

	args = appendOptArg(args, "-oProxyCommand=%s", proxyCommand)
	args = appendOptArg(args, "-i%s", identityFile)
	args = append(args, fmt.Sprintf("-oHostKeyAlias=%s", aws.ToString(instance.InstanceId)))
	args = appendOptArg(args, "-l%s", login)
	if s.opts.Port != 0 {
		args = append(args, "-p"+strconv.Itoa(s.opts.Port))
	}
	args = append(args, s.opts.ExtraArgs...)
	args = append(args, host)

	if req.Mode == session.ModeCommand {
		args = append(args, "--", req.Command)
	}

	return args
}

func (s *Strategy) run(ctx context.Context, binary string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = os.Environ()
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	s.logger.Debugf("running %s with args: %v", binary, args)

	interrupts, stop := s.interrupts()
	defer stop()

	err := cmd.Run()
	if err == nil {
		s.logger.Debugf("%s exited with code 0", binary)
		return 0, nil
	}

	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	var exitError *exec.ExitError
	if !errors.As(err, &exitError) {
		return -1, fmt.Errorf("%w: %w", ErrSSHLaunch, err)
	}

	// The terminal delivers Ctrl-C to ssh as well, and ssh may exit before
	// the root context is cancelled.
	if killedByInterrupt(exitError) || received(interrupts) {
		return -1, fmt.Errorf("%w: ssh interrupted", lifecycle.ErrCancelled)
	}

	code := exitError.ExitCode()
	s.logger.Debugf("%s exited with code %d", binary, code)

	if code == sshFailureCode || code < 0 {
		return code, fmt.Errorf("%w: ssh exited with status %d", ErrSSHConnect, code)
	}

	return code, nil
}

func killedByInterrupt(exitError *exec.ExitError) bool {
	status, ok := exitError.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return false
	}

	return status.Signal() == syscall.SIGINT || status.Signal() == syscall.SIGTERM
}

func received(signals <-chan os.Signal) bool {
	select {
	case <-signals:
		return true
	default:
		return false
	}
}
