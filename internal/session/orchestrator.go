package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/ivoronin/ec2bastion/internal/lifecycle"
	"github.com/sirupsen/logrus"
)

// Strategy establishes a session with a running instance.
// A non-zero exit code with a nil error is a successful session.
type Strategy interface {
	Kind() Kind
	Connect(ctx context.Context, req Request) (int, error)
}

// Prober reads the current lifecycle state.
type Prober interface {
	State(ctx context.Context, instanceID string) (types.InstanceStateName, error)
}

// Lifecycle drives an instance to running or stopped.
type Lifecycle interface {
	EnsureRunning(ctx context.Context, instanceID string, timeout time.Duration) (types.InstanceStateName, error)
	EnsureStopped(ctx context.Context, instanceID string, timeout time.Duration) (types.InstanceStateName, error)
}

var (
	_ Prober    = (*ec2client.Client)(nil)
	_ Lifecycle = (*lifecycle.Controller)(nil)
)

// Options configures an Orchestrator.
type Options struct {
	StartTimeout time.Duration
	StopTimeout  time.Duration
	// ReadyDelay is waited after this run started the instance, before connecting.
	ReadyDelay time.Duration
	StopAfter  StopPolicy
	// RequireHealthy sends an already running instance through the lifecycle
	// as well, so its status checks gate the connection.
	RequireHealthy bool
}

// Orchestrator runs one session: probe, start if needed, connect, then
// optionally stop.
type Orchestrator struct {
	prober    Prober
	lifecycle Lifecycle
	strategy  Strategy
	confirmer Confirmer
	opts      Options
	logger    logrus.FieldLogger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator. A nil confirmer answers no.
func New(prober Prober, lc Lifecycle, strategy Strategy, confirmer Confirmer, opts Options, logger logrus.FieldLogger) *Orchestrator {
	if confirmer == nil {
		confirmer = StaticConfirmer(false)
	}

	return &Orchestrator{
		prober:    prober,
		lifecycle: lc,
		strategy:  strategy,
		confirmer: confirmer,
		opts:      opts,
		logger:    logger,
		sleep:     lifecycle.Sleep,
	}
}

// Run executes the session and reports how it ended. It never panics on
// AWS or strategy failures; they are recorded in the outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) Outcome {
	outcome := Outcome{InstanceID: req.InstanceID}
	logger := o.logger.WithField("instance_id", req.InstanceID)

	// Init
	if err := o.validate(req); err != nil {
		return fail(outcome, Rejected, err)
	}

	// Probing
	logger.Debug("probing instance state")

	state, err := o.prober.State(ctx, req.InstanceID)
	switch {
	case ctx.Err() != nil:
		return fail(outcome, Cancelled, fmt.Errorf("%w: %w", lifecycle.ErrCancelled, ctx.Err()))
	case errors.Is(err, ec2client.ErrTransient):
		logger.WithError(err).Warn("unable to read instance state, will retry while starting")
	case err != nil:
		return fail(outcome, StartFailed, err)
	default:
		outcome.LastState = state
	}

	switch {
	case state != types.InstanceStateNameRunning:
		// Starting
		logger.Infof("instance is %s, starting it", describe(state))

		if failed, ok := o.ensureRunning(ctx, req, &outcome); !ok {
			return failed
		}

		outcome.Started = true

		// Ready
		if o.opts.ReadyDelay > 0 {
			logger.Infof("instance is running, waiting %s for it to become ready", o.opts.ReadyDelay)

			if err := o.sleep(ctx, o.opts.ReadyDelay); err != nil {
				return fail(outcome, Cancelled, fmt.Errorf("%w: %w", lifecycle.ErrCancelled, err))
			}
		}
	case o.opts.RequireHealthy:
		// someone else may have started it moments ago
		logger.Info("instance is already running, waiting for status checks")

		if failed, ok := o.ensureRunning(ctx, req, &outcome); !ok {
			return failed
		}
	default:
		logger.Debug("instance is already running")
	}

	// Connecting
	logger.Infof("connecting via %s", req.Kind)

	exitCode, err := o.strategy.Connect(ctx, req)
	if err != nil {
		if errors.Is(err, lifecycle.ErrCancelled) || ctx.Err() != nil {
			return fail(outcome, Cancelled, err)
		}

		return fail(outcome, ConnectFailed, err)
	}

	// Connected
	outcome.Kind = Connected
	outcome.ExitCode = exitCode
	logger.Debugf("session ended with exit code %d", exitCode)

	o.stopAfter(ctx, logger, &outcome)

	return outcome
}

// ensureRunning waits for the instance to be reachable. On failure it returns
// the final outcome and false.
func (o *Orchestrator) ensureRunning(ctx context.Context, req Request, outcome *Outcome) (Outcome, bool) {
	state, err := o.lifecycle.EnsureRunning(ctx, req.InstanceID, o.opts.StartTimeout)
	if state != "" {
		outcome.LastState = state
	}

	switch {
	case errors.Is(err, lifecycle.ErrCancelled), err != nil && ctx.Err() != nil:
		return fail(*outcome, Cancelled, err), false
	case errors.Is(err, lifecycle.ErrStartTimeout):
		return fail(*outcome, TimedOut, err), false
	case err != nil:
		return fail(*outcome, StartFailed, err), false
	}

	return *outcome, true
}

func (o *Orchestrator) validate(req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if o.strategy == nil {
		return fmt.Errorf("%w: no connection strategy", ErrInvalidRequest)
	}

	if o.strategy.Kind() != req.Kind {
		return fmt.Errorf("%w: %s requested but strategy is %s", ErrInvalidRequest, req.Kind, o.strategy.Kind())
	}

	return nil
}

// stopAfter applies the stop policy. Failures are recorded in StopErr only.
func (o *Orchestrator) stopAfter(ctx context.Context, logger logrus.FieldLogger, outcome *Outcome) {
	switch o.opts.StopAfter {
	case StopNever:
		return
	case StopPrompt:
		ok, err := o.confirmer.Confirm(fmt.Sprintf("Stop instance %s?", outcome.InstanceID))
		if err != nil {
			logger.WithError(err).Warn("unable to read answer, leaving instance running")
			return
		}
		if !ok {
			logger.Info("leaving instance running")
			return
		}
	case StopAlways:
	}

	// StoppingAfter
	logger.Info("stopping instance")

	state, err := o.lifecycle.EnsureStopped(ctx, outcome.InstanceID, o.opts.StopTimeout)
	if state != "" {
		outcome.LastState = state
	}

	if err != nil {
		outcome.StopErr = err
		logger.WithError(err).Warn("unable to stop instance")

		return
	}

	outcome.Stopped = true
}

func fail(outcome Outcome, kind OutcomeKind, err error) Outcome {
	outcome.Kind = kind
	outcome.Err = err

	return outcome
}

func describe(state types.InstanceStateName) string {
	if state == "" {
		return "in an unknown state"
	}

	return string(state)
}
