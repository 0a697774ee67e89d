// Package lifecycle starts and stops instances and waits, with a bounded
// number of polls, for them to settle into the requested state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = 5 * time.Second

// API is the subset of ec2client.Client the controller needs.
type API interface {
	State(ctx context.Context, instanceID string) (types.InstanceStateName, error)
	Healthy(ctx context.Context, instanceID string) (bool, error)
	StartInstance(ctx context.Context, instanceID string) error
	StopInstance(ctx context.Context, instanceID string) error
}

var _ API = (*ec2client.Client)(nil)

// Options configures a Controller.
type Options struct {
	PollInterval time.Duration
	// RequireHealthy makes EnsureRunning also wait for the instance and
	// system status checks to pass.
	RequireHealthy bool
}

// Controller drives an instance to running or stopped.
type Controller struct {
	api            API
	interval       time.Duration
	requireHealthy bool
	logger         logrus.FieldLogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a Controller.
func NewController(api API, opts Options, logger logrus.FieldLogger) *Controller {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Controller{
		api:            api,
		interval:       interval,
		requireHealthy: opts.RequireHealthy,
		logger:         logger,
		now:            time.Now,
		sleep:          Sleep,
	}
}

// PollInterval returns the interval between probes.
func (c *Controller) PollInterval() time.Duration {
	return c.interval
}

// goal describes one direction of convergence.
type goal struct {
	target     types.InstanceStateName
	opposite   types.InstanceStateName
	verb       string
	request    func(ctx context.Context, instanceID string) error
	errTimeout error
	errRequest error
}

// EnsureRunning returns once the instance is running. A stopped instance gets
// exactly one start request; transitional states are waited out first.
func (c *Controller) EnsureRunning(ctx context.Context, instanceID string, timeout time.Duration) (types.InstanceStateName, error) {
	return c.converge(ctx, instanceID, timeout, goal{
		target:     types.InstanceStateNameRunning,
		opposite:   types.InstanceStateNameStopped,
		verb:       "start",
		request:    c.api.StartInstance,
		errTimeout: ErrStartTimeout,
		errRequest: ErrStartRequest,
	})
}

// EnsureStopped returns once the instance is stopped. A running instance gets
// exactly one stop request.
func (c *Controller) EnsureStopped(ctx context.Context, instanceID string, timeout time.Duration) (types.InstanceStateName, error) {
	return c.converge(ctx, instanceID, timeout, goal{
		target:     types.InstanceStateNameStopped,
		opposite:   types.InstanceStateNameRunning,
		verb:       "stop",
		request:    c.api.StopInstance,
		errTimeout: ErrStopTimeout,
		errRequest: ErrStopRequest,
	})
}

// converge probes once, then polls every interval until the goal is reached,
// the deadline passes or ctx is cancelled. With an instance stuck in a
// transitional state and a timeout of N intervals, it returns after exactly N
// polls following the initial probe.
func (c *Controller) converge(ctx context.Context, instanceID string, timeout time.Duration, g goal) (types.InstanceStateName, error) {
	logger := c.logger.WithField("instance_id", instanceID)
	deadline := c.now().Add(timeout)
	requested := false

	var last types.InstanceStateName

	for polls := 0; ; polls++ {
		if err := ctx.Err(); err != nil {
			return last, fmt.Errorf("%w: waiting for %s to %s: %w", ErrCancelled, instanceID, g.verb, err)
		}

		state, err := c.api.State(ctx, instanceID)

		switch {
		case err != nil && ctx.Err() != nil:
			return last, fmt.Errorf("%w: waiting for %s to %s: %w", ErrCancelled, instanceID, g.verb, ctx.Err())
		case errors.Is(err, ec2client.ErrTransient):
			logger.WithError(err).Warn("transient error while probing instance state, retrying")
		case err != nil:
			return last, err
		default:
			last = state
			logger.Debugf("poll %d: state is %s", polls, state)

			done, err := c.step(ctx, logger, instanceID, state, g, &requested)
			if err != nil {
				return last, err
			}
			if done {
				return last, nil
			}
		}

		if !c.now().Before(deadline) {
			return last, fmt.Errorf("%w: %s is still %s after %s", g.errTimeout, instanceID, describeState(last), timeout)
		}

		if err := c.sleep(ctx, c.interval); err != nil {
			return last, fmt.Errorf("%w: waiting for %s to %s: %w", ErrCancelled, instanceID, g.verb, err)
		}
	}
}

// step reacts to one observed state. It reports whether the goal is reached.
func (c *Controller) step(ctx context.Context, logger logrus.FieldLogger, instanceID string, state types.InstanceStateName, g goal, requested *bool) (bool, error) {
	switch state {
	case g.target:
		if g.target != types.InstanceStateNameRunning || !c.requireHealthy {
			return true, nil
		}

		healthy, err := c.api.Healthy(ctx, instanceID)
		switch {
		case err != nil && ctx.Err() != nil:
			return false, fmt.Errorf("%w: waiting for %s status checks: %w", ErrCancelled, instanceID, ctx.Err())
		case errors.Is(err, ec2client.ErrTransient):
			logger.WithError(err).Warn("transient error while reading status checks, retrying")
			return false, nil
		case err != nil:
			return false, err
		}

		if !healthy {
			logger.Debug("instance is running, waiting for status checks")
		}

		return healthy, nil

	case types.InstanceStateNameTerminated:
		return false, fmt.Errorf("%w: %s", ErrInstanceUnavailable, instanceID)

	case g.opposite:
		// Right after a request AWS may still report the old state.
		if *requested {
			return false, nil
		}

		logger.Infof("instance is %s, requesting %s", state, g.verb)

		if err := g.request(ctx, instanceID); err != nil {
			if ctx.Err() != nil {
				return false, fmt.Errorf("%w: %s request for %s: %w", ErrCancelled, g.verb, instanceID, ctx.Err())
			}

			return false, fmt.Errorf("%w: %w", g.errRequest, err)
		}

		*requested = true

		return false, nil
	}

	// pending, stopping, shutting-down
	return false, nil
}

func describeState(state types.InstanceStateName) string {
	if state == "" {
		return "in an unknown state"
	}

	return string(state)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
