package lifecycle

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) State(ctx context.Context, instanceID string) (types.InstanceStateName, error) {
	args := m.Called(ctx, instanceID)
	return args.Get(0).(types.InstanceStateName), args.Error(1)
}

func (m *mockAPI) Healthy(ctx context.Context, instanceID string) (bool, error) {
	args := m.Called(ctx, instanceID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAPI) StartInstance(ctx context.Context, instanceID string) error {
	return m.Called(ctx, instanceID).Error(0)
}

func (m *mockAPI) StopInstance(ctx context.Context, instanceID string) error {
	return m.Called(ctx, instanceID).Error(0)
}

// states scripts consecutive State results; the last one repeats forever.
func (m *mockAPI) states(instanceID string, states ...types.InstanceStateName) {
	for i, state := range states {
		call := m.On("State", mock.Anything, instanceID).Return(state, nil)
		if i < len(states)-1 {
			call.Once()
		}
	}
}

// fakeClock advances only when the controller sleeps.
type fakeClock struct {
	now    time.Time
	sleeps int
	// onSleep runs before each sleep returns; a non-nil error aborts the sleep.
	onSleep func(n int) error
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.sleeps++
	if f.onSleep != nil {
		if err := f.onSleep(f.sleeps); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.now = f.now.Add(d)
	return nil
}

func newTestController(api API, opts Options) (*Controller, *fakeClock, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	c := NewController(api, opts, logger)
	c.now = clock.Now
	c.sleep = clock.Sleep

	return c, clock, hook
}
