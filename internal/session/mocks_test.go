package session

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/mock"
)

type mockProber struct {
	mock.Mock
}

func (m *mockProber) State(ctx context.Context, instanceID string) (types.InstanceStateName, error) {
	args := m.Called(ctx, instanceID)
	return args.Get(0).(types.InstanceStateName), args.Error(1)
}

type mockLifecycle struct {
	mock.Mock
}

func (m *mockLifecycle) EnsureRunning(ctx context.Context, instanceID string, timeout time.Duration) (types.InstanceStateName, error) {
	args := m.Called(ctx, instanceID, timeout)
	return args.Get(0).(types.InstanceStateName), args.Error(1)
}

func (m *mockLifecycle) EnsureStopped(ctx context.Context, instanceID string, timeout time.Duration) (types.InstanceStateName, error) {
	args := m.Called(ctx, instanceID, timeout)
	return args.Get(0).(types.InstanceStateName), args.Error(1)
}

type mockStrategy struct {
	mock.Mock
	kind Kind
}

func (m *mockStrategy) Kind() Kind {
	return m.kind
}

func (m *mockStrategy) Connect(ctx context.Context, req Request) (int, error) {
	args := m.Called(ctx, req)
	return args.Int(0), args.Error(1)
}

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(prompt string) (bool, error) {
	args := m.Called(prompt)
	return args.Bool(0), args.Error(1)
}
