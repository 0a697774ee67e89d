package ssm

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) DescribeInstanceInformation(ctx context.Context, params *ssm.DescribeInstanceInformationInput, optFns ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ssm.DescribeInstanceInformationOutput), args.Error(1)
}

func (m *mockAPI) SendCommand(ctx context.Context, params *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ssm.SendCommandOutput), args.Error(1)
}

func (m *mockAPI) GetCommandInvocation(ctx context.Context, params *ssm.GetCommandInvocationInput, optFns ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ssm.GetCommandInvocationOutput), args.Error(1)
}

// pings scripts DescribeInstanceInformation: each status is returned once, the
// last one repeats. An empty status means not registered.
func (m *mockAPI) pings(id string, statuses ...ssmtypes.PingStatus) {
	for i, status := range statuses {
		out := &ssm.DescribeInstanceInformationOutput{}
		if status != "" {
			out.InstanceInformationList = []ssmtypes.InstanceInformation{
				{InstanceId: aws.String(id), PingStatus: status},
			}
		}

		call := m.On("DescribeInstanceInformation", mock.Anything, mock.Anything).Return(out, nil)
		if i < len(statuses)-1 {
			call.Once()
		}
	}
}

func invocation(status ssmtypes.CommandInvocationStatus, code int32, stdout, stderr string) *ssm.GetCommandInvocationOutput {
	return &ssm.GetCommandInvocationOutput{
		Status:                status,
		ResponseCode:          code,
		StandardOutputContent: aws.String(stdout),
		StandardErrorContent:  aws.String(stderr),
	}
}

func sent(commandID string) *ssm.SendCommandOutput {
	return &ssm.SendCommandOutput{Command: &ssmtypes.Command{CommandId: aws.String(commandID)}}
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type fixture struct {
	api    *mockAPI
	clock  *fakeClock
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newFixture(opts Options) (*Strategy, *fixture) {
	logger, _ := test.NewNullLogger()

	f := &fixture{
		api:    new(mockAPI),
		clock:  &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}

	s := newStrategy(f.api, aws.Config{Region: "us-east-1"}, opts, logger)
	s.stdin = strings.NewReader("")
	s.stdout = f.stdout
	s.stderr = f.stderr
	s.now = f.clock.Now
	s.sleep = f.clock.Sleep
	s.shellSession = func(aws.Config, string) error {
		panic("unexpected shell session")
	}

	return s, f
}
