package ec2client

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestClient_State(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		output  *ec2.DescribeInstanceStatusOutput
		err     error
		want    types.InstanceStateName
		wantErr error
	}{
		"stopped": {
			output: makeStatusOutput(makeInstanceStatus("i-1", types.InstanceStateNameStopped, "", "")),
			want:   types.InstanceStateNameStopped,
		},
		"pending": {
			output: makeStatusOutput(makeInstanceStatus("i-1", types.InstanceStateNamePending, "", "")),
			want:   types.InstanceStateNamePending,
		},
		"running": {
			output: makeStatusOutput(makeInstanceStatus("i-1", types.InstanceStateNameRunning, types.SummaryStatusOk, types.SummaryStatusOk)),
			want:   types.InstanceStateNameRunning,
		},
		"missing from response": {
			output:  makeStatusOutput(makeInstanceStatus("i-other", types.InstanceStateNameRunning, "", "")),
			wantErr: ErrNotFound,
		},
		"missing state": {
			output:  makeStatusOutput(types.InstanceStatus{InstanceId: aws.String("i-1")}),
			wantErr: ErrTransient,
		},
		"unknown id": {
			err:     apiError("InvalidInstanceID.NotFound"),
			wantErr: ErrNotFound,
		},
		"no permission": {
			err:     apiError("UnauthorizedOperation"),
			wantErr: ErrPermission,
		},
		"throttled": {
			err:     apiError("RequestLimitExceeded"),
			wantErr: ErrTransient,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockEC2 := new(mockEC2API)
			mockEC2.On("DescribeInstanceStatus", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstanceStatusInput) bool {
				return aws.ToBool(input.IncludeAllInstances) && len(input.InstanceIds) == 1 && input.InstanceIds[0] == "i-1"
			})).Return(tc.output, tc.err)

			client := newTestClient(mockEC2, nil, nil)
			state, err := client.State(context.Background(), "i-1")

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, state)
			mockEC2.AssertExpectations(t)
		})
	}
}

func TestClient_State_NeverCaches(t *testing.T) {
	t.Parallel()

	mockEC2 := new(mockEC2API)
	mockEC2.On("DescribeInstanceStatus", mock.Anything, mock.Anything).
		Return(makeStatusOutput(makeInstanceStatus("i-1", types.InstanceStateNamePending, "", "")), nil).Once()
	mockEC2.On("DescribeInstanceStatus", mock.Anything, mock.Anything).
		Return(makeStatusOutput(makeInstanceStatus("i-1", types.InstanceStateNameRunning, "", "")), nil).Once()

	client := newTestClient(mockEC2, nil, nil)

	first, err := client.State(context.Background(), "i-1")
	require.NoError(t, err)
	second, err := client.State(context.Background(), "i-1")
	require.NoError(t, err)

	assert.Equal(t, types.InstanceStateNamePending, first)
	assert.Equal(t, types.InstanceStateNameRunning, second)
	mockEC2.AssertNumberOfCalls(t, "DescribeInstanceStatus", 2)
}

func TestClient_Healthy(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status types.InstanceStatus
		want   bool
	}{
		"all checks ok": {
			status: makeInstanceStatus("i-1", types.InstanceStateNameRunning, types.SummaryStatusOk, types.SummaryStatusOk),
			want:   true,
		},
		"initializing": {
			status: makeInstanceStatus("i-1", types.InstanceStateNameRunning, types.SummaryStatusInitializing, types.SummaryStatusOk),
		},
		"system impaired": {
			status: makeInstanceStatus("i-1", types.InstanceStateNameRunning, types.SummaryStatusOk, types.SummaryStatusImpaired),
		},
		"no checks reported": {
			status: makeInstanceStatus("i-1", types.InstanceStateNameRunning, "", ""),
		},
		"not running": {
			status: makeInstanceStatus("i-1", types.InstanceStateNameStopping, types.SummaryStatusOk, types.SummaryStatusOk),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockEC2 := new(mockEC2API)
			mockEC2.On("DescribeInstanceStatus", mock.Anything, mock.Anything).Return(makeStatusOutput(tc.status), nil)

			client := newTestClient(mockEC2, nil, nil)
			healthy, err := client.Healthy(context.Background(), "i-1")

			require.NoError(t, err)
			assert.Equal(t, tc.want, healthy)
		})
	}
}
