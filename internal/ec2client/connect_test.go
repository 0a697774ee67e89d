package ec2client

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2instanceconnect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestClient_SendSSHPublicKey(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		osUser    string
		mockSetup func(*MockEC2InstanceConnectAPI)
		wantErr   error
	}{
		"success": {
			osUser: "ec2-user",
			mockSetup: func(m *MockEC2InstanceConnectAPI) {
				m.On("SendSSHPublicKey", mock.Anything, mock.MatchedBy(func(input *ec2instanceconnect.SendSSHPublicKeyInput) bool {
					return aws.ToString(input.InstanceId) == "i-1234567890abcdef0" &&
						aws.ToString(input.InstanceOSUser) == "ec2-user" &&
						aws.ToString(input.SSHPublicKey) == "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIExample"
				})).Return(&ec2instanceconnect.SendSSHPublicKeyOutput{}, nil)
			},
		},
		"access denied": {
			osUser: "ec2-user",
			mockSetup: func(m *MockEC2InstanceConnectAPI) {
				m.On("SendSSHPublicKey", mock.Anything, mock.Anything).Return(nil, apiError("AccessDeniedException"))
			},
			wantErr: ErrPermission,
		},
		"instance not found": {
			osUser: "ubuntu",
			mockSetup: func(m *MockEC2InstanceConnectAPI) {
				m.On("SendSSHPublicKey", mock.Anything, mock.Anything).Return(nil, apiError("InvalidInstanceID.NotFound"))
			},
			wantErr: ErrNotFound,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockConnect := new(mockEC2InstanceConnectAPI)
			tc.mockSetup(mockConnect)

			client := newTestClient(nil, mockConnect, nil)
			err := client.SendSSHPublicKey(context.Background(), makeInstance("i-1234567890abcdef0"), tc.osUser,
				"ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIExample")

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Contains(t, err.Error(), "i-1234567890abcdef0")
				return
			}

			require.NoError(t, err)
			mockConnect.AssertExpectations(t)
		})
	}
}
