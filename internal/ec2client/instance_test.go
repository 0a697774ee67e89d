package ec2client

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGuessDestinationType(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		dst  string
		want DstType
	}{
		// Instance ID
		"instance id": {
			dst:  "i-1234567890abcdef0",
			want: DstTypeID,
		},
		"instance id short": {
			dst:  "i-abc123",
			want: DstTypeID,
		},

		// Private DNS names
		"private dns ec2.internal": {
			dst:  "ip-10-0-0-1.ec2.internal",
			want: DstTypePrivateDNSName,
		},
		"private dns compute.internal": {
			dst:  "ip-10-0-0-1.us-west-2.compute.internal",
			want: DstTypePrivateDNSName,
		},
		"private dns short form": {
			dst:  "ip-10-0-0-1",
			want: DstTypePrivateDNSName,
		},

		// Private IPs (RFC 1918)
		"private ip 10.x": {
			dst:  "10.0.0.1",
			want: DstTypePrivateIP,
		},
		"private ip 172.16.x": {
			dst:  "172.16.0.1",
			want: DstTypePrivateIP,
		},
		"private ip 172.31.x": {
			dst:  "172.31.255.255",
			want: DstTypePrivateIP,
		},
		"private ip 192.168.x": {
			dst:  "192.168.1.1",
			want: DstTypePrivateIP,
		},

		// Public IPs
		"public ip 52.x": {
			dst:  "52.10.20.30",
			want: DstTypePublicIP,
		},
		"public ip 8.x": {
			dst:  "8.8.8.8",
			want: DstTypePublicIP,
		},
		"public ip 1.x": {
			dst:  "1.2.3.4",
			want: DstTypePublicIP,
		},

		// IPv6
		"ipv6 full": {
			dst:  "2001:0db8:85a3:0000:0000:8a2e:0370:7334",
			want: DstTypeIPv6,
		},
		"ipv6 compressed": {
			dst:  "2001:db8::1",
			want: DstTypeIPv6,
		},
		"ipv6 loopback": {
			dst:  "::1",
			want: DstTypeIPv6,
		},
		"ipv6 link local": {
			dst:  "fe80::1",
			want: DstTypeIPv6,
		},

		// Name tags (fallback)
		"name tag simple": {
			dst:  "my-server",
			want: DstTypeNameTag,
		},
		"name tag with dots": {
			dst:  "web.prod.example",
			want: DstTypeNameTag,
		},
		"name tag with hyphen": {
			dst:  "web-server-01",
			want: DstTypeNameTag,
		},
		"empty string": {
			dst:  "",
			want: DstTypeNameTag,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, GuessDestinationType(tc.dst))
		})
	}
}

func hasFilter(input *ec2.DescribeInstancesInput, name, value string) bool {
	for _, f := range input.Filters {
		if aws.ToString(f.Name) == name && len(f.Values) > 0 && f.Values[0] == value {
			return true
		}
	}
	return false
}

func TestDstType_UnmarshalText(t *testing.T) {
	t.Parallel()

	var d DstType
	require.NoError(t, d.UnmarshalText([]byte("name_tag")))
	assert.Equal(t, DstTypeNameTag, d)

	require.NoError(t, d.UnmarshalText([]byte("private_ip")))
	assert.Equal(t, DstTypePrivateIP, d)

	assert.Error(t, d.UnmarshalText([]byte("")))
	assert.Error(t, d.UnmarshalText([]byte("hostname")))
}

func TestClient_GetInstanceByID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		instanceID string
		mockSetup  func(*MockEC2API)
		wantID     string
		wantErr    error
	}{
		"found instance": {
			instanceID: "i-1234567890abcdef0",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
					return len(input.InstanceIds) == 1 && input.InstanceIds[0] == "i-1234567890abcdef0"
				})).Return(
					makeDescribeOutput(makeReservation(makeInstance("i-1234567890abcdef0", withState(types.InstanceStateNameStopped)))),
					nil,
				)
			},
			wantID: "i-1234567890abcdef0",
		},
		"not found - empty result": {
			instanceID: "i-notfound",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.Anything).Return(makeDescribeOutput(), nil)
			},
			wantErr: ErrNotFound,
		},
		"not found - api code": {
			instanceID: "i-gone",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.Anything).Return(nil, apiError("InvalidInstanceID.NotFound"))
			},
			wantErr: ErrNotFound,
		},
		"throttled": {
			instanceID: "i-busy",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.Anything).Return(nil, apiError("RequestLimitExceeded"))
			},
			wantErr: ErrTransient,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockEC2 := new(mockEC2API)
			tc.mockSetup(mockEC2)

			client := newTestClient(mockEC2, nil, nil)
			instance, err := client.GetInstanceByID(context.Background(), tc.instanceID)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantID, aws.ToString(instance.InstanceId))
			mockEC2.AssertExpectations(t)
		})
	}
}

func TestClient_GetInstanceByFilter(t *testing.T) {
	t.Parallel()

	t.Run("includes stopped instances", func(t *testing.T) {
		t.Parallel()

		mockEC2 := new(mockEC2API)
		mockEC2.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
			if !hasFilter(input, "private-ip-address", "10.0.0.1") {
				return false
			}
			for _, f := range input.Filters {
				if aws.ToString(f.Name) == "instance-state-name" {
					return assert.ObjectsAreEqual(liveStates, f.Values)
				}
			}
			return false
		})).Return(
			makeDescribeOutput(makeReservation(makeInstance("i-found", withPrivateIP("10.0.0.1"), withState(types.InstanceStateNameStopped)))),
			nil,
		)

		client := newTestClient(mockEC2, nil, nil)
		instance, err := client.GetInstanceByFilter(context.Background(), "private-ip-address", "10.0.0.1")

		require.NoError(t, err)
		assert.Equal(t, "i-found", aws.ToString(instance.InstanceId))
		assert.NotContains(t, liveStates, string(types.InstanceStateNameTerminated))
		mockEC2.AssertExpectations(t)
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		mockEC2 := new(mockEC2API)
		mockEC2.On("DescribeInstances", mock.Anything, mock.Anything).Return(makeDescribeOutput(), nil)

		client := newTestClient(mockEC2, nil, nil)
		_, err := client.GetInstanceByFilter(context.Background(), "private-ip-address", "10.0.0.99")

		require.ErrorIs(t, err, ErrNoMatches)
	})
}

func TestMatchInstanceByName(t *testing.T) {
	t.Parallel()

	bastion := makeInstance("i-bastion", withNameTag("prod-bastion"))
	bastionDev := makeInstance("i-bastion-dev", withNameTag("dev-bastion"))
	web := makeInstance("i-web", withNameTag("web"))
	unnamed := makeInstance("i-unnamed", withTag("env", "prod"))

	tests := map[string]struct {
		instances []types.Instance
		name      string
		wantID    string
		wantErr   error
	}{
		"exact match": {
			instances: []types.Instance{bastion, web},
			name:      "web",
			wantID:    "i-web",
		},
		"exact match is case insensitive": {
			instances: []types.Instance{bastion, web},
			name:      "PROD-Bastion",
			wantID:    "i-bastion",
		},
		"exact match wins over substring": {
			instances: []types.Instance{bastionDev, makeInstance("i-exact", withNameTag("bastion"))},
			name:      "bastion",
			wantID:    "i-exact",
		},
		"unique substring": {
			instances: []types.Instance{bastion, web, unnamed},
			name:      "bastion",
			wantID:    "i-bastion",
		},
		"ambiguous substring": {
			instances: []types.Instance{bastion, bastionDev},
			name:      "bastion",
			wantErr:   ErrAmbiguous,
		},
		"no match": {
			instances: []types.Instance{web, unnamed},
			name:      "bastion",
			wantErr:   ErrNoMatches,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			instance, err := matchInstanceByName(tc.instances, tc.name, "us-east-1")

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantID, aws.ToString(instance.InstanceId))
		})
	}
}

func TestMatchInstanceByName_AmbiguousListsCandidates(t *testing.T) {
	t.Parallel()

	_, err := matchInstanceByName([]types.Instance{
		makeInstance("i-2", withNameTag("dev-bastion")),
		makeInstance("i-1", withNameTag("prod-bastion")),
	}, "bastion", "us-east-1")

	require.ErrorIs(t, err, ErrAmbiguous)
	assert.Contains(t, err.Error(), "dev-bastion (i-2), prod-bastion (i-1)")
}

func TestClient_GetInstance(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		dstType     *DstType
		destination string
		mockSetup   func(*MockEC2API)
		wantID      string
		wantErr     bool
	}{
		"auto detect instance id": {
			destination: "i-auto123",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
					return len(input.InstanceIds) == 1 && input.InstanceIds[0] == "i-auto123"
				})).Return(makeDescribeOutput(makeReservation(makeInstance("i-auto123"))), nil)
			},
			wantID: "i-auto123",
		},
		"auto detect private ip": {
			destination: "10.0.0.5",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
					return hasFilter(input, "private-ip-address", "10.0.0.5")
				})).Return(makeDescribeOutput(makeReservation(makeInstance("i-byip", withPrivateIP("10.0.0.5")))), nil)
			},
			wantID: "i-byip",
		},
		"auto detect public ip": {
			destination: "54.123.45.67",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
					return hasFilter(input, "ip-address", "54.123.45.67")
				})).Return(makeDescribeOutput(makeReservation(makeInstance("i-bypubip", withPublicIP("54.123.45.67")))), nil)
			},
			wantID: "i-bypubip",
		},
		"explicit private dns with wildcard": {
			dstType:     dstTypePtr(DstTypePrivateDNSName),
			destination: "ip-10-0-0-1",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
					return hasFilter(input, "private-dns-name", "ip-10-0-0-1.*")
				})).Return(makeDescribeOutput(makeReservation(makeInstance("i-dns"))), nil)
			},
			wantID: "i-dns",
		},
		"explicit ipv6": {
			dstType:     dstTypePtr(DstTypeIPv6),
			destination: "2001:db8::1",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
					return hasFilter(input, "ipv6-address", "2001:db8::1")
				})).Return(makeDescribeOutput(makeReservation(makeInstance("i-ipv6", withIPv6("2001:db8::1")))), nil)
			},
			wantID: "i-ipv6",
		},
		"name tag substring": {
			destination: "jump",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
					return hasFilter(input, "tag-key", "Name")
				})).Return(makeDescribeOutput(makeReservation(
					makeInstance("i-jump", withNameTag("jumphost"), withState(types.InstanceStateNameStopped)),
					makeInstance("i-web", withNameTag("web")),
				)), nil)
			},
			wantID: "i-jump",
		},
		"empty destination guesses bastion": {
			destination: "",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.Anything).Return(makeDescribeOutput(makeReservation(
					makeInstance("i-web", withNameTag("web")),
					makeInstance("i-bastion", withNameTag("shared-Bastion-host")),
				)), nil)
			},
			wantID: "i-bastion",
		},
		"not found": {
			dstType:     dstTypePtr(DstTypeNameTag),
			destination: "nonexistent",
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.Anything).Return(makeDescribeOutput(), nil)
			},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockEC2 := new(mockEC2API)
			tc.mockSetup(mockEC2)

			client := newTestClient(mockEC2, nil, nil)
			instance, err := client.GetInstance(context.Background(), tc.destination, tc.dstType)

			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantID, aws.ToString(instance.InstanceId))
			mockEC2.AssertExpectations(t)
		})
	}
}

func TestClient_ListInstances(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		mockSetup func(*MockEC2API)
		wantCount int
		wantErr   bool
	}{
		"multiple reservations": {
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.Anything).Return(
					makeDescribeOutput(
						makeReservation(makeInstance("i-1"), makeInstance("i-2")),
						makeReservation(makeInstance("i-3")),
					),
					nil,
				)
			},
			wantCount: 3,
		},
		"empty result": {
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.Anything).Return(makeDescribeOutput(), nil)
			},
			wantCount: 0,
		},
		"api error": {
			mockSetup: func(m *MockEC2API) {
				m.On("DescribeInstances", mock.Anything, mock.Anything).Return(nil, errors.New("API error"))
			},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mockEC2 := new(mockEC2API)
			tc.mockSetup(mockEC2)

			client := newTestClient(mockEC2, nil, nil)
			instances, err := client.ListInstances(context.Background())

			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Len(t, instances, tc.wantCount)
			mockEC2.AssertExpectations(t)
		})
	}
}
