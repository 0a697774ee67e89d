package ec2client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	signerV4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2instanceconnect"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Implementations - Exported for use by other packages' tests
// =============================================================================

// MockEC2API is a mock implementation of EC2API.
type MockEC2API struct {
	mock.Mock
}

// DescribeInstances mocks the EC2 DescribeInstances API call.
func (m *MockEC2API) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2.DescribeInstancesOutput), args.Error(1)
}

// DescribeInstanceStatus mocks the EC2 DescribeInstanceStatus API call.
func (m *MockEC2API) DescribeInstanceStatus(ctx context.Context, params *ec2.DescribeInstanceStatusInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceStatusOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2.DescribeInstanceStatusOutput), args.Error(1)
}

// StartInstances mocks the EC2 StartInstances API call.
func (m *MockEC2API) StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2.StartInstancesOutput), args.Error(1)
}

// StopInstances mocks the EC2 StopInstances API call.
func (m *MockEC2API) StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2.StopInstancesOutput), args.Error(1)
}

// DescribeInstanceConnectEndpoints mocks the EC2 DescribeInstanceConnectEndpoints API call.
func (m *MockEC2API) DescribeInstanceConnectEndpoints(ctx context.Context, params *ec2.DescribeInstanceConnectEndpointsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceConnectEndpointsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2.DescribeInstanceConnectEndpointsOutput), args.Error(1)
}

// MockEC2InstanceConnectAPI is a mock implementation of EC2InstanceConnectAPI.
type MockEC2InstanceConnectAPI struct {
	mock.Mock
}

// SendSSHPublicKey mocks the EC2 Instance Connect SendSSHPublicKey API call.
func (m *MockEC2InstanceConnectAPI) SendSSHPublicKey(ctx context.Context, params *ec2instanceconnect.SendSSHPublicKeyInput, optFns ...func(*ec2instanceconnect.Options)) (*ec2instanceconnect.SendSSHPublicKeyOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2instanceconnect.SendSSHPublicKeyOutput), args.Error(1)
}

// MockHTTPRequestSigner is a mock implementation of HTTPRequestSigner.
type MockHTTPRequestSigner struct {
	mock.Mock
}

// PresignHTTP mocks the HTTP request signing.
func (m *MockHTTPRequestSigner) PresignHTTP(ctx context.Context, credentials aws.Credentials, r *http.Request, payloadHash string, service string, region string, signingTime time.Time, optFns ...func(*signerV4.SignerOptions)) (string, http.Header, error) {
	args := m.Called(ctx, credentials, r, payloadHash, service, region, signingTime)
	var headers http.Header
	if args.Get(1) != nil {
		headers = args.Get(1).(http.Header)
	}
	return args.String(0), headers, args.Error(2)
}

// =============================================================================
// Test Client Factory
// =============================================================================

// NewTestClient creates a Client with mock dependencies for testing.
// This is intended for use by test code in other packages.
func NewTestClient(ec2API EC2API, connectAPI EC2InstanceConnectAPI, signer HTTPRequestSigner) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &Client{
		ec2Client:     ec2API,
		connectClient: connectAPI,
		signer:        signer,
		credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{}, nil
		}),
		region: "us-east-1",
		logger: logger,
	}
}

// =============================================================================
// Test Instance Builders - Exported for use by other packages' tests
// =============================================================================

// MakeInstance creates a test instance with the given ID and options.
func MakeInstance(id string, opts ...func(*types.Instance)) types.Instance {
	inst := types.Instance{
		InstanceId: aws.String(id),
		State:      &types.InstanceState{Name: types.InstanceStateNameRunning},
	}
	for _, opt := range opts {
		opt(&inst)
	}
	return inst
}

// WithState sets the lifecycle state.
func WithState(state types.InstanceStateName) func(*types.Instance) {
	return func(i *types.Instance) {
		i.State = &types.InstanceState{Name: state}
	}
}

// WithPrivateIP sets the private IP address.
func WithPrivateIP(ip string) func(*types.Instance) {
	return func(i *types.Instance) {
		i.PrivateIpAddress = aws.String(ip)
	}
}

// WithPublicIP sets the public IP address.
func WithPublicIP(ip string) func(*types.Instance) {
	return func(i *types.Instance) {
		i.PublicIpAddress = aws.String(ip)
	}
}

// WithIPv6 sets the IPv6 address.
func WithIPv6(ip string) func(*types.Instance) {
	return func(i *types.Instance) {
		i.Ipv6Address = aws.String(ip)
	}
}

// WithVPC sets the VPC ID.
func WithVPC(vpcID string) func(*types.Instance) {
	return func(i *types.Instance) {
		i.VpcId = aws.String(vpcID)
	}
}

// WithSubnet sets the subnet ID.
func WithSubnet(subnetID string) func(*types.Instance) {
	return func(i *types.Instance) {
		i.SubnetId = aws.String(subnetID)
	}
}

// WithNameTag adds a Name tag.
func WithNameTag(name string) func(*types.Instance) {
	return func(i *types.Instance) {
		i.Tags = append(i.Tags, types.Tag{
			Key:   aws.String("Name"),
			Value: aws.String(name),
		})
	}
}

// WithTag adds a custom tag.
func WithTag(key, value string) func(*types.Instance) {
	return func(i *types.Instance) {
		i.Tags = append(i.Tags, types.Tag{
			Key:   aws.String(key),
			Value: aws.String(value),
		})
	}
}

// =============================================================================
// Test Output Builders - Exported for use by other packages' tests
// =============================================================================

// MakeReservation wraps instances in a reservation.
func MakeReservation(instances ...types.Instance) types.Reservation {
	return types.Reservation{Instances: instances}
}

// MakeDescribeOutput creates DescribeInstancesOutput with given reservations.
func MakeDescribeOutput(reservations ...types.Reservation) *ec2.DescribeInstancesOutput {
	return &ec2.DescribeInstancesOutput{Reservations: reservations}
}

// MakeInstanceStatus creates a status entry with the given state and check results.
// An empty check status leaves the corresponding summary unset.
func MakeInstanceStatus(id string, state types.InstanceStateName, instanceCheck, systemCheck types.SummaryStatus) types.InstanceStatus {
	status := types.InstanceStatus{
		InstanceId:    aws.String(id),
		InstanceState: &types.InstanceState{Name: state},
	}
	if instanceCheck != "" {
		status.InstanceStatus = &types.InstanceStatusSummary{Status: instanceCheck}
	}
	if systemCheck != "" {
		status.SystemStatus = &types.InstanceStatusSummary{Status: systemCheck}
	}
	return status
}

// MakeStatusOutput creates DescribeInstanceStatusOutput.
func MakeStatusOutput(statuses ...types.InstanceStatus) *ec2.DescribeInstanceStatusOutput {
	return &ec2.DescribeInstanceStatusOutput{InstanceStatuses: statuses}
}

// MakeStateChange creates an InstanceStateChange as returned by start and stop calls.
func MakeStateChange(id string, previous, current types.InstanceStateName) types.InstanceStateChange {
	return types.InstanceStateChange{
		InstanceId:    aws.String(id),
		PreviousState: &types.InstanceState{Name: previous},
		CurrentState:  &types.InstanceState{Name: current},
	}
}

// MakeEICE creates a test EC2 Instance Connect Endpoint.
func MakeEICE(id, vpcID, subnetID, dnsName string) types.Ec2InstanceConnectEndpoint {
	return types.Ec2InstanceConnectEndpoint{
		InstanceConnectEndpointId: aws.String(id),
		VpcId:                     aws.String(vpcID),
		SubnetId:                  aws.String(subnetID),
		DnsName:                   aws.String(dnsName),
	}
}

// MakeEICEOutput creates DescribeInstanceConnectEndpointsOutput.
func MakeEICEOutput(endpoints ...types.Ec2InstanceConnectEndpoint) *ec2.DescribeInstanceConnectEndpointsOutput {
	return &ec2.DescribeInstanceConnectEndpointsOutput{
		InstanceConnectEndpoints: endpoints,
	}
}

// =============================================================================
// Type Pointer Helpers - Exported for use by other packages' tests
// =============================================================================

// DstTypePtr returns a pointer to the DstType value.
func DstTypePtr(t DstType) *DstType {
	return &t
}
