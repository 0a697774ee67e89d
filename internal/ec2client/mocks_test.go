package ec2client

// Lowercase aliases for the exported mocks and builders in testing.go.

type mockEC2API = MockEC2API
type mockEC2InstanceConnectAPI = MockEC2InstanceConnectAPI
type mockHTTPRequestSigner = MockHTTPRequestSigner

var (
	makeInstance       = MakeInstance
	withState          = WithState
	withPrivateIP      = WithPrivateIP
	withPublicIP       = WithPublicIP
	withIPv6           = WithIPv6
	withNameTag        = WithNameTag
	withTag            = WithTag
	makeReservation    = MakeReservation
	makeDescribeOutput = MakeDescribeOutput
	makeInstanceStatus = MakeInstanceStatus
	makeStatusOutput   = MakeStatusOutput
	makeStateChange    = MakeStateChange
	makeEICE           = MakeEICE
	makeEICEOutput     = MakeEICEOutput
	newTestClient      = NewTestClient
	dstTypePtr         = DstTypePtr
)
