package ec2client

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const defaultPresignedURLExpiryTime = 60

var eiceReadyFilter = types.Filter{
	Name:   aws.String("state"),
	Values: []string{"create-complete"},
}

func (c *Client) getEICEByID(ctx context.Context, instanceConnectEndpointID string) (types.Ec2InstanceConnectEndpoint, error) {
	c.logger.Debugf("searching for endpoint by ID %s", instanceConnectEndpointID)

	input := &ec2.DescribeInstanceConnectEndpointsInput{
		Filters:                    []types.Filter{eiceReadyFilter},
		InstanceConnectEndpointIds: []string{instanceConnectEndpointID},
	}

	result, err := c.ec2Client.DescribeInstanceConnectEndpoints(ctx, input)
	if err != nil {
		return types.Ec2InstanceConnectEndpoint{}, wrapAPIError("describe endpoint", instanceConnectEndpointID, err)
	}

	if len(result.InstanceConnectEndpoints) == 0 {
		return types.Ec2InstanceConnectEndpoint{}, fmt.Errorf("unable to find an endpoint with ID=%s: %w", instanceConnectEndpointID, ErrNoMatches)
	}

	return result.InstanceConnectEndpoints[0], nil
}

// GuessEICEByVPCAndSubnet finds an EICE endpoint in the given VPC, preferring one in the same subnet.
func (c *Client) GuessEICEByVPCAndSubnet(ctx context.Context, vpcID, subnetID string) (types.Ec2InstanceConnectEndpoint, error) {
	c.logger.Debugf("searching for EICE by vpcID %s and subnetID %s", vpcID, subnetID)

	input := &ec2.DescribeInstanceConnectEndpointsInput{
		Filters: []types.Filter{
			eiceReadyFilter,
			{
				Name:   aws.String("vpc-id"),
				Values: []string{vpcID},
			},
		},
	}

	var fallback *types.Ec2InstanceConnectEndpoint

	paginator := ec2.NewDescribeInstanceConnectEndpointsPaginator(c.ec2Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return types.Ec2InstanceConnectEndpoint{}, err
		}

		for _, eice := range page.InstanceConnectEndpoints {
			if aws.ToString(eice.SubnetId) == subnetID {
				c.logger.Debugf("selected endpoint %s matching instance subnet", aws.ToString(eice.InstanceConnectEndpointId))

				return eice, nil
			}

			if fallback == nil {
				fallback = &eice
			}
		}
	}

	if fallback != nil {
		c.logger.Debugf("selected endpoint %s matching instance vpc", aws.ToString(fallback.InstanceConnectEndpointId))

		return *fallback, nil
	}

	return types.Ec2InstanceConnectEndpoint{}, fmt.Errorf("unable to find an endpoint matching instance vpcID=%s: %w", vpcID, ErrNoMatches)
}

// CreateEICETunnelURI creates a signed WebSocket tunnel URI for an EICE connection.
func (c *Client) CreateEICETunnelURI(ctx context.Context, privateIP string, port int, eiceID string) (string, error) {
	c.logger.Debugf("creating EICE tunnel URI for %s via %s", privateIP, eiceID)

	eice, err := c.getEICEByID(ctx, eiceID)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Add("instanceConnectEndpointId", aws.ToString(eice.InstanceConnectEndpointId))
	params.Add("remotePort", strconv.Itoa(port))
	params.Add("privateIpAddress", privateIP)
	params.Add("X-Amz-Expires", strconv.Itoa(defaultPresignedURLExpiryTime))

	unsignedURL := fmt.Sprintf("wss://%s/openTunnel?%s", aws.ToString(eice.DnsName), params.Encode())

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, unsignedURL, nil)
	if err != nil {
		return "", err
	}

	if c.credentials == nil {
		return "", fmt.Errorf("%w: no AWS credentials configured", ErrPermission)
	}

	credentials, err := c.credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: unable to retrieve AWS credentials: %w", ErrPermission, err)
	}

	hash := fmt.Sprintf("%x", sha256.Sum256([]byte{}))
	uri, _, err := c.signer.PresignHTTP(ctx, credentials, request, hash, "ec2-instance-connect", c.region, time.Now())
	if err != nil {
		return "", fmt.Errorf("unable to presign EICE tunnel URI: %w", err)
	}

	c.logger.Debug("created EICE tunnel URI")

	return uri, nil
}
