// Package ec2client wraps the EC2 and EC2 Instance Connect APIs used to find,
// probe, start and stop bastion instances.
package ec2client

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	signerV4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2instanceconnect"
	"github.com/sirupsen/logrus"
)

// Client wraps AWS SDK clients for EC2 and EC2 Instance Connect operations.
type Client struct {
	ec2Client     EC2API
	connectClient EC2InstanceConnectAPI
	signer        HTTPRequestSigner
	credentials   aws.CredentialsProvider
	region        string
	logger        logrus.FieldLogger
}

// NewClient creates a new Client from an existing AWS config.
// Credentials are only retrieved when a presigned EICE URI is requested.
func NewClient(cfg aws.Config, logger logrus.FieldLogger) *Client {
	return &Client{
		ec2Client:     ec2.NewFromConfig(cfg),
		connectClient: ec2instanceconnect.NewFromConfig(cfg),
		signer:        signerV4.NewSigner(),
		credentials:   cfg.Credentials,
		region:        cfg.Region,
		logger:        logger,
	}
}
