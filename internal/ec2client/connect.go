package ec2client

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2instanceconnect"
)

// SendSSHPublicKey pushes an SSH public key to an instance via EC2 Instance Connect.
// The key stays authorized for 60 seconds.
func (c *Client) SendSSHPublicKey(ctx context.Context, instance types.Instance, instanceOSUser, sshPublicKey string) error {
	instanceID := aws.ToString(instance.InstanceId)
	logger := c.logger.WithField("instance_id", instanceID)
	logger.Debugf("sending SSH public key for %s", instanceOSUser)

	input := &ec2instanceconnect.SendSSHPublicKeyInput{
		InstanceId:     aws.String(instanceID),
		InstanceOSUser: aws.String(instanceOSUser),
		SSHPublicKey:   aws.String(sshPublicKey),
	}

	if _, err := c.connectClient.SendSSHPublicKey(ctx, input); err != nil {
		return wrapAPIError("send SSH public key to", instanceID, err)
	}

	logger.Debug("sent SSH public key")

	return nil
}
