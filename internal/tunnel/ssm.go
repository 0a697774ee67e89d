package tunnel

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/mmmorris1975/ssm-session-client/ssmclient"
)

// DefaultSSHPort is forwarded when no port is given.
const DefaultSSHPort = 22

// sshSession is replaced in tests.
var sshSession = ssmclient.SSHSession

// RunSSM forwards the process stdio to port on the instance through an SSM session.
func RunSSM(ctx context.Context, cfg aws.Config, instanceID string, port int) error {
	if port == 0 {
		port = DefaultSSHPort
	}

	session := sshSession
	errCh := make(chan error, 1)

	go func() {
		errCh <- session(cfg, &ssmclient.PortForwardingInput{
			Target:     instanceID,
			RemotePort: port,
		})
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
