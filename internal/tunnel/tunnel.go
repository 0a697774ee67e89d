// Package tunnel implements the ProxyCommand helpers that carry SSH traffic
// over an EC2 Instance Connect Endpoint WebSocket or an SSM port forwarding session.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrTunnel is returned when a tunnel cannot be opened or breaks.
var ErrTunnel = errors.New("tunnel failed")

// Dialer opens the remote end of a tunnel.
type Dialer func(ctx context.Context, uri string) (io.ReadWriteCloser, error)

// Run opens the EICE WebSocket at uri and splices the process stdio to it.
func Run(ctx context.Context, uri string, logger logrus.FieldLogger) error {
	return Connect(ctx, uri, DialWebSocket, os.Stdin, os.Stdout, logger)
}

// Connect dials uri and splices in and out to the connection.
func Connect(ctx context.Context, uri string, dial Dialer, in io.Reader, out io.Writer, logger logrus.FieldLogger) error {
	conn, err := dial(ctx, uri)
	if err != nil {
		return err
	}

	return Splice(ctx, conn, in, out, logger)
}

// Splice copies in to conn and conn to out. It returns once the remote end
// closes or ctx is done; conn is closed in both cases. A local EOF does not
// end the tunnel since WebSockets cannot be half-closed.
func Splice(ctx context.Context, conn io.ReadWriteCloser, in io.Reader, out io.Writer, logger logrus.FieldLogger) error {
	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { _ = conn.Close() })
	}
	defer closeConn()

	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	upstream := make(chan error, 1)

	go func() {
		_, err := io.Copy(conn, in)
		upstream <- err
		if err != nil {
			// unblocks the read side
			closeConn()
		}
	}()

	_, downErr := io.Copy(out, conn)

	if err := ctx.Err(); err != nil {
		logger.Debug("tunnel interrupted")
		return fmt.Errorf("tunnel interrupted: %w", err)
	}

	var upErr error
	select {
	case upErr = <-upstream:
	default:
	}

	if upErr != nil {
		logger.WithField("direction", "local->remote").WithError(upErr).Debug("tunnel copy failed")
	}
	if downErr != nil {
		logger.WithField("direction", "remote->local").WithError(downErr).Debug("tunnel copy failed")
	}

	if err := errors.Join(upErr, downErr); err != nil {
		return fmt.Errorf("%w: %w", ErrTunnel, err)
	}

	logger.Debug("tunnel closed by the remote end")

	return nil
}
