package session

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// OutcomeKind classifies how a session ended.
type OutcomeKind int

const (
	Connected OutcomeKind = iota
	StartFailed
	ConnectFailed
	TimedOut
	Cancelled
	Rejected
)

func (k OutcomeKind) String() string {
	return [...]string{"connected", "start failed", "connect failed", "timed out", "cancelled", "rejected"}[k]
}

// Process exit statuses that are not a remote exit code.
const (
	// ExitRemoteOutOfRange replaces remote codes a process exit status cannot carry.
	ExitRemoteOutOfRange = 1

	ExitRejected      = 2
	ExitStartFailed   = 3
	ExitTimedOut      = 4
	ExitConnectFailed = 5
	ExitCancelled     = 130
)

// Outcome is the result of Orchestrator.Run.
type Outcome struct {
	Kind       OutcomeKind
	InstanceID string
	// ExitCode is the remote exit code. Only meaningful when Kind is Connected.
	ExitCode int
	// LastState is the last lifecycle state observed, empty if none was.
	LastState types.InstanceStateName
	// Started is set when this run issued a start.
	Started bool
	// Stopped is set when the instance was stopped after the session.
	Stopped bool
	Err     error
	// StopErr is a post-session stop failure. It never changes Kind.
	StopErr error
}

// ExitStatus maps the outcome to a process exit status. Remote codes outside
// 0..255 would be truncated by the OS, so they become ExitRemoteOutOfRange.
func (o Outcome) ExitStatus() int {
	switch o.Kind {
	case Connected:
		if o.ExitCode < 0 || o.ExitCode > 255 {
			return ExitRemoteOutOfRange
		}
		return o.ExitCode
	case Rejected:
		return ExitRejected
	case StartFailed:
		return ExitStartFailed
	case TimedOut:
		return ExitTimedOut
	case ConnectFailed:
		return ExitConnectFailed
	case Cancelled:
		return ExitCancelled
	}

	panic("unexpected outcome kind")
}
