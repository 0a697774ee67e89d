// Package session ties state probing, lifecycle control and a connection
// strategy into a single bastion session.
package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is returned for malformed requests. No AWS call is made for them.
var ErrInvalidRequest = errors.New("invalid connection request")

// Kind selects the transport used to reach the instance.
type Kind int

const (
	KindSSH Kind = iota + 1
	KindSSM
)

func (k Kind) String() string {
	switch k {
	case KindSSH:
		return "ssh"
	case KindSSM:
		return "ssm"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "ssh":
		*k = KindSSH
	case "ssm":
		*k = KindSSM
	default:
		return fmt.Errorf("unknown connection kind: %s", text)
	}

	return nil
}

// Mode selects between an interactive shell and a single remote command.
type Mode int

const (
	ModeInteractive Mode = iota
	ModeCommand
)

func (m Mode) String() string {
	if m == ModeCommand {
		return "command"
	}

	return "interactive"
}

// Request describes one connection. It is not modified after construction.
type Request struct {
	InstanceID   string
	Kind         Kind
	Mode         Mode
	Command      string
	User         string
	IdentityFile string
}

// Validate checks the request for internal consistency.
func (r Request) Validate() error {
	if r.InstanceID == "" {
		return fmt.Errorf("%w: missing instance ID", ErrInvalidRequest)
	}

	if !strings.HasPrefix(r.InstanceID, "i-") {
		return fmt.Errorf("%w: %q is not an instance ID", ErrInvalidRequest, r.InstanceID)
	}

	if r.Kind != KindSSH && r.Kind != KindSSM {
		return fmt.Errorf("%w: unknown connection kind %s", ErrInvalidRequest, r.Kind)
	}

	switch r.Mode {
	case ModeInteractive:
		if r.Command != "" {
			return fmt.Errorf("%w: interactive sessions take no command", ErrInvalidRequest)
		}
	case ModeCommand:
		if strings.TrimSpace(r.Command) == "" {
			return fmt.Errorf("%w: command mode requires a command", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidRequest, r.Mode)
	}

	if r.Kind == KindSSM && (r.User != "" || r.IdentityFile != "") {
		return fmt.Errorf("%w: user and identity file only apply to ssh", ErrInvalidRequest)
	}

	return nil
}
