package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/ivoronin/ec2bastion/internal/session"
	"github.com/ivoronin/ec2bastion/internal/ssm"
	"github.com/sirupsen/logrus"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validateBastion()...)
	errs = append(errs, c.validateLifecycle()...)
	errs = append(errs, c.validateEnums()...)
	errs = append(errs, c.validateSSH()...)

	return errs
}

func (c *Config) validateBastion() []ValidationError {
	id := c.Bastion.InstanceID
	if id != "" && !strings.HasPrefix(id, "i-") {
		return []ValidationError{{Field: "bastion.instance_id", Value: id, Message: "must start with i-"}}
	}
	return nil
}

func (c *Config) validateLifecycle() []ValidationError {
	var errs []ValidationError

	positive := []struct {
		field string
		value time.Duration
	}{
		{"lifecycle.poll_interval", c.Lifecycle.PollInterval},
		{"lifecycle.start_timeout", c.Lifecycle.StartTimeout},
		{"lifecycle.stop_timeout", c.Lifecycle.StopTimeout},
		{"ssm.agent_timeout", c.SSM.AgentTimeout},
	}
	for _, d := range positive {
		if d.value <= 0 {
			errs = append(errs, ValidationError{Field: d.field, Value: d.value, Message: "must be positive"})
		}
	}

	if c.Lifecycle.ReadyDelay < 0 {
		errs = append(errs, ValidationError{Field: "lifecycle.ready_delay", Value: c.Lifecycle.ReadyDelay, Message: "must not be negative"})
	}

	if c.Lifecycle.PollInterval > 0 && c.Lifecycle.StartTimeout > 0 && c.Lifecycle.StartTimeout < c.Lifecycle.PollInterval {
		errs = append(errs, ValidationError{Field: "lifecycle.start_timeout", Value: c.Lifecycle.StartTimeout, Message: "must not be shorter than poll_interval"})
	}

	return errs
}

func (c *Config) validateEnums() []ValidationError {
	var errs []ValidationError

	if _, err := session.ParseStopPolicy(c.Session.StopAfter); err != nil {
		errs = append(errs, ValidationError{Field: "session.stop_after", Value: c.Session.StopAfter, Message: "must be one of prompt, never, always"})
	}

	var addrType ec2client.AddrType
	if err := addrType.UnmarshalText([]byte(c.SSH.AddressType)); err != nil {
		errs = append(errs, ValidationError{Field: "ssh.address_type", Value: c.SSH.AddressType, Message: "must be one of auto, public, private, ipv6"})
	}

	var shell ssm.Shell
	if err := shell.UnmarshalText([]byte(c.SSM.Shell)); err != nil {
		errs = append(errs, ValidationError{Field: "ssm.shell", Value: c.SSM.Shell, Message: "must be builtin or plugin"})
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Value: c.Log.Level, Message: "unknown log level"})
	}

	return errs
}

func (c *Config) validateSSH() []ValidationError {
	var errs []ValidationError

	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		errs = append(errs, ValidationError{Field: "ssh.port", Value: c.SSH.Port, Message: "must be between 0 and 65535"})
	}

	if c.SSH.UseEICE && c.SSH.UseSSM {
		errs = append(errs, ValidationError{Field: "ssh.use_eice", Value: true, Message: "cannot be combined with ssh.use_ssm"})
	}

	if c.SSH.EICEID != "" && !c.SSH.UseEICE {
		errs = append(errs, ValidationError{Field: "ssh.eice_id", Value: c.SSH.EICEID, Message: "requires ssh.use_eice"})
	}

	return errs
}
