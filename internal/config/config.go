// Package config loads ec2bastion settings from file, environment and flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/ivoronin/ec2bastion/internal/lifecycle"
	"github.com/ivoronin/ec2bastion/internal/session"
	"github.com/ivoronin/ec2bastion/internal/ssm"
	"github.com/spf13/viper"
)

// Config represents the complete ec2bastion configuration
type Config struct {
	AWS       AWSConfig       `mapstructure:"aws" yaml:"aws"`
	Bastion   BastionConfig   `mapstructure:"bastion" yaml:"bastion"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle" yaml:"lifecycle"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	SSH       SSHConfig       `mapstructure:"ssh" yaml:"ssh"`
	SSM       SSMConfig       `mapstructure:"ssm" yaml:"ssm"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// AWSConfig selects credentials and region. Empty values use the SDK defaults.
type AWSConfig struct {
	Region  string `mapstructure:"region" yaml:"region"`
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// BastionConfig names the default target when none is given on the command line.
type BastionConfig struct {
	InstanceID string `mapstructure:"instance_id" yaml:"instance_id"`
	// Name is matched against Name tags (default: "bastion")
	Name string `mapstructure:"name" yaml:"name"`
}

// LifecycleConfig controls starting and stopping the instance
type LifecycleConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
	// RequireHealthy waits for both status checks after the instance is running
	RequireHealthy bool `mapstructure:"require_healthy" yaml:"require_healthy"`
	// ReadyDelay is slept after a fresh start so sshd and the SSM agent come up
	ReadyDelay time.Duration `mapstructure:"ready_delay" yaml:"ready_delay"`
}

// SessionConfig controls what happens after a session
type SessionConfig struct {
	// StopAfter is one of "prompt", "never", "always" (default: "prompt")
	StopAfter string `mapstructure:"stop_after" yaml:"stop_after"`
}

type SSHConfig struct {
	Binary       string `mapstructure:"binary" yaml:"binary"`
	User         string `mapstructure:"user" yaml:"user"`
	IdentityFile string `mapstructure:"identity_file" yaml:"identity_file"`
	// AddressType is one of "auto", "public", "private", "ipv6" (default: "public")
	AddressType string   `mapstructure:"address_type" yaml:"address_type"`
	Port        int      `mapstructure:"port" yaml:"port"`
	SendKeys    bool     `mapstructure:"send_keys" yaml:"send_keys"`
	UseEICE     bool     `mapstructure:"use_eice" yaml:"use_eice"`
	EICEID      string   `mapstructure:"eice_id" yaml:"eice_id"`
	UseSSM      bool     `mapstructure:"use_ssm" yaml:"use_ssm"`
	ExtraArgs   []string `mapstructure:"extra_args" yaml:"extra_args"`
}

type SSMConfig struct {
	// Shell is "builtin" or "plugin" (default: "builtin")
	Shell        string        `mapstructure:"shell" yaml:"shell"`
	AgentTimeout time.Duration `mapstructure:"agent_timeout" yaml:"agent_timeout"`
}

type LogConfig struct {
	// Level is one of logrus levels (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Bastion: BastionConfig{
			Name: ec2client.DefaultBastionPattern,
		},
		Lifecycle: LifecycleConfig{
			PollInterval: lifecycle.DefaultPollInterval,
			StartTimeout: 5 * time.Minute,
			StopTimeout:  5 * time.Minute,
			ReadyDelay:   10 * time.Second,
		},
		Session: SessionConfig{
			StopAfter: "prompt",
		},
		SSH: SSHConfig{
			Binary:      "ssh",
			User:        "ec2-user",
			AddressType: "public",
			ExtraArgs:   []string{},
		},
		SSM: SSMConfig{
			Shell:        "builtin",
			AgentTimeout: ssm.DefaultAgentTimeout,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers every default with v so that env overrides work for
// keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("aws.region", defaults.AWS.Region)
	v.SetDefault("aws.profile", defaults.AWS.Profile)

	v.SetDefault("bastion.instance_id", defaults.Bastion.InstanceID)
	v.SetDefault("bastion.name", defaults.Bastion.Name)

	v.SetDefault("lifecycle.poll_interval", defaults.Lifecycle.PollInterval)
	v.SetDefault("lifecycle.start_timeout", defaults.Lifecycle.StartTimeout)
	v.SetDefault("lifecycle.stop_timeout", defaults.Lifecycle.StopTimeout)
	v.SetDefault("lifecycle.require_healthy", defaults.Lifecycle.RequireHealthy)
	v.SetDefault("lifecycle.ready_delay", defaults.Lifecycle.ReadyDelay)

	v.SetDefault("session.stop_after", defaults.Session.StopAfter)

	v.SetDefault("ssh.binary", defaults.SSH.Binary)
	v.SetDefault("ssh.user", defaults.SSH.User)
	v.SetDefault("ssh.identity_file", defaults.SSH.IdentityFile)
	v.SetDefault("ssh.address_type", defaults.SSH.AddressType)
	v.SetDefault("ssh.port", defaults.SSH.Port)
	v.SetDefault("ssh.send_keys", defaults.SSH.SendKeys)
	v.SetDefault("ssh.use_eice", defaults.SSH.UseEICE)
	v.SetDefault("ssh.eice_id", defaults.SSH.EICEID)
	v.SetDefault("ssh.use_ssm", defaults.SSH.UseSSM)
	v.SetDefault("ssh.extra_args", defaults.SSH.ExtraArgs)

	v.SetDefault("ssm.shell", defaults.SSM.Shell)
	v.SetDefault("ssm.agent_timeout", defaults.SSM.AgentTimeout)

	v.SetDefault("log.level", defaults.Log.Level)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ec2bastion")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ec2bastion"
	}
	return filepath.Join(home, ".config", "ec2bastion")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StopPolicy returns the parsed session.stop_after value.
func (c *Config) StopPolicy() session.StopPolicy {
	policy, _ := session.ParseStopPolicy(c.Session.StopAfter)
	return policy
}

// AddrType returns the parsed ssh.address_type value.
func (c *Config) AddrType() ec2client.AddrType {
	var addrType ec2client.AddrType
	_ = addrType.UnmarshalText([]byte(c.SSH.AddressType))
	return addrType
}

// Shell returns the parsed ssm.shell value.
func (c *Config) Shell() ssm.Shell {
	var shell ssm.Shell
	_ = shell.UnmarshalText([]byte(c.SSM.Shell))
	return shell
}
