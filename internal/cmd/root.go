// Package cmd implements the ec2bastion command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/ivoronin/ec2bastion/internal/awsclient"
	"github.com/ivoronin/ec2bastion/internal/config"
	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/ivoronin/ec2bastion/internal/logging"
	"github.com/ivoronin/ec2bastion/internal/session"
	"github.com/ivoronin/ec2bastion/internal/tunnel"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrUsage is the parent error for all command-line usage errors.
var ErrUsage = errors.New("usage error")

// Env holds process I/O and the factories commands use to reach AWS.
// Tests replace the factories to run commands in-process.
type Env struct {
	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer

	LoadAWSConfig func(ctx context.Context, region, profile string, logger logrus.FieldLogger) (aws.Config, error)
	NewEC2Client  func(cfg aws.Config, logger logrus.FieldLogger) *ec2client.Client
	NewStrategy   func(kind session.Kind, deps StrategyDeps) session.Strategy
	// Confirmer answers the stop prompt. Nil uses the terminal.
	Confirmer session.Confirmer

	RunTunnel    func(ctx context.Context, uri string, logger logrus.FieldLogger) error
	RunSSMTunnel func(ctx context.Context, cfg aws.Config, instanceID string, port int) error
}

// DefaultEnv wires the real process streams and AWS clients.
func DefaultEnv() *Env {
	return &Env{
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		LoadAWSConfig: awsclient.LoadConfig,
		NewEC2Client:  ec2client.NewClient,
		NewStrategy:   newStrategy,
		RunTunnel:     tunnel.Run,
		RunSSMTunnel:  tunnel.RunSSM,
	}
}

// exitError carries a process exit status. A nil err means nothing is printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// app is the state shared by every command of one invocation.
type app struct {
	env *Env
	v   *viper.Viper

	cfg    *config.Config
	logger *logrus.Logger
}

// globalBindings maps config keys to root persistent flags.
var globalBindings = map[string]string{
	"aws.region":  "region",
	"aws.profile": "profile",
}

// NewRootCmd builds the command tree around env.
func NewRootCmd(env *Env) *cobra.Command {
	a := &app{env: env, v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "ec2bastion",
		Short: "Start, connect to and stop an EC2 bastion",
		Long: `ec2bastion starts a stopped EC2 bastion instance on demand, opens an SSH or
SSM session to it, and optionally stops it again afterwards so the bastion
only runs while someone is using it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(env.Stdin)
	rootCmd.SetOut(env.Stdout)
	rootCmd.SetErr(env.Stderr)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $XDG_CONFIG_HOME/ec2bastion/config.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("region", "", "AWS region (default from the AWS SDK configuration)")
	flags.String("profile", "", "AWS profile (default from the AWS SDK configuration)")

	rootCmd.AddCommand(
		newAboutCmd(a),
		newConnectCmd(a),
		newListCmd(a),
		newConfigCmd(a),
		newTunnelCmd(a),
	)

	return rootCmd
}

// Execute runs the command line and returns the process exit status.
func Execute(ctx context.Context, env *Env, args []string) int {
	rootCmd := NewRootCmd(env)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintf(env.Stderr, "ec2bastion: %v\n", exitErr.err)
		}
		return exitErr.code
	}

	fmt.Fprintf(env.Stderr, "ec2bastion: %v\n", err)
	if errors.Is(err, ErrUsage) || isFlagError(err) {
		return session.ExitRejected
	}

	return 1
}

func isFlagError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "flag needs an argument") ||
		strings.Contains(msg, "invalid argument")
}

// setup binds cmd's flags, reads the config file and environment, and builds
// the logger. bindings maps config keys to flag names of cmd.
func (a *app) setup(cmd *cobra.Command, bindings map[string]string) error {
	config.SetDefaults(a.v)

	for key, name := range globalBindings {
		if err := bindFlag(a.v, cmd.Flags(), key, name); err != nil {
			return err
		}
	}
	for key, name := range bindings {
		if err := bindFlag(a.v, cmd.Flags(), key, name); err != nil {
			return err
		}
	}

	if err := a.readConfig(cmd); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	debug, _ := cmd.Flags().GetBool("debug")

	logger, err := logging.New(a.env.Stderr, cfg.Log.Level, debug)
	if err != nil {
		return err
	}
	a.logger = logger

	if used := a.v.ConfigFileUsed(); used != "" {
		logger.Debugf("using config file %s", used)
	}

	return nil
}

func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) error {
	flag := flags.Lookup(name)
	if flag == nil {
		panic(fmt.Sprintf("ec2bastion: no flag %q to bind %s to", name, key))
	}
	return v.BindPFlag(key, flag)
}

func (a *app) readConfig(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")

	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(config.ConfigDir())
	}

	a.v.SetEnvPrefix("EC2BASTION")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	err := a.v.ReadInConfig()

	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &notFound) && cfgFile == "":
		// Missing default config file is fine
		return nil
	default:
		return fmt.Errorf("unable to read config: %w", err)
	}
}

// awsConfig loads the AWS SDK configuration for this invocation.
func (a *app) awsConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := a.env.LoadAWSConfig(ctx, a.cfg.AWS.Region, a.cfg.AWS.Profile, a.logger)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS configuration: %w", err)
	}
	return cfg, nil
}
