package cmd

import (
	"context"
	"fmt"

	"al.essio.dev/pkg/shellescape"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/ivoronin/ec2bastion/internal/config"
	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/ivoronin/ec2bastion/internal/lifecycle"
	"github.com/ivoronin/ec2bastion/internal/session"
	"github.com/ivoronin/ec2bastion/internal/ssh"
	"github.com/ivoronin/ec2bastion/internal/ssm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StrategyDeps is what a strategy factory may use.
type StrategyDeps struct {
	AWS    aws.Config
	Client *ec2client.Client
	Config *config.Config
	Debug  bool
	Logger logrus.FieldLogger
}

func newStrategy(kind session.Kind, deps StrategyDeps) session.Strategy {
	cfg := deps.Config

	if kind == session.KindSSM {
		return ssm.New(deps.AWS, ssm.Options{
			Shell:        cfg.Shell(),
			AgentTimeout: cfg.SSM.AgentTimeout,
			Region:       cfg.AWS.Region,
			Profile:      cfg.AWS.Profile,
		}, deps.Logger)
	}

	return ssh.New(deps.Client, ssh.Options{
		Binary:    cfg.SSH.Binary,
		Port:      cfg.SSH.Port,
		AddrType:  cfg.AddrType(),
		SendKeys:  cfg.SSH.SendKeys,
		UseEICE:   cfg.SSH.UseEICE,
		EICEID:    cfg.SSH.EICEID,
		UseSSM:    cfg.SSH.UseSSM,
		ExtraArgs: cfg.SSH.ExtraArgs,
		Region:    cfg.AWS.Region,
		Profile:   cfg.AWS.Profile,
		Debug:     deps.Debug,
	}, deps.Logger)
}

const connectExample = `  Open a shell on the bastion found by its Name tag:
     $ ec2bastion connect ssh

  Run one command over SSM on a specific instance and stop it afterwards:
     $ ec2bastion connect ssm --instance-id i-0123456789abcdef0 --stop-after always -- uptime

  Connect as admin to an instance named app01 through an EICE tunnel:
     $ ec2bastion connect ssh --use-eice admin@app01`

func newConnectCmd(a *app) *cobra.Command {
	connectCmd := &cobra.Command{
		Use:   "connect",
		Short: "Start the bastion if needed and open a session",
	}

	connectCmd.AddCommand(
		newConnectKindCmd(a, session.KindSSH),
		newConnectKindCmd(a, session.KindSSM),
		newAboutCmd(a),
	)

	return connectCmd
}

// sharedConnectBindings maps config keys to flags common to ssh and ssm.
var sharedConnectBindings = map[string]string{
	"bastion.instance_id":       "instance-id",
	"bastion.name":              "bastion-name",
	"session.stop_after":        "stop-after",
	"lifecycle.start_timeout":   "start-timeout",
	"lifecycle.stop_timeout":    "stop-timeout",
	"lifecycle.poll_interval":   "poll-interval",
	"lifecycle.ready_delay":     "wait-ssh",
	"lifecycle.require_healthy": "require-healthy",
}

var sshConnectBindings = map[string]string{
	"ssh.user":          "user",
	"ssh.identity_file": "key-path",
	"ssh.address_type":  "address-type",
	"ssh.port":          "port",
	"ssh.send_keys":     "send-keys",
	"ssh.use_eice":      "use-eice",
	"ssh.eice_id":       "eice-id",
	"ssh.use_ssm":       "use-ssm",
}

var ssmConnectBindings = map[string]string{
	"ssm.shell":         "shell",
	"ssm.agent_timeout": "agent-timeout",
}

func newConnectKindCmd(a *app, kind session.Kind) *cobra.Command {
	use := "ssh [flags] [[user@]destination] [-- command [argument ...]]"
	short := "Connect with the system ssh client"
	bindings := merge(sharedConnectBindings, sshConnectBindings)
	if kind == session.KindSSM {
		use = "ssm [flags] [destination] [-- command [argument ...]]"
		short = "Connect with AWS Systems Manager"
		bindings = merge(sharedConnectBindings, ssmConnectBindings)
	}

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Example: connectExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, bindings); err != nil {
				return err
			}
			return a.runConnect(cmd, kind, args)
		},
	}

	flags := cmd.Flags()
	flags.String("instance-id", "", "instance ID of the bastion")
	flags.String("bastion-name", "", "Name tag of the bastion, matched case-insensitively (default \"bastion\")")
	flags.BoolP("interactive", "t", false, "open an interactive shell (default unless a command is given)")
	flags.StringP("command", "c", "", "run a single command instead of a shell")
	flags.String("stop-after", "", "stop the instance after the session: always, never or prompt (default \"prompt\")")
	flags.Duration("start-timeout", 0, "how long to wait for the instance to start (default 5m)")
	flags.Duration("stop-timeout", 0, "how long to wait for the instance to stop (default 5m)")
	flags.Duration("poll-interval", 0, "interval between instance state polls (default 5s)")
	flags.Duration("wait-ssh", 0, "delay after a fresh start before connecting (default 10s)")
	flags.Bool("require-healthy", false, "wait for instance status checks to pass after start")

	if kind == session.KindSSH {
		flags.StringP("user", "u", "", "login user (default \"ec2-user\")")
		flags.StringP("key-path", "k", "", "SSH private key")
		flags.String("address-type", "", "address to connect to: auto, public, private or ipv6 (default \"public\")")
		flags.IntP("port", "p", 0, "SSH port")
		flags.Bool("send-keys", false, "push the public key with EC2 Instance Connect")
		flags.Bool("use-eice", false, "connect through an EC2 Instance Connect Endpoint")
		flags.String("eice-id", "", "EC2 Instance Connect Endpoint ID (default autodetected from VPC and subnet)")
		flags.Bool("use-ssm", false, "tunnel SSH through SSM")
	} else {
		flags.String("shell", "", "interactive shell client: builtin or plugin (default \"builtin\")")
		flags.Duration("agent-timeout", 0, "how long to wait for the SSM agent to come online (default 2m)")
	}

	return cmd
}

func merge(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// connectArgs is the command line of a connect subcommand after parsing.
type connectArgs struct {
	destination ssh.Destination
	mode        session.Mode
	command     string
}

func parseConnectArgs(cmd *cobra.Command, args []string) (connectArgs, error) {
	var parsed connectArgs

	positional, trailing := args, []string(nil)
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		positional, trailing = args[:dash], args[dash:]
	}

	switch len(positional) {
	case 0:
	case 1:
		dest, err := ssh.ParseDestination(positional[0])
		if err != nil {
			return connectArgs{}, fmt.Errorf("%w: %w", ErrUsage, err)
		}
		parsed.destination = dest
	default:
		return connectArgs{}, fmt.Errorf("%w: unexpected argument %s (put commands after --)", ErrUsage, positional[1])
	}

	command, _ := cmd.Flags().GetString("command")
	interactive, _ := cmd.Flags().GetBool("interactive")

	if command != "" && len(trailing) > 0 {
		return connectArgs{}, fmt.Errorf("%w: --command and trailing arguments are mutually exclusive", ErrUsage)
	}
	if len(trailing) > 0 {
		command = shellescape.QuoteCommand(trailing)
	}

	switch {
	case interactive && command != "":
		return connectArgs{}, fmt.Errorf("%w: --interactive cannot be combined with a command", ErrUsage)
	case command != "":
		parsed.mode = session.ModeCommand
		parsed.command = command
	default:
		parsed.mode = session.ModeInteractive
	}

	return parsed, nil
}

func (a *app) runConnect(cmd *cobra.Command, kind session.Kind, args []string) error {
	ctx := cmd.Context()

	parsed, err := parseConnectArgs(cmd, args)
	if err != nil {
		return err
	}

	if kind == session.KindSSM && parsed.destination.Login != "" {
		return fmt.Errorf("%w: ssm sessions take no login user", ErrUsage)
	}

	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return err
	}

	client := a.env.NewEC2Client(awsCfg, a.logger)

	instanceID, err := a.resolveTarget(ctx, client, parsed.destination.Target)
	if err != nil {
		return &exitError{code: session.ExitRejected, err: fmt.Errorf("unable to find the bastion: %w", err)}
	}

	req := session.Request{
		InstanceID: instanceID,
		Kind:       kind,
		Mode:       parsed.mode,
		Command:    parsed.command,
	}

	if kind == session.KindSSH {
		req.User = a.cfg.SSH.User
		if parsed.destination.Login != "" {
			req.User = parsed.destination.Login
		}
		req.IdentityFile = a.cfg.SSH.IdentityFile
		if parsed.destination.Port != 0 {
			a.cfg.SSH.Port = parsed.destination.Port
		}
	}

	debug, _ := cmd.Flags().GetBool("debug")
	strategy := a.env.NewStrategy(kind, StrategyDeps{
		AWS:    awsCfg,
		Client: client,
		Config: a.cfg,
		Debug:  debug,
		Logger: a.logger,
	})

	controller := lifecycle.NewController(client, lifecycle.Options{
		PollInterval:   a.cfg.Lifecycle.PollInterval,
		RequireHealthy: a.cfg.Lifecycle.RequireHealthy,
	}, a.logger)

	confirmer := a.env.Confirmer
	if confirmer == nil {
		confirmer = session.NewTerminalConfirmer(a.env.Stdin, a.env.Stderr)
	}

	orchestrator := session.New(client, controller, strategy, confirmer, session.Options{
		StartTimeout:   a.cfg.Lifecycle.StartTimeout,
		StopTimeout:    a.cfg.Lifecycle.StopTimeout,
		ReadyDelay:     a.cfg.Lifecycle.ReadyDelay,
		StopAfter:      a.cfg.StopPolicy(),
		RequireHealthy: a.cfg.Lifecycle.RequireHealthy,
	}, a.logger)

	outcome := orchestrator.Run(ctx, req)
	report(a.env.Stderr, outcome)

	if status := outcome.ExitStatus(); status != 0 {
		return &exitError{code: status}
	}

	return nil
}

// resolveTarget picks the instance: an explicit destination, then
// bastion.instance_id, then the Name tag in bastion.name.
func (a *app) resolveTarget(ctx context.Context, client *ec2client.Client, destination string) (string, error) {
	switch {
	case destination != "":
		instance, err := client.GetInstance(ctx, destination, nil)
		if err != nil {
			return "", err
		}
		return aws.ToString(instance.InstanceId), nil
	case a.cfg.Bastion.InstanceID != "":
		return a.cfg.Bastion.InstanceID, nil
	}

	instance, err := client.FindInstanceByName(ctx, a.cfg.Bastion.Name)
	if err != nil {
		return "", err
	}

	a.logger.Infof("using %s (%s)", aws.ToString(ec2client.GetInstanceName(instance)), aws.ToString(instance.InstanceId))

	return aws.ToString(instance.InstanceId), nil
}
