package cmd

import (
	"github.com/spf13/cobra"
)

// newTunnelCmd builds the ProxyCommand helpers started by ssh. They are not
// meant to be run by hand.
func newTunnelCmd(a *app) *cobra.Command {
	tunnelCmd := &cobra.Command{
		Use:    "tunnel",
		Short:  "Forward stdin and stdout to an instance port",
		Hidden: true,
	}

	ssmCmd := &cobra.Command{
		Use:   "ssm",
		Short: "Tunnel through SSM port forwarding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, nil); err != nil {
				return err
			}

			instanceID, _ := cmd.Flags().GetString("instance-id")
			port, _ := cmd.Flags().GetInt("port")

			awsCfg, err := a.awsConfig(cmd.Context())
			if err != nil {
				return err
			}

			a.logger.WithField("instance_id", instanceID).Debugf("connecting to SSM tunnel on port %d", port)

			return a.env.RunSSMTunnel(cmd.Context(), awsCfg, instanceID, port)
		},
	}
	ssmCmd.Flags().String("instance-id", "", "target instance ID")
	ssmCmd.Flags().Int("port", 22, "remote port")
	_ = ssmCmd.MarkFlagRequired("instance-id")

	eiceCmd := &cobra.Command{
		Use:   "eice",
		Short: "Tunnel through an EC2 Instance Connect Endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, nil); err != nil {
				return err
			}

			host, _ := cmd.Flags().GetString("host")
			port, _ := cmd.Flags().GetInt("port")
			eiceID, _ := cmd.Flags().GetString("eice-id")

			awsCfg, err := a.awsConfig(cmd.Context())
			if err != nil {
				return err
			}

			uri, err := a.env.NewEC2Client(awsCfg, a.logger).CreateEICETunnelURI(cmd.Context(), host, port, eiceID)
			if err != nil {
				return err
			}

			a.logger.Debugf("connecting to EICE tunnel: %s", host)

			return a.env.RunTunnel(cmd.Context(), uri, a.logger)
		},
	}
	eiceCmd.Flags().String("host", "", "private IP address of the instance")
	eiceCmd.Flags().Int("port", 22, "remote port")
	eiceCmd.Flags().String("eice-id", "", "EC2 Instance Connect Endpoint ID")
	_ = eiceCmd.MarkFlagRequired("host")
	_ = eiceCmd.MarkFlagRequired("eice-id")

	tunnelCmd.AddCommand(ssmCmd, eiceCmd)

	return tunnelCmd
}
