package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	startedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	exampleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

func newAboutCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Describe what ec2bastion does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), aboutText())
			return err
		},
	}
}

func aboutText() string {
	return fmt.Sprintf(`ec2bastion opens sessions to a bastion host in your private network. The
bastion is kept stopped while nobody uses it, which saves money and
shrinks the attack surface.

The bastion is %s when you connect and can be %s when you disconnect.

%s

%s
%s
%s
`,
		startedStyle.Render("started"),
		stoppedStyle.Render("stopped"),
		noteStyle.Render("AWS credentials must be configured first, e.g. with `aws configure`."),
		headingStyle.Render("Usage:"),
		exampleStyle.Render("    $ ec2bastion connect ssh --key-path ~/.ssh/bastion.pem --user ec2-user"),
		exampleStyle.Render("    $ ec2bastion connect ssm -- uptime"),
	)
}
