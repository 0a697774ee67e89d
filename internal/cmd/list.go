package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/ivoronin/ec2bastion/internal/ec2client"
	"github.com/spf13/cobra"
)

var (
	allowedListColumns = []string{
		"ID", "NAME", "STATE", "TYPE", "AZ", "PRIVATE-IP",
		"PUBLIC-IP", "IPV6", "PRIVATE-DNS", "PUBLIC-DNS",
	}
	defaultListColumns = "ID,NAME,STATE,PRIVATE-IP,PUBLIC-IP"
)

const listPadding = 2

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [name]",
		Short: "List instances, optionally those whose Name tag contains name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, nil); err != nil {
				return err
			}

			requested, _ := cmd.Flags().GetString("columns")
			columns, err := parseListColumns(requested)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUsage, err)
			}

			awsCfg, err := a.awsConfig(cmd.Context())
			if err != nil {
				return err
			}

			instances, err := a.env.NewEC2Client(awsCfg, a.logger).ListInstances(cmd.Context())
			if err != nil {
				return fmt.Errorf("unable to list instances: %w", err)
			}

			if len(args) == 1 {
				instances = filterByName(instances, args[0])
			}

			return writeInstanceList(cmd.OutOrStdout(), instances, columns)
		},
	}

	cmd.Flags().String("columns", defaultListColumns, "comma-separated columns: "+strings.Join(allowedListColumns, ","))

	return cmd
}

func parseListColumns(requestedColumns string) ([]string, error) {
	if requestedColumns == "" {
		requestedColumns = defaultListColumns
	}

	requestedColumns = strings.ToUpper(requestedColumns)
	requestedColumns = strings.ReplaceAll(requestedColumns, " ", "")

	columns := strings.Split(requestedColumns, ",")

	for _, column := range columns {
		if !slices.Contains(allowedListColumns, column) {
			return nil, fmt.Errorf("invalid column %s", column)
		}
	}

	return columns, nil
}

func filterByName(instances []types.Instance, name string) []types.Instance {
	needle := strings.ToLower(name)

	var filtered []types.Instance
	for _, instance := range instances {
		if strings.Contains(strings.ToLower(aws.ToString(ec2client.GetInstanceName(instance))), needle) {
			filtered = append(filtered, instance)
		}
	}

	return filtered
}

func writeInstanceList(w io.Writer, instances []types.Instance, columns []string) error {
	writer := tabwriter.NewWriter(w, 0, 1, listPadding, ' ', 0)
	fmt.Fprintln(writer, strings.Join(columns, "\t"))

	for _, instance := range instances {
		var state, az *string
		if instance.State != nil {
			state = aws.String(string(instance.State.Name))
		}
		if instance.Placement != nil {
			az = instance.Placement.AvailabilityZone
		}

		values := map[string]*string{
			"ID":          instance.InstanceId,
			"NAME":        ec2client.GetInstanceName(instance),
			"STATE":       state,
			"TYPE":        aws.String(string(instance.InstanceType)),
			"AZ":          az,
			"PRIVATE-IP":  instance.PrivateIpAddress,
			"PUBLIC-IP":   instance.PublicIpAddress,
			"IPV6":        instance.Ipv6Address,
			"PRIVATE-DNS": instance.PrivateDnsName,
			"PUBLIC-DNS":  instance.PublicDnsName,
		}

		var row []string

		for _, column := range columns {
			value := "-"
			if values[column] != nil && *(values[column]) != "" {
				value = *values[column]
			}

			row = append(row, value)
		}

		fmt.Fprintln(writer, strings.Join(row, "\t"))
	}

	return writer.Flush()
}
