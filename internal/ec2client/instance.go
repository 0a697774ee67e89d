package ec2client

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// DstType represents the type of destination identifier.
// Use a pointer to DstType where nil means auto-detect.
type DstType int

const (
	DstTypeID DstType = iota
	DstTypePrivateIP
	DstTypePublicIP
	DstTypeIPv6
	DstTypePrivateDNSName
	DstTypeNameTag
)

// UnmarshalText implements encoding.TextUnmarshaler for CLI flag parsing.
// Note: Empty string is not valid - use *DstType where nil means auto.
func (d *DstType) UnmarshalText(text []byte) error {
	types := map[string]DstType{
		"id":          DstTypeID,
		"private_ip":  DstTypePrivateIP,
		"public_ip":   DstTypePublicIP,
		"ipv6":        DstTypeIPv6,
		"private_dns": DstTypePrivateDNSName,
		"name_tag":    DstTypeNameTag,
	}
	t, ok := types[string(text)]
	if !ok {
		return fmt.Errorf("unknown destination type: %s", text)
	}
	*d = t
	return nil
}

// DefaultBastionPattern is matched against Name tags when no target is given.
const DefaultBastionPattern = "bastion"

// liveStates excludes terminated instances: a bastion is usually stopped, so
// lookups must not be restricted to running instances.
var liveStates = []string{
	string(types.InstanceStateNamePending),
	string(types.InstanceStateNameRunning),
	string(types.InstanceStateNameStopping),
	string(types.InstanceStateNameStopped),
}

// GetInstanceByID retrieves an instance by its ID.
func (c *Client) GetInstanceByID(ctx context.Context, instanceID string) (types.Instance, error) {
	c.logger.WithField("instance_id", instanceID).Debug("searching for instance by ID")

	input := &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	}

	instances, err := c.describeInstances(ctx, input)
	if err != nil {
		return types.Instance{}, wrapAPIError("describe", instanceID, err)
	}

	if len(instances) == 0 {
		return types.Instance{}, fmt.Errorf("%w: unable to find an instance with ID=%s in %s", ErrNotFound, instanceID, c.region)
	}

	return instances[0], nil
}

// GetInstanceByFilter retrieves a non-terminated instance matching the given filter.
func (c *Client) GetInstanceByFilter(ctx context.Context, filterName, filterValue string) (types.Instance, error) {
	c.logger.Debugf("searching for instance by %s=%s", filterName, filterValue)

	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String(filterName),
				Values: []string{filterValue},
			},
			{
				Name:   aws.String("instance-state-name"),
				Values: liveStates,
			},
		},
	}

	instances, err := c.describeInstances(ctx, input)
	if err != nil {
		return types.Instance{}, err
	}

	if len(instances) == 0 {
		return types.Instance{}, fmt.Errorf("unable to find an instance with %s=%s: %w in %s", filterName, filterValue, ErrNoMatches, c.region)
	}

	c.logger.Debugf("selected first matching instance %s", aws.ToString(instances[0].InstanceId))

	return instances[0], nil
}

// FindInstanceByName finds the non-terminated instance whose Name tag matches name.
// A case-insensitive exact match wins; otherwise the name must be a substring of
// exactly one Name tag.
func (c *Client) FindInstanceByName(ctx context.Context, name string) (types.Instance, error) {
	c.logger.Debugf("searching for instance by name %q", name)

	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String("tag-key"),
				Values: []string{"Name"},
			},
			{
				Name:   aws.String("instance-state-name"),
				Values: liveStates,
			},
		},
	}

	instances, err := c.describeInstances(ctx, input)
	if err != nil {
		return types.Instance{}, err
	}

	return matchInstanceByName(instances, name, c.region)
}

func matchInstanceByName(instances []types.Instance, name, region string) (types.Instance, error) {
	needle := strings.ToLower(name)

	var partial []types.Instance

	for _, instance := range instances {
		value := strings.ToLower(aws.ToString(GetInstanceName(instance)))

		switch {
		case value == needle:
			return instance, nil
		case strings.Contains(value, needle):
			partial = append(partial, instance)
		}
	}

	switch len(partial) {
	case 0:
		return types.Instance{}, fmt.Errorf("unable to find an instance named %q: %w in %s", name, ErrNoMatches, region)
	case 1:
		return partial[0], nil
	}

	names := make([]string, 0, len(partial))
	for _, instance := range partial {
		names = append(names, fmt.Sprintf("%s (%s)", aws.ToString(GetInstanceName(instance)), aws.ToString(instance.InstanceId)))
	}
	slices.Sort(names)

	return types.Instance{}, fmt.Errorf("%w: %q matches %s", ErrAmbiguous, name, strings.Join(names, ", "))
}

// ListInstances returns all instances in the region.
func (c *Client) ListInstances(ctx context.Context) ([]types.Instance, error) {
	c.logger.Debug("listing all instances")

	return c.describeInstances(ctx, &ec2.DescribeInstancesInput{})
}

func (c *Client) describeInstances(ctx context.Context, input *ec2.DescribeInstancesInput) ([]types.Instance, error) {
	var instances []types.Instance

	paginator := ec2.NewDescribeInstancesPaginator(c.ec2Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		c.logger.Debugf("found %d reservations", len(page.Reservations))

		for _, reservation := range page.Reservations {
			instances = append(instances, reservation.Instances...)
		}
	}

	return instances, nil
}

// GuessDestinationType infers the destination type from the destination string.
func GuessDestinationType(dst string) DstType {
	switch {
	case strings.HasPrefix(dst, "ip-"),
		strings.HasSuffix(dst, ".ec2.internal"),
		strings.HasSuffix(dst, ".compute.internal"):
		return DstTypePrivateDNSName
	case strings.HasPrefix(dst, "i-"):
		return DstTypeID
	case net.ParseIP(dst) != nil:
		addr := net.ParseIP(dst)
		if addr.To4() != nil {
			if addr.IsPrivate() {
				return DstTypePrivateIP
			}

			return DstTypePublicIP
		}

		return DstTypeIPv6
	default:
		return DstTypeNameTag
	}
}

// GetInstance retrieves an instance using the specified destination type and value.
// If dstType is nil, auto-detects the type from the destination string.
// An empty destination selects the single instance named like a bastion.
func (c *Client) GetInstance(ctx context.Context, destination string, dstType *DstType) (types.Instance, error) {
	if destination == "" {
		return c.FindInstanceByName(ctx, DefaultBastionPattern)
	}

	// nil means auto-detect
	if dstType == nil {
		guessed := GuessDestinationType(destination)
		dstType = &guessed
		c.logger.Debugf("guessed destination type %d for %s", *dstType, destination)
	}

	var filterName string

	switch *dstType {
	case DstTypeID:
		return c.GetInstanceByID(ctx, destination)
	case DstTypePrivateIP:
		filterName = "private-ip-address"
	case DstTypePublicIP:
		filterName = "ip-address"
	case DstTypeIPv6:
		filterName = "ipv6-address"
	case DstTypePrivateDNSName:
		filterName = "private-dns-name"

		if !strings.Contains(destination, ".") {
			destination += ".*" // e.g. ip-10-0-0-1.*
		}
	case DstTypeNameTag:
		return c.FindInstanceByName(ctx, destination)
	default:
		panic(fmt.Sprintf("unexpected DstType: %d", *dstType))
	}

	return c.GetInstanceByFilter(ctx, filterName, destination)
}
