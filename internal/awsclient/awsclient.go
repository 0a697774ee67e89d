// Package awsclient provides AWS SDK configuration loading.
package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/sirupsen/logrus"
)

// LoadConfig loads AWS SDK configuration with optional region and profile.
// The returned config is built once per invocation and shared by every client.
func LoadConfig(ctx context.Context, region, profile string, logger logrus.FieldLogger) (aws.Config, error) {
	optFns := make([]func(*config.LoadOptions) error, 0)

	if region != "" {
		if logger != nil {
			logger.Debugf("using region %s", region)
		}
		optFns = append(optFns, config.WithRegion(region))
	}

	if profile != "" {
		if logger != nil {
			logger.Debugf("using profile %s", profile)
		}
		optFns = append(optFns, config.WithSharedConfigProfile(profile))
	}

	return config.LoadDefaultConfig(ctx, optFns...)
}
