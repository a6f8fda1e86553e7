package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// LoadAWSConfig resolves the shared AWS config for the given region.
func LoadAWSConfig(ctx context.Context, region, endpointOverride string) (sdkaws.Config, error) {
	if region == "" {
		region = DefaultRegion // default fallback
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpointOverride != "" {
		// localstack / dynamodb-local
		opts = append(opts, config.WithBaseEndpoint(endpointOverride))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}
