package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients bundles all service clients for convenience.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
	S3         S3API
	Presigner  PresignAPI
}

// NewAWSClients loads AWS config and returns concrete service clients that implement our interfaces.
// A non-empty endpoint override points every client at a local stack and switches S3 to path-style addressing.
func NewAWSClients(ctx context.Context, region, endpointOverride string) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx, region, endpointOverride)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = endpointOverride != ""
	})

	return &AWSClients{
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		SQS:        sqs.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
		S3:         s3Client,
		Presigner:  s3.NewPresignClient(s3Client),
	}, nil
}
