package metrics

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
)

// Metric names.
const (
	IdempotencyReplay   = "IdempotencyReplay"
	IdempotencyConflict = "IdempotencyConflict"
	WebhookRejected     = "WebhookRejected"
	CapacityRejected    = "CapacityRejected"
	LikeLimitRejected   = "LikeLimitRejected"
)

// Emitter records counters. Implementations must not fail the caller.
type Emitter interface {
	Count(ctx context.Context, name string, dims map[string]string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Count(context.Context, string, map[string]string) {}

// CloudWatch publishes each counter with PutMetricData.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	timeout   time.Duration
	nowFunc   func() time.Time
}

// NewCloudWatch returns an emitter for namespace.
func NewCloudWatch(client aws.CloudWatchAPI, namespace string) *CloudWatch {
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		timeout:   2 * time.Second,
		nowFunc:   time.Now,
	}
}

// New picks CloudWatch when a namespace is configured, Nop otherwise.
func New(client aws.CloudWatchAPI, namespace string) Emitter {
	if namespace == "" || client == nil {
		return Nop{}
	}
	return NewCloudWatch(client, namespace)
}

func (c *CloudWatch) Count(ctx context.Context, name string, dims map[string]string) {
	// detached from the request so a cancelled client does not drop the datapoint
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	now := c.nowFunc()
	one := 1.0
	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Timestamp:  &now,
		Unit:       cwtypes.StandardUnitCount,
		Value:      &one,
		Dimensions: dimensions(dims),
	}

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &c.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		log.Printf("[metrics] put %s failed: %v", name, err)
	}
}

func dimensions(dims map[string]string) []cwtypes.Dimension {
	if len(dims) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]cwtypes.Dimension, 0, len(keys))
	for _, k := range keys {
		out = append(out, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(dims[k])})
	}
	return out
}
