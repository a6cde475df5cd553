package notify

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/aws"
)

// DefaultNamespace is the CloudWatch namespace of the batch counters.
const DefaultNamespace = "ECommerce/OrderProcessing"

const (
	MetricSuccessfulOrders = "SuccessfulOrders"
	MetricFailedOrders     = "FailedOrders"
)

// CloudWatchReporter emits the per-batch success / failure counters.
type CloudWatchReporter struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
	log       *zap.Logger
}

func NewCloudWatchReporter(client aws.CloudWatchAPI, namespace string, log *zap.Logger) *CloudWatchReporter {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchReporter{client: client, namespace: namespace, nowFunc: time.Now, log: log}
}

func (r *CloudWatchReporter) Put(ctx context.Context, succeeded, failed int) error {
	now := r.nowFunc().UTC()
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &r.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String(MetricSuccessfulOrders),
				Value:      sdkaws.Float64(float64(succeeded)),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &now,
			},
			{
				MetricName: sdkaws.String(MetricFailedOrders),
				Value:      sdkaws.Float64(float64(failed)),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &now,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	r.log.Info("metrics sent",
		zap.Int("successful_orders", succeeded),
		zap.Int("failed_orders", failed),
	)
	return nil
}
