package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/aws"
)

// SNSNotifier publishes order events to an SNS topic (SMS / email subscribers).
type SNSNotifier struct {
	client   aws.SNSAPI
	topicARN string
	log      *zap.Logger
}

func NewSNSNotifier(client aws.SNSAPI, topicARN string, log *zap.Logger) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN, log: log}
}

// Publish sends the event. An unconfigured topic is a no-op.
func (n *SNSNotifier) Publish(ctx context.Context, e Event) error {
	if n.topicARN == "" {
		n.log.Warn("SNS topic not configured, skipping notification",
			zap.String("order_id", e.OrderID),
			zap.String("kind", string(e.Kind)),
		)
		return nil
	}
	msg := Format(e)
	subject := Subject(e)
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &n.topicARN,
		Message:  &msg,
		Subject:  &subject,
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	n.log.Info("notification sent",
		zap.String("order_id", e.OrderID),
		zap.String("kind", string(e.Kind)),
	)
	return nil
}
