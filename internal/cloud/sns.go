package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient wraps AWS SNS for household alert notifications.
type SNSClient struct {
	svc      *sns.Client
	topicArn string
}

func NewSNSClient(ctx context.Context, region, topicArn string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &SNSClient{svc: sns.NewFromConfig(cfg), topicArn: topicArn}, nil
}

// Notify publishes a message to the alert topic.
func (c *SNSClient) Notify(ctx context.Context, subject, message string) error {
	input := &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	}
	if _, err := c.svc.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return nil
}

// NotifyThreshold formats and sends a threshold-crossing alert.
func (c *SNSClient) NotifyThreshold(ctx context.Context, metric string, value, limit float64) error {
	subject := fmt.Sprintf("Home Power Alert: %s threshold exceeded", metric)
	message := fmt.Sprintf(
		"Threshold Alert\n\n"+
			"Metric: %s\n"+
			"Current value: %.2f\n"+
			"Configured limit: %.2f\n"+
			"Time: %s\n",
		metric,
		value,
		limit,
		time.Now().Format(time.RFC3339),
	)
	return c.Notify(ctx, subject, message)
}
