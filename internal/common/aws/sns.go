// internal/common/aws/sns.go
package aws

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(ctx context.Context, region string) (*SNSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg)}, nil
}

// PublishMessage publishes a raw message body to a topic.
func (s *SNSClient) PublishMessage(ctx context.Context, topicARN, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &topicARN,
		Message:  &message,
	})
	return err
}
