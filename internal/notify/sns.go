// internal/notify/sns.go
package notify

import (
	"context"
	"encoding/json"

	"devmatch-workers/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes events to an SNS topic with the event type as a
// message attribute, so subscribers can filter on it.
type SNSNotifier struct {
	client   snsPublisher
	topicARN string
}

// NewSNSNotifier loads the default AWS credential chain for region.
func NewSNSNotifier(ctx context.Context, region, topicARN string) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return &SNSNotifier{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

func (n *SNSNotifier) AnalysisFinished(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(payload)),
		Subject:  aws.String("Repository analysis " + event.Status),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
			"status":    {DataType: aws.String("String"), StringValue: aws.String(event.Status)},
		},
	})
	record("sns", err)
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}
	return nil
}
