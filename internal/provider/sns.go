package provider

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const snsSenderIDAttribute = "AWS.SNS.SMS.SenderID"

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes messages directly to phone numbers through AWS SNS.
type SNSSender struct {
	client   snsPublisher
	senderID string
	closed   atomic.Bool
}

func NewSNSSender(ctx context.Context, cfg SNSConfig) (*SNSSender, error) {
	if err := (Configuration{Type: TypeAWSSNS, SNS: &cfg}).Validate(); err != nil {
		return nil, err
	}

	creds := credentials.NewStaticCredentialsProvider(
		strings.TrimSpace(cfg.AccessKeyID),
		strings.TrimSpace(cfg.SecretAccessKey),
		"",
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(strings.TrimSpace(cfg.Region)),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return newSNSSender(sns.NewFromConfig(awsCfg), cfg.SenderID), nil
}

func newSNSSender(client snsPublisher, senderID string) *SNSSender {
	return &SNSSender{
		client:   client,
		senderID: strings.TrimSpace(senderID),
	}
}

func (s *SNSSender) Send(ctx context.Context, to string, message string) (int, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("sns sender is not initialized")
	}
	if s.closed.Load() {
		return 0, &ProviderError{Message: "sns sender unavailable", Cause: ErrSenderClosed}
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if s.senderID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			snsSenderIDAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			},
		}
	}

	output, err := s.client.Publish(ctx, input)
	if err != nil {
		return 0, &ProviderError{Message: "sns publish failed", Cause: err}
	}
	if output == nil || aws.ToString(output.MessageId) == "" {
		return 0, &ProviderError{Message: "sns publish returned no message id"}
	}

	// SNS accepts one publish per number and does not report segments.
	return 1, nil
}

func (s *SNSSender) Close() error {
	if s != nil {
		s.closed.Store(true)
	}
	return nil
}
