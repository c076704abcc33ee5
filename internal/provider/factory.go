package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var _ Factory = (*DefaultFactory)(nil)

// DefaultFactory builds senders for every supported provider type.
type DefaultFactory struct {
	logger *zap.Logger
}

func NewDefaultFactory(logger *zap.Logger) *DefaultFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateSender(cfg Configuration) (Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		sender Sender
		err    error
	)
	switch cfg.Type {
	case TypeWebhook:
		sender, err = NewWebhookSender(*cfg.Webhook)
	case TypeTwilio:
		sender, err = NewTwilioSender(*cfg.Twilio)
	case TypeAWSSNS:
		sender, err = NewSNSSender(context.Background(), *cfg.SNS)
	case TypeMock:
		sender, err = NewMockSender(*cfg.Mock)
	default:
		return nil, fmt.Errorf("factory: unsupported provider type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("factory: %s sender init: %w", cfg.Type, err)
	}

	f.logger.Info("sms sender initialised", zap.String("providerType", cfg.Type.String()))
	return sender, nil
}
