package provider

import (
	"errors"
	"testing"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
)

func TestDefaultFactoryCreateSender(t *testing.T) {
	t.Parallel()

	f := NewDefaultFactory(nil)

	testCases := []struct {
		name string
		cfg  Configuration
		want any
	}{
		{name: "webhook", cfg: Configuration{Type: TypeWebhook, Webhook: &WebhookConfig{Endpoint: "http://localhost:9000/sms"}}, want: &WebhookSender{}},
		{name: "twilio", cfg: Configuration{Type: TypeTwilio, Twilio: &TwilioConfig{AccountSID: "AC1", AccountToken: "t", NumberFrom: "+1"}}, want: &TwilioSender{}},
		{name: "sns", cfg: Configuration{Type: TypeAWSSNS, SNS: &SNSConfig{AccessKeyID: "AK", SecretAccessKey: "SK", Region: "eu-west-1"}}, want: &SNSSender{}},
		{name: "mock", cfg: Configuration{Type: TypeMock, Mock: &MockConfig{}}, want: &MockSender{}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sender, err := f.CreateSender(tc.cfg)
			if err != nil {
				t.Fatalf("CreateSender() error = %v", err)
			}
			defer sender.Close()

			switch tc.want.(type) {
			case *WebhookSender:
				if _, ok := sender.(*WebhookSender); !ok {
					t.Fatalf("sender type = %T", sender)
				}
			case *TwilioSender:
				if _, ok := sender.(*TwilioSender); !ok {
					t.Fatalf("sender type = %T", sender)
				}
			case *SNSSender:
				if _, ok := sender.(*SNSSender); !ok {
					t.Fatalf("sender type = %T", sender)
				}
			case *MockSender:
				if _, ok := sender.(*MockSender); !ok {
					t.Fatalf("sender type = %T", sender)
				}
			}
		})
	}
}

func TestDefaultFactoryRejectsInvalidConfiguration(t *testing.T) {
	t.Parallel()

	_, err := NewDefaultFactory(nil).CreateSender(Configuration{Type: TypeWebhook})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
