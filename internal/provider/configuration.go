package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
)

// Type selects the provider implementation for a configuration document.
type Type string

const (
	TypeWebhook Type = "WEBHOOK"
	TypeTwilio  Type = "TWILIO"
	TypeAWSSNS  Type = "AWS_SNS"
	TypeMock    Type = "MOCK"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case TypeWebhook, TypeTwilio, TypeAWSSNS, TypeMock:
		return true
	}
	return false
}

type WebhookConfig struct {
	Endpoint string `json:"endpoint"`
	AuthKey  string `json:"authKey,omitempty"`
	SenderID string `json:"senderId,omitempty"`
}

type TwilioConfig struct {
	AccountSID   string `json:"accountSid"`
	AccountToken string `json:"accountToken"`
	NumberFrom   string `json:"numberFrom"`
	BaseURL      string `json:"baseUrl,omitempty"`
}

type SNSConfig struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Region          string `json:"region"`
	SenderID        string `json:"senderId,omitempty"`
}

type MockConfig struct {
	Scenario      string `json:"scenario,omitempty"`
	LatencyMillis int    `json:"latencyMs,omitempty"`
}

// Configuration is a parsed provider configuration document. Exactly one of
// the provider-specific sections is set, matching Type. It is never mutated
// after parsing; a new document replaces it wholesale.
type Configuration struct {
	Type    Type
	Webhook *WebhookConfig
	Twilio  *TwilioConfig
	SNS     *SNSConfig
	Mock    *MockConfig
}

type configurationEnvelope struct {
	Type string `json:"type"`
}

// ParseConfiguration decodes a flat JSON document with a "type" discriminator.
func ParseConfiguration(raw []byte) (Configuration, error) {
	var envelope configurationEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Configuration{}, fmt.Errorf("%w: invalid provider configuration: %v", domain.ErrValidation, err)
	}

	cfg := Configuration{Type: Type(strings.ToUpper(strings.TrimSpace(envelope.Type)))}

	var target any
	switch cfg.Type {
	case TypeWebhook:
		cfg.Webhook = &WebhookConfig{}
		target = cfg.Webhook
	case TypeTwilio:
		cfg.Twilio = &TwilioConfig{}
		target = cfg.Twilio
	case TypeAWSSNS:
		cfg.SNS = &SNSConfig{}
		target = cfg.SNS
	case TypeMock:
		cfg.Mock = &MockConfig{}
		target = cfg.Mock
	default:
		return Configuration{}, fmt.Errorf("%w: unsupported provider type %q", domain.ErrValidation, envelope.Type)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return Configuration{}, fmt.Errorf("%w: invalid %s configuration: %v", domain.ErrValidation, cfg.Type, err)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}

	return cfg, nil
}

func (c Configuration) Validate() error {
	switch c.Type {
	case TypeWebhook:
		if c.Webhook == nil {
			return fmt.Errorf("%w: webhook configuration is required", domain.ErrValidation)
		}
		endpoint := strings.TrimSpace(c.Webhook.Endpoint)
		if endpoint == "" {
			return fmt.Errorf("%w: webhook endpoint is required", domain.ErrValidation)
		}
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return fmt.Errorf("%w: invalid webhook endpoint: %v", domain.ErrValidation, err)
		}
	case TypeTwilio:
		if c.Twilio == nil {
			return fmt.Errorf("%w: twilio configuration is required", domain.ErrValidation)
		}
		if strings.TrimSpace(c.Twilio.AccountSID) == "" {
			return fmt.Errorf("%w: twilio accountSid is required", domain.ErrValidation)
		}
		if strings.TrimSpace(c.Twilio.AccountToken) == "" {
			return fmt.Errorf("%w: twilio accountToken is required", domain.ErrValidation)
		}
		if strings.TrimSpace(c.Twilio.NumberFrom) == "" {
			return fmt.Errorf("%w: twilio numberFrom is required", domain.ErrValidation)
		}
	case TypeAWSSNS:
		if c.SNS == nil {
			return fmt.Errorf("%w: aws sns configuration is required", domain.ErrValidation)
		}
		if strings.TrimSpace(c.SNS.AccessKeyID) == "" || strings.TrimSpace(c.SNS.SecretAccessKey) == "" {
			return fmt.Errorf("%w: aws sns credentials are required", domain.ErrValidation)
		}
		if strings.TrimSpace(c.SNS.Region) == "" {
			return fmt.Errorf("%w: aws sns region is required", domain.ErrValidation)
		}
	case TypeMock:
		if c.Mock == nil {
			return fmt.Errorf("%w: mock configuration is required", domain.ErrValidation)
		}
		if !MockScenario(strings.ToLower(strings.TrimSpace(c.Mock.Scenario))).isValid() {
			return fmt.Errorf("%w: unsupported mock scenario %q", domain.ErrValidation, c.Mock.Scenario)
		}
		if c.Mock.LatencyMillis < 0 {
			return fmt.Errorf("%w: mock latencyMs must not be negative", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unsupported provider type %q", domain.ErrValidation, c.Type)
	}
	return nil
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	parsed, err := ParseConfiguration(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	var section any
	switch c.Type {
	case TypeWebhook:
		section = c.Webhook
	case TypeTwilio:
		section = c.Twilio
	case TypeAWSSNS:
		section = c.SNS
	case TypeMock:
		section = c.Mock
	default:
		return nil, fmt.Errorf("unsupported provider type %q", c.Type)
	}

	fields := map[string]any{}
	if section != nil {
		raw, err := json.Marshal(section)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["type"] = c.Type.String()

	return json.Marshal(fields)
}
