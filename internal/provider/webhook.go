package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultHTTPTimeout = 10 * time.Second

type webhookRequest struct {
	To       string `json:"to"`
	Content  string `json:"content"`
	SenderID string `json:"senderId,omitempty"`
}

type webhookResponse struct {
	MessageID string `json:"messageId"`
	Segments  int    `json:"segments"`
}

// WebhookSender posts messages to a generic HTTP SMS gateway.
type WebhookSender struct {
	client   *resty.Client
	endpoint string
	authKey  string
	senderID string
	closed   atomic.Bool
}

func NewWebhookSender(cfg WebhookConfig) (*WebhookSender, error) {
	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return NewWebhookSenderWithClient(cfg, client)
}

func NewWebhookSenderWithClient(cfg WebhookConfig, client *resty.Client) (*WebhookSender, error) {
	if err := (Configuration{Type: TypeWebhook, Webhook: &cfg}).Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookSender{
		client:   client,
		endpoint: strings.TrimSpace(cfg.Endpoint),
		authKey:  strings.TrimSpace(cfg.AuthKey),
		senderID: strings.TrimSpace(cfg.SenderID),
	}, nil
}

func (s *WebhookSender) Send(ctx context.Context, to string, message string) (int, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("webhook sender is not initialized")
	}
	if s.closed.Load() {
		return 0, &ProviderError{Message: "webhook sender unavailable", Cause: ErrSenderClosed}
	}

	request := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookRequest{To: to, Content: message, SenderID: s.senderID})
	if s.authKey != "" {
		request.SetHeader("X-Auth-Key", s.authKey)
	}

	response, err := request.Post(s.endpoint)
	if err != nil {
		return 0, &ProviderError{
			Message: "provider request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return 0, &ProviderError{Message: "provider returned empty response"}
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return 0, &ProviderError{
			StatusCode: statusCode,
			Message:    providerErrorMessage(statusCode, body),
		}
	}

	var parsed webhookResponse
	if body != "" {
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			// Plain-text acknowledgements are accepted; the count falls back to the estimate.
			parsed = webhookResponse{}
		}
	}
	if parsed.Segments > 0 {
		return parsed.Segments, nil
	}

	return Segments(message), nil
}

func (s *WebhookSender) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.client.GetClient().CloseIdleConnections()
	return nil
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
