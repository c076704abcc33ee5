package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

type twilioMessage struct {
	SID         string `json:"sid"`
	Status      string `json:"status"`
	NumSegments string `json:"num_segments"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// TwilioSender sends messages through the Twilio Messages REST resource.
type TwilioSender struct {
	client     *resty.Client
	accountSID string
	token      string
	numberFrom string
	baseURL    string
	closed     atomic.Bool
}

func NewTwilioSender(cfg TwilioConfig) (*TwilioSender, error) {
	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return NewTwilioSenderWithClient(cfg, client)
}

func NewTwilioSenderWithClient(cfg TwilioConfig, client *resty.Client) (*TwilioSender, error) {
	if err := (Configuration{Type: TypeTwilio, Twilio: &cfg}).Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}

	return &TwilioSender{
		client:     client,
		accountSID: strings.TrimSpace(cfg.AccountSID),
		token:      strings.TrimSpace(cfg.AccountToken),
		numberFrom: strings.TrimSpace(cfg.NumberFrom),
		baseURL:    baseURL,
	}, nil
}

func (s *TwilioSender) Send(ctx context.Context, to string, message string) (int, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("twilio sender is not initialized")
	}
	if s.closed.Load() {
		return 0, &ProviderError{Message: "twilio sender unavailable", Cause: ErrSenderClosed}
	}

	var result twilioMessage
	var apiErr twilioError

	response, err := s.client.R().
		SetContext(ctx).
		SetBasicAuth(s.accountSID, s.token).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.numberFrom,
			"Body": message,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID))
	if err != nil {
		return 0, &ProviderError{Message: "twilio request failed", Cause: err}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(apiErr.Message)
		if detail == "" {
			detail = providerErrorMessage(statusCode, strings.TrimSpace(response.String()))
		} else if apiErr.Code > 0 {
			detail = fmt.Sprintf("%s (code %d)", detail, apiErr.Code)
		}
		return 0, &ProviderError{StatusCode: statusCode, Message: detail}
	}

	if segments, err := strconv.Atoi(strings.TrimSpace(result.NumSegments)); err == nil && segments > 0 {
		return segments, nil
	}
	return Segments(message), nil
}

func (s *TwilioSender) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.client.GetClient().CloseIdleConnections()
	return nil
}
