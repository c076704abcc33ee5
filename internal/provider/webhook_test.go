package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSenderSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody webhookRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotAuth = r.Header.Get("X-Auth-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"messageId":"m-1","segments":2}`))
	}))
	defer server.Close()

	s, err := NewWebhookSender(WebhookConfig{Endpoint: server.URL, AuthKey: "secret", SenderID: "ACME"})
	if err != nil {
		t.Fatalf("NewWebhookSender() error = %v", err)
	}

	units, err := s.Send(context.Background(), "+905551112233", "hello")
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if units != 2 {
		t.Fatalf("units = %d, want 2", units)
	}
	if gotAuth != "secret" {
		t.Fatalf("X-Auth-Key = %q, want %q", gotAuth, "secret")
	}
	if gotBody.To != "+905551112233" || gotBody.Content != "hello" || gotBody.SenderID != "ACME" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestWebhookSenderFallsBackToSegmentEstimate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	s, err := NewWebhookSender(WebhookConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewWebhookSender() error = %v", err)
	}

	units, err := s.Send(context.Background(), "+1", "hi")
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if units != 1 {
		t.Fatalf("units = %d, want 1", units)
	}
}

func TestWebhookSenderSendErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid number"))
	}))
	defer server.Close()

	s, err := NewWebhookSender(WebhookConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewWebhookSender() error = %v", err)
	}

	_, err = s.Send(context.Background(), "+1", "hi")
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %T (%v)", err, err)
	}
	if providerErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want %d", providerErr.StatusCode, http.StatusBadRequest)
	}
	if got := MostSpecificCause(err); got != "provider error: status=400: provider returned status 400: invalid number" {
		t.Fatalf("MostSpecificCause() = %q", got)
	}
}

func TestWebhookSenderSendAfterClose(t *testing.T) {
	t.Parallel()

	s, err := NewWebhookSender(WebhookConfig{Endpoint: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewWebhookSender() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	_, err = s.Send(context.Background(), "+1", "hi")
	if !errors.Is(err, ErrSenderClosed) {
		t.Fatalf("expected ErrSenderClosed, got %v", err)
	}
}

func TestNewWebhookSenderRejectsInvalidEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewWebhookSender(WebhookConfig{Endpoint: "not a url"}); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	if _, err := NewWebhookSenderWithClient(WebhookConfig{Endpoint: "http://localhost"}, nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
