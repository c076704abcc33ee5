package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
)

// AlarmTrigger carries the device reading that caused a rule-engine dispatch.
type AlarmTrigger struct {
	DeviceType string            `json:"deviceType"`
	Metadata   map[string]string `json:"metadata"`
}

// DispatchMessage is the broker payload for an asynchronous batch send.
type DispatchMessage struct {
	MessageID     string        `json:"messageId"`
	CorrelationID string        `json:"correlationId,omitempty"`
	TenantID      string        `json:"tenantId"`
	CustomerID    string        `json:"customerId,omitempty"`
	Numbers       []string      `json:"numbers"`
	Message       string        `json:"message"`
	Trigger       *AlarmTrigger `json:"trigger,omitempty"`
}

func (m DispatchMessage) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return fmt.Errorf("messageId is required")
	}
	req := m.request()
	if m.SystemScoped() {
		req.TenantID = domain.SystemTenantID
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if m.Trigger != nil && strings.TrimSpace(m.Trigger.DeviceType) == "" {
		return fmt.Errorf("trigger deviceType is required")
	}
	return nil
}

// SystemScoped reports whether the message was raised outside any tenant.
func (m DispatchMessage) SystemScoped() bool {
	return strings.TrimSpace(m.TenantID) == ""
}

// Request converts the payload into a normalized dispatch request.
func (m DispatchMessage) Request() domain.DispatchRequest {
	return m.request().Normalize()
}

func (m DispatchMessage) request() domain.DispatchRequest {
	return domain.DispatchRequest{
		TenantID:   m.TenantID,
		CustomerID: m.CustomerID,
		Addresses:  m.Numbers,
		Message:    m.Message,
	}
}
