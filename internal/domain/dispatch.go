package domain

import (
	"fmt"
	"strings"
	"time"
)

// SystemTenantID identifies system-scoped records such as provider settings.
const SystemTenantID = "13814000-1dd2-11b2-8080-808080808080"

// RecordKind names a usage-accounting counter.
type RecordKind string

const RecordKindSMSExecCount RecordKind = "SMS_EXEC_COUNT"

func (k RecordKind) String() string { return string(k) }

// DispatchRequest is one tenant-scoped batch send.
type DispatchRequest struct {
	TenantID   string
	CustomerID string
	Addresses  []string
	Message    string
}

// Normalize trims identifiers and addresses while preserving order. Validate
// the request first: blank addresses are reported by position, not dropped.
func (r DispatchRequest) Normalize() DispatchRequest {
	addresses := make([]string, 0, len(r.Addresses))
	for _, address := range r.Addresses {
		addresses = append(addresses, strings.TrimSpace(address))
	}

	return DispatchRequest{
		TenantID:   strings.TrimSpace(r.TenantID),
		CustomerID: strings.TrimSpace(r.CustomerID),
		Addresses:  addresses,
		Message:    r.Message,
	}
}

func (r DispatchRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return fmt.Errorf("%w: tenantId is required", ErrValidation)
	}
	if len(r.Addresses) == 0 {
		return fmt.Errorf("%w: at least one recipient number is required", ErrValidation)
	}
	for i, address := range r.Addresses {
		if strings.TrimSpace(address) == "" {
			return fmt.Errorf("%w: recipient number at position %d is empty", ErrValidation, i)
		}
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	return nil
}

// UsageReport is a fire-and-forget accounting record for consumed units.
type UsageReport struct {
	TenantID   string
	CustomerID string
	Key        RecordKind
	Amount     int64
}

// UsageRecord is a persisted usage report.
type UsageRecord struct {
	ID         string
	TenantID   string
	CustomerID string
	Key        RecordKind
	Amount     int64
	CreatedAt  time.Time
}
