package domain

import "time"

// SMSSettingsKey is the well-known admin settings key holding the provider configuration.
const SMSSettingsKey = "sms"

// AdminSettings is an opaque JSON document stored under a tenant-scoped key.
type AdminSettings struct {
	ID        string
	TenantID  string
	Key       string
	JSONValue []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
