package repository

import (
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
)

// AdminSettingsModel is the persistence model for the admin_settings table.
type AdminSettingsModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TenantID  string `gorm:"type:uuid;not null;uniqueIndex:idx_admin_settings_tenant_key"`
	Key       string `gorm:"type:varchar(255);not null;uniqueIndex:idx_admin_settings_tenant_key"`
	JSONValue string `gorm:"column:json_value;type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AdminSettingsModel) TableName() string {
	return "admin_settings"
}

// UsageRecordModel is the persistence model for usage_records.
type UsageRecordModel struct {
	ID         string            `gorm:"type:uuid;primaryKey"`
	TenantID   string            `gorm:"type:uuid;not null"`
	CustomerID *string           `gorm:"type:uuid"`
	Key        domain.RecordKind `gorm:"type:varchar(32);not null"`
	Amount     int64             `gorm:"not null"`
	CreatedAt  time.Time
}

func (UsageRecordModel) TableName() string {
	return "usage_records"
}

func adminSettingsModelFromDomain(s *domain.AdminSettings) *AdminSettingsModel {
	if s == nil {
		return nil
	}

	return &AdminSettingsModel{
		ID:        s.ID,
		TenantID:  s.TenantID,
		Key:       s.Key,
		JSONValue: string(s.JSONValue),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func adminSettingsModelToDomain(m *AdminSettingsModel) *domain.AdminSettings {
	if m == nil {
		return nil
	}

	return &domain.AdminSettings{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Key:       m.Key,
		JSONValue: []byte(m.JSONValue),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func usageRecordModelFromDomain(r *domain.UsageRecord) *UsageRecordModel {
	if r == nil {
		return nil
	}

	var customerID *string
	if r.CustomerID != "" {
		id := r.CustomerID
		customerID = &id
	}

	return &UsageRecordModel{
		ID:         r.ID,
		TenantID:   r.TenantID,
		CustomerID: customerID,
		Key:        r.Key,
		Amount:     r.Amount,
		CreatedAt:  r.CreatedAt,
	}
}

func usageRecordModelToDomain(m *UsageRecordModel) *domain.UsageRecord {
	if m == nil {
		return nil
	}

	record := &domain.UsageRecord{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Key:       m.Key,
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
	}
	if m.CustomerID != nil {
		record.CustomerID = *m.CustomerID
	}
	return record
}
