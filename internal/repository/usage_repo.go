package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"gorm.io/gorm"
)

type UsageRepository interface {
	Create(ctx context.Context, r *domain.UsageRecord) error
	SumSince(ctx context.Context, tenantID string, key domain.RecordKind, since time.Time) (int64, error)
}

type GormUsageRepo struct {
	db *gorm.DB
}

func NewGormUsageRepo(db *gorm.DB) *GormUsageRepo {
	return &GormUsageRepo{db: db}
}

func (r *GormUsageRepo) Create(ctx context.Context, rec *domain.UsageRecord) error {
	model := usageRecordModelFromDomain(rec)
	if model == nil {
		return errors.New("usage record is required")
	}
	if model.ID == "" {
		model.ID = uuid.NewString()
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*rec = *usageRecordModelToDomain(model)
	return nil
}

func (r *GormUsageRepo) SumSince(ctx context.Context, tenantID string, key domain.RecordKind, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&UsageRecordModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("tenant_id = ? AND key = ? AND created_at >= ?", tenantID, key, since).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
