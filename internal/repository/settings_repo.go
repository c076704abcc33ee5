package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	FindByKey(ctx context.Context, tenantID, key string) (*domain.AdminSettings, error)
	Save(ctx context.Context, s *domain.AdminSettings) error
}

type GormSettingsRepo struct {
	db *gorm.DB
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db}
}

func (r *GormSettingsRepo) FindByKey(ctx context.Context, tenantID, key string) (*domain.AdminSettings, error) {
	var model AdminSettingsModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND key = ?", tenantID, key).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return adminSettingsModelToDomain(&model), nil
}

// Save inserts the document or replaces the JSON value of the existing
// (tenant, key) row.
func (r *GormSettingsRepo) Save(ctx context.Context, s *domain.AdminSettings) error {
	model := adminSettingsModelFromDomain(s)
	if model == nil {
		return errors.New("settings are required")
	}
	if model.ID == "" {
		model.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"json_value", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	*s = *adminSettingsModelToDomain(model)
	return nil
}
