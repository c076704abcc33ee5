package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/sms-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createUsageRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_usage_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.UsageRecordModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_usage_records_tenant_key_created ON usage_records (tenant_id, key, created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.UsageRecordModel{})
		},
	}
}
