package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/sms-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createAdminSettingsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_admin_settings",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.AdminSettingsModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AdminSettingsModel{})
		},
	}
}
