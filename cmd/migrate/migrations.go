package main

import (
	"gorm.io/gorm"

	"github.com/oncall-agent/engine/internal/models"
)

// registerModels returns all models that need migration
func registerModels() []interface{} {
	return []interface{}{
		&models.Repository{},
		&models.Document{},
		&models.Investigation{},
	}
}

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB) error {
	// UUID defaults rely on pgcrypto, so the extension comes first
	if err := enableUUIDExtension(db); err != nil {
		return err
	}

	if err := db.AutoMigrate(registerModels()...); err != nil {
		return err
	}

	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addInvestigationIndexes,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

// enableUUIDExtension ensures UUID generation is available
func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addInvestigationIndexes adds custom indexes for performance
func addInvestigationIndexes(db *gorm.DB) error {
	// Recent-investigations listing scans by creation time
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_investigations_created_at
		ON investigations(created_at DESC)
		WHERE deleted_at IS NULL
	`).Error
}
