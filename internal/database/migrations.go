package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/andcoolsystems/eldraxis/internal/models"
)

// AutoMigrate creates or updates the schema for the skin cache tables.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(
		&models.SkinRecord{},
		&models.CacheEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
