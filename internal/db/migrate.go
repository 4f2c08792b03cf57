package db

import (
	"fmt"

	"github.com/kyralabs/proxymint/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persisted models. The
// unique index on proxy_records.proxy_string is the store-level backstop
// for the global no-duplicates invariant.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: migrate: nil connection")
	}
	if err := conn.AutoMigrate(
		&models.APIKey{},
		&models.Batch{},
		&models.ProxyRecord{},
		&models.HistoryEvent{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
