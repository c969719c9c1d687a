package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity
		&types.User{},

		// Resource catalog
		&types.Dataset{},
		&types.Folder{},
		&types.File{},
		&types.FileVersion{},

		// Metadata registries + entries
		&types.MetadataDefinition{},
		&types.Extractor{},
		&types.MetadataEntry{},
	)
}

// EnsureMetadataIndexes adds the Postgres-only indexes AutoMigrate cannot
// express: jsonb containment queries over entry content and the composite
// resource lookup every metadata operation starts from.
func EnsureMetadataIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_metadata_entry_resource
		ON metadata_entry (resource_collection, resource_id, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_metadata_entry_resource: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_metadata_entry_content_gin
		ON metadata_entry
		USING GIN (content jsonb_path_ops);
	`).Error; err != nil {
		return fmt.Errorf("create idx_metadata_entry_content_gin: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if s.driver == "postgres" {
		if err := EnsureMetadataIndexes(s.db); err != nil {
			s.log.Error("Metadata index migration failed", "error", err)
			return err
		}
	}
	return nil
}
