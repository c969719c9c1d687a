package repos

import (
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos/catalog"
	"github.com/stratalabs/strata-backend/internal/data/repos/metadata"
	"github.com/stratalabs/strata-backend/internal/data/repos/users"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type UserRepo = users.UserRepo

type DatasetRepo = catalog.DatasetRepo
type FolderRepo = catalog.FolderRepo
type FileRepo = catalog.FileRepo
type FileVersionRepo = catalog.FileVersionRepo

type MetadataEntryRepo = metadata.MetadataEntryRepo
type MetadataDefinitionRepo = metadata.MetadataDefinitionRepo
type ExtractorRepo = metadata.ExtractorRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return users.NewUserRepo(db, baseLog)
}

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	return catalog.NewDatasetRepo(db, baseLog)
}
func NewFolderRepo(db *gorm.DB, baseLog *logger.Logger) FolderRepo {
	return catalog.NewFolderRepo(db, baseLog)
}
func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	return catalog.NewFileRepo(db, baseLog)
}
func NewFileVersionRepo(db *gorm.DB, baseLog *logger.Logger) FileVersionRepo {
	return catalog.NewFileVersionRepo(db, baseLog)
}

func NewMetadataEntryRepo(db *gorm.DB, baseLog *logger.Logger) MetadataEntryRepo {
	return metadata.NewMetadataEntryRepo(db, baseLog)
}
func NewMetadataDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) MetadataDefinitionRepo {
	return metadata.NewMetadataDefinitionRepo(db, baseLog)
}
func NewExtractorRepo(db *gorm.DB, baseLog *logger.Logger) ExtractorRepo {
	return metadata.NewExtractorRepo(db, baseLog)
}
