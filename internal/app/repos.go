package app

import (
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type Repos struct {
	User               repos.UserRepo
	Dataset            repos.DatasetRepo
	Folder             repos.FolderRepo
	File               repos.FileRepo
	FileVersion        repos.FileVersionRepo
	MetadataEntry      repos.MetadataEntryRepo
	MetadataDefinition repos.MetadataDefinitionRepo
	Extractor          repos.ExtractorRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:               repos.NewUserRepo(db, log),
		Dataset:            repos.NewDatasetRepo(db, log),
		Folder:             repos.NewFolderRepo(db, log),
		File:               repos.NewFileRepo(db, log),
		FileVersion:        repos.NewFileVersionRepo(db, log),
		MetadataEntry:      repos.NewMetadataEntryRepo(db, log),
		MetadataDefinition: repos.NewMetadataDefinitionRepo(db, log),
		Extractor:          repos.NewExtractorRepo(db, log),
	}
}
