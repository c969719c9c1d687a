package app

import (
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/platform/logger"
	"github.com/stratalabs/strata-backend/internal/services"
)

type Services struct {
	User       services.UserService
	Dataset    services.DatasetService
	Folder     services.FolderService
	File       services.FileService
	Metadata   services.MetadataService
	Definition services.DefinitionService
	Extractor  services.ExtractorService
	SearchFeed services.SearchFeedService
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	contextResolver := services.NewContextResolver(log, reposet.MetadataDefinition)
	agentResolver := services.NewAgentResolver(log, reposet.Extractor)

	searchFeed := services.NewSearchFeedService(log, clients.SearchFeed,
		reposet.Dataset, reposet.File, reposet.Folder, reposet.MetadataEntry)

	metadata := services.NewMetadataService(db, log,
		reposet.MetadataEntry, reposet.Dataset, reposet.File, reposet.Folder,
		contextResolver, agentResolver, searchFeed)

	return Services{
		User: services.NewUserService(db, log, reposet.User),
		Dataset: services.NewDatasetService(db, log,
			reposet.Dataset, reposet.Folder, reposet.File, reposet.FileVersion,
			reposet.MetadataEntry, metadata, clients.ObjectStore, searchFeed),
		Folder: services.NewFolderService(db, log,
			reposet.Dataset, reposet.Folder, reposet.File, reposet.FileVersion,
			reposet.MetadataEntry, clients.ObjectStore, searchFeed),
		File: services.NewFileService(db, log,
			reposet.Dataset, reposet.Folder, reposet.File, reposet.FileVersion,
			metadata, clients.ObjectStore, searchFeed),
		Metadata:   metadata,
		Definition: services.NewDefinitionService(db, log, reposet.MetadataDefinition),
		Extractor:  services.NewExtractorService(db, log, reposet.Extractor),
		SearchFeed: searchFeed,
	}
}
