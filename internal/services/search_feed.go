package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/clients/redis"
	"github.com/stratalabs/strata-backend/internal/data/repos"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

// SearchFeedService materializes flat search documents for datasets and
// files (record fields plus all attached metadata content, grouped by agent
// identity) and publishes them to the external index sink. The sink is
// best-effort: a nil feed disables publishing entirely and callers treat
// publish errors as log-only.
type SearchFeedService interface {
	PublishDataset(dbc dbctx.Context, datasetID uuid.UUID) error
	PublishFile(dbc dbctx.Context, fileID uuid.UUID) error
	PublishResource(dbc dbctx.Context, resource types.ResourceRef) error
	PublishDelete(dbc dbctx.Context, docType string, id uuid.UUID) error
	ReindexDataset(dbc dbctx.Context, datasetID uuid.UUID) (int, error)
}

type searchFeedService struct {
	log         *logger.Logger
	feed        redis.SearchFeed
	datasetRepo repos.DatasetRepo
	fileRepo    repos.FileRepo
	folderRepo  repos.FolderRepo
	entryRepo   repos.MetadataEntryRepo
}

func NewSearchFeedService(
	baseLog *logger.Logger,
	feed redis.SearchFeed,
	datasetRepo repos.DatasetRepo,
	fileRepo repos.FileRepo,
	folderRepo repos.FolderRepo,
	entryRepo repos.MetadataEntryRepo,
) SearchFeedService {
	serviceLog := baseLog.With("service", "SearchFeedService")
	return &searchFeedService{
		log:         serviceLog,
		feed:        feed,
		datasetRepo: datasetRepo,
		fileRepo:    fileRepo,
		folderRepo:  folderRepo,
		entryRepo:   entryRepo,
	}
}

func (s *searchFeedService) enabled() bool { return s.feed != nil }

func (s *searchFeedService) PublishDataset(dbc dbctx.Context, datasetID uuid.UUID) error {
	const op = "SearchFeedService.PublishDataset"
	if !s.enabled() {
		return nil
	}

	ds, err := s.datasetRepo.GetByID(dbc, datasetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.CodeNotFound, op, "dataset %s not found", datasetID)
		}
		return apperr.MapStoreError(op, err)
	}
	meta, err := s.metadataByAgent(dbc, types.DatasetRef(datasetID))
	if err != nil {
		return err
	}

	doc := redis.Document{
		Op:      redis.OpIndex,
		DocType: redis.DocTypeDataset,
		ID:      ds.ID.String(),
		Doc:     datasetSearchDoc(ds, meta),
	}
	if err := s.feed.Publish(dbc.Ctx, doc); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("publish dataset doc: %w", err))
	}
	return nil
}

func (s *searchFeedService) PublishFile(dbc dbctx.Context, fileID uuid.UUID) error {
	const op = "SearchFeedService.PublishFile"
	if !s.enabled() {
		return nil
	}

	f, err := s.fileRepo.GetByID(dbc, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.CodeNotFound, op, "file %s not found", fileID)
		}
		return apperr.MapStoreError(op, err)
	}
	meta, err := s.metadataByAgent(dbc, types.FileRef(fileID))
	if err != nil {
		return err
	}

	doc := redis.Document{
		Op:      redis.OpIndex,
		DocType: redis.DocTypeFile,
		ID:      f.ID.String(),
		Doc:     fileSearchDoc(f, meta),
	}
	if err := s.feed.Publish(dbc.Ctx, doc); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("publish file doc: %w", err))
	}
	return nil
}

// PublishResource routes a metadata change to the owning searchable
// document. Folders are not indexed themselves; a folder change refreshes
// the owning dataset's document.
func (s *searchFeedService) PublishResource(dbc dbctx.Context, resource types.ResourceRef) error {
	if !s.enabled() {
		return nil
	}
	switch resource.Collection {
	case types.CollectionDatasets:
		return s.PublishDataset(dbc, resource.ID)
	case types.CollectionFiles:
		return s.PublishFile(dbc, resource.ID)
	case types.CollectionFolders:
		folder, err := s.folderRepo.GetByID(dbc, resource.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return apperr.MapStoreError("SearchFeedService.PublishResource", err)
		}
		return s.PublishDataset(dbc, folder.DatasetID)
	default:
		return nil
	}
}

func (s *searchFeedService) PublishDelete(dbc dbctx.Context, docType string, id uuid.UUID) error {
	const op = "SearchFeedService.PublishDelete"
	if !s.enabled() {
		return nil
	}
	doc := redis.Document{Op: redis.OpDelete, DocType: docType, ID: id.String()}
	if err := s.feed.Publish(dbc.Ctx, doc); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("publish delete: %w", err))
	}
	return nil
}

// ReindexDataset republishes a dataset's document plus one document per
// contained file. Returns the number of documents published.
func (s *searchFeedService) ReindexDataset(dbc dbctx.Context, datasetID uuid.UUID) (int, error) {
	const op = "SearchFeedService.ReindexDataset"
	if !s.enabled() {
		return 0, nil
	}

	if err := s.PublishDataset(dbc, datasetID); err != nil {
		return 0, err
	}
	published := 1

	files, err := s.fileRepo.ListByDataset(dbc, datasetID)
	if err != nil {
		return published, apperr.MapStoreError(op, err)
	}
	for _, f := range files {
		if err := s.PublishFile(dbc, f.ID); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}

// metadataByAgent flattens a resource's metadata entries into a map keyed by
// agent identity. Later entries for the same identity (possible via raw
// creates) merge over earlier ones in insertion order.
func (s *searchFeedService) metadataByAgent(dbc dbctx.Context, resource types.ResourceRef) (map[string]any, error) {
	const op = "SearchFeedService.metadataByAgent"

	entries, err := s.entryRepo.GetByResource(dbc, resource, nil)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}

	out := make(map[string]any, len(entries))
	for _, e := range entries {
		content, err := types.DecodeJSONMap(e.Content)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op,
				fmt.Errorf("decode content of entry %s: %w", e.ID, err))
		}
		key := e.AgentKey()
		if prev, ok := out[key].(map[string]any); ok {
			out[key] = types.MergeContent(prev, content)
			continue
		}
		out[key] = content
	}
	return out, nil
}

func datasetSearchDoc(ds *types.Dataset, meta map[string]any) map[string]any {
	return map[string]any{
		"id":          ds.ID.String(),
		"name":        ds.Name,
		"description": ds.Description,
		"author_id":   ds.AuthorID.String(),
		"status":      ds.Status,
		"downloads":   ds.Downloads,
		"created":     ds.CreatedAt,
		"modified":    ds.UpdatedAt,
		"metadata":    meta,
	}
}

func fileSearchDoc(f *types.File, meta map[string]any) map[string]any {
	doc := map[string]any{
		"id":           f.ID.String(),
		"name":         f.Name,
		"dataset_id":   f.DatasetID.String(),
		"content_type": f.ContentType,
		"bytes":        f.SizeBytes,
		"version_num":  f.VersionNum,
		"creator_id":   f.CreatorID.String(),
		"downloads":    f.Downloads,
		"created":      f.CreatedAt,
		"modified":     f.UpdatedAt,
		"metadata":     meta,
	}
	if f.FolderID != nil {
		doc["folder_id"] = f.FolderID.String()
	}
	return doc
}
