package services

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/gcs"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

// blobDeleteConcurrency bounds parallel object-store deletions during
// cascade deletes.
const blobDeleteConcurrency = 8

type DatasetInput struct {
	Name        string
	Description string
	Status      string
	AuthorID    uuid.UUID
}

// DatasetPatch is a partial info update; nil fields are skipped, mirroring
// the metadata patch null semantics.
type DatasetPatch struct {
	Name        *string
	Description *string
	Status      *string
}

type DatasetService interface {
	Create(dbc dbctx.Context, in DatasetInput) (*types.Dataset, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Dataset, error)
	List(dbc dbctx.Context, authorID *uuid.UUID, skip, limit int) ([]*types.Dataset, error)
	Update(dbc dbctx.Context, id uuid.UUID, in DatasetInput) (*types.Dataset, error)
	PatchInfo(dbc dbctx.Context, id uuid.UUID, patch DatasetPatch) (*types.Dataset, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type datasetService struct {
	db              *gorm.DB
	log             *logger.Logger
	datasetRepo     repos.DatasetRepo
	folderRepo      repos.FolderRepo
	fileRepo        repos.FileRepo
	fileVersionRepo repos.FileVersionRepo
	entryRepo       repos.MetadataEntryRepo
	metadataService MetadataService
	store           gcs.ObjectStore
	searchFeed      SearchFeedService
}

func NewDatasetService(
	db *gorm.DB,
	baseLog *logger.Logger,
	datasetRepo repos.DatasetRepo,
	folderRepo repos.FolderRepo,
	fileRepo repos.FileRepo,
	fileVersionRepo repos.FileVersionRepo,
	entryRepo repos.MetadataEntryRepo,
	metadataService MetadataService,
	store gcs.ObjectStore,
	searchFeed SearchFeedService,
) DatasetService {
	serviceLog := baseLog.With("service", "DatasetService")
	return &datasetService{
		db:              db,
		log:             serviceLog,
		datasetRepo:     datasetRepo,
		folderRepo:      folderRepo,
		fileRepo:        fileRepo,
		fileVersionRepo: fileVersionRepo,
		entryRepo:       entryRepo,
		metadataService: metadataService,
		store:           store,
		searchFeed:      searchFeed,
	}
}

func (ds *datasetService) Create(dbc dbctx.Context, in DatasetInput) (*types.Dataset, error) {
	const op = "DatasetService.Create"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.CodeValidation, op, "dataset name is required", nil)
	}
	if in.AuthorID == uuid.Nil {
		return nil, apperr.New(apperr.CodeValidation, op, "author is required", nil)
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = types.DatasetStatusPrivate
	}

	now := time.Now()
	dataset := &types.Dataset{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		AuthorID:    in.AuthorID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := ds.datasetRepo.Create(dbc, []*types.Dataset{dataset}); err != nil {
		ds.log.Error("Create failed", "name", name, "error", err)
		return nil, apperr.MapStoreError(op, err)
	}

	ds.publishDataset(dbc, dataset.ID)
	return dataset, nil
}

func (ds *datasetService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Dataset, error) {
	const op = "DatasetService.Get"

	dataset, err := ds.datasetRepo.GetByID(dbc, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "dataset %s not found", id)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	return dataset, nil
}

func (ds *datasetService) List(dbc dbctx.Context, authorID *uuid.UUID, skip, limit int) ([]*types.Dataset, error) {
	const op = "DatasetService.List"

	datasets, err := ds.datasetRepo.List(dbc, authorID, skip, limit)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}
	return datasets, nil
}

func (ds *datasetService) Update(dbc dbctx.Context, id uuid.UUID, in DatasetInput) (*types.Dataset, error) {
	const op = "DatasetService.Update"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.CodeValidation, op, "dataset name is required", nil)
	}
	if _, err := ds.Get(dbc, id); err != nil {
		return nil, err
	}

	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = types.DatasetStatusPrivate
	}
	updates := map[string]any{
		"name":        name,
		"description": strings.TrimSpace(in.Description),
		"status":      status,
		"updated_at":  time.Now(),
	}
	if err := ds.datasetRepo.UpdateFields(dbc, id, updates); err != nil {
		ds.log.Error("Update failed", "dataset_id", id, "error", err)
		return nil, apperr.MapStoreError(op, err)
	}

	ds.publishDataset(dbc, id)
	return ds.Get(dbc, id)
}

func (ds *datasetService) PatchInfo(dbc dbctx.Context, id uuid.UUID, patch DatasetPatch) (*types.Dataset, error) {
	const op = "DatasetService.PatchInfo"

	if _, err := ds.Get(dbc, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.New(apperr.CodeValidation, op, "dataset name cannot be empty", nil)
		}
		updates["name"] = name
	}
	if patch.Description != nil {
		updates["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		updates["status"] = strings.TrimSpace(*patch.Status)
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := ds.datasetRepo.UpdateFields(dbc, id, updates); err != nil {
			ds.log.Error("PatchInfo failed", "dataset_id", id, "error", err)
			return nil, apperr.MapStoreError(op, err)
		}
		ds.publishDataset(dbc, id)
	}
	return ds.Get(dbc, id)
}

// Delete removes the dataset and everything under it: blobs, file and
// folder rows, file versions and all attached metadata. The dataset row
// goes first so no new uploads land while the cascade runs. The cascade is
// not transactional across Postgres and the object store: blob failures are
// collected and surfaced as a partial-delete error after the row cleanup
// completes, never rolled back and never swallowed.
func (ds *datasetService) Delete(dbc dbctx.Context, id uuid.UUID) error {
	const op = "DatasetService.Delete"

	if _, err := ds.Get(dbc, id); err != nil {
		return err
	}
	files, err := ds.fileRepo.ListByDataset(dbc, id)
	if err != nil {
		return apperr.MapStoreError(op, err)
	}
	folders, err := ds.folderRepo.ListByDataset(dbc, id)
	if err != nil {
		return apperr.MapStoreError(op, err)
	}

	if _, err := ds.datasetRepo.DeleteByID(dbc, id); err != nil {
		ds.log.Error("Delete failed", "dataset_id", id, "error", err)
		return apperr.MapStoreError(op, err)
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.StorageKey != "" {
			keys = append(keys, f.StorageKey)
		}
	}
	failedKeys := deleteBlobs(dbc, ds.store, keys)

	fileIDs := make([]uuid.UUID, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.ID)
	}
	folderIDs := make([]uuid.UUID, 0, len(folders))
	for _, f := range folders {
		folderIDs = append(folderIDs, f.ID)
	}

	if _, err := ds.fileVersionRepo.DeleteByFileIDs(dbc, fileIDs); err != nil {
		return apperr.MapStoreError(op, err)
	}
	if _, err := ds.fileRepo.DeleteByDataset(dbc, id); err != nil {
		return apperr.MapStoreError(op, err)
	}
	if _, err := ds.folderRepo.DeleteByDataset(dbc, id); err != nil {
		return apperr.MapStoreError(op, err)
	}

	if _, err := ds.metadataService.DeleteAllForResource(dbc, types.DatasetRef(id)); err != nil {
		return err
	}
	if _, err := ds.entryRepo.DeleteByResourceIDs(dbc, types.CollectionFiles, fileIDs); err != nil {
		return apperr.MapStoreError(op, err)
	}
	if _, err := ds.entryRepo.DeleteByResourceIDs(dbc, types.CollectionFolders, folderIDs); err != nil {
		return apperr.MapStoreError(op, err)
	}

	ds.publishDeletes(dbc, id, fileIDs)

	if len(failedKeys) > 0 {
		return apperr.Newf(apperr.CodePartialDelete, op,
			"dataset %s deleted but %d objects remain: %s", id, len(failedKeys), strings.Join(failedKeys, ", "))
	}
	return nil
}

func (ds *datasetService) publishDataset(dbc dbctx.Context, id uuid.UUID) {
	if ds.searchFeed == nil {
		return
	}
	if err := ds.searchFeed.PublishDataset(dbc, id); err != nil {
		ds.log.Warn("search feed publish failed", "dataset_id", id, "error", err)
	}
}

func (ds *datasetService) publishDeletes(dbc dbctx.Context, datasetID uuid.UUID, fileIDs []uuid.UUID) {
	if ds.searchFeed == nil {
		return
	}
	if err := ds.searchFeed.PublishDelete(dbc, "dataset", datasetID); err != nil {
		ds.log.Warn("search feed delete publish failed", "dataset_id", datasetID, "error", err)
	}
	for _, fid := range fileIDs {
		if err := ds.searchFeed.PublishDelete(dbc, "file", fid); err != nil {
			ds.log.Warn("search feed delete publish failed", "file_id", fid, "error", err)
		}
	}
}

// deleteBlobs removes object-store keys with bounded concurrency and
// returns the keys that could not be removed. A nil store means blob
// storage is disabled and nothing is attempted.
func deleteBlobs(dbc dbctx.Context, store gcs.ObjectStore, keys []string) []string {
	if store == nil || len(keys) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	g, ctx := errgroup.WithContext(dbc.Ctx)
	g.SetLimit(blobDeleteConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := store.Delete(ctx, key); err != nil {
				mu.Lock()
				failed = append(failed, key)
				mu.Unlock()
			}
			// Failures are collected, not returned: one bad object must
			// not cancel the remaining deletions.
			return nil
		})
	}
	_ = g.Wait()
	return failed
}
