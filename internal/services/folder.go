package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/gcs"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type FolderInput struct {
	DatasetID      uuid.UUID
	ParentFolderID *uuid.UUID
	Name           string
	AuthorID       uuid.UUID
}

type FolderService interface {
	Add(dbc dbctx.Context, in FolderInput) (*types.Folder, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Folder, error)
	List(dbc dbctx.Context, datasetID uuid.UUID, parentFolderID *uuid.UUID) ([]*types.Folder, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type folderService struct {
	db              *gorm.DB
	log             *logger.Logger
	datasetRepo     repos.DatasetRepo
	folderRepo      repos.FolderRepo
	fileRepo        repos.FileRepo
	fileVersionRepo repos.FileVersionRepo
	entryRepo       repos.MetadataEntryRepo
	store           gcs.ObjectStore
	searchFeed      SearchFeedService
}

func NewFolderService(
	db *gorm.DB,
	baseLog *logger.Logger,
	datasetRepo repos.DatasetRepo,
	folderRepo repos.FolderRepo,
	fileRepo repos.FileRepo,
	fileVersionRepo repos.FileVersionRepo,
	entryRepo repos.MetadataEntryRepo,
	store gcs.ObjectStore,
	searchFeed SearchFeedService,
) FolderService {
	serviceLog := baseLog.With("service", "FolderService")
	return &folderService{
		db:              db,
		log:             serviceLog,
		datasetRepo:     datasetRepo,
		folderRepo:      folderRepo,
		fileRepo:        fileRepo,
		fileVersionRepo: fileVersionRepo,
		entryRepo:       entryRepo,
		store:           store,
		searchFeed:      searchFeed,
	}
}

func (fs *folderService) Add(dbc dbctx.Context, in FolderInput) (*types.Folder, error) {
	const op = "FolderService.Add"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.CodeValidation, op, "folder name is required", nil)
	}
	if _, err := fs.datasetRepo.GetByID(dbc, in.DatasetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "dataset %s not found", in.DatasetID)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	if in.ParentFolderID != nil {
		parent, err := fs.folderRepo.GetByID(dbc, *in.ParentFolderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Newf(apperr.CodeNotFound, op, "parent folder %s not found", *in.ParentFolderID)
			}
			return nil, apperr.MapStoreError(op, err)
		}
		if parent.DatasetID != in.DatasetID {
			return nil, apperr.New(apperr.CodeValidation, op,
				"parent folder belongs to a different dataset", nil)
		}
	}

	now := time.Now()
	folder := &types.Folder{
		ID:             uuid.New(),
		DatasetID:      in.DatasetID,
		ParentFolderID: in.ParentFolderID,
		Name:           name,
		AuthorID:       in.AuthorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := fs.folderRepo.Create(dbc, []*types.Folder{folder}); err != nil {
		fs.log.Error("Add failed", "dataset_id", in.DatasetID, "name", name, "error", err)
		return nil, apperr.MapStoreError(op, err)
	}
	return folder, nil
}

func (fs *folderService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Folder, error) {
	const op = "FolderService.Get"

	folder, err := fs.folderRepo.GetByID(dbc, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "folder %s not found", id)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	return folder, nil
}

// List returns the direct children of parentFolderID within the dataset;
// nil parent lists the dataset's root folders.
func (fs *folderService) List(dbc dbctx.Context, datasetID uuid.UUID, parentFolderID *uuid.UUID) ([]*types.Folder, error) {
	const op = "FolderService.List"

	if _, err := fs.datasetRepo.GetByID(dbc, datasetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "dataset %s not found", datasetID)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	folders, err := fs.folderRepo.ListChildren(dbc, datasetID, parentFolderID)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}
	return folders, nil
}

// Delete removes the folder and its whole subtree: descendant folders, the
// files they contain (rows, versions and blobs) and every metadata entry
// attached to any of them. Blob failures surface as a partial-delete error
// after row cleanup, same contract as the dataset cascade.
func (fs *folderService) Delete(dbc dbctx.Context, id uuid.UUID) error {
	const op = "FolderService.Delete"

	root, err := fs.Get(dbc, id)
	if err != nil {
		return err
	}

	folderIDs, err := fs.collectSubtree(dbc, root)
	if err != nil {
		return err
	}
	files, err := fs.fileRepo.ListByFolderIDs(dbc, folderIDs)
	if err != nil {
		return apperr.MapStoreError(op, err)
	}

	keys := make([]string, 0, len(files))
	fileIDs := make([]uuid.UUID, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.ID)
		if f.StorageKey != "" {
			keys = append(keys, f.StorageKey)
		}
	}
	failedKeys := deleteBlobs(dbc, fs.store, keys)

	if _, err := fs.fileVersionRepo.DeleteByFileIDs(dbc, fileIDs); err != nil {
		return apperr.MapStoreError(op, err)
	}
	if _, err := fs.fileRepo.DeleteByIDs(dbc, fileIDs); err != nil {
		return apperr.MapStoreError(op, err)
	}
	if _, err := fs.folderRepo.DeleteByIDs(dbc, folderIDs); err != nil {
		return apperr.MapStoreError(op, err)
	}

	if _, err := fs.entryRepo.DeleteByResourceIDs(dbc, types.CollectionFiles, fileIDs); err != nil {
		return apperr.MapStoreError(op, err)
	}
	if _, err := fs.entryRepo.DeleteByResourceIDs(dbc, types.CollectionFolders, folderIDs); err != nil {
		return apperr.MapStoreError(op, err)
	}

	if fs.searchFeed != nil {
		for _, fid := range fileIDs {
			if err := fs.searchFeed.PublishDelete(dbc, "file", fid); err != nil {
				fs.log.Warn("search feed delete publish failed", "file_id", fid, "error", err)
			}
		}
		if err := fs.searchFeed.PublishDataset(dbc, root.DatasetID); err != nil {
			fs.log.Warn("search feed publish failed", "dataset_id", root.DatasetID, "error", err)
		}
	}

	if len(failedKeys) > 0 {
		return apperr.Newf(apperr.CodePartialDelete, op,
			"folder %s deleted but %d objects remain: %s", id, len(failedKeys), strings.Join(failedKeys, ", "))
	}
	return nil
}

// collectSubtree walks the folder tree breadth-first and returns the root's
// id plus every descendant folder id.
func (fs *folderService) collectSubtree(dbc dbctx.Context, root *types.Folder) ([]uuid.UUID, error) {
	const op = "FolderService.collectSubtree"

	ids := []uuid.UUID{root.ID}
	queue := []uuid.UUID{root.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		parent := current
		children, err := fs.folderRepo.ListChildren(dbc, root.DatasetID, &parent)
		if err != nil {
			return nil, apperr.MapStoreError(op, err)
		}
		for _, c := range children {
			ids = append(ids, c.ID)
			queue = append(queue, c.ID)
		}
	}
	return ids, nil
}
