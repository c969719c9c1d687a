package services

import (
	"errors"
	"fmt"
	"io"
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

type FileInput struct {
	DatasetID   uuid.UUID
	FolderID    *uuid.UUID
	Name        string
	ContentType string
	CreatorID   uuid.UUID
}

// FileService owns file records and their bytes. The record is inserted
// before the bytes stream out, so the file is addressable (and metadata
// operations on it succeed) as soon as the row exists; the blob store's
// generation token is recorded as the version id once the stream lands.
type FileService interface {
	Save(dbc dbctx.Context, in FileInput, r io.Reader) (*types.File, error)
	NewVersion(dbc dbctx.Context, fileID, creatorID uuid.UUID, r io.Reader) (*types.File, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.File, error)
	ListByDataset(dbc dbctx.Context, datasetID uuid.UUID, folderID *uuid.UUID) ([]*types.File, error)
	ListVersions(dbc dbctx.Context, fileID uuid.UUID) ([]*types.FileVersion, error)
	Download(dbc dbctx.Context, fileID uuid.UUID) (io.ReadCloser, *types.File, error)
	Delete(dbc dbctx.Context, fileID uuid.UUID) error
}

type fileService struct {
	db              *gorm.DB
	log             *logger.Logger
	datasetRepo     repos.DatasetRepo
	folderRepo      repos.FolderRepo
	fileRepo        repos.FileRepo
	fileVersionRepo repos.FileVersionRepo
	metadataService MetadataService
	store           gcs.ObjectStore
	searchFeed      SearchFeedService
}

func NewFileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	datasetRepo repos.DatasetRepo,
	folderRepo repos.FolderRepo,
	fileRepo repos.FileRepo,
	fileVersionRepo repos.FileVersionRepo,
	metadataService MetadataService,
	store gcs.ObjectStore,
	searchFeed SearchFeedService,
) FileService {
	serviceLog := baseLog.With("service", "FileService")
	return &fileService{
		db:              db,
		log:             serviceLog,
		datasetRepo:     datasetRepo,
		folderRepo:      folderRepo,
		fileRepo:        fileRepo,
		fileVersionRepo: fileVersionRepo,
		metadataService: metadataService,
		store:           store,
		searchFeed:      searchFeed,
	}
}

func (fs *fileService) Save(dbc dbctx.Context, in FileInput, r io.Reader) (*types.File, error) {
	const op = "FileService.Save"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.CodeValidation, op, "file name is required", nil)
	}
	if r == nil {
		return nil, apperr.New(apperr.CodeValidation, op, "file content is required", nil)
	}
	if fs.store == nil {
		return nil, apperr.New(apperr.CodeInternal, op, "object store not configured", nil)
	}
	if _, err := fs.datasetRepo.GetByID(dbc, in.DatasetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "dataset %s not found", in.DatasetID)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	if in.FolderID != nil {
		folder, err := fs.folderRepo.GetByID(dbc, *in.FolderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Newf(apperr.CodeNotFound, op, "folder %s not found", *in.FolderID)
			}
			return nil, apperr.MapStoreError(op, err)
		}
		if folder.DatasetID != in.DatasetID {
			return nil, apperr.New(apperr.CodeValidation, op,
				"folder belongs to a different dataset", nil)
		}
	}

	now := time.Now()
	fileID := uuid.New()
	file := &types.File{
		ID:          fileID,
		DatasetID:   in.DatasetID,
		FolderID:    in.FolderID,
		Name:        name,
		CreatorID:   in.CreatorID,
		ContentType: strings.TrimSpace(in.ContentType),
		StorageKey:  types.FileStorageKey(in.DatasetID, fileID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := fs.fileRepo.Create(dbc, []*types.File{file}); err != nil {
		fs.log.Error("Save failed", "dataset_id", in.DatasetID, "name", name, "error", err)
		return nil, apperr.MapStoreError(op, err)
	}

	res, err := fs.store.Upload(dbc.Ctx, file.StorageKey, file.ContentType, r)
	if err != nil {
		// Roll the record back: a file row without bytes is not usable.
		if _, delErr := fs.fileRepo.DeleteByIDs(dbc, []uuid.UUID{fileID}); delErr != nil {
			fs.log.Error("record cleanup after failed upload also failed",
				"file_id", fileID, "error", delErr)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("upload %q: %w", file.StorageKey, err))
	}

	return fs.recordVersion(dbc, op, file, in.CreatorID, res, 1)
}

func (fs *fileService) NewVersion(dbc dbctx.Context, fileID, creatorID uuid.UUID, r io.Reader) (*types.File, error) {
	const op = "FileService.NewVersion"

	if r == nil {
		return nil, apperr.New(apperr.CodeValidation, op, "file content is required", nil)
	}
	if fs.store == nil {
		return nil, apperr.New(apperr.CodeInternal, op, "object store not configured", nil)
	}
	file, err := fs.Get(dbc, fileID)
	if err != nil {
		return nil, err
	}

	res, err := fs.store.Upload(dbc.Ctx, file.StorageKey, file.ContentType, r)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("upload %q: %w", file.StorageKey, err))
	}

	return fs.recordVersion(dbc, op, file, creatorID, res, file.VersionNum+1)
}

// recordVersion persists an uploaded generation as the file's current
// version plus a FileVersion history row, then refreshes the search doc.
func (fs *fileService) recordVersion(dbc dbctx.Context, op string, file *types.File, creatorID uuid.UUID, res *gcs.UploadResult, versionNum int) (*types.File, error) {
	now := time.Now()
	version := &types.FileVersion{
		ID:         uuid.New(),
		FileID:     file.ID,
		VersionID:  res.Generation,
		VersionNum: versionNum,
		CreatorID:  creatorID,
		SizeBytes:  res.Size,
		CreatedAt:  now,
	}
	if _, err := fs.fileVersionRepo.Create(dbc, []*types.FileVersion{version}); err != nil {
		return nil, apperr.MapStoreError(op, err)
	}

	updates := map[string]any{
		"version_id":  res.Generation,
		"version_num": versionNum,
		"size_bytes":  res.Size,
		"updated_at":  now,
	}
	if err := fs.fileRepo.UpdateFields(dbc, file.ID, updates); err != nil {
		return nil, apperr.MapStoreError(op, err)
	}

	fs.publishFile(dbc, file.ID)
	return fs.Get(dbc, file.ID)
}

func (fs *fileService) Get(dbc dbctx.Context, id uuid.UUID) (*types.File, error) {
	const op = "FileService.Get"

	file, err := fs.fileRepo.GetByID(dbc, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "file %s not found", id)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	return file, nil
}

func (fs *fileService) ListByDataset(dbc dbctx.Context, datasetID uuid.UUID, folderID *uuid.UUID) ([]*types.File, error) {
	const op = "FileService.ListByDataset"

	if _, err := fs.datasetRepo.GetByID(dbc, datasetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "dataset %s not found", datasetID)
		}
		return nil, apperr.MapStoreError(op, err)
	}
	if folderID == nil {
		files, err := fs.fileRepo.ListByDataset(dbc, datasetID)
		if err != nil {
			return nil, apperr.MapStoreError(op, err)
		}
		return files, nil
	}
	files, err := fs.fileRepo.ListByFolder(dbc, datasetID, folderID)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}
	return files, nil
}

func (fs *fileService) ListVersions(dbc dbctx.Context, fileID uuid.UUID) ([]*types.FileVersion, error) {
	const op = "FileService.ListVersions"

	if _, err := fs.Get(dbc, fileID); err != nil {
		return nil, err
	}
	versions, err := fs.fileVersionRepo.ListByFile(dbc, fileID)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}
	return versions, nil
}

func (fs *fileService) Download(dbc dbctx.Context, fileID uuid.UUID) (io.ReadCloser, *types.File, error) {
	const op = "FileService.Download"

	if fs.store == nil {
		return nil, nil, apperr.New(apperr.CodeInternal, op, "object store not configured", nil)
	}
	file, err := fs.Get(dbc, fileID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := fs.store.Download(dbc.Ctx, file.StorageKey)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("download %q: %w", file.StorageKey, err))
	}
	if err := fs.fileRepo.IncrementDownloads(dbc, fileID); err != nil {
		fs.log.Warn("download counter bump failed", "file_id", fileID, "error", err)
	}
	return rc, file, nil
}

// Delete removes the file record, its blob, version history and metadata.
// The record goes first; a blob failure afterwards surfaces as a
// partial-delete error once the row cleanup is done.
func (fs *fileService) Delete(dbc dbctx.Context, fileID uuid.UUID) error {
	const op = "FileService.Delete"

	file, err := fs.Get(dbc, fileID)
	if err != nil {
		return err
	}

	if _, err := fs.fileRepo.DeleteByIDs(dbc, []uuid.UUID{fileID}); err != nil {
		fs.log.Error("Delete failed", "file_id", fileID, "error", err)
		return apperr.MapStoreError(op, err)
	}

	var blobErr error
	if fs.store != nil && file.StorageKey != "" {
		blobErr = fs.store.Delete(dbc.Ctx, file.StorageKey)
	}

	if _, err := fs.fileVersionRepo.DeleteByFileIDs(dbc, []uuid.UUID{fileID}); err != nil {
		return apperr.MapStoreError(op, err)
	}
	if _, err := fs.metadataService.DeleteAllForResource(dbc, types.FileRef(fileID)); err != nil {
		return err
	}

	if fs.searchFeed != nil {
		if err := fs.searchFeed.PublishDelete(dbc, "file", fileID); err != nil {
			fs.log.Warn("search feed delete publish failed", "file_id", fileID, "error", err)
		}
	}

	if blobErr != nil {
		return apperr.Newf(apperr.CodePartialDelete, op,
			"file %s deleted but object %q remains: %v", fileID, file.StorageKey, blobErr)
	}
	return nil
}

func (fs *fileService) publishFile(dbc dbctx.Context, fileID uuid.UUID) {
	if fs.searchFeed == nil {
		return
	}
	if err := fs.searchFeed.PublishFile(dbc, fileID); err != nil {
		fs.log.Warn("search feed publish failed", "file_id", fileID, "error", err)
	}
}
