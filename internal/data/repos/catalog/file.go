package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type FileRepo interface {
	Create(dbc dbctx.Context, files []*types.File) ([]*types.File, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.File, error)
	ListByDataset(dbc dbctx.Context, datasetID uuid.UUID) ([]*types.File, error)
	ListByFolder(dbc dbctx.Context, datasetID uuid.UUID, folderID *uuid.UUID) ([]*types.File, error)
	ListByFolderIDs(dbc dbctx.Context, folderIDs []uuid.UUID) ([]*types.File, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	IncrementDownloads(dbc dbctx.Context, id uuid.UUID) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
	DeleteByDataset(dbc dbctx.Context, datasetID uuid.UUID) (int64, error)
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	repoLog := baseLog.With("repo", "FileRepo")
	return &fileRepo{db: db, log: repoLog}
}

func (r *fileRepo) Create(dbc dbctx.Context, files []*types.File) ([]*types.File, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(files) == 0 {
		return []*types.File{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

func (r *fileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.File, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var file types.File
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepo) ListByDataset(dbc dbctx.Context, datasetID uuid.UUID) ([]*types.File, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.File
	if err := transaction.WithContext(dbc.Ctx).
		Where("dataset_id = ?", datasetID).
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *fileRepo) ListByFolder(dbc dbctx.Context, datasetID uuid.UUID, folderID *uuid.UUID) ([]*types.File, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx).Where("dataset_id = ?", datasetID)
	if folderID == nil {
		q = q.Where("folder_id IS NULL")
	} else {
		q = q.Where("folder_id = ?", *folderID)
	}

	var results []*types.File
	if err := q.Order("name ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *fileRepo) ListByFolderIDs(dbc dbctx.Context, folderIDs []uuid.UUID) ([]*types.File, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(folderIDs) == 0 {
		return []*types.File{}, nil
	}

	var results []*types.File
	if err := transaction.WithContext(dbc.Ctx).
		Where("folder_id IN ?", folderIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *fileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.File{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *fileRepo) IncrementDownloads(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.File{}).
		Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error
}

func (r *fileRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return 0, nil
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.File{})
	return res.RowsAffected, res.Error
}

func (r *fileRepo) DeleteByDataset(dbc dbctx.Context, datasetID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("dataset_id = ?", datasetID).
		Delete(&types.File{})
	return res.RowsAffected, res.Error
}
