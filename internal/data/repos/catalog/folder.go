package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type FolderRepo interface {
	Create(dbc dbctx.Context, folders []*types.Folder) ([]*types.Folder, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Folder, error)
	ListByDataset(dbc dbctx.Context, datasetID uuid.UUID) ([]*types.Folder, error)
	ListChildren(dbc dbctx.Context, datasetID uuid.UUID, parentFolderID *uuid.UUID) ([]*types.Folder, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
	DeleteByDataset(dbc dbctx.Context, datasetID uuid.UUID) (int64, error)
}

type folderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFolderRepo(db *gorm.DB, baseLog *logger.Logger) FolderRepo {
	repoLog := baseLog.With("repo", "FolderRepo")
	return &folderRepo{db: db, log: repoLog}
}

func (r *folderRepo) Create(dbc dbctx.Context, folders []*types.Folder) ([]*types.Folder, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(folders) == 0 {
		return []*types.Folder{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *folderRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Folder, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var folder types.Folder
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *folderRepo) ListByDataset(dbc dbctx.Context, datasetID uuid.UUID) ([]*types.Folder, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Folder
	if err := transaction.WithContext(dbc.Ctx).
		Where("dataset_id = ?", datasetID).
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *folderRepo) ListChildren(dbc dbctx.Context, datasetID uuid.UUID, parentFolderID *uuid.UUID) ([]*types.Folder, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx).Where("dataset_id = ?", datasetID)
	if parentFolderID == nil {
		q = q.Where("parent_folder_id IS NULL")
	} else {
		q = q.Where("parent_folder_id = ?", *parentFolderID)
	}

	var results []*types.Folder
	if err := q.Order("name ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *folderRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return 0, nil
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Folder{})
	return res.RowsAffected, res.Error
}

func (r *folderRepo) DeleteByDataset(dbc dbctx.Context, datasetID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("dataset_id = ?", datasetID).
		Delete(&types.Folder{})
	return res.RowsAffected, res.Error
}
