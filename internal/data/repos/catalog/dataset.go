package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type DatasetRepo interface {
	Create(dbc dbctx.Context, datasets []*types.Dataset) ([]*types.Dataset, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Dataset, error)
	List(dbc dbctx.Context, authorID *uuid.UUID, skip, limit int) ([]*types.Dataset, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	IncrementDownloads(dbc dbctx.Context, id uuid.UUID) error
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type datasetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	repoLog := baseLog.With("repo", "DatasetRepo")
	return &datasetRepo{db: db, log: repoLog}
}

func (r *datasetRepo) Create(dbc dbctx.Context, datasets []*types.Dataset) ([]*types.Dataset, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(datasets) == 0 {
		return []*types.Dataset{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&datasets).Error; err != nil {
		return nil, err
	}
	return datasets, nil
}

func (r *datasetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Dataset, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var dataset types.Dataset
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&dataset).Error; err != nil {
		return nil, err
	}
	return &dataset, nil
}

func (r *datasetRepo) List(dbc dbctx.Context, authorID *uuid.UUID, skip, limit int) ([]*types.Dataset, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx).Order("created_at DESC")
	if authorID != nil {
		q = q.Where("author_id = ?", *authorID)
	}
	if skip > 0 {
		q = q.Offset(skip)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var results []*types.Dataset
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *datasetRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Dataset{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *datasetRepo) IncrementDownloads(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Dataset{}).
		Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error
}

func (r *datasetRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Dataset{})
	return res.RowsAffected, res.Error
}
