package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type FileVersionRepo interface {
	Create(dbc dbctx.Context, versions []*types.FileVersion) ([]*types.FileVersion, error)
	ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.FileVersion, error)
	DeleteByFileIDs(dbc dbctx.Context, fileIDs []uuid.UUID) (int64, error)
}

type fileVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileVersionRepo(db *gorm.DB, baseLog *logger.Logger) FileVersionRepo {
	repoLog := baseLog.With("repo", "FileVersionRepo")
	return &fileVersionRepo{db: db, log: repoLog}
}

func (r *fileVersionRepo) Create(dbc dbctx.Context, versions []*types.FileVersion) ([]*types.FileVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(versions) == 0 {
		return []*types.FileVersion{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *fileVersionRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.FileVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.FileVersion
	if err := transaction.WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Order("version_num DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *fileVersionRepo) DeleteByFileIDs(dbc dbctx.Context, fileIDs []uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(fileIDs) == 0 {
		return 0, nil
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("file_id IN ?", fileIDs).
		Delete(&types.FileVersion{})
	return res.RowsAffected, res.Error
}
