package metadata

import (
	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type MetadataDefinitionRepo interface {
	Create(dbc dbctx.Context, defs []*types.MetadataDefinition) ([]*types.MetadataDefinition, error)
	GetByName(dbc dbctx.Context, name string) (*types.MetadataDefinition, error)
	List(dbc dbctx.Context, skip, limit int) ([]*types.MetadataDefinition, error)
	DeleteByName(dbc dbctx.Context, name string) (int64, error)
}

type metadataDefinitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetadataDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) MetadataDefinitionRepo {
	repoLog := baseLog.With("repo", "MetadataDefinitionRepo")
	return &metadataDefinitionRepo{db: db, log: repoLog}
}

func (r *metadataDefinitionRepo) Create(dbc dbctx.Context, defs []*types.MetadataDefinition) ([]*types.MetadataDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(defs) == 0 {
		return []*types.MetadataDefinition{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *metadataDefinitionRepo) GetByName(dbc dbctx.Context, name string) (*types.MetadataDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var def types.MetadataDefinition
	if err := transaction.WithContext(dbc.Ctx).
		Where("name = ?", name).
		First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *metadataDefinitionRepo) List(dbc dbctx.Context, skip, limit int) ([]*types.MetadataDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx).Order("name ASC")
	if skip > 0 {
		q = q.Offset(skip)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var results []*types.MetadataDefinition
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *metadataDefinitionRepo) DeleteByName(dbc dbctx.Context, name string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("name = ?", name).
		Delete(&types.MetadataDefinition{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
