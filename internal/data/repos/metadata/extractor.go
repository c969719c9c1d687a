package metadata

import (
	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type ExtractorRepo interface {
	Create(dbc dbctx.Context, extractors []*types.Extractor) ([]*types.Extractor, error)
	GetByNameVersion(dbc dbctx.Context, name, version string) (*types.Extractor, error)
	List(dbc dbctx.Context, name string, skip, limit int) ([]*types.Extractor, error)
}

type extractorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExtractorRepo(db *gorm.DB, baseLog *logger.Logger) ExtractorRepo {
	repoLog := baseLog.With("repo", "ExtractorRepo")
	return &extractorRepo{db: db, log: repoLog}
}

func (r *extractorRepo) Create(dbc dbctx.Context, extractors []*types.Extractor) ([]*types.Extractor, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(extractors) == 0 {
		return []*types.Extractor{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&extractors).Error; err != nil {
		return nil, err
	}
	return extractors, nil
}

func (r *extractorRepo) GetByNameVersion(dbc dbctx.Context, name, version string) (*types.Extractor, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var extractor types.Extractor
	if err := transaction.WithContext(dbc.Ctx).
		Where("name = ? AND version = ?", name, version).
		First(&extractor).Error; err != nil {
		return nil, err
	}
	return &extractor, nil
}

func (r *extractorRepo) List(dbc dbctx.Context, name string, skip, limit int) ([]*types.Extractor, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx).Order("name ASC").Order("version ASC")
	if name != "" {
		q = q.Where("name = ?", name)
	}
	if skip > 0 {
		q = q.Offset(skip)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var results []*types.Extractor
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
