package metadata

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type MetadataEntryRepo interface {
	Create(dbc dbctx.Context, entries []*types.MetadataEntry) ([]*types.MetadataEntry, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MetadataEntry, error)
	GetByResource(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) ([]*types.MetadataEntry, error)
	FirstByAgent(dbc dbctx.Context, resource types.ResourceRef, agent types.Agent) (*types.MetadataEntry, error)
	UpdateCAS(dbc dbctx.Context, id uuid.UUID, revision int64, updates map[string]interface{}) (int64, error)
	DeleteByResource(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) (int64, error)
	DeleteByResourceIDs(dbc dbctx.Context, collection types.Collection, resourceIDs []uuid.UUID) (int64, error)
}

type metadataEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetadataEntryRepo(db *gorm.DB, baseLog *logger.Logger) MetadataEntryRepo {
	repoLog := baseLog.With("repo", "MetadataEntryRepo")
	return &metadataEntryRepo{db: db, log: repoLog}
}

func (r *metadataEntryRepo) Create(dbc dbctx.Context, entries []*types.MetadataEntry) ([]*types.MetadataEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(entries) == 0 {
		return []*types.MetadataEntry{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *metadataEntryRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MetadataEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var entry types.MetadataEntry
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByResource returns every entry attached to the resource in insertion
// order, optionally narrowed to extractor entries by name and/or version.
func (r *metadataEntryRepo) GetByResource(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) ([]*types.MetadataEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx).
		Where("resource_collection = ? AND resource_id = ?", string(resource.Collection), resource.ID)
	q = applyAgentFilter(q, filter)

	var results []*types.MetadataEntry
	if err := q.Order("created_at ASC").Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FirstByAgent fetches the addressable entry for (resource, agent identity):
// the oldest match in insertion order. Extractor identity matches on
// (name, version) only; creator identity requires no extractor columns.
func (r *metadataEntryRepo) FirstByAgent(dbc dbctx.Context, resource types.ResourceRef, agent types.Agent) (*types.MetadataEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx).
		Where("resource_collection = ? AND resource_id = ?", string(resource.Collection), resource.ID)
	if agent.Extractor != nil {
		q = q.Where("agent_extractor_name = ? AND agent_extractor_version = ?", agent.Extractor.Name, agent.Extractor.Version)
	} else {
		q = q.Where("agent_creator_id = ? AND agent_extractor_name IS NULL", agent.CreatorID)
	}

	var entry types.MetadataEntry
	if err := q.Order("created_at ASC").Order("id ASC").First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateCAS applies updates only when the stored revision still matches.
// Zero rows affected means the caller raced another writer and should reload.
func (r *metadataEntryRepo) UpdateCAS(dbc dbctx.Context, id uuid.UUID, revision int64, updates map[string]interface{}) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Model(&types.MetadataEntry{}).
		Where("id = ? AND revision = ?", id, revision).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *metadataEntryRepo) DeleteByResource(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx).
		Where("resource_collection = ? AND resource_id = ?", string(resource.Collection), resource.ID)
	q = applyAgentFilter(q, filter)

	res := q.Delete(&types.MetadataEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *metadataEntryRepo) DeleteByResourceIDs(dbc dbctx.Context, collection types.Collection, resourceIDs []uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(resourceIDs) == 0 {
		return 0, nil
	}

	res := transaction.WithContext(dbc.Ctx).
		Where("resource_collection = ? AND resource_id IN ?", string(collection), resourceIDs).
		Delete(&types.MetadataEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func applyAgentFilter(q *gorm.DB, filter *types.AgentFilter) *gorm.DB {
	if filter == nil {
		return q
	}
	if filter.ExtractorName != nil {
		q = q.Where("agent_extractor_name = ?", *filter.ExtractorName)
	}
	if filter.ExtractorVersion != nil {
		q = q.Where("agent_extractor_version = ?", *filter.ExtractorVersion)
	}
	return q
}
