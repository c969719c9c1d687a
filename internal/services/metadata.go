package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/data/repos"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

// casRetries bounds the optimistic-concurrency retry loop for replace and
// patch. Each retry re-reads the entry before attempting the write again.
const casRetries = 3

// MetadataInput is a full metadata submission: create (POST) and replace
// (PUT) take the same shape. Extractor, when set, names the authoring agent;
// CallerID is then recorded for audit only.
type MetadataInput struct {
	Resource  types.ResourceRef
	Context   types.ContextSource
	Content   map[string]any
	Extractor *types.ExtractorIdentity
	CallerID  uuid.UUID
}

// MetadataPatch is a partial content update. Extractor/CallerID address the
// entry (they resolve the agent identity key) and cannot change it; any
// context source in the payload is rejected, per the documented contract
// that context and agent changes require a replace.
type MetadataPatch struct {
	Resource  types.ResourceRef
	Context   types.ContextSource
	Content   map[string]any
	Extractor *types.ExtractorIdentity
	CallerID  uuid.UUID
}

// MetadataService is the create/replace/patch/query/delete contract over
// metadata entries scoped to a resource and keyed by (resource, agent
// identity). Create inserts unconditionally; replace and patch require an
// existing entry for the key and serialize concurrent writers through a
// revision compare-and-swap.
type MetadataService interface {
	Create(dbc dbctx.Context, in MetadataInput) (*types.MetadataEntry, error)
	Replace(dbc dbctx.Context, in MetadataInput) (*types.MetadataEntry, error)
	Patch(dbc dbctx.Context, in MetadataPatch) (*types.MetadataEntry, error)
	Query(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) ([]*types.MetadataEntry, error)
	Delete(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) (int64, error)
	DeleteAllForResource(dbc dbctx.Context, resource types.ResourceRef) (int64, error)
}

type metadataService struct {
	db              *gorm.DB
	log             *logger.Logger
	entryRepo       repos.MetadataEntryRepo
	datasetRepo     repos.DatasetRepo
	fileRepo        repos.FileRepo
	folderRepo      repos.FolderRepo
	contextResolver ContextResolver
	agentResolver   AgentResolver
	searchFeed      SearchFeedService
}

func NewMetadataService(
	db *gorm.DB,
	baseLog *logger.Logger,
	entryRepo repos.MetadataEntryRepo,
	datasetRepo repos.DatasetRepo,
	fileRepo repos.FileRepo,
	folderRepo repos.FolderRepo,
	contextResolver ContextResolver,
	agentResolver AgentResolver,
	searchFeed SearchFeedService,
) MetadataService {
	serviceLog := baseLog.With("service", "MetadataService")
	return &metadataService{
		db:              db,
		log:             serviceLog,
		entryRepo:       entryRepo,
		datasetRepo:     datasetRepo,
		fileRepo:        fileRepo,
		folderRepo:      folderRepo,
		contextResolver: contextResolver,
		agentResolver:   agentResolver,
		searchFeed:      searchFeed,
	}
}

func (ms *metadataService) Create(dbc dbctx.Context, in MetadataInput) (*types.MetadataEntry, error) {
	const op = "MetadataService.Create"

	resolvedCtx, agent, content, err := ms.resolveSubmission(dbc, op, in)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entry := &types.MetadataEntry{
		ID:                 uuid.New(),
		ResourceCollection: string(in.Resource.Collection),
		ResourceID:         in.Resource.ID,
		AgentCreatorID:     agent.CreatorID,
		ContextURL:         resolvedCtx.URL,
		DefinitionName:     resolvedCtx.Definition,
		Revision:           1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if agent.Extractor != nil {
		name, version := agent.Extractor.Name, agent.Extractor.Version
		entry.AgentExtractorName = &name
		entry.AgentExtractorVersion = &version
	}
	if resolvedCtx.Inline != nil {
		raw, err := types.EncodeJSONMap(resolvedCtx.Inline)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("encode context: %w", err))
		}
		entry.ContextJSON = raw
	}
	raw, err := types.EncodeJSONMap(content)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("encode content: %w", err))
	}
	entry.Content = raw

	if _, err := ms.entryRepo.Create(dbc, []*types.MetadataEntry{entry}); err != nil {
		ms.log.Error("Create failed", "resource", in.Resource.String(), "error", err)
		return nil, apperr.MapStoreError(op, err)
	}

	ms.publishResource(dbc, in.Resource)
	return entry, nil
}

func (ms *metadataService) Replace(dbc dbctx.Context, in MetadataInput) (*types.MetadataEntry, error) {
	const op = "MetadataService.Replace"

	resolvedCtx, agent, content, err := ms.resolveSubmission(dbc, op, in)
	if err != nil {
		return nil, err
	}

	contentRaw, err := types.EncodeJSONMap(content)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("encode content: %w", err))
	}
	updates := map[string]any{
		"content":         contentRaw,
		"context_url":     resolvedCtx.URL,
		"definition_name": resolvedCtx.Definition,
		"context_json":    nil,
	}
	if resolvedCtx.Inline != nil {
		ctxRaw, err := types.EncodeJSONMap(resolvedCtx.Inline)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("encode context: %w", err))
		}
		updates["context_json"] = ctxRaw
	}
	// Replace may reattribute the entry: the submitted agent becomes its
	// author, but the lookup key is the agent being replaced.
	updates["agent_creator_id"] = agent.CreatorID
	if agent.Extractor != nil {
		updates["agent_extractor_name"] = agent.Extractor.Name
		updates["agent_extractor_version"] = agent.Extractor.Version
	} else {
		updates["agent_extractor_name"] = nil
		updates["agent_extractor_version"] = nil
	}

	entry, err := ms.updateWithCAS(dbc, op, in.Resource, agent, updates)
	if err != nil {
		return nil, err
	}
	ms.publishResource(dbc, in.Resource)
	return entry, nil
}

func (ms *metadataService) Patch(dbc dbctx.Context, in MetadataPatch) (*types.MetadataEntry, error) {
	const op = "MetadataService.Patch"

	if !in.Context.IsZero() {
		return nil, apperr.New(apperr.CodePatchImmutableField, op,
			"patch cannot change context; use replace", nil)
	}
	if !in.Resource.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, op, "invalid resource reference %q", in.Resource.String())
	}

	agent, err := ms.agentResolver.Resolve(dbc, in.Extractor, in.CallerID)
	if err != nil {
		return nil, err
	}
	if err := ms.resourceExists(dbc, op, in.Resource); err != nil {
		return nil, err
	}

	patch := in.Content
	if patch == nil {
		patch = map[string]any{}
	}

	var entry *types.MetadataEntry
	for attempt := 0; attempt < casRetries; attempt++ {
		existing, err := ms.entryRepo.FirstByAgent(dbc, in.Resource, agent)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Newf(apperr.CodeNotFound, op,
					"no metadata entry for agent %s on %s", agent.Key(), in.Resource.String())
			}
			return nil, apperr.MapStoreError(op, err)
		}

		existingContent, err := types.DecodeJSONMap(existing.Content)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("decode content: %w", err))
		}
		coerced, err := ms.coercePatch(dbc, op, existing, patch)
		if err != nil {
			return nil, err
		}
		merged := types.MergeContent(existingContent, coerced)
		mergedRaw, err := types.EncodeJSONMap(merged)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, fmt.Errorf("encode content: %w", err))
		}

		updates := map[string]any{
			"content":    mergedRaw,
			"revision":   existing.Revision + 1,
			"updated_at": time.Now(),
		}
		rows, err := ms.entryRepo.UpdateCAS(dbc, existing.ID, existing.Revision, updates)
		if err != nil {
			return nil, apperr.MapStoreError(op, err)
		}
		if rows > 0 {
			entry, err = ms.entryRepo.GetByID(dbc, existing.ID)
			if err != nil {
				return nil, apperr.MapStoreError(op, err)
			}
			ms.publishResource(dbc, in.Resource)
			return entry, nil
		}
		ms.log.Warn("patch raced another writer, retrying",
			"entry_id", existing.ID, "revision", existing.Revision, "attempt", attempt+1)
	}
	return nil, apperr.Newf(apperr.CodeConflict, op,
		"concurrent updates on %s for agent %s", in.Resource.String(), agent.Key())
}

func (ms *metadataService) Query(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) ([]*types.MetadataEntry, error) {
	const op = "MetadataService.Query"

	if !resource.Valid() {
		return nil, apperr.Newf(apperr.CodeValidation, op, "invalid resource reference %q", resource.String())
	}
	if err := ms.resourceExists(dbc, op, resource); err != nil {
		return nil, err
	}

	entries, err := ms.entryRepo.GetByResource(dbc, resource, filter)
	if err != nil {
		return nil, apperr.MapStoreError(op, err)
	}
	return entries, nil
}

func (ms *metadataService) Delete(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) (int64, error) {
	const op = "MetadataService.Delete"

	if !resource.Valid() {
		return 0, apperr.Newf(apperr.CodeValidation, op, "invalid resource reference %q", resource.String())
	}

	rows, err := ms.entryRepo.DeleteByResource(dbc, resource, filter)
	if err != nil {
		ms.log.Error("Delete failed", "resource", resource.String(), "error", err)
		return 0, apperr.MapStoreError(op, err)
	}
	if rows == 0 {
		return 0, apperr.Newf(apperr.CodeNotFound, op,
			"no metadata entries matched on %s", resource.String())
	}

	ms.publishResource(dbc, resource)
	return rows, nil
}

// DeleteAllForResource is the cascade primitive the resource lifecycle
// invokes while deleting a dataset, folder or file. Zero matches is fine.
func (ms *metadataService) DeleteAllForResource(dbc dbctx.Context, resource types.ResourceRef) (int64, error) {
	const op = "MetadataService.DeleteAllForResource"

	if !resource.Valid() {
		return 0, apperr.Newf(apperr.CodeValidation, op, "invalid resource reference %q", resource.String())
	}
	rows, err := ms.entryRepo.DeleteByResource(dbc, resource, nil)
	if err != nil {
		return 0, apperr.MapStoreError(op, err)
	}
	return rows, nil
}

// resolveSubmission runs the shared validation pipeline for create and
// replace: context resolution, agent resolution, then resource existence.
// Everything is checked before any write.
func (ms *metadataService) resolveSubmission(dbc dbctx.Context, op string, in MetadataInput) (types.ContextSource, types.Agent, map[string]any, error) {
	if !in.Resource.Valid() {
		return types.ContextSource{}, types.Agent{}, nil,
			apperr.Newf(apperr.CodeValidation, op, "invalid resource reference %q", in.Resource.String())
	}

	content := in.Content
	if content == nil {
		content = map[string]any{}
	}
	resolvedCtx, validated, err := ms.contextResolver.Resolve(dbc, in.Context, content)
	if err != nil {
		return types.ContextSource{}, types.Agent{}, nil, err
	}
	agent, err := ms.agentResolver.Resolve(dbc, in.Extractor, in.CallerID)
	if err != nil {
		return types.ContextSource{}, types.Agent{}, nil, err
	}
	if err := ms.resourceExists(dbc, op, in.Resource); err != nil {
		return types.ContextSource{}, types.Agent{}, nil, err
	}
	return resolvedCtx, agent, validated, nil
}

// updateWithCAS locates the unique entry for (resource, agent identity) and
// applies updates guarded by the revision token, re-reading on contention.
func (ms *metadataService) updateWithCAS(dbc dbctx.Context, op string, resource types.ResourceRef, agent types.Agent, updates map[string]any) (*types.MetadataEntry, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		existing, err := ms.entryRepo.FirstByAgent(dbc, resource, agent)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Newf(apperr.CodeNotFound, op,
					"no metadata entry for agent %s on %s", agent.Key(), resource.String())
			}
			return nil, apperr.MapStoreError(op, err)
		}

		attemptUpdates := make(map[string]any, len(updates)+2)
		for k, v := range updates {
			attemptUpdates[k] = v
		}
		attemptUpdates["revision"] = existing.Revision + 1
		attemptUpdates["updated_at"] = time.Now()

		rows, err := ms.entryRepo.UpdateCAS(dbc, existing.ID, existing.Revision, attemptUpdates)
		if err != nil {
			return nil, apperr.MapStoreError(op, err)
		}
		if rows > 0 {
			entry, err := ms.entryRepo.GetByID(dbc, existing.ID)
			if err != nil {
				return nil, apperr.MapStoreError(op, err)
			}
			return entry, nil
		}
		ms.log.Warn("replace raced another writer, retrying",
			"entry_id", existing.ID, "revision", existing.Revision, "attempt", attempt+1)
	}
	return nil, apperr.Newf(apperr.CodeConflict, op,
		"concurrent updates on %s for agent %s", resource.String(), agent.Key())
}

// coercePatch types the patch values against the entry's stored definition
// so merged content keeps the declared field types. URL and inline contexts
// carry no declarations; the patch passes through unchanged.
func (ms *metadataService) coercePatch(dbc dbctx.Context, op string, entry *types.MetadataEntry, patch map[string]any) (map[string]any, error) {
	if entry.DefinitionName == "" {
		return patch, nil
	}
	_, coerced, err := ms.contextResolver.Resolve(dbc,
		types.ContextSource{Definition: entry.DefinitionName}, patch)
	if err != nil {
		// The definition may have been unregistered since the entry was
		// created; the entry stays patchable as schemaless content.
		if apperr.IsCode(err, apperr.CodeDefinitionNotFound) {
			return patch, nil
		}
		return nil, err
	}
	return coerced, nil
}

func (ms *metadataService) resourceExists(dbc dbctx.Context, op string, resource types.ResourceRef) error {
	var err error
	switch resource.Collection {
	case types.CollectionDatasets:
		_, err = ms.datasetRepo.GetByID(dbc, resource.ID)
	case types.CollectionFiles:
		_, err = ms.fileRepo.GetByID(dbc, resource.ID)
	case types.CollectionFolders:
		_, err = ms.folderRepo.GetByID(dbc, resource.ID)
	default:
		return apperr.Newf(apperr.CodeValidation, op, "unknown collection %q", resource.Collection)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.CodeNotFound, op, "resource %s not found", resource.String())
		}
		return apperr.MapStoreError(op, err)
	}
	return nil
}

// publishResource refreshes the owning search document. The sink is
// best-effort; failures never fail the metadata operation.
func (ms *metadataService) publishResource(dbc dbctx.Context, resource types.ResourceRef) {
	if ms.searchFeed == nil {
		return
	}
	if err := ms.searchFeed.PublishResource(dbc, resource); err != nil {
		ms.log.Warn("search feed publish failed", "resource", resource.String(), "error", err)
	}
}
