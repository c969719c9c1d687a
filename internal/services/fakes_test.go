package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stratalabs/strata-backend/internal/clients/redis"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
	"github.com/stratalabs/strata-backend/internal/platform/gcs"
)

// In-memory repo fakes. They honor the same gorm sentinel semantics the
// real repos surface so the services' error mapping is exercised as-is.

type fakeDatasetRepo struct {
	rows map[uuid.UUID]*types.Dataset
}

func newFakeDatasetRepo() *fakeDatasetRepo {
	return &fakeDatasetRepo{rows: map[uuid.UUID]*types.Dataset{}}
}

func (r *fakeDatasetRepo) Create(dbc dbctx.Context, datasets []*types.Dataset) ([]*types.Dataset, error) {
	for _, d := range datasets {
		r.rows[d.ID] = d
	}
	return datasets, nil
}

func (r *fakeDatasetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Dataset, error) {
	d, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (r *fakeDatasetRepo) List(dbc dbctx.Context, authorID *uuid.UUID, skip, limit int) ([]*types.Dataset, error) {
	out := []*types.Dataset{}
	for _, d := range r.rows {
		if authorID != nil && d.AuthorID != *authorID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeDatasetRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	d, ok := r.rows[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "name":
			d.Name = v.(string)
		case "description":
			d.Description = v.(string)
		case "status":
			d.Status = v.(string)
		case "updated_at":
			d.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (r *fakeDatasetRepo) IncrementDownloads(dbc dbctx.Context, id uuid.UUID) error {
	if d, ok := r.rows[id]; ok {
		d.Downloads++
	}
	return nil
}

func (r *fakeDatasetRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	if _, ok := r.rows[id]; !ok {
		return 0, nil
	}
	delete(r.rows, id)
	return 1, nil
}

type fakeFolderRepo struct {
	rows map[uuid.UUID]*types.Folder
}

func newFakeFolderRepo() *fakeFolderRepo {
	return &fakeFolderRepo{rows: map[uuid.UUID]*types.Folder{}}
}

func (r *fakeFolderRepo) Create(dbc dbctx.Context, folders []*types.Folder) ([]*types.Folder, error) {
	for _, f := range folders {
		r.rows[f.ID] = f
	}
	return folders, nil
}

func (r *fakeFolderRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Folder, error) {
	f, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f, nil
}

func (r *fakeFolderRepo) ListByDataset(dbc dbctx.Context, datasetID uuid.UUID) ([]*types.Folder, error) {
	out := []*types.Folder{}
	for _, f := range r.rows {
		if f.DatasetID == datasetID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFolderRepo) ListChildren(dbc dbctx.Context, datasetID uuid.UUID, parentFolderID *uuid.UUID) ([]*types.Folder, error) {
	out := []*types.Folder{}
	for _, f := range r.rows {
		if f.DatasetID != datasetID {
			continue
		}
		switch {
		case parentFolderID == nil && f.ParentFolderID == nil:
			out = append(out, f)
		case parentFolderID != nil && f.ParentFolderID != nil && *f.ParentFolderID == *parentFolderID:
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFolderRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := r.rows[id]; ok {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeFolderRepo) DeleteByDataset(dbc dbctx.Context, datasetID uuid.UUID) (int64, error) {
	var n int64
	for id, f := range r.rows {
		if f.DatasetID == datasetID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

type fakeFileRepo struct {
	rows map[uuid.UUID]*types.File
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{rows: map[uuid.UUID]*types.File{}}
}

func (r *fakeFileRepo) Create(dbc dbctx.Context, files []*types.File) ([]*types.File, error) {
	for _, f := range files {
		r.rows[f.ID] = f
	}
	return files, nil
}

func (r *fakeFileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.File, error) {
	f, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f, nil
}

func (r *fakeFileRepo) ListByDataset(dbc dbctx.Context, datasetID uuid.UUID) ([]*types.File, error) {
	out := []*types.File{}
	for _, f := range r.rows {
		if f.DatasetID == datasetID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) ListByFolder(dbc dbctx.Context, datasetID uuid.UUID, folderID *uuid.UUID) ([]*types.File, error) {
	out := []*types.File{}
	for _, f := range r.rows {
		if f.DatasetID != datasetID {
			continue
		}
		switch {
		case folderID == nil && f.FolderID == nil:
			out = append(out, f)
		case folderID != nil && f.FolderID != nil && *f.FolderID == *folderID:
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) ListByFolderIDs(dbc dbctx.Context, folderIDs []uuid.UUID) ([]*types.File, error) {
	want := map[uuid.UUID]struct{}{}
	for _, id := range folderIDs {
		want[id] = struct{}{}
	}
	out := []*types.File{}
	for _, f := range r.rows {
		if f.FolderID == nil {
			continue
		}
		if _, ok := want[*f.FolderID]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	f, ok := r.rows[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "version_id":
			f.VersionID = v.(string)
		case "version_num":
			f.VersionNum = v.(int)
		case "size_bytes":
			f.SizeBytes = v.(int64)
		case "updated_at":
			f.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (r *fakeFileRepo) IncrementDownloads(dbc dbctx.Context, id uuid.UUID) error {
	if f, ok := r.rows[id]; ok {
		f.Downloads++
	}
	return nil
}

func (r *fakeFileRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := r.rows[id]; ok {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeFileRepo) DeleteByDataset(dbc dbctx.Context, datasetID uuid.UUID) (int64, error) {
	var n int64
	for id, f := range r.rows {
		if f.DatasetID == datasetID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

type fakeFileVersionRepo struct {
	rows []*types.FileVersion
}

func newFakeFileVersionRepo() *fakeFileVersionRepo { return &fakeFileVersionRepo{} }

func (r *fakeFileVersionRepo) Create(dbc dbctx.Context, versions []*types.FileVersion) ([]*types.FileVersion, error) {
	r.rows = append(r.rows, versions...)
	return versions, nil
}

func (r *fakeFileVersionRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.FileVersion, error) {
	out := []*types.FileVersion{}
	for _, v := range r.rows {
		if v.FileID == fileID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNum < out[j].VersionNum })
	return out, nil
}

func (r *fakeFileVersionRepo) DeleteByFileIDs(dbc dbctx.Context, fileIDs []uuid.UUID) (int64, error) {
	want := map[uuid.UUID]struct{}{}
	for _, id := range fileIDs {
		want[id] = struct{}{}
	}
	var kept []*types.FileVersion
	var n int64
	for _, v := range r.rows {
		if _, ok := want[v.FileID]; ok {
			n++
			continue
		}
		kept = append(kept, v)
	}
	r.rows = kept
	return n, nil
}

// fakeEntryRepo keeps entries in insertion order and implements the same
// revision compare-and-swap contract as the real repo. failCAS forces that
// many CAS attempts to report zero rows before succeeding.
type fakeEntryRepo struct {
	rows    []*types.MetadataEntry
	failCAS int
}

func newFakeEntryRepo() *fakeEntryRepo { return &fakeEntryRepo{} }

func (r *fakeEntryRepo) Create(dbc dbctx.Context, entries []*types.MetadataEntry) ([]*types.MetadataEntry, error) {
	r.rows = append(r.rows, entries...)
	return entries, nil
}

func (r *fakeEntryRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MetadataEntry, error) {
	for _, e := range r.rows {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEntryRepo) GetByResource(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) ([]*types.MetadataEntry, error) {
	out := []*types.MetadataEntry{}
	for _, e := range r.rows {
		if !matchesResource(e, resource) || !matchesFilter(e, filter) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeEntryRepo) FirstByAgent(dbc dbctx.Context, resource types.ResourceRef, agent types.Agent) (*types.MetadataEntry, error) {
	for _, e := range r.rows {
		if matchesResource(e, resource) && e.MatchesAgent(agent) {
			return e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEntryRepo) UpdateCAS(dbc dbctx.Context, id uuid.UUID, revision int64, updates map[string]interface{}) (int64, error) {
	if r.failCAS > 0 {
		r.failCAS--
		return 0, nil
	}
	for _, e := range r.rows {
		if e.ID != id || e.Revision != revision {
			continue
		}
		applyEntryUpdates(e, updates)
		return 1, nil
	}
	return 0, nil
}

func (r *fakeEntryRepo) DeleteByResource(dbc dbctx.Context, resource types.ResourceRef, filter *types.AgentFilter) (int64, error) {
	var kept []*types.MetadataEntry
	var n int64
	for _, e := range r.rows {
		if matchesResource(e, resource) && matchesFilter(e, filter) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.rows = kept
	return n, nil
}

func (r *fakeEntryRepo) DeleteByResourceIDs(dbc dbctx.Context, collection types.Collection, resourceIDs []uuid.UUID) (int64, error) {
	want := map[uuid.UUID]struct{}{}
	for _, id := range resourceIDs {
		want[id] = struct{}{}
	}
	var kept []*types.MetadataEntry
	var n int64
	for _, e := range r.rows {
		if e.ResourceCollection == string(collection) {
			if _, ok := want[e.ResourceID]; ok {
				n++
				continue
			}
		}
		kept = append(kept, e)
	}
	r.rows = kept
	return n, nil
}

func matchesResource(e *types.MetadataEntry, resource types.ResourceRef) bool {
	return e.ResourceCollection == string(resource.Collection) && e.ResourceID == resource.ID
}

func matchesFilter(e *types.MetadataEntry, filter *types.AgentFilter) bool {
	if filter == nil {
		return true
	}
	if filter.ExtractorName != nil {
		if e.AgentExtractorName == nil || *e.AgentExtractorName != *filter.ExtractorName {
			return false
		}
	}
	if filter.ExtractorVersion != nil {
		if e.AgentExtractorVersion == nil || *e.AgentExtractorVersion != *filter.ExtractorVersion {
			return false
		}
	}
	return true
}

func applyEntryUpdates(e *types.MetadataEntry, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "content":
			e.Content = v.(datatypes.JSON)
		case "revision":
			e.Revision = v.(int64)
		case "updated_at":
			e.UpdatedAt = v.(time.Time)
		case "context_url":
			e.ContextURL = v.(string)
		case "definition_name":
			e.DefinitionName = v.(string)
		case "context_json":
			if v == nil {
				e.ContextJSON = nil
			} else {
				e.ContextJSON = v.(datatypes.JSON)
			}
		case "agent_creator_id":
			e.AgentCreatorID = v.(uuid.UUID)
		case "agent_extractor_name":
			if v == nil {
				e.AgentExtractorName = nil
			} else {
				s := v.(string)
				e.AgentExtractorName = &s
			}
		case "agent_extractor_version":
			if v == nil {
				e.AgentExtractorVersion = nil
			} else {
				s := v.(string)
				e.AgentExtractorVersion = &s
			}
		}
	}
}

type fakeDefinitionRepo struct {
	rows map[string]*types.MetadataDefinition
}

func newFakeDefinitionRepo() *fakeDefinitionRepo {
	return &fakeDefinitionRepo{rows: map[string]*types.MetadataDefinition{}}
}

func (r *fakeDefinitionRepo) Create(dbc dbctx.Context, defs []*types.MetadataDefinition) ([]*types.MetadataDefinition, error) {
	for _, d := range defs {
		if _, dup := r.rows[d.Name]; dup {
			return nil, fmt.Errorf("duplicate key value violates unique constraint: %s already exists", d.Name)
		}
		r.rows[d.Name] = d
	}
	return defs, nil
}

func (r *fakeDefinitionRepo) GetByName(dbc dbctx.Context, name string) (*types.MetadataDefinition, error) {
	d, ok := r.rows[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (r *fakeDefinitionRepo) List(dbc dbctx.Context, skip, limit int) ([]*types.MetadataDefinition, error) {
	out := []*types.MetadataDefinition{}
	for _, d := range r.rows {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeDefinitionRepo) DeleteByName(dbc dbctx.Context, name string) (int64, error) {
	if _, ok := r.rows[name]; !ok {
		return 0, nil
	}
	delete(r.rows, name)
	return 1, nil
}

type fakeExtractorRepo struct {
	rows map[string]*types.Extractor
}

func newFakeExtractorRepo() *fakeExtractorRepo {
	return &fakeExtractorRepo{rows: map[string]*types.Extractor{}}
}

func extractorKey(name, version string) string { return name + "/" + version }

func (r *fakeExtractorRepo) Create(dbc dbctx.Context, extractors []*types.Extractor) ([]*types.Extractor, error) {
	for _, e := range extractors {
		key := extractorKey(e.Name, e.Version)
		if _, dup := r.rows[key]; dup {
			return nil, fmt.Errorf("duplicate key value violates unique constraint: %s already exists", key)
		}
		r.rows[key] = e
	}
	return extractors, nil
}

func (r *fakeExtractorRepo) GetByNameVersion(dbc dbctx.Context, name, version string) (*types.Extractor, error) {
	e, ok := r.rows[extractorKey(name, version)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return e, nil
}

func (r *fakeExtractorRepo) List(dbc dbctx.Context, name string, skip, limit int) ([]*types.Extractor, error) {
	out := []*types.Extractor{}
	for _, e := range r.rows {
		if name != "" && e.Name != name {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return extractorKey(out[i].Name, out[i].Version) < extractorKey(out[j].Name, out[j].Version)
	})
	return out, nil
}

// fakeObjectStore records uploads in memory; keys in failDelete refuse to go
// away, which is how the cascade partial-delete path gets exercised.
type fakeObjectStore struct {
	objects    map[string][]byte
	generation int64
	failDelete map[string]bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, failDelete: map[string]bool{}}
}

func (s *fakeObjectStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (*gcs.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.objects[key] = data
	s.generation++
	return &gcs.UploadResult{Generation: strconv.FormatInt(s.generation, 10), Size: int64(len(data))}, nil
}

func (s *fakeObjectStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeObjectStore) Attrs(ctx context.Context, key string) (*gcs.ObjectAttrs, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return &gcs.ObjectAttrs{Size: int64(len(data))}, nil
}

func (s *fakeObjectStore) Delete(ctx context.Context, key string) error {
	if s.failDelete[key] {
		return fmt.Errorf("object store unreachable for %q", key)
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	for k := range s.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			if err := s.Delete(ctx, k); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *fakeObjectStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	out := []string{}
	for k := range s.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// fakeSearchFeed records every published envelope.
type fakeSearchFeed struct {
	published []redis.Document
	failWith  error
}

func (f *fakeSearchFeed) Publish(ctx context.Context, doc redis.Document) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, doc)
	return nil
}

func (f *fakeSearchFeed) Close() error { return nil }

type fakeUserRepo struct {
	rows map[uuid.UUID]*types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: map[uuid.UUID]*types.User{}}
}

func (r *fakeUserRepo) Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error) {
	for _, u := range users {
		for _, existing := range r.rows {
			if existing.Email == u.Email {
				return nil, fmt.Errorf("duplicate key value violates unique constraint %q", "idx_users_email")
			}
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		r.rows[u.ID] = u
	}
	return users, nil
}

func (r *fakeUserRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	u, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	for _, u := range r.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(dbc dbctx.Context, skip, limit int) ([]*types.User, error) {
	out := make([]*types.User, 0, len(r.rows))
	for _, u := range r.rows {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if skip >= len(out) {
		return []*types.User{}, nil
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
