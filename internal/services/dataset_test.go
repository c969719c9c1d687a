package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/stratalabs/strata-backend/internal/clients/redis"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/apperr"
)

// catalogHarness wires the full service graph over in-memory fakes so the
// cascade paths (dataset -> folders -> files -> blobs -> metadata) can be
// exercised end to end.
type catalogHarness struct {
	*metadataHarness
	versions   *fakeFileVersionRepo
	store      *fakeObjectStore
	datasetSvc DatasetService
	folderSvc  FolderService
	fileSvc    FileService
}

func newCatalogHarness(t *testing.T) *catalogHarness {
	t.Helper()
	log := testLogger(t)
	h := &catalogHarness{
		metadataHarness: newMetadataHarness(t),
		versions:        newFakeFileVersionRepo(),
		store:           newFakeObjectStore(),
	}
	searchFeed := NewSearchFeedService(log, h.feed, h.datasets, h.files, h.folders, h.entries)
	h.datasetSvc = NewDatasetService(nil, log,
		h.datasets, h.folders, h.files, h.versions, h.entries, h.svc, h.store, searchFeed)
	h.folderSvc = NewFolderService(nil, log,
		h.datasets, h.folders, h.files, h.versions, h.entries, h.store, searchFeed)
	h.fileSvc = NewFileService(nil, log,
		h.datasets, h.folders, h.files, h.versions, h.svc, h.store, searchFeed)
	return h
}

func (h *catalogHarness) saveFile(t *testing.T, datasetID uuid.UUID, folderID *uuid.UUID, name string) *types.File {
	t.Helper()
	file, err := h.fileSvc.Save(testDbc(), FileInput{
		DatasetID:   datasetID,
		FolderID:    folderID,
		Name:        name,
		ContentType: "text/plain",
		CreatorID:   uuid.New(),
	}, strings.NewReader("payload for "+name))
	if err != nil {
		t.Fatalf("save file %s: %v", name, err)
	}
	return file
}

func (h *catalogHarness) attachMetadata(t *testing.T, resource types.ResourceRef) {
	t.Helper()
	if _, err := h.svc.Create(testDbc(), MetadataInput{
		Resource: resource,
		Context:  types.ContextSource{URL: "https://schema.org/"},
		Content:  map[string]any{"title": resource.String()},
		CallerID: uuid.New(),
	}); err != nil {
		t.Fatalf("attach metadata to %s: %v", resource.String(), err)
	}
}

func TestDatasetCreateDefaultsToPrivate(t *testing.T) {
	h := newCatalogHarness(t)

	ds, err := h.datasetSvc.Create(testDbc(), DatasetInput{Name: "scans", AuthorID: uuid.New()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ds.Status != types.DatasetStatusPrivate {
		t.Fatalf("status: want=%s got=%s", types.DatasetStatusPrivate, ds.Status)
	}
}

func TestDatasetCreateRequiresName(t *testing.T) {
	h := newCatalogHarness(t)

	_, err := h.datasetSvc.Create(testDbc(), DatasetInput{Name: "  ", AuthorID: uuid.New()})
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("want validation, got %v", err)
	}
}

func TestDatasetPatchInfoSkipsNilFields(t *testing.T) {
	h := newCatalogHarness(t)
	ds, err := h.datasetSvc.Create(testDbc(), DatasetInput{
		Name: "scans", Description: "original", AuthorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	desc := "updated"
	patched, err := h.datasetSvc.PatchInfo(testDbc(), ds.ID, DatasetPatch{Description: &desc})
	if err != nil {
		t.Fatalf("PatchInfo: %v", err)
	}
	if patched.Description != "updated" {
		t.Fatalf("description: want=updated got=%q", patched.Description)
	}
	if patched.Name != "scans" {
		t.Fatalf("nil field must be skipped: name got=%q", patched.Name)
	}
}

func TestDatasetDeleteCascades(t *testing.T) {
	h := newCatalogHarness(t)
	ds, err := h.datasetSvc.Create(testDbc(), DatasetInput{Name: "scans", AuthorID: uuid.New()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	folder, err := h.folderSvc.Add(testDbc(), FolderInput{
		DatasetID: ds.ID, Name: "raw", AuthorID: ds.AuthorID,
	})
	if err != nil {
		t.Fatalf("Add folder: %v", err)
	}
	rootFile := h.saveFile(t, ds.ID, nil, "readme.txt")
	nestedFile := h.saveFile(t, ds.ID, &folder.ID, "scan-001.tif")

	h.attachMetadata(t, types.DatasetRef(ds.ID))
	h.attachMetadata(t, types.FolderRef(folder.ID))
	h.attachMetadata(t, types.FileRef(rootFile.ID))
	h.attachMetadata(t, types.FileRef(nestedFile.ID))

	if err := h.datasetSvc.Delete(testDbc(), ds.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(h.datasets.rows) != 0 {
		t.Fatalf("dataset rows remaining: %d", len(h.datasets.rows))
	}
	if len(h.folders.rows) != 0 {
		t.Fatalf("folder rows remaining: %d", len(h.folders.rows))
	}
	if len(h.files.rows) != 0 {
		t.Fatalf("file rows remaining: %d", len(h.files.rows))
	}
	if len(h.versions.rows) != 0 {
		t.Fatalf("file version rows remaining: %d", len(h.versions.rows))
	}
	if len(h.entries.rows) != 0 {
		t.Fatalf("metadata rows remaining: %d", len(h.entries.rows))
	}
	if len(h.store.objects) != 0 {
		t.Fatalf("blobs remaining: %d", len(h.store.objects))
	}

	var sawDelete bool
	for _, doc := range h.feed.published {
		if doc.Op == redis.OpDelete && doc.DocType == redis.DocTypeDataset && doc.ID == ds.ID.String() {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Fatalf("expected a dataset delete envelope in %d published docs", len(h.feed.published))
	}
}

func TestDatasetDeleteReportsFailedBlobs(t *testing.T) {
	h := newCatalogHarness(t)
	ds, err := h.datasetSvc.Create(testDbc(), DatasetInput{Name: "scans", AuthorID: uuid.New()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	kept := h.saveFile(t, ds.ID, nil, "kept.txt")
	stuck := h.saveFile(t, ds.ID, nil, "stuck.txt")
	h.store.failDelete[stuck.StorageKey] = true

	err = h.datasetSvc.Delete(testDbc(), ds.ID)
	if !apperr.IsCode(err, apperr.CodePartialDelete) {
		t.Fatalf("want partial_delete, got %v", err)
	}
	if !strings.Contains(err.Error(), stuck.StorageKey) {
		t.Fatalf("error should name the orphaned key %q: %v", stuck.StorageKey, err)
	}

	// Rows are gone even when a blob delete fails; the error exists so an
	// operator can sweep the orphaned objects, not to roll anything back.
	if len(h.datasets.rows) != 0 || len(h.files.rows) != 0 || len(h.versions.rows) != 0 {
		t.Fatalf("rows must be cleaned despite blob failure: datasets=%d files=%d versions=%d",
			len(h.datasets.rows), len(h.files.rows), len(h.versions.rows))
	}
	if _, ok := h.store.objects[kept.StorageKey]; ok {
		t.Fatalf("deletable blob %q should be gone", kept.StorageKey)
	}
	if _, ok := h.store.objects[stuck.StorageKey]; !ok {
		t.Fatalf("failed blob %q should remain for the sweep", stuck.StorageKey)
	}
}

func TestDatasetListFiltersByAuthor(t *testing.T) {
	h := newCatalogHarness(t)
	authorA, authorB := uuid.New(), uuid.New()
	for _, author := range []uuid.UUID{authorA, authorA, authorB} {
		if _, err := h.datasetSvc.Create(testDbc(), DatasetInput{Name: "d", AuthorID: author}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	mine, err := h.datasetSvc.List(testDbc(), &authorA, 0, 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("author filter: want=2 got=%d", len(mine))
	}
	all, err := h.datasetSvc.List(testDbc(), nil, 0, 50)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("unfiltered: want=3 got=%d", len(all))
	}
}
