package metadata

import (
	"github.com/google/uuid"
)

// Collection identifies the kind of resource a metadata entry hangs off.
type Collection string

const (
	CollectionDatasets Collection = "datasets"
	CollectionFiles    Collection = "files"
	CollectionFolders  Collection = "folders"
)

func (c Collection) Valid() bool {
	switch c {
	case CollectionDatasets, CollectionFiles, CollectionFolders:
		return true
	default:
		return false
	}
}

// ResourceRef addresses one dataset, file or folder.
type ResourceRef struct {
	Collection Collection
	ID         uuid.UUID
}

func (r ResourceRef) Valid() bool {
	return r.Collection.Valid() && r.ID != uuid.Nil
}

func (r ResourceRef) String() string {
	return string(r.Collection) + "/" + r.ID.String()
}
