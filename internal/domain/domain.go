package domain

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/stratalabs/strata-backend/internal/domain/catalog"
	"github.com/stratalabs/strata-backend/internal/domain/metadata"
	"github.com/stratalabs/strata-backend/internal/domain/users"
)

type User = users.User

type Dataset = catalog.Dataset
type Folder = catalog.Folder
type File = catalog.File
type FileVersion = catalog.FileVersion

type MetadataEntry = metadata.MetadataEntry
type MetadataDefinition = metadata.MetadataDefinition
type Extractor = metadata.Extractor

type Agent = metadata.Agent
type AgentFilter = metadata.AgentFilter
type ExtractorIdentity = metadata.ExtractorIdentity
type ContextSource = metadata.ContextSource
type ResourceRef = metadata.ResourceRef
type Collection = metadata.Collection
type FieldDecl = metadata.FieldDecl
type FieldType = metadata.FieldType

const (
	CollectionDatasets = metadata.CollectionDatasets
	CollectionFiles    = metadata.CollectionFiles
	CollectionFolders  = metadata.CollectionFolders

	FieldTypeString  = metadata.FieldTypeString
	FieldTypeNumber  = metadata.FieldTypeNumber
	FieldTypeInteger = metadata.FieldTypeInteger
	FieldTypeBoolean = metadata.FieldTypeBoolean
	FieldTypeDate    = metadata.FieldTypeDate
	FieldTypeList    = metadata.FieldTypeList

	DatasetStatusPrivate = catalog.DatasetStatusPrivate
	DatasetStatusPublic  = catalog.DatasetStatusPublic
)

func DatasetRef(id uuid.UUID) ResourceRef {
	return ResourceRef{Collection: CollectionDatasets, ID: id}
}

func FileRef(id uuid.UUID) ResourceRef {
	return ResourceRef{Collection: CollectionFiles, ID: id}
}

func FolderRef(id uuid.UUID) ResourceRef {
	return ResourceRef{Collection: CollectionFolders, ID: id}
}

func MergeContent(existing, patch map[string]any) map[string]any {
	return metadata.MergeContent(existing, patch)
}

func CoerceFieldValue(t FieldType, v any) (any, error) {
	return metadata.CoerceFieldValue(t, v)
}

func ValidFieldType(t FieldType) bool { return metadata.ValidFieldType(t) }

func ValidateFieldDecls(decls []FieldDecl) error { return metadata.ValidateFieldDecls(decls) }

func EncodeFieldDecls(decls []FieldDecl) (datatypes.JSON, error) {
	return metadata.EncodeFieldDecls(decls)
}

func DecodeFieldDecls(raw datatypes.JSON) ([]FieldDecl, error) {
	return metadata.DecodeFieldDecls(raw)
}

func EncodeJSONMap(m map[string]any) (datatypes.JSON, error) { return metadata.EncodeJSONMap(m) }

func DecodeJSONMap(raw datatypes.JSON) (map[string]any, error) { return metadata.DecodeJSONMap(raw) }

func FileStorageKey(datasetID, fileID uuid.UUID) string {
	return catalog.FileStorageKey(datasetID, fileID)
}
