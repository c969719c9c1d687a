package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// File is the record for one uploaded file. Bytes live in the object store
// under StorageKey; VersionID is the store's generation token for the
// current version and VersionNum counts versions from 1.
type File struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	DatasetID uuid.UUID `gorm:"type:uuid;not null;index" json:"dataset_id"`
	Dataset   *Dataset  `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"dataset,omitempty"`

	FolderID *uuid.UUID `gorm:"type:uuid;index" json:"folder_id,omitempty"`

	Name        string    `gorm:"type:text;not null" json:"name"`
	CreatorID   uuid.UUID `gorm:"type:uuid;not null" json:"creator_id"`
	ContentType string    `gorm:"type:text" json:"content_type"`
	SizeBytes   int64     `gorm:"type:bigint;not null;default:0" json:"size_bytes"`

	StorageKey string `gorm:"type:text;not null" json:"storage_key"`
	VersionID  string `gorm:"type:text" json:"version_id"`
	VersionNum int    `gorm:"not null;default:0" json:"version_num"`

	Downloads int64 `gorm:"type:bigint;not null;default:0" json:"downloads"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (File) TableName() string { return "file" }

// FileStorageKey derives the object-store key for a file's bytes. Keys are
// never caller-supplied.
func FileStorageKey(datasetID, fileID uuid.UUID) string {
	return fmt.Sprintf("datasets/%s/files/%s", datasetID.String(), fileID.String())
}

// FileVersion records one historical version of a file's bytes.
type FileVersion struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	FileID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_file_version_file_num,unique,priority:1" json:"file_id"`
	File   *File     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FileID;references:ID" json:"file,omitempty"`

	VersionID  string    `gorm:"type:text;not null" json:"version_id"`
	VersionNum int       `gorm:"not null;index:idx_file_version_file_num,unique,priority:2" json:"version_num"`
	CreatorID  uuid.UUID `gorm:"type:uuid;not null" json:"creator_id"`
	SizeBytes  int64     `gorm:"type:bigint;not null;default:0" json:"size_bytes"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (FileVersion) TableName() string { return "file_version" }
