package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Folder is a node in a dataset's directory tree. Roots have a nil parent.
type Folder struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	DatasetID uuid.UUID `gorm:"type:uuid;not null;index" json:"dataset_id"`
	Dataset   *Dataset  `gorm:"constraint:OnDelete:CASCADE;foreignKey:DatasetID;references:ID" json:"dataset,omitempty"`

	ParentFolderID *uuid.UUID `gorm:"type:uuid;index" json:"parent_folder_id,omitempty"`

	Name     string    `gorm:"type:text;not null" json:"name"`
	AuthorID uuid.UUID `gorm:"type:uuid;not null" json:"author_id"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Folder) TableName() string { return "folder" }
