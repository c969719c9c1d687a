package catalog

import (
	"time"

	"github.com/google/uuid"
)

const (
	DatasetStatusPrivate = "private"
	DatasetStatusPublic  = "public"
)

// Dataset is the top-level container resource. Folders and files live under
// exactly one dataset; deleting a dataset cascades through both plus every
// attached metadata entry.
type Dataset struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	AuthorID    uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	Status      string    `gorm:"type:text;not null;default:'private'" json:"status"`
	Downloads   int64     `gorm:"type:bigint;not null;default:0" json:"downloads"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Dataset) TableName() string { return "dataset" }
