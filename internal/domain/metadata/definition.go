package metadata

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MetadataDefinition is a named, registered vocabulary: a set of typed field
// declarations plus an optional JSON-LD context attached to entries created
// against it.
type MetadataDefinition struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string    `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`

	ContextJSON datatypes.JSON `gorm:"type:jsonb" json:"context_json,omitempty"`
	Fields      datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"fields"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (MetadataDefinition) TableName() string { return "metadata_definition" }

// FieldDecls decodes the stored declaration list.
func (d *MetadataDefinition) FieldDecls() ([]FieldDecl, error) {
	return DecodeFieldDecls(d.Fields)
}
