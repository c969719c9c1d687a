package metadata

import (
	"time"

	"github.com/google/uuid"
)

// Extractor is a registered automated agent release. Versions are strings so
// multi-part releases like "1.0.2" round-trip exactly.
type Extractor struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string    `gorm:"type:text;not null;index:idx_extractor_name_version,unique,priority:1" json:"name"`
	Version     string    `gorm:"type:text;not null;index:idx_extractor_name_version,unique,priority:2" json:"version"`
	Description string    `gorm:"type:text" json:"description"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Extractor) TableName() string { return "extractor" }

// Identity returns the agent identity for this extractor release.
func (e *Extractor) Identity() ExtractorIdentity {
	return ExtractorIdentity{Name: e.Name, Version: e.Version}
}
