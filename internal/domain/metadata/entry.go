package metadata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MetadataEntry is one attributed metadata document attached to a resource.
// A resource may hold many entries; the pair (resource, agent identity) is
// the addressing key for replace/patch, enforced by lookup rather than by a
// unique constraint so that plain creates never collide.
type MetadataEntry struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	ResourceCollection string    `gorm:"type:text;not null;index:idx_metadata_entry_resource,priority:1" json:"resource_collection"`
	ResourceID         uuid.UUID `gorm:"type:uuid;not null;index:idx_metadata_entry_resource,priority:2" json:"resource_id"`

	// AgentCreatorID is always recorded for audit. For extractor entries it
	// names the caller who ran the extractor and is not part of the identity.
	AgentCreatorID        uuid.UUID `gorm:"type:uuid;not null;index" json:"agent_creator_id"`
	AgentExtractorName    *string   `gorm:"type:text;index" json:"agent_extractor_name,omitempty"`
	AgentExtractorVersion *string   `gorm:"type:text" json:"agent_extractor_version,omitempty"`

	// Exactly one context source is set, validated on write.
	ContextJSON    datatypes.JSON `gorm:"type:jsonb" json:"context_json,omitempty"`
	ContextURL     string         `gorm:"type:text" json:"context_url,omitempty"`
	DefinitionName string         `gorm:"type:text" json:"definition_name,omitempty"`

	Content datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"content"`

	// Revision guards read-modify-write updates. Bumped on every replace or
	// patch and compared in the UPDATE's WHERE clause.
	Revision int64 `gorm:"type:bigint;not null;default:1" json:"revision"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (MetadataEntry) TableName() string { return "metadata_entry" }

// Agent reconstructs the authoring agent from the entry's columns.
func (e *MetadataEntry) Agent() Agent {
	a := Agent{CreatorID: e.AgentCreatorID}
	if e.AgentExtractorName != nil && *e.AgentExtractorName != "" {
		version := ""
		if e.AgentExtractorVersion != nil {
			version = *e.AgentExtractorVersion
		}
		a.Extractor = &ExtractorIdentity{Name: *e.AgentExtractorName, Version: version}
	}
	return a
}

// AgentKey is the stable identity string used to group entries per agent,
// e.g. in materialized search documents.
func (e *MetadataEntry) AgentKey() string {
	return e.Agent().Key()
}

// MatchesAgent reports whether the entry is addressed by the given agent
// identity. Creator entries match on creator id only when no extractor is
// recorded; extractor entries match on (name, version) regardless of caller.
func (e *MetadataEntry) MatchesAgent(a Agent) bool {
	entryAgent := e.Agent()
	if a.Extractor != nil {
		return entryAgent.Extractor != nil &&
			entryAgent.Extractor.Name == a.Extractor.Name &&
			entryAgent.Extractor.Version == a.Extractor.Version
	}
	return entryAgent.Extractor == nil && entryAgent.CreatorID == a.CreatorID
}

// ResourceRef rebuilds the typed resource reference for the entry.
func (e *MetadataEntry) ResourceRef() ResourceRef {
	return ResourceRef{Collection: Collection(e.ResourceCollection), ID: e.ResourceID}
}

func (e *MetadataEntry) String() string {
	return fmt.Sprintf("metadata_entry %s on %s/%s by %s", e.ID, e.ResourceCollection, e.ResourceID, e.AgentKey())
}
