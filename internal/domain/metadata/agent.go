package metadata

import (
	"fmt"

	"github.com/google/uuid"
)

// ExtractorIdentity names a registered extractor release. Two runs of the
// same (name, version) are the same agent no matter who triggered them.
type ExtractorIdentity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Agent is the resolved author of a metadata entry. CreatorID is always set;
// when Extractor is non-nil the extractor identity owns the entry and
// CreatorID is audit trail only.
type Agent struct {
	CreatorID uuid.UUID
	Extractor *ExtractorIdentity
}

func (a Agent) IsExtractor() bool { return a.Extractor != nil }

// Key is the stable identity string for lookups and grouping.
func (a Agent) Key() string {
	if a.Extractor != nil {
		return fmt.Sprintf("extractor:%s/%s", a.Extractor.Name, a.Extractor.Version)
	}
	return "creator:" + a.CreatorID.String()
}

// AgentFilter narrows metadata queries and deletes to extractor entries.
// Nil fields are not applied; a nil filter matches every agent.
type AgentFilter struct {
	ExtractorName    *string
	ExtractorVersion *string
}

func (f *AgentFilter) IsZero() bool {
	return f == nil || (f.ExtractorName == nil && f.ExtractorVersion == nil)
}
