package metadata

// ContextSource carries the vocabulary for a metadata submission. Exactly one
// of the three fields may be set: an inline JSON-LD object, a reference URL,
// or the name of a registered definition.
type ContextSource struct {
	Inline     map[string]any `json:"context,omitempty"`
	URL        string         `json:"context_url,omitempty"`
	Definition string         `json:"definition,omitempty"`
}

// Count reports how many sources are set. Resolution requires exactly one.
func (c ContextSource) Count() int {
	n := 0
	if c.Inline != nil {
		n++
	}
	if c.URL != "" {
		n++
	}
	if c.Definition != "" {
		n++
	}
	return n
}

func (c ContextSource) IsZero() bool { return c.Count() == 0 }
