package metadata

// MergeContent applies a partial content update on top of existing content.
// The merge is shallow: each top-level patch key overwrites the existing
// value wholesale. An explicit null is a no-op, never a delete, so callers
// cannot clear a field through patch. Neither input map is mutated.
func MergeContent(existing, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(patch))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			continue
		}
		merged[k] = v
	}
	return merged
}
