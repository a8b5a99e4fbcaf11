package registry

// MergeEntry overlays fresh entry fields onto an existing entry in place.
// Precedence is field-by-field: a set (non-zero) field in the new entry
// wins, an unset field leaves the prior value untouched. Added is handled
// by the reconciler and never copied here, so the one-time lifecycle marker
// survives any number of merges.
func MergeEntry(old, fresh *VersionEntry) {
	if fresh.Name != "" {
		old.Name = fresh.Name
	}
	if fresh.Filename != "" {
		old.Filename = fresh.Filename
	}
	if fresh.Hash != "" {
		old.Hash = fresh.Hash
	}
	if fresh.Format != "" {
		old.Format = fresh.Format
	}
	if fresh.FormatVersion != "" {
		old.FormatVersion = fresh.FormatVersion
	}
	if fresh.Source != nil {
		old.Source = fresh.Source
	}
	if fresh.History != nil {
		old.History = fresh.History
	}
	if !fresh.Updated.IsZero() {
		old.Updated = fresh.Updated
	}
	if fresh.Valid != nil {
		old.Valid = fresh.Valid
	}
	if fresh.StatusCode != 0 {
		old.StatusCode = fresh.StatusCode
	}
	if fresh.MediaType != "" {
		old.MediaType = fresh.MediaType
	}
	if fresh.Fixes != 0 {
		old.Fixes = fresh.Fixes
	}
	if fresh.AutoUpgrade != "" {
		old.AutoUpgrade = fresh.AutoUpgrade
	}
	if fresh.Endpoints != 0 {
		old.Endpoints = fresh.Endpoints
	}
	if fresh.Preferred != nil {
		old.Preferred = fresh.Preferred
	}
	if fresh.Unofficial {
		old.Unofficial = true
	}
	if fresh.Cached != "" {
		old.Cached = fresh.Cached
	}
	if fresh.Run != "" {
		old.Run = fresh.Run
	}
}

// DeepOverlay merges patch into base and returns the result without
// mutating either input. Rules: objects recurse, arrays are replaced
// wholesale, scalars take the patch value.
func DeepOverlay(base, patch map[string]any) map[string]any {
	if base == nil && patch == nil {
		return nil
	}
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		bv, ok := out[k]
		if !ok {
			out[k] = pv
			continue
		}
		bm, bIsMap := bv.(map[string]any)
		pm, pIsMap := pv.(map[string]any)
		if bIsMap && pIsMap {
			out[k] = DeepOverlay(bm, pm)
			continue
		}
		out[k] = pv
	}
	return out
}
