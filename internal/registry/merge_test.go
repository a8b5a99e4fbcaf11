package registry

import (
	"testing"
	"time"
)

func TestMergeEntry_FreshWins(t *testing.T) {
	now := time.Now()
	old := &VersionEntry{Filename: "old.yaml", Hash: "h1", StatusCode: 404}
	valid := true
	fresh := &VersionEntry{Hash: "h2", Valid: &valid, Updated: now, Run: "tok"}

	MergeEntry(old, fresh)

	if old.Hash != "h2" {
		t.Errorf("hash = %q, want fresh value", old.Hash)
	}
	if old.Filename != "old.yaml" {
		t.Errorf("filename = %q, unset fresh field must not clobber", old.Filename)
	}
	if old.Valid == nil || !*old.Valid {
		t.Error("valid pointer not merged")
	}
	if old.Run != "tok" || !old.Updated.Equal(now) {
		t.Errorf("run/updated not merged: %+v", old)
	}
}

func TestMergeEntry_AddedNeverCopied(t *testing.T) {
	orig := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	old := &VersionEntry{Added: orig}
	fresh := &VersionEntry{Added: time.Now(), Hash: "h"}

	MergeEntry(old, fresh)

	if !old.Added.Equal(orig) {
		t.Errorf("added = %v, must survive merges", old.Added)
	}
}

func TestMergeEntry_Idempotent(t *testing.T) {
	valid := true
	fresh := &VersionEntry{
		Filename: "f", Hash: "h", Format: "openapi", FormatVersion: "3.0.0",
		Source: &Origin{URL: "u"}, Valid: &valid, Endpoints: 3, Run: "tok",
	}
	a := &VersionEntry{}
	MergeEntry(a, fresh)
	once := *a
	MergeEntry(a, fresh)

	if a.Filename != once.Filename || a.Hash != once.Hash ||
		a.Format != once.Format || a.FormatVersion != once.FormatVersion ||
		a.Source != once.Source || a.Valid != once.Valid ||
		a.Endpoints != once.Endpoints || a.Run != once.Run {
		t.Errorf("second merge changed the entry: %+v vs %+v", *a, once)
	}
}

func TestDeepOverlay_Rules(t *testing.T) {
	base := map[string]any{
		"info": map[string]any{
			"title":   "Base",
			"contact": map[string]any{"email": "old@example.com"},
		},
		"tags":  []any{"a", "b"},
		"keep":  "kept",
		"count": 1,
	}
	patch := map[string]any{
		"info": map[string]any{
			"contact": map[string]any{"email": "new@example.com"},
		},
		"tags":  []any{"c"},
		"count": 2,
	}

	out := DeepOverlay(base, patch)

	info := out["info"].(map[string]any)
	if info["title"] != "Base" {
		t.Error("nested untouched key lost")
	}
	if info["contact"].(map[string]any)["email"] != "new@example.com" {
		t.Error("nested scalar should take patch value")
	}
	if tags := out["tags"].([]any); len(tags) != 1 || tags[0] != "c" {
		t.Errorf("arrays must be replaced wholesale: %v", tags)
	}
	if out["keep"] != "kept" || out["count"] != 2 {
		t.Errorf("scalar rules violated: %v", out)
	}
}

func TestDeepOverlay_DoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"info": map[string]any{"title": "Base"}}
	patch := map[string]any{"info": map[string]any{"title": "Patched"}}

	_ = DeepOverlay(base, patch)

	if base["info"].(map[string]any)["title"] != "Base" {
		t.Error("base mutated")
	}
}

func TestDeepOverlay_NilInputs(t *testing.T) {
	if DeepOverlay(nil, nil) != nil {
		t.Error("nil+nil should stay nil")
	}
	out := DeepOverlay(nil, map[string]any{"a": 1})
	if out["a"] != 1 {
		t.Errorf("nil base: %v", out)
	}
	out = DeepOverlay(map[string]any{"a": 1}, nil)
	if out["a"] != 1 {
		t.Errorf("nil patch: %v", out)
	}
}
