package run

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/scan"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testContext builds a run context over a registry store backed by a temp
// file, pre-seeded with reg. The second return is the failures directory.
func testContext(t *testing.T, kindName string, reg registry.Registry) (*Context, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	failuresDir := filepath.Join(dir, "failures")
	store := registry.NewStore(path, failuresDir, quietLogger())
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}
	for name, p := range reg {
		store.Reg[name] = p
	}
	kind, err := KindFor(kindName)
	if err != nil {
		t.Fatal(err)
	}
	return New(kind, store, quietLogger()), failuresDir
}

// seedRegistry builds a registry from "provider|service|version" keys.
func seedRegistry(entries map[string]*registry.VersionEntry) registry.Registry {
	reg := make(registry.Registry)
	for key, e := range entries {
		parts := strings.SplitN(key, "|", 3)
		reg.GetOrCreateProvider(parts[0]).GetOrCreateService(parts[1]).Versions[parts[2]] = e
	}
	return reg
}

func TestKindFor(t *testing.T) {
	k, err := KindFor("update")
	if err != nil {
		t.Fatal(err)
	}
	if !k.Slow || !k.UpdateStyle {
		t.Errorf("update kind = %+v", k)
	}
	if _, err := KindFor("nonsense"); err == nil {
		t.Error("unknown verb should error")
	}
}

func TestLedger(t *testing.T) {
	l := make(Ledger)
	l.Record("p", "s", "1.0.0", &Failure{Status: 404})
	l.Record("p", "s", "1.0.0", &Failure{Status: 500})

	if !l.Has("p", "s", "1.0.0") {
		t.Error("Has = false")
	}
	if l.Get("p", "s", "1.0.0").Status != 500 {
		t.Error("latest failure should win")
	}
	if l.Has("p", "s", "2.0.0") || l.Get("q", "", "") != nil {
		t.Error("phantom failures")
	}
}

func TestReconcile_MarkPhase(t *testing.T) {
	in := &registry.VersionEntry{Filename: "APIs/a.com/1.0.0/openapi.yaml"}
	out := &registry.VersionEntry{Filename: "elsewhere/b.com/1.0.0/openapi.yaml"}
	rc, _ := testContext(t, "check", seedRegistry(map[string]*registry.VersionEntry{
		"a.com||1.0.0": in,
		"b.com||1.0.0": out,
	}))

	rc.Reconcile(nil, "APIs", ReconcileOptions{})

	if in.Run != rc.Token {
		t.Error("in-scope entry not marked")
	}
	if out.Run != "" {
		t.Error("out-of-scope entry marked")
	}
}

func TestReconcile_SmallSkipsLargeProviders(t *testing.T) {
	reg := make(registry.Registry)
	big := reg.GetOrCreateProvider("big.com")
	for i := 0; i < SmallProviderCap; i++ {
		big.GetOrCreateService(string(rune('a'+i%26))+string(rune('0'+i/26))).Versions["1.0.0"] = &registry.VersionEntry{Filename: "APIs/x"}
	}
	small := &registry.VersionEntry{Filename: "APIs/small"}
	reg.GetOrCreateProvider("small.com").GetOrCreateService("").Versions["1.0.0"] = small

	rc, _ := testContext(t, "ci", reg)
	rc.Reconcile(nil, "APIs", ReconcileOptions{Small: true})

	if small.Run != rc.Token {
		t.Error("small provider should still be marked")
	}
	for _, sn := range big.ServiceNames() {
		if big.APIs[sn].Versions["1.0.0"].Run != "" {
			t.Fatal("large provider should be skipped under the small cap")
		}
	}
}

func TestReconcile_IngestCreatesEntry(t *testing.T) {
	rc, _ := testContext(t, "update", make(registry.Registry))
	docs := map[string]*scan.Document{
		"APIs/example.com/1.0.0/openapi.yaml": {
			Path:          "APIs/example.com/1.0.0/openapi.yaml",
			Hash:          "h1",
			Format:        "openapi",
			FormatVersion: "3.0.0",
			Endpoints:     4,
		},
	}

	rc.Reconcile(docs, "APIs", ReconcileOptions{})

	p := rc.Store.Reg["example.com"]
	if p == nil {
		t.Fatal("provider not created")
	}
	e := p.APIs[""].Versions["1.0.0"]
	if e == nil {
		t.Fatal("entry not created")
	}
	if e.Hash != "h1" || e.Endpoints != 4 || e.Run != rc.Token {
		t.Errorf("entry = %+v", e)
	}
	if e.Added.IsZero() {
		t.Error("added not set on first observation")
	}
}

func TestReconcile_DocIdentityWins(t *testing.T) {
	// The path says v1 but the document declares 1.0.0; the declared
	// identity wins for the registry key.
	rc, _ := testContext(t, "update", make(registry.Registry))
	docs := map[string]*scan.Document{
		"APIs/example.com/v1/openapi.yaml": {
			Path:         "APIs/example.com/v1/openapi.yaml",
			Version:      "1.0.0",
			ProviderName: "renamed.com",
			Format:       "openapi",
		},
	}

	rc.Reconcile(docs, "APIs", ReconcileOptions{})

	if rc.Store.Reg["renamed.com"] == nil {
		t.Fatal("declared provider should win over the path segment")
	}
	if rc.Store.Reg["renamed.com"].APIs[""].Versions["1.0.0"] == nil {
		t.Error("declared version should win over the path segment")
	}
}

func TestReconcile_ServiceSegmentPopped(t *testing.T) {
	rc, _ := testContext(t, "update", make(registry.Registry))
	docs := map[string]*scan.Document{
		"APIs/example.com/payments/2.0.0/openapi.yaml": {
			Path:        "APIs/example.com/payments/2.0.0/openapi.yaml",
			HasService:  true,
			ServiceName: "payments",
			Format:      "openapi",
		},
	}

	rc.Reconcile(docs, "APIs", ReconcileOptions{})

	p := rc.Store.Reg["example.com"]
	if p == nil || p.APIs["payments"] == nil {
		t.Fatalf("reg = %+v", rc.Store.Reg)
	}
	if p.APIs["payments"].Versions["2.0.0"] == nil {
		t.Error("version entry missing")
	}
}

func TestReconcile_IdempotentRemerge(t *testing.T) {
	rc, _ := testContext(t, "update", make(registry.Registry))
	doc := &scan.Document{
		Path:   "APIs/example.com/1.0.0/openapi.yaml",
		Hash:   "h1",
		Format: "openapi",
	}
	docs := map[string]*scan.Document{doc.Path: doc}

	rc.Reconcile(docs, "APIs", ReconcileOptions{})
	e := rc.Store.Reg["example.com"].APIs[""].Versions["1.0.0"]
	added := e.Added

	rc.Reconcile(docs, "APIs", ReconcileOptions{})
	e2 := rc.Store.Reg["example.com"].APIs[""].Versions["1.0.0"]
	if e2 != e {
		t.Error("re-merge must reuse the same entry")
	}
	if !e2.Added.Equal(added) {
		t.Error("added must be set exactly once")
	}
}

func TestReconcile_PatchReplacedNotMerged(t *testing.T) {
	rc, _ := testContext(t, "update", make(registry.Registry))
	path := "APIs/example.com/1.0.0/openapi.yaml"

	rc.Reconcile(map[string]*scan.Document{path: {
		Path:          path,
		Format:        "openapi",
		ProviderPatch: map[string]any{"a": 1, "b": 2},
		ServicePatch:  map[string]any{"x": 1},
	}}, "APIs", ReconcileOptions{})

	rc.Reconcile(map[string]*scan.Document{path: {
		Path:          path,
		Format:        "openapi",
		ProviderPatch: map[string]any{"c": 3},
		ServicePatch:  map[string]any{"y": 2},
	}}, "APIs", ReconcileOptions{})

	p := rc.Store.Reg["example.com"]
	if len(p.Patch) != 1 || p.Patch["c"] != 3 {
		t.Errorf("provider patch accumulated instead of replaced: %v", p.Patch)
	}
	sp := p.APIs[""].Patch
	if len(sp) != 1 || sp["y"] != 2 {
		t.Errorf("service patch accumulated instead of replaced: %v", sp)
	}
}

func TestReconcile_OriginsSplit(t *testing.T) {
	rc, _ := testContext(t, "update", make(registry.Registry))
	path := "APIs/example.com/1.0.0/openapi.yaml"
	rc.Reconcile(map[string]*scan.Document{path: {
		Path:   path,
		Format: "openapi",
		Origins: []registry.Origin{
			{URL: "https://old.example.com"},
			{URL: "https://live.example.com"},
		},
	}}, "APIs", ReconcileOptions{})

	e := rc.Store.Reg["example.com"].APIs[""].Versions["1.0.0"]
	if e.Source == nil || e.Source.URL != "https://live.example.com" {
		t.Errorf("source = %+v, want last origin", e.Source)
	}
	if len(e.History) != 1 || e.History[0].URL != "https://old.example.com" {
		t.Errorf("history = %+v, want all but last", e.History)
	}
}

func TestSelect_DriverGroupsComplete(t *testing.T) {
	reg := make(registry.Registry)
	pa := reg.GetOrCreateProvider("a.com")
	pa.Driver = registry.DriverAPIsJSON
	pa.GetOrCreateService("").Versions["1.0.0"] = &registry.VersionEntry{}
	pa.GetOrCreateService("svc").Versions["2.0.0"] = &registry.VersionEntry{}
	pb := reg.GetOrCreateProvider("b.com")
	pb.Driver = registry.DriverURL
	pb.GetOrCreateService("").Versions["1.0.0"] = &registry.VersionEntry{}

	rc, _ := testContext(t, "ci", reg)
	cands := rc.Select("APIs", "APIs", "")

	if len(cands) != 3 {
		t.Fatalf("candidates = %d, want 3 (select-all on default path)", len(cands))
	}
	if len(rc.DriverGroups[registry.DriverAPIsJSON]) != 1 {
		t.Errorf("apisjson group = %v", rc.DriverGroups[registry.DriverAPIsJSON])
	}
	if rc.DriverGroups[registry.DriverAPIsJSON]["a.com"] != pa {
		t.Error("provider appears once per group regardless of version count")
	}
	if len(rc.DriverGroups[registry.DriverURL]) != 1 {
		t.Errorf("url group = %v", rc.DriverGroups[registry.DriverURL])
	}
}

func TestSelect_UpdateStyleUsesRunMarker(t *testing.T) {
	marked := &registry.VersionEntry{}
	unmarked := &registry.VersionEntry{}
	reg := seedRegistry(map[string]*registry.VersionEntry{
		"a.com||1.0.0": marked,
		"b.com||1.0.0": unmarked,
	})

	rc, _ := testContext(t, "update", reg)
	marked.Run = rc.Token

	cands := rc.Select("APIs", "APIs", "")
	if len(cands) != 1 || cands[0].Provider != "a.com" {
		t.Errorf("cands = %+v, want only the marked entry", cands)
	}
}

func TestSelect_DriverFilter(t *testing.T) {
	reg := make(registry.Registry)
	pg := reg.GetOrCreateProvider("g.com")
	pg.Driver = registry.DriverGoogle
	pg.GetOrCreateService("").Versions["1.0.0"] = &registry.VersionEntry{}
	pu := reg.GetOrCreateProvider("u.com")
	pu.Driver = registry.DriverURL
	pu.GetOrCreateService("").Versions["1.0.0"] = &registry.VersionEntry{}

	rc, _ := testContext(t, "update", reg)
	cands := rc.Select("APIs", "APIs", registry.DriverGoogle)
	if len(cands) != 1 || cands[0].Provider != "g.com" {
		t.Errorf("cands = %+v", cands)
	}
}

func TestSelect_NoneSelectsAll(t *testing.T) {
	reg := seedRegistry(map[string]*registry.VersionEntry{
		"a.com||1.0.0": {},
		"b.com||1.0.0": {},
	})
	rc, _ := testContext(t, "update", reg)
	cands := rc.Select("other", "APIs", DriverFilterNone)
	if len(cands) != 2 {
		t.Errorf("cands = %d, want 2", len(cands))
	}
}

func TestReconcileLeads_MatchFolds(t *testing.T) {
	pref := true
	e := &registry.VersionEntry{Source: &registry.Origin{URL: "https://x.com/doc.yaml"}}
	reg := seedRegistry(map[string]*registry.VersionEntry{"x.com||1.0.0": e})
	rc, _ := testContext(t, "update", reg)
	cands := rc.Select("APIs", "other", DriverFilterNone)

	rc.AddLead("https://x.com/doc.yaml", &registry.Lead{
		Provider:  "x.com",
		Preferred: &pref,
		File:      "/work/cache/doc.yaml",
	})
	remaining := rc.ReconcileLeads(cands, "/work")

	if len(remaining) != 0 {
		t.Errorf("remaining = %v, want empty", remaining)
	}
	if e.Cached != "cache/doc.yaml" {
		t.Errorf("cached = %q", e.Cached)
	}
	if e.Preferred == nil || !*e.Preferred {
		t.Error("preferred flag not propagated")
	}
}

func TestReconcileLeads_UnmatchedRemain(t *testing.T) {
	rc, _ := testContext(t, "update", make(registry.Registry))
	rc.AddLead("https://new.com/doc.yaml", &registry.Lead{Provider: "new.com"})

	remaining := rc.ReconcileLeads(nil, "")
	if len(remaining) != 1 {
		t.Errorf("remaining = %v, want the unmatched lead", remaining)
	}
}

func TestReconcileLeads_ProviderMismatchOnlyWarns(t *testing.T) {
	e := &registry.VersionEntry{Source: &registry.Origin{URL: "https://x.com/doc.yaml"}}
	reg := seedRegistry(map[string]*registry.VersionEntry{"x.com||1.0.0": e})
	rc, _ := testContext(t, "update", reg)
	cands := rc.Select("APIs", "other", DriverFilterNone)

	rc.AddLead("https://x.com/doc.yaml", &registry.Lead{Provider: "other.com"})
	remaining := rc.ReconcileLeads(cands, "")

	if len(remaining) != 0 {
		t.Error("URL match must fold the lead despite the provider mismatch")
	}
	if _, ok := rc.Store.Reg["other.com"]; ok {
		t.Error("mismatched attribution must not create a provider")
	}
	if e.Preferred != nil {
		t.Error("a lead without a strict boolean must leave preferred untouched")
	}
}

func TestFinish_ExitCodes(t *testing.T) {
	// Not-run sentinel reports success.
	rc, _ := testContext(t, "check", make(registry.Registry))
	code, err := rc.Finish()
	if err != nil || code != ExitOK {
		t.Errorf("clean check: code = %d, err = %v", code, err)
	}

	// Failures flip the code for non-update-style runs.
	rc, _ = testContext(t, "check", make(registry.Registry))
	rc.RecordAt("p", "", "1.0.0", 404, errors.New("gone"), "check")
	code, err = rc.Finish()
	if err != nil || code != ExitFailures {
		t.Errorf("failed check: code = %d, err = %v", code, err)
	}

	// Update-style runs suppress the failure code.
	rc, _ = testContext(t, "update", make(registry.Registry))
	rc.RecordAt("p", "", "1.0.0", 404, errors.New("gone"), "retrieval")
	code, err = rc.Finish()
	if err != nil || code != ExitOK {
		t.Errorf("failed update: code = %d, err = %v", code, err)
	}
}

func TestFinish_WritesFailureReport(t *testing.T) {
	rc, failuresDir := testContext(t, "validate", make(registry.Registry))
	rc.RecordAt("p.com", "svc", "1.0.0", 500, errors.New("boom"), "validate")

	if _, err := rc.Finish(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(failuresDir, "validate.yaml")); err != nil {
		t.Errorf("failure report missing: %v", err)
	}
}
