package drivers

import "testing"

func queryDoc() any {
	return map[string]any{
		"apis": []any{
			map[string]any{
				"name":       "billing",
				"properties": []any{map[string]any{"url": "https://x/billing.json"}},
			},
			map[string]any{
				"name":       "payments",
				"properties": []any{map[string]any{"url": "https://x/payments.json"}},
			},
		},
		"meta": map[string]any{"count": 2},
	}
}

func TestQuery(t *testing.T) {
	doc := queryDoc()

	got := QueryStrings(doc, "$.apis[*].name")
	if len(got) != 2 || got[0] != "billing" || got[1] != "payments" {
		t.Errorf("fan-out = %v", got)
	}

	got = QueryStrings(doc, "apis[*].properties[*].url")
	if len(got) != 2 || got[0] != "https://x/billing.json" {
		t.Errorf("nested fan-out = %v", got)
	}

	got = QueryStrings(doc, "$.apis[1].name")
	if len(got) != 1 || got[0] != "payments" {
		t.Errorf("index = %v", got)
	}
}

func TestQuery_EmptyExprReturnsRoot(t *testing.T) {
	doc := queryDoc()
	got := Query(doc, "$")
	if len(got) != 1 {
		t.Fatalf("root = %v", got)
	}
}

func TestQuery_Misses(t *testing.T) {
	doc := queryDoc()
	if got := Query(doc, "$.absent.field"); len(got) != 0 {
		t.Errorf("absent field = %v", got)
	}
	if got := Query(doc, "$.apis[9].name"); len(got) != 0 {
		t.Errorf("out-of-range index = %v", got)
	}
	// Indexing into a non-array yields nothing rather than panicking.
	if got := Query(doc, "$.meta[0]"); len(got) != 0 {
		t.Errorf("index on object = %v", got)
	}
}

func TestQueryStrings_FiltersNonStrings(t *testing.T) {
	got := QueryStrings(queryDoc(), "$.meta.count")
	if len(got) != 0 {
		t.Errorf("non-string kept: %v", got)
	}
}
