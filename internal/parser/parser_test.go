package parser

import (
	"strings"
	"testing"
)

func TestParse_OpenAPI(t *testing.T) {
	doc := `
openapi: 3.0.3
info:
  title: Widgets
  version: 1.2.3
paths:
  /widgets: {}
  /widgets/{id}: {}
  x-internal: {}
`
	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Format != FormatOpenAPI || res.FormatVersion != "3.0.3" {
		t.Errorf("format = %s %s", res.Format, res.FormatVersion)
	}
	if res.Title != "Widgets" || res.Version != "1.2.3" {
		t.Errorf("identity = %q %q", res.Title, res.Version)
	}
	if res.Endpoints != 2 {
		t.Errorf("endpoints = %d, want 2 (x- keys skipped)", res.Endpoints)
	}
}

func TestParse_SwaggerJSON(t *testing.T) {
	// YAML is a superset of JSON; a single decoder serves both.
	doc := `{"swagger": "2.0", "info": {"title": "Legacy", "version": "1.0"}}`
	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Format != FormatSwagger || res.FormatVersion != "2.0" {
		t.Errorf("format = %s %s", res.Format, res.FormatVersion)
	}
}

func TestParse_AsyncAPIChannels(t *testing.T) {
	doc := `
asyncapi: 2.6.0
info:
  title: Events
  version: 1.0.0
channels:
  user/signedup: {}
`
	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Format != FormatAsyncAPI || res.Endpoints != 1 {
		t.Errorf("format = %s, endpoints = %d", res.Format, res.Endpoints)
	}
}

func TestParse_NoMarkerRejected(t *testing.T) {
	_, err := Parse([]byte("info:\n  title: Nothing\n"))
	if err == nil {
		t.Fatal("expected error for missing format marker")
	}
	if !strings.Contains(err.Error(), "marker") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParse_EmptyRejected(t *testing.T) {
	if _, err := Parse([]byte("")); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestParse_IdentityExtensions(t *testing.T) {
	doc := `
openapi: 3.0.0
info:
  title: T
  version: v1
  x-providerName: apis.example.com
  x-serviceName: payments
  x-preferred: true
  x-unofficial: true
`
	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.ProviderName != "apis.example.com" {
		t.Errorf("provider = %q", res.ProviderName)
	}
	if !res.HasService || res.ServiceName != "payments" {
		t.Errorf("service = %v %q", res.HasService, res.ServiceName)
	}
	if res.Preferred == nil || !*res.Preferred {
		t.Error("preferred not decoded")
	}
	if !res.Unofficial {
		t.Error("unofficial not decoded")
	}
}

func TestParse_EmptyServiceNameStillCounts(t *testing.T) {
	// A present-but-empty x-serviceName distinguishes "provider-level API"
	// from "no claim about services".
	doc := `
openapi: 3.0.0
info:
  title: T
  x-serviceName: ""
`
	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.HasService || res.ServiceName != "" {
		t.Errorf("HasService = %v, ServiceName = %q", res.HasService, res.ServiceName)
	}
}

func TestParse_OriginChain(t *testing.T) {
	doc := `
openapi: 3.0.0
info:
  title: T
  x-origin:
    - url: https://old.example.com/swagger.json
      format: swagger
      version: 2.0
    - url: https://new.example.com/openapi.yaml
      format: openapi
      version: "3.0"
`
	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Origins) != 2 {
		t.Fatalf("origins = %d, want 2", len(res.Origins))
	}
	// Numeric versions are tolerated and normalized to strings.
	if res.Origins[0].Version != "2" && res.Origins[0].Version != "2.0" {
		t.Errorf("origin version = %q", res.Origins[0].Version)
	}
	if res.Origins[1].URL != "https://new.example.com/openapi.yaml" {
		t.Errorf("last origin = %q", res.Origins[1].URL)
	}
}

func TestParse_Patches(t *testing.T) {
	doc := `
swagger: "2.0"
info:
  title: T
  x-providerPatch:
    info:
      x-logo:
        url: https://example.com/logo.png
  x-servicePatch:
    info:
      contact:
        email: team@example.com
`
	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.ProviderPatch == nil || res.ServicePatch == nil {
		t.Fatal("patches not decoded")
	}
}

func TestFromDoc(t *testing.T) {
	res, err := FromDoc(map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": "X", "version": "9"},
	})
	if err != nil {
		t.Fatalf("FromDoc: %v", err)
	}
	if res.FormatVersion != "3.1.0" || res.Version != "9" {
		t.Errorf("res = %+v", res)
	}
}
