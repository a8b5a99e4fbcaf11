// Package parser extracts identity and provenance from machine-readable API
// description documents (OpenAPI, Swagger, AsyncAPI) in JSON or YAML form.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/registry"
)

// Format names for the supported description flavours.
const (
	FormatOpenAPI  = "openapi"
	FormatSwagger  = "swagger"
	FormatAsyncAPI = "asyncapi"
)

// Result holds the output of parsing an API description document.
type Result struct {
	Doc map[string]any

	// Format is openapi, swagger, or asyncapi; FormatVersion is the value
	// of the corresponding top-level marker ("3.0.3", "2.0", ...).
	Format        string
	FormatVersion string

	Title   string
	Version string

	// Identity extensions under info.
	ProviderName string
	ServiceName  string
	HasService   bool

	// Provenance chain from info.x-origin, oldest first.
	Origins []registry.Origin

	Preferred  *bool
	Unofficial bool

	// Patch overlays carried by the document itself.
	ProviderPatch map[string]any
	ServicePatch  map[string]any

	// Endpoints counts top-level operations (paths) or channels/topics.
	Endpoints int
}

// Parse decodes raw JSON or YAML bytes and extracts document identity.
// YAML is a superset of JSON here, so a single decoder serves both.
func Parse(data []byte) (*Result, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return nil, fmt.Errorf("parser: decode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parser: document is empty")
	}
	return FromDoc(doc)
}

// FromDoc extracts identity from an already-decoded document object.
func FromDoc(doc map[string]any) (*Result, error) {
	res := &Result{Doc: doc}

	switch {
	case stringField(doc, "openapi") != "":
		res.Format = FormatOpenAPI
		res.FormatVersion = stringField(doc, "openapi")
	case stringField(doc, "swagger") != "":
		res.Format = FormatSwagger
		res.FormatVersion = stringField(doc, "swagger")
	case stringField(doc, "asyncapi") != "":
		res.Format = FormatAsyncAPI
		res.FormatVersion = stringField(doc, "asyncapi")
	default:
		return nil, fmt.Errorf("parser: no openapi/swagger/asyncapi version marker")
	}

	info, _ := mapField(doc, "info")
	res.Title = stringField(info, "title")
	res.Version = stringField(info, "version")
	res.ProviderName = stringField(info, "x-providerName")
	if s, ok := info["x-serviceName"]; ok {
		res.HasService = true
		if str, ok := s.(string); ok {
			res.ServiceName = str
		}
	}
	if b, ok := info["x-preferred"].(bool); ok {
		v := b
		res.Preferred = &v
	}
	if b, ok := info["x-unofficial"].(bool); ok {
		res.Unofficial = b
	}
	res.ProviderPatch, _ = mapField(info, "x-providerPatch")
	res.ServicePatch, _ = mapField(info, "x-servicePatch")
	res.Origins = parseOrigins(info["x-origin"])
	res.Endpoints = countEndpoints(doc, res.Format)
	return res, nil
}

// parseOrigins decodes the x-origin provenance chain, oldest first.
func parseOrigins(raw any) []registry.Origin {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]registry.Origin, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, registry.Origin{
			URL:     stringField(m, "url"),
			Format:  stringField(m, "format"),
			Version: originVersion(m["version"]),
		})
	}
	return out
}

// originVersion tolerates numeric x-origin versions (e.g. 2.0 in JSON).
func originVersion(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%g", t), ".0")
	case int:
		return fmt.Sprintf("%d", t)
	}
	return ""
}

// countEndpoints counts top-level paths for REST formats and channels or
// topics for AsyncAPI.
func countEndpoints(doc map[string]any, format string) int {
	key := "paths"
	if format == FormatAsyncAPI {
		key = "channels"
		if _, ok := doc[key]; !ok {
			key = "topics"
		}
	}
	m, ok := mapField(doc, key)
	if !ok {
		return 0
	}
	n := 0
	for k := range m {
		if strings.HasPrefix(k, "x-") {
			continue
		}
		n++
	}
	return n
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func mapField(m map[string]any, key string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key].(map[string]any)
	return v, ok
}
