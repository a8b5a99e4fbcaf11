package mcpserver

// EntryFormatContract describes the identity and provenance extensions
// that materialized registry documents carry under `info`.
const EntryFormatContract = `# Raido Registry Entry Format

Every API description document materialized by Raido is an OpenAPI,
Swagger, or AsyncAPI document in YAML, enriched with registry extensions
under the top-level ` + "`" + `info` + "`" + ` object.

## Identity extensions

` + "```" + `yaml
info:
  title: Payments API                 # standard field, REQUIRED
  version: 1.0.0                      # standard field; sanitized for registry keys
  x-providerName: apis.example.com    # provider the API belongs to
  x-serviceName: payments             # sub-service; absent for provider-level APIs
  x-preferred: true                   # exactly one version per service is preferred
  x-unofficial: false                 # community-maintained description
` + "```" + `

## Provenance

` + "```" + `yaml
info:
  x-origin:                           # acquisition chain, oldest first
    - url: https://example.com/swagger.json
      format: swagger
      version: "2.0"
    - url: https://apis.example.com/openapi.yaml
      format: openapi
      version: "3.0"
` + "```" + `

The LAST item in ` + "`" + `x-origin` + "`" + ` is the live source; earlier items record
where the document came from before conversion.

## Rules

1. **Version keys** never contain ` + "`" + `/` + "`" + `, ` + "`" + `\` + "`" + `, or ` + "`" + `:` + "`" + `; those characters
   are replaced with ` + "`" + `-` + "`" + `.
2. **The format marker** (` + "`" + `openapi` + "`" + `, ` + "`" + `swagger` + "`" + `, or ` + "`" + `asyncapi` + "`" + ` top-level
   key) is mandatory; documents without one are rejected.
3. **File layout** is ` + "`" + `<provider>/[<service>/]<version>/<format>.yaml` + "`" + ` under
   the documents root, forward slashes, UTF-8.
4. **Swagger 2.0** entries may carry an auto-upgrade marker; the registry
   still stores the original format.
`
