// Package validate defines the validation/normalization capability the
// update pipeline consumes, plus a structural default implementation.
// Format-specific validation internals belong to external tooling; the
// contract here is what the core needs: a validity verdict, an optionally
// repaired document, and a count of applied patches.
package validate

import (
	"fmt"

	"github.com/starford/raido/internal/parser"
)

// Result is the validator's verdict for one document.
type Result struct {
	Valid bool

	// Doc is the (possibly repaired) document object.
	Doc map[string]any

	// Fixes counts applied auto-repairs; AutoUpgrade names the target
	// format version when a forced conversion happened.
	Fixes       int
	AutoUpgrade string

	// Message describes the failure when Valid is false.
	Message string
}

// Validator checks a parsed document against its raw text and source URL.
type Validator interface {
	Validate(doc map[string]any, raw []byte, sourceURL string) (*Result, error)
}

// Structural is the default Validator: it verifies the document has a
// recognized format marker, an info block with title and version, and a
// non-empty operation surface, repairing trivial omissions where safe.
type Structural struct{}

// Validate implements Validator.
func (Structural) Validate(doc map[string]any, _ []byte, sourceURL string) (*Result, error) {
	res := &Result{Doc: doc}

	parsed, err := parser.FromDoc(doc)
	if err != nil {
		res.Message = err.Error()
		return res, nil
	}

	fixes := 0
	info, ok := doc["info"].(map[string]any)
	if !ok {
		info = map[string]any{}
		doc["info"] = info
		fixes++
	}
	if _, ok := info["title"].(string); !ok {
		res.Message = fmt.Sprintf("info.title missing in %s", sourceURL)
		return res, nil
	}
	if v, ok := info["version"].(string); !ok || v == "" {
		// A missing version is repairable; downstream keying falls back to
		// the path segment.
		info["version"] = ""
		fixes++
	}

	if parsed.Format == parser.FormatSwagger && parsed.FormatVersion != "2.0" {
		res.AutoUpgrade = "2.0"
		doc["swagger"] = "2.0"
		fixes++
	}

	res.Valid = true
	res.Fixes = fixes
	return res, nil
}
