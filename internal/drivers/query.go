package drivers

import (
	"strconv"
	"strings"
)

// Query evaluates a declarative path expression against a decoded JSON/YAML
// value and returns all matches, flattened. Supported syntax is the subset
// catalog providers actually use: an optional leading "$", dot-separated
// field names, "[*]" to fan out over an array, and "[n]" to index one.
//
//	$.apis[*].properties.url
//	items[0].name
func Query(doc any, expr string) []any {
	expr = strings.TrimPrefix(expr, "$")
	expr = strings.TrimPrefix(expr, ".")
	current := []any{doc}
	if expr == "" {
		return current
	}

	for _, token := range strings.Split(expr, ".") {
		field, idxs := splitIndexes(token)
		var next []any
		for _, v := range current {
			if field != "" {
				m, ok := v.(map[string]any)
				if !ok {
					continue
				}
				v, ok = m[field]
				if !ok {
					continue
				}
			}
			next = append(next, applyIndexes(v, idxs)...)
		}
		current = next
	}
	return current
}

// QueryStrings evaluates expr and keeps only string results.
func QueryStrings(doc any, expr string) []string {
	var out []string
	for _, v := range Query(doc, expr) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// splitIndexes separates "props[*][0]" into "props" and its bracket terms.
func splitIndexes(token string) (string, []string) {
	i := strings.IndexByte(token, '[')
	if i < 0 {
		return token, nil
	}
	field := token[:i]
	var idxs []string
	rest := token[i:]
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		idxs = append(idxs, rest[1:end])
		rest = rest[end+1:]
	}
	return field, idxs
}

func applyIndexes(v any, idxs []string) []any {
	current := []any{v}
	for _, idx := range idxs {
		var next []any
		for _, c := range current {
			list, ok := c.([]any)
			if !ok {
				continue
			}
			if idx == "*" {
				next = append(next, list...)
				continue
			}
			n, err := strconv.Atoi(idx)
			if err != nil || n < 0 || n >= len(list) {
				continue
			}
			next = append(next, list[n])
		}
		current = next
	}
	return current
}
