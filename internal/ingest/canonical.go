// Package ingest converts raw ServiceNow Table API records into the canonical
// model. It is the only place that understands reference-field shapes
// ({value, display_value} pairs, expanded dotted fields, string booleans).
package ingest

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// Record is a raw Table API row as decoded from JSON.
type Record = map[string]any

// Value returns the machine value of a field: the "value" member of a
// reference pair, falling back to "display_value", or the field itself.
func Value(field any) string {
	if m, ok := asRef(field); ok {
		if v := cast.ToString(m["value"]); v != "" {
			return v
		}
		return cast.ToString(m["display_value"])
	}
	return scalar(field)
}

// Display returns the human value of a field: "display_value" first, then
// "value", or the field itself.
func Display(field any) string {
	if m, ok := asRef(field); ok {
		if v := cast.ToString(m["display_value"]); v != "" {
			return v
		}
		return cast.ToString(m["value"])
	}
	return scalar(field)
}

// Bool reads a boolean field, accepting "true"/"false" strings and reference
// pairs. Missing or unparsable values yield def.
func Bool(field any, def bool) bool {
	if field == nil {
		return def
	}
	raw := Value(field)
	if raw == "" {
		return def
	}
	b, err := cast.ToBoolE(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return def
	}
	return b
}

// CleanDepartment strips reference wrapping from a department value. Values
// that still look like serialized references resolve to their display value,
// or "Unknown" when none can be recovered.
func CleanDepartment(field any) string {
	if m, ok := asRef(field); ok {
		if v := cast.ToString(m["display_value"]); v != "" {
			return v
		}
		if v := cast.ToString(m["value"]); v != "" {
			return v
		}
		return "Unknown"
	}
	s := strings.TrimSpace(scalar(field))
	if s == "" {
		return "Unknown"
	}
	if strings.HasPrefix(s, "{") {
		var ref map[string]any
		if err := json.Unmarshal([]byte(s), &ref); err != nil {
			return "Unknown"
		}
		return CleanDepartment(ref)
	}
	if strings.Contains(strings.ToLower(s), "link") {
		return "Unknown"
	}
	return s
}

func asRef(field any) (map[string]any, bool) {
	switch m := field.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func scalar(field any) string {
	if field == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(field))
}
