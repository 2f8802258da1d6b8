// Package schema normalizes draft-style JSON schemas into the restricted
// shape the Gemini v1internal endpoints accept: references inlined,
// unsupported validation keywords removed, union types collapsed, and type
// names upper-cased.
package schema

import (
	"encoding/json"
	"strings"
)

// maxRefDepth bounds $ref expansion so a cyclic definition graph cannot
// recurse forever. Tool definitions are normally DAGs and never get close.
const maxRefDepth = 32

// strippedKeywords are removed wherever they appear in the tree.
// anyOf/oneOf/allOf are intentionally absent: they are retained and their
// child schemas flattened instead.
var strippedKeywords = []string{
	"$schema",
	"additionalProperties",
	"format",
	"default",
	"uniqueItems",
	"minLength",
	"maxLength",
	"minimum",
	"maximum",
	"exclusiveMinimum",
	"exclusiveMaximum",
	"multipleOf",
	"minItems",
	"maxItems",
	"pattern",
	"const",
	"minProperties",
	"maxProperties",
	"propertyNames",
	"patternProperties",
	"contains",
	"minContains",
	"maxContains",
	"if",
	"then",
	"else",
	"not",
}

// Flatten rewrites the schema tree in place.
//
// The root's $defs and definitions objects are lifted into a local definition
// map and every $ref is replaced by a deep copy of the definition named by the
// last /-separated segment of its path. Sibling keys on a $ref node win over
// merged-in definition keys. Afterwards the unsupported keywords are stripped
// and type values normalized throughout.
func Flatten(schema map[string]any) {
	if schema == nil {
		return
	}

	defs := map[string]any{}
	if d, ok := schema["$defs"].(map[string]any); ok {
		for k, v := range d {
			defs[k] = v
		}
	}
	if d, ok := schema["definitions"].(map[string]any); ok {
		for k, v := range d {
			defs[k] = v
		}
	}
	delete(schema, "$defs")
	delete(schema, "definitions")

	flattenRefs(schema, defs, 0)
	clean(schema)
}

// FlattenJSON is a convenience wrapper over Flatten for raw schema bytes.
// Invalid or non-object input is returned unchanged.
func FlattenJSON(raw []byte) []byte {
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return raw
	}
	Flatten(schema)
	out, err := json.Marshal(schema)
	if err != nil {
		return raw
	}
	return out
}

// flattenRefs inlines $ref nodes against the definition map. The node's own
// keys take precedence over keys merged in from the definition. Unresolvable
// references are dropped so no $ref survives in the output.
func flattenRefs(m map[string]any, defs map[string]any, depth int) {
	if refPath, ok := m["$ref"].(string); ok {
		delete(m, "$ref")
		if depth < maxRefDepth {
			if def, ok := defs[refName(refPath)].(map[string]any); ok {
				for k, v := range def {
					if _, exists := m[k]; !exists {
						m[k] = deepCopy(v)
					}
				}
				// The merged definition may itself carry a $ref.
				flattenRefs(m, defs, depth+1)
			}
		}
	}

	for _, v := range m {
		switch child := v.(type) {
		case map[string]any:
			flattenRefs(child, defs, depth)
		case []any:
			for _, item := range child {
				if childMap, ok := item.(map[string]any); ok {
					flattenRefs(childMap, defs, depth)
				}
			}
		}
	}
}

func refName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func clean(v any) {
	switch node := v.(type) {
	case map[string]any:
		for _, key := range strippedKeywords {
			delete(node, key)
		}
		delete(node, "$ref")
		delete(node, "$defs")
		delete(node, "definitions")

		normalizeType(node)

		for key, child := range node {
			switch key {
			case "properties":
				if props, ok := child.(map[string]any); ok {
					for _, prop := range props {
						clean(prop)
					}
				}
			case "items":
				clean(child)
			case "anyOf", "oneOf", "allOf":
				if arr, ok := child.([]any); ok {
					for _, item := range arr {
						clean(item)
					}
				}
			default:
				switch child.(type) {
				case map[string]any, []any:
					clean(child)
				}
			}
		}
	case []any:
		for _, item := range node {
			clean(item)
		}
	}
}

// normalizeType upper-cases string type values and collapses union arrays to
// the first non-null member, defaulting to STRING when only null remains.
func normalizeType(node map[string]any) {
	typeVal, ok := node["type"]
	if !ok {
		return
	}
	switch tv := typeVal.(type) {
	case string:
		node["type"] = strings.ToUpper(tv)
	case []any:
		selected := "STRING"
		for _, item := range tv {
			if s, ok := item.(string); ok && s != "null" {
				selected = strings.ToUpper(s)
				break
			}
		}
		node["type"] = selected
	}
}

func deepCopy(v any) any {
	switch src := v.(type) {
	case map[string]any:
		dst := make(map[string]any, len(src))
		for k, val := range src {
			dst[k] = deepCopy(val)
		}
		return dst
	case []any:
		dst := make([]any, len(src))
		for i, val := range src {
			dst[i] = deepCopy(val)
		}
		return dst
	default:
		return v
	}
}
