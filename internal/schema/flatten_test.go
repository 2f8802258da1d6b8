package schema

import (
	"encoding/json"
	"reflect"
	"testing"
)

func parse(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("invalid test schema: %v", err)
	}
	return m
}

func TestFlatten_InlinesDefs(t *testing.T) {
	s := parse(t, `{"$defs":{"X":{"type":"string","maxLength":5}},"$ref":"#/$defs/X"}`)
	Flatten(s)

	want := map[string]any{"type": "STRING"}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("Flatten = %v, want %v", s, want)
	}
}

func TestFlatten_TypeNormalization(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"string type uppercased", `{"type":"string"}`, "STRING"},
		{"union picks first non-null", `{"type":["string","null"]}`, "STRING"},
		{"null-only union falls back", `{"type":["null"]}`, "STRING"},
		{"integer union", `{"type":["null","integer"]}`, "INTEGER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parse(t, tt.input)
			Flatten(s)
			if got := s["type"]; got != tt.want {
				t.Errorf("type = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlatten_StripsUnsupportedKeywords(t *testing.T) {
	s := parse(t, `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"additionalProperties": false,
		"minProperties": 1,
		"properties": {
			"name": {"type": "string", "minLength": 1, "maxLength": 64, "pattern": "^[a-z]+$"},
			"count": {"type": "integer", "minimum": 0, "exclusiveMaximum": 100, "multipleOf": 2, "default": 1},
			"tags": {"type": "array", "items": {"type": "string", "format": "uuid"}, "uniqueItems": true, "minItems": 1}
		},
		"if": {"properties": {"count": {"const": 0}}},
		"then": {"required": ["name"]},
		"not": {"type": "null"}
	}`)
	Flatten(s)
	assertClosed(t, s)

	props := s["properties"].(map[string]any)
	if props["name"].(map[string]any)["type"] != "STRING" {
		t.Errorf("nested type not normalized: %v", props["name"])
	}
	items := props["tags"].(map[string]any)["items"].(map[string]any)
	if _, ok := items["format"]; ok {
		t.Error("format survived inside items")
	}
}

func TestFlatten_RetainsComposites(t *testing.T) {
	s := parse(t, `{
		"anyOf": [
			{"type": "string", "maxLength": 5},
			{"type": ["integer", "null"], "minimum": 1}
		]
	}`)
	Flatten(s)

	arr, ok := s["anyOf"].([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("anyOf should survive flattening, got %v", s)
	}
	if arr[0].(map[string]any)["type"] != "STRING" {
		t.Errorf("anyOf[0] type = %v, want STRING", arr[0])
	}
	if arr[1].(map[string]any)["type"] != "INTEGER" {
		t.Errorf("anyOf[1] type = %v, want INTEGER", arr[1])
	}
	if _, ok := arr[1].(map[string]any)["minimum"]; ok {
		t.Error("minimum survived inside anyOf member")
	}
}

func TestFlatten_NestedRefsAndSiblingPrecedence(t *testing.T) {
	s := parse(t, `{
		"$defs": {
			"Inner": {"type": "string"},
			"Outer": {"type": "object", "properties": {"v": {"$ref": "#/$defs/Inner"}}, "description": "outer"}
		},
		"$ref": "#/definitions/Outer",
		"description": "local wins"
	}`)
	Flatten(s)
	assertClosed(t, s)

	if s["description"] != "local wins" {
		t.Errorf("sibling key overwritten: %v", s["description"])
	}
	inner := s["properties"].(map[string]any)["v"].(map[string]any)
	if inner["type"] != "STRING" {
		t.Errorf("nested ref not inlined: %v", inner)
	}
}

func TestFlatten_CyclicRefsTerminate(t *testing.T) {
	s := parse(t, `{
		"$defs": {
			"A": {"type": "object", "properties": {"b": {"$ref": "#/$defs/B"}}},
			"B": {"$ref": "#/$defs/A"}
		},
		"$ref": "#/$defs/A"
	}`)
	// Must terminate; closure must still hold.
	Flatten(s)
	assertClosed(t, s)
}

func TestFlatten_DanglingRefRemoved(t *testing.T) {
	s := parse(t, `{"$ref":"#/$defs/Missing","description":"kept"}`)
	Flatten(s)
	assertClosed(t, s)
	if s["description"] != "kept" {
		t.Errorf("sibling keys should survive a dangling ref: %v", s)
	}
}

func TestFlatten_Idempotent(t *testing.T) {
	inputs := []string{
		`{"$defs":{"X":{"type":"string","maxLength":5}},"$ref":"#/$defs/X"}`,
		`{"type":["string","null"],"properties":{"a":{"type":"number","minimum":1}}}`,
		`{"anyOf":[{"type":"string"},{"type":"object","properties":{"x":{"type":["null"]}}}]}`,
	}
	for _, raw := range inputs {
		once := parse(t, raw)
		Flatten(once)

		twice := parse(t, raw)
		Flatten(twice)
		Flatten(twice)

		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Flatten not idempotent for %s:\nonce:  %v\ntwice: %v", raw, once, twice)
		}
	}
}

func TestFlattenJSON(t *testing.T) {
	out := FlattenJSON([]byte(`{"type":"string","format":"email"}`))
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if m["type"] != "STRING" {
		t.Errorf("type = %v, want STRING", m["type"])
	}
	if _, ok := m["format"]; ok {
		t.Error("format survived")
	}

	// Garbage passes through untouched.
	if got := FlattenJSON([]byte("not json")); string(got) != "not json" {
		t.Errorf("invalid input should pass through, got %q", got)
	}
}

// assertClosed walks the tree and fails on any stripped or reference keyword.
func assertClosed(t *testing.T, v any) {
	t.Helper()
	forbidden := append([]string{"$ref", "$defs", "definitions"}, strippedKeywords...)
	var walk func(any)
	walk = func(v any) {
		switch node := v.(type) {
		case map[string]any:
			for _, key := range forbidden {
				if _, ok := node[key]; ok {
					t.Errorf("forbidden keyword %q present in output", key)
				}
			}
			if ts, ok := node["type"]; ok {
				switch typed := ts.(type) {
				case string:
					if typed != upperOf(typed) {
						t.Errorf("type %q not upper-case", typed)
					}
				default:
					t.Errorf("type value is not a string: %v", ts)
				}
			}
			for _, child := range node {
				walk(child)
			}
		case []any:
			for _, item := range node {
				walk(item)
			}
		}
	}
	walk(v)
}

func upperOf(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}
