// Package router resolves incoming model identifiers to concrete Gemini-class
// targets. Resolution walks a fixed precedence ladder: user overrides (exact,
// then wildcard), vendor family tables, then the built-in system map.
package router

import (
	"sort"
	"strings"
)

// DefaultModel is returned when nothing else matches.
const DefaultModel = "claude-sonnet-4-5"

// builtinTargets maps a curated set of historical Claude and OpenAI version
// ids to canonical target ids. Entries mapping to themselves are pass-through
// models the backend serves natively.
var builtinTargets = map[string]string{
	// Directly supported models.
	"claude-opus-4-5-thinking":   "claude-opus-4-5-thinking",
	"claude-sonnet-4-5":          "claude-sonnet-4-5",
	"claude-sonnet-4-5-thinking": "claude-sonnet-4-5-thinking",

	// Alias mappings.
	"claude-sonnet-4-5-20250929": "claude-sonnet-4-5-thinking",
	"claude-3-5-sonnet-20241022": "claude-sonnet-4-5",
	"claude-3-5-sonnet-20240620": "claude-sonnet-4-5",
	"claude-opus-4":              "claude-opus-4-5-thinking",
	"claude-opus-4-5-20251101":   "claude-opus-4-5-thinking",
	"claude-haiku-4":             "claude-sonnet-4-5",
	"claude-3-haiku-20240307":    "claude-sonnet-4-5",
	"claude-haiku-4-5-20251001":  "claude-sonnet-4-5",

	// OpenAI protocol mappings.
	"gpt-4":                  "gemini-2.5-pro",
	"gpt-4-turbo":            "gemini-2.5-pro",
	"gpt-4-turbo-preview":    "gemini-2.5-pro",
	"gpt-4-0125-preview":     "gemini-2.5-pro",
	"gpt-4-1106-preview":     "gemini-2.5-pro",
	"gpt-4-0613":             "gemini-2.5-pro",
	"gpt-4o":                 "gemini-2.5-pro",
	"gpt-4o-2024-05-13":      "gemini-2.5-pro",
	"gpt-4o-2024-08-06":      "gemini-2.5-pro",
	"gpt-4o-mini":            "gemini-2.5-flash",
	"gpt-4o-mini-2024-07-18": "gemini-2.5-flash",
	"gpt-3.5-turbo":          "gemini-2.5-flash",
	"gpt-3.5-turbo-16k":      "gemini-2.5-flash",
	"gpt-3.5-turbo-0125":     "gemini-2.5-flash",
	"gpt-3.5-turbo-1106":     "gemini-2.5-flash",
	"gpt-3.5-turbo-0613":     "gemini-2.5-flash",

	// Gemini protocol pass-through.
	"gemini-2.5-flash-lite":     "gemini-2.5-flash-lite",
	"gemini-2.5-flash-thinking": "gemini-2.5-flash-thinking",
	"gemini-3-pro-low":          "gemini-3-pro-low",
	"gemini-3-pro-high":         "gemini-3-pro-high",
	"gemini-3-pro-preview":      "gemini-3-pro-preview",
	"gemini-3-pro":              "gemini-3-pro",
	"gemini-2.5-flash":          "gemini-2.5-flash",
	"gemini-3-flash":            "gemini-3-flash",
	"gemini-3-pro-image":        "gemini-3-pro-image",
}

// MapToBuiltin resolves a model id against the built-in system map: exact
// entries first, pass-through for ids already in the target namespace, then
// the default model.
func MapToBuiltin(model string) string {
	if target, ok := builtinTargets[model]; ok {
		return target
	}
	// Pass through known prefixes to support dynamic suffixes.
	if strings.HasPrefix(model, "gemini-") || strings.Contains(model, "thinking") {
		return model
	}
	return DefaultModel
}

// SupportedModels returns the ids the built-in map knows about, sorted.
func SupportedModels() []string {
	out := make([]string, 0, len(builtinTargets))
	for id := range builtinTargets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AllDynamicModels returns every model id the proxy should advertise:
// built-in ids, user override keys, the generated image-model grid, and the
// well-known Gemini ids.
func AllDynamicModels(custom map[string]string) []string {
	ids := make(map[string]struct{})
	for id := range builtinTargets {
		ids[id] = struct{}{}
	}
	for id := range custom {
		ids[id] = struct{}{}
	}

	// Image generation combinations: resolution and aspect-ratio suffixes.
	const imageBase = "gemini-3-pro-image"
	resolutions := []string{"", "-2k", "-4k"}
	ratios := []string{"", "-1x1", "-4x3", "-3x4", "-16x9", "-9x16", "-21x9"}
	for _, res := range resolutions {
		for _, ratio := range ratios {
			ids[imageBase+res+ratio] = struct{}{}
		}
	}

	for _, id := range []string{
		"gemini-2.0-flash-exp",
		"gemini-2.5-flash",
		"gemini-2.5-pro",
		"gemini-3-flash",
		"gemini-3-pro-high",
		"gemini-3-pro-low",
	} {
		ids[id] = struct{}{}
	}

	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// wildcardMatch reports whether text matches a pattern containing at most one
// * wildcard, compared as prefix and suffix around the star.
//
//	gpt-4*            matches gpt-4, gpt-4-turbo, gpt-4-0613
//	claude-3-5-sonnet-* matches all 3.5 sonnet versions
//	*-thinking        matches anything ending in -thinking
func wildcardMatch(pattern, text string) bool {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return pattern == text
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	return len(text) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(text, prefix) && strings.HasSuffix(text, suffix)
}
