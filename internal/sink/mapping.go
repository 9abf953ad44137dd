// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"maps"

	"github.com/pdiddy/harvester/internal/ruleset"
)

// BuildMapping returns the index mapping for rs: one property per
// top-level field with object children nested under "properties", the
// suggestion field, and a _meta block naming the rule set and its
// identifier and location fields.
func BuildMapping(rs *ruleset.RuleSet) map[string]any {
	props := make(map[string]any, len(rs.Fields())+1)
	for _, f := range rs.Fields() {
		props[f.Name] = fieldMapping(rs, f)
	}
	if rs.Suggest != nil {
		props[rs.Suggest.Field] = map[string]any{
			"properties": map[string]any{
				"inputs": map[string]any{"type": "completion"},
				"weight": map[string]any{"type": "integer"},
				"output": map[string]any{"type": "keyword", "index": false},
			},
		}
	}
	return map[string]any{
		"dynamic":    rs.Index.DynamicMapping,
		"_meta":      meta(rs),
		"properties": props,
	}
}

func fieldMapping(rs *ruleset.RuleSet, f *ruleset.FieldRule) map[string]any {
	m := maps.Clone(f.Properties)
	if m == nil {
		m = make(map[string]any)
	}
	if f.IsNested() {
		children := make(map[string]any, len(f.Children))
		for _, c := range rs.Children(f) {
			children[c.Name] = fieldMapping(rs, c)
		}
		m["properties"] = children
	}
	return m
}

// meta names the rule set and the fields that carry the document id and
// its geometry, so index consumers can find them without the rule document.
func meta(rs *ruleset.RuleSet) map[string]any {
	m := map[string]any{
		"rule_set":         rs.Name,
		"rule_set_version": rs.Version,
		"identifier_field": rs.IdentifierField().Name,
	}
	if loc := rs.LocationField(); loc != nil {
		m["location_field"] = loc.Name
	}
	return m
}
