// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ruleset defines the declarative mapping rules that turn a source
// record into an index document, and loads them from rule documents.
//
// A RuleSet is immutable once loaded and is shared read-only by every stage
// of a harvest run. Rules live in a flat arena; nested rules reference their
// children by index.
package ruleset

import (
	"regexp"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/harvester/internal/selector"
)

// RuleID indexes a FieldRule in its RuleSet's arena.
type RuleID int

// noRule marks an absent optional rule.
const noRule RuleID = -1

// Default storage types applied when a rule declares no "type" property.
const (
	DefaultLeafType   = "text"
	DefaultObjectType = "object"
	DefaultGeoType    = "geo_shape"
)

// Replacement replaces every literal occurrence of From with To.
type Replacement struct {
	From string
	To   string
}

// CoordinatePair holds the latitude and longitude expressions of one point.
type CoordinatePair struct {
	Lat *selector.Expr
	Lon *selector.Expr
}

// OutputProperties control serialization of raw XML fields.
type OutputProperties struct {
	// OmitDeclaration drops the XML declaration (default: keep it).
	OmitDeclaration bool
	// Indent pretty-prints the element tree (default: no indentation).
	Indent bool
	// Encoding is the charset named in the declaration (default UTF-8).
	Encoding string
}

// FieldSuggest declares a field as a suggestion source.
type FieldSuggest struct {
	Weight    int
	Separator string
}

// FieldRule is one named extraction rule.
type FieldRule struct {
	Name string

	// Path is the dotted path of the rule from the top level, used in errors.
	Path string

	Selection  *selector.Expr
	Condition  *selector.Expr
	Properties map[string]any

	Identifier bool
	Location   bool
	RawXML     bool

	Coordinates     []CoordinatePair
	CoordinatesType string

	Replacements []Replacement
	Split        string
	Output       OutputProperties

	Children []RuleID
	Suggest  *FieldSuggest
}

// IsGeo reports whether the rule assembles a geo shape.
func (r *FieldRule) IsGeo() bool { return len(r.Coordinates) > 0 }

// IsNested reports whether the rule builds sub-objects from child rules.
func (r *FieldRule) IsNested() bool { return len(r.Children) > 0 }

// Type returns the declared storage type.
func (r *FieldRule) Type() string {
	t, _ := r.Properties["type"].(string)
	return t
}

// SuggestSource is one field that feeds suggestion inputs.
type SuggestSource struct {
	Field     string
	Weight    int
	Separator string
}

// Suggest describes how autocomplete entries are built from mapped fields.
type Suggest struct {
	// Field is the output field name (default "suggest").
	Field     string
	Separator string
	Exclude   []*regexp.Regexp
	Remove    []string
	// Sources are sorted by field name.
	Sources []SuggestSource
}

// IndexSettings describes the target index.
type IndexSettings struct {
	Name           string
	Type           string
	Create         bool
	DynamicMapping bool
	Settings       map[string]any
}

// RuleSet is a loaded, validated, immutable collection of field rules.
type RuleSet struct {
	Name         string
	Version      string
	XPathVersion string
	Index        IndexSettings
	Namespaces   map[string]string

	// Applicability selects the documents this rule set handles; nil accepts all.
	Applicability *selector.Expr

	Suggest *Suggest

	rules      []FieldRule
	fields     []RuleID
	identifier RuleID
	location   RuleID
}

// Rule returns the rule at id.
func (rs *RuleSet) Rule(id RuleID) *FieldRule {
	return &rs.rules[id]
}

// Len returns the number of rules in the arena, nested rules included.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Fields returns the top-level rules sorted by field name.
func (rs *RuleSet) Fields() []*FieldRule {
	return rs.resolve(rs.fields)
}

// Children returns the child rules of r sorted by field name.
func (rs *RuleSet) Children(r *FieldRule) []*FieldRule {
	return rs.resolve(r.Children)
}

func (rs *RuleSet) resolve(ids []RuleID) []*FieldRule {
	out := make([]*FieldRule, len(ids))
	for i, id := range ids {
		out[i] = &rs.rules[id]
	}
	return out
}

// Field returns the top-level rule named name, or nil.
func (rs *RuleSet) Field(name string) *FieldRule {
	for _, id := range rs.fields {
		if rs.rules[id].Name == name {
			return &rs.rules[id]
		}
	}
	return nil
}

// IdentifierField returns the rule that yields the record id.
func (rs *RuleSet) IdentifierField() *FieldRule {
	return &rs.rules[rs.identifier]
}

// LocationField returns the geospatial anchor rule, or nil.
func (rs *RuleSet) LocationField() *FieldRule {
	if rs.location == noRule {
		return nil
	}
	return &rs.rules[rs.location]
}

// Applies reports whether doc is handled by this rule set.
func (rs *RuleSet) Applies(doc *xmlquery.Node) (bool, error) {
	if rs.Applicability == nil {
		return true, nil
	}
	return rs.Applicability.Bool(doc)
}

// IndexName returns the target index name.
func (rs *RuleSet) IndexName() string { return rs.Index.Name }
