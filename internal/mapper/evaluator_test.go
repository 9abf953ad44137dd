// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapper

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/pkg/types"
)

const recordXML = `<?xml version="1.0" encoding="UTF-8"?>
<record xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:identifier> rec-1 </dc:identifier>
  <dc:title>Alpha Beta</dc:title>
  <dc:subject>A</dc:subject>
  <dc:subject>B</dc:subject>
  <dc:subject> A </dc:subject>
  <dc:subject>  </dc:subject>
  <keywords>a, b , c</keywords>
  <code>x_y</code>
  <bbox north="14.0" south="-13.0" west="-11.0" east="12.0"/>
  <contact><name>Ann</name><email>ann@example.org</email></contact>
  <contact><name>Bob</name></contact>
  <contact><phone>1</phone></contact>
  <status>draft</status>
</record>`

func parseXML(t *testing.T, s string) *xmlquery.Node {
	t.Helper()
	doc, err := xmlquery.Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

// loadRules parses a rule document; an identifier rule on //dc:identifier
// is added when the mappings do not declare one.
func loadRules(t *testing.T, mappings string) *ruleset.RuleSet {
	t.Helper()
	doc := "name: test\nmappings:\n"
	if !strings.Contains(mappings, "identifier: true") {
		doc += "  id: {xpath: \"//dc:identifier\", identifier: true}\n"
	}
	rs, err := ruleset.NewLoader(nil).Parse([]byte(doc+mappings), "test.yaml")
	require.NoError(t, err)
	return rs
}

func evaluate(t *testing.T, rs *ruleset.RuleSet, field string, node *xmlquery.Node) (types.Value, bool) {
	t.Helper()
	rule := rs.Field(field)
	require.NotNil(t, rule, field)
	res, ok, err := NewEvaluator(rs, nil).evaluateAny(rule, node)
	require.NoError(t, err)
	if ok {
		assert.Equal(t, field, res.Name)
	}
	return res.Value, ok
}

func jsonOf(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

// --- leaf collapse ---

func TestLeafCollapse(t *testing.T) {
	doc := parseXML(t, recordXML)
	rs := loadRules(t, `
  missing: {xpath: "//dc:creator"}
  title: {xpath: "//dc:title"}
  subject: {xpath: "//dc:subject"}
  blank: {xpath: "//dc:subject[4]"}
`)

	_, ok := evaluate(t, rs, "missing", doc)
	assert.False(t, ok, "zero nodes yield no field")

	_, ok = evaluate(t, rs, "blank", doc)
	assert.False(t, ok, "whitespace-only text yields no field")

	v, ok := evaluate(t, rs, "title", doc)
	require.True(t, ok)
	s, isStr := v.Str()
	assert.True(t, isStr, "one node yields a scalar")
	assert.Equal(t, "Alpha Beta", s)

	v, ok = evaluate(t, rs, "subject", doc)
	require.True(t, ok)
	assert.Equal(t, types.KindList, v.Kind())
	assert.ElementsMatch(t, []string{"A", "B"}, v.Strings(), "distinct trimmed values")
}

func TestDuplicateValuesCollapseToScalar(t *testing.T) {
	doc := parseXML(t, `<r><dc:identifier xmlns:dc="http://purl.org/dc/elements/1.1/">1</dc:identifier><k>x</k><k> x </k></r>`)
	rs := loadRules(t, `  k: {xpath: "//k"}`)

	v, ok := evaluate(t, rs, "k", doc)
	require.True(t, ok)
	s, isStr := v.Str()
	assert.True(t, isStr)
	assert.Equal(t, "x", s)
}

func TestStringFallback(t *testing.T) {
	doc := parseXML(t, recordXML)
	rs := loadRules(t, `
  label: {xpath: "concat(//dc:title, ' / ', //status)"}
  count: {xpath: "count(//dc:subject)"}
  empty: {xpath: "normalize-space(//dc:subject[4])"}
`)

	v, ok := evaluate(t, rs, "label", doc)
	require.True(t, ok)
	assert.Equal(t, `"Alpha Beta / draft"`, jsonOf(t, v))

	v, ok = evaluate(t, rs, "count", doc)
	require.True(t, ok)
	assert.Equal(t, `"4"`, jsonOf(t, v))

	_, ok = evaluate(t, rs, "empty", doc)
	assert.False(t, ok, "an empty string is absent")
}

func TestAttributeSelection(t *testing.T) {
	doc := parseXML(t, recordXML)
	rs := loadRules(t, `  north: {xpath: "//bbox/@north"}`)

	v, ok := evaluate(t, rs, "north", doc)
	require.True(t, ok)
	assert.Equal(t, `"14.0"`, jsonOf(t, v))
}

// --- condition ---

func TestConditionGuard(t *testing.T) {
	doc := parseXML(t, recordXML)
	rs := loadRules(t, `
  drafted: {xpath: "//dc:title", condition: "//status[. = 'draft']"}
  published: {xpath: "//dc:title", condition: "//status[. = 'published']"}
  counted: {xpath: "//dc:title", condition: "count(//dc:subject) > 10"}
`)

	_, ok := evaluate(t, rs, "drafted", doc)
	assert.True(t, ok)

	_, ok = evaluate(t, rs, "published", doc)
	assert.False(t, ok, "an empty condition node-set suppresses the rule")

	_, ok = evaluate(t, rs, "counted", doc)
	assert.False(t, ok, "a false boolean condition suppresses the rule")
}

// --- post-processing ---

func TestSplitTrimsTokens(t *testing.T) {
	doc := parseXML(t, recordXML)
	rs := loadRules(t, `  keywords: {xpath: "//keywords", split: ","}`)

	v, ok := evaluate(t, rs, "keywords", doc)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, v.Strings())
	assert.Equal(t, types.KindList, v.Kind())
}

func TestSplitDropsEmptyTokens(t *testing.T) {
	doc := parseXML(t, `<r><dc:identifier xmlns:dc="http://purl.org/dc/elements/1.1/">1</dc:identifier><k>a;;b;</k><e>;;</e></r>`)
	rs := loadRules(t, `
  k: {xpath: "//k", split: ";"}
  e: {xpath: "//e", split: ";"}
`)

	v, ok := evaluate(t, rs, "k", doc)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v.Strings())

	_, ok = evaluate(t, rs, "e", doc)
	assert.False(t, ok)
}

func TestSplitOfListIsIgnored(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	doc := parseXML(t, recordXML)
	rs := loadRules(t, `  subject: {xpath: "//dc:subject", split: ","}`)

	res, ok, err := NewEvaluator(rs, logger.Wrap(zap.New(core))).Evaluate(rs.Field("subject"), doc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"A", "B"}, res.Value.Strings())
	assert.Equal(t, 1, logs.FilterMessage("Split ignored for multi-valued field").Len())
}

func TestReplacementsBeforeSplit(t *testing.T) {
	doc := parseXML(t, recordXML)
	rs := loadRules(t, `
  code:
    xpath: "//code"
    split: " "
    replacements:
      - {replace: "_", with: " "}
      - {replace: "y", with: "z"}
  subject:
    xpath: "//dc:subject"
    replacements: [{replace: "A", with: "C"}]
`)

	v, ok := evaluate(t, rs, "code", doc)
	require.True(t, ok)
	assert.Equal(t, []string{"x", "z"}, v.Strings())

	v, ok = evaluate(t, rs, "subject", doc)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"C", "B"}, v.Strings())
}

// --- nested ---

func TestNestedCollapse(t *testing.T) {
	rs := loadRules(t, `
  contact:
    xpath: "//contact"
    children:
      name: {xpath: "name"}
      email: {xpath: "email"}
`)

	t.Run("two matched nodes", func(t *testing.T) {
		v, ok := evaluate(t, rs, "contact", parseXML(t, recordXML))
		require.True(t, ok)
		assert.JSONEq(t, `[{"email":"ann@example.org","name":"Ann"},{"name":"Bob"}]`, jsonOf(t, v))
	})

	t.Run("one matched node", func(t *testing.T) {
		doc := parseXML(t, `<r><contact><name>Ann</name></contact></r>`)
		v, ok := evaluate(t, rs, "contact", doc)
		require.True(t, ok)
		assert.Equal(t, types.KindMap, v.Kind(), "never a one-element list")
		assert.JSONEq(t, `{"name":"Ann"}`, jsonOf(t, v))
	})

	t.Run("no child results", func(t *testing.T) {
		doc := parseXML(t, `<r><contact><phone>1</phone></contact></r>`)
		_, ok := evaluate(t, rs, "contact", doc)
		assert.False(t, ok)
	})
}

func TestNestedChildrenKeepRuleKinds(t *testing.T) {
	rs := loadRules(t, `
  extent:
    xpath: "//bbox"
    children:
      north: {xpath: "@north"}
      shape:
        xpath: "."
        coordinates_type: point
        coordinates:
          points: [{lat: "@north", lon: "@west"}]
`)

	v, ok := evaluate(t, rs, "extent", parseXML(t, recordXML))
	require.True(t, ok)
	assert.JSONEq(t, `{"north":"14.0","shape":{"type":"point","coordinates":[[-11,14]]}}`, jsonOf(t, v))
}

// --- identifier ---

func TestIdentifier(t *testing.T) {
	rs := loadRules(t, "")
	ev := NewEvaluator(rs, nil)

	id, ok, err := ev.Identifier(parseXML(t, recordXML))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rec-1", id)

	for _, doc := range []string{
		`<record/>`,
		`<record xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:identifier>   </dc:identifier></record>`,
	} {
		_, ok, err := ev.Identifier(parseXML(t, doc))
		require.NoError(t, err)
		assert.False(t, ok, doc)
	}
}

// --- geo ---

func TestGeoLongitudeFirst(t *testing.T) {
	rs := loadRules(t, `
  bbox:
    xpath: "//bbox"
    coordinates_type: envelope
    coordinates:
      points:
        - {lat: "@north", lon: "@west"}
        - {lat: "@south", lon: "@east"}
`)

	v, ok := evaluate(t, rs, "bbox", parseXML(t, recordXML))
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"envelope","coordinates":[[-11.0,14.0],[12.0,-13.0]]}`, jsonOf(t, v))
}

func TestGeoDropsBadPairs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rs := loadRules(t, `
  bbox:
    xpath: "//bbox"
    coordinates_type: point
    coordinates:
      points:
        - {lat: "@north", lon: "@missing"}
        - {lat: "@south", lon: "@east"}
  none:
    xpath: "//bbox"
    coordinates_type: point
    coordinates:
      points: [{lat: "@missing", lon: "@east"}]
  nowhere:
    xpath: "//nothing"
    coordinates_type: point
    coordinates:
      points: [{lat: "@north", lon: "@east"}]
`)
	ev := NewEvaluator(rs, logger.Wrap(zap.New(core)))
	doc := parseXML(t, recordXML)

	res, ok, err := ev.Geo(rs.Field("bbox"), doc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"point","coordinates":[[12,-13]]}`, jsonOf(t, res.Value))

	_, ok, err = ev.Geo(rs.Field("none"), doc)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ev.Geo(rs.Field("nowhere"), doc)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, logs.FilterMessage("No valid coordinate pairs").Len())
	assert.Equal(t, 1, logs.FilterMessage("No coordinate node selected").Len())
}

// --- raw ---

func TestRawSerialization(t *testing.T) {
	doc := parseXML(t, recordXML)
	rs := loadRules(t, `
  plain: {xpath: "//contact[1]", raw_xml: true}
  bare:
    xpath: "//contact[1]"
    raw_xml: true
    output_properties: [{name: omit-xml-declaration, value: "yes"}]
  pretty:
    xpath: "//contact[1]"
    raw_xml: true
    output_properties:
      - {name: indent, value: "yes"}
      - {name: encoding, value: "iso-8859-1"}
  prefixed:
    xpath: "//dc:title"
    raw_xml: true
    output_properties: [{name: omit-xml-declaration, value: "yes"}]
  missing: {xpath: "//nothing", raw_xml: true}
`)

	v, ok := evaluate(t, rs, "plain", doc)
	require.True(t, ok)
	s, _ := v.Str()
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?><contact><name>Ann</name><email>ann@example.org</email></contact>`, s)

	v, ok = evaluate(t, rs, "bare", doc)
	require.True(t, ok)
	s, _ = v.Str()
	assert.Equal(t, `<contact><name>Ann</name><email>ann@example.org</email></contact>`, s)

	v, ok = evaluate(t, rs, "pretty", doc)
	require.True(t, ok)
	s, _ = v.Str()
	assert.Equal(t, "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<contact>\n  <name>Ann</name>\n  <email>ann@example.org</email>\n</contact>", s)

	v, ok = evaluate(t, rs, "prefixed", doc)
	require.True(t, ok)
	s, _ = v.Str()
	assert.Equal(t, `<dc:title xmlns:dc="http://purl.org/dc/elements/1.1/">Alpha Beta</dc:title>`, s)

	_, ok = evaluate(t, rs, "missing", doc)
	assert.False(t, ok)
}

func TestSerializeDocumentNode(t *testing.T) {
	doc := parseXML(t, `<?xml version="1.0"?><a xmlns="urn:x"><b>1</b></a>`)
	got := Serialize(doc, ruleset.OutputProperties{OmitDeclaration: true})
	assert.Equal(t, `<a xmlns="urn:x"><b>1</b></a>`, got)

	b := xmlquery.FindOne(doc, "//b")
	require.NotNil(t, b)
	assert.Equal(t, `<b xmlns="urn:x">1</b>`, Serialize(b, ruleset.OutputProperties{OmitDeclaration: true}))
}

// --- suggestions ---

func TestSuggestionsSingleSourceIsObject(t *testing.T) {
	rs := loadRules(t, `
  title: {xpath: "//dc:title", suggest: {weight: 3}}
`)
	fields := types.NewOrderedMap()
	fields.Set("title", types.StringValue("Alpha Beta"))

	v, ok := Suggestions(rs.Suggest, fields)
	require.True(t, ok)
	assert.Equal(t, `{"inputs":["Alpha","Beta"],"weight":3,"output":"Alpha Beta"}`, jsonOf(t, v))
}

func TestSuggestionsFiltering(t *testing.T) {
	doc := `name: test
suggest:
  exclude: ["^(the|of)$", "^[0-9]+$"]
  remove: ["(", ")"]
  fields:
    title: {weight: 2}
    keywords: {weight: 1, separator: ","}
    absent: {weight: 1}
mappings:
  id: {xpath: "//id", identifier: true}
  title: {xpath: "//title"}
  keywords: {xpath: "//kw"}
  absent: {xpath: "//none"}
`
	rs, err := ruleset.NewLoader(nil).Parse([]byte(doc), "test.yaml")
	require.NoError(t, err)

	fields := types.NewOrderedMap()
	fields.Set("title", types.StringValue("The map of (Lakes) 2024"))
	fields.Set("keywords", types.StringValue("rivers, 12, lakes"))

	v, ok := Suggestions(rs.Suggest, fields)
	require.True(t, ok)
	assert.JSONEq(t, `[
		{"inputs":["rivers","lakes"],"weight":1,"output":"rivers, 12, lakes"},
		{"inputs":["The","map","Lakes"],"weight":2,"output":"The map of (Lakes) 2024"}
	]`, jsonOf(t, v))
}

func TestSuggestionsShapeFollowsConfiguredSources(t *testing.T) {
	doc := `name: test
suggest:
  fields:
    title: {weight: 3}
    keywords: {weight: 1}
mappings:
  id: {xpath: "//id", identifier: true}
  title: {xpath: "//title"}
  keywords: {xpath: "//kw"}
`
	rs, err := ruleset.NewLoader(nil).Parse([]byte(doc), "test.yaml")
	require.NoError(t, err)

	fields := types.NewOrderedMap()
	fields.Set("title", types.StringValue("Alpha Beta"))

	v, ok := Suggestions(rs.Suggest, fields)
	require.True(t, ok)
	_, isList := v.List()
	assert.True(t, isList, "two configured sources always yield a list")
	assert.JSONEq(t, `[{"inputs":["Alpha","Beta"],"weight":3,"output":"Alpha Beta"}]`, jsonOf(t, v))
}

func TestSuggestionsNone(t *testing.T) {
	rs := loadRules(t, `  title: {xpath: "//dc:title", suggest: {}}`)

	_, ok := Suggestions(rs.Suggest, types.NewOrderedMap())
	assert.False(t, ok, "no source value")

	fields := types.NewOrderedMap()
	fields.Set("title", types.StringsValue([]string{"a", "b"}))
	_, ok = Suggestions(rs.Suggest, fields)
	assert.False(t, ok, "list values are not suggestion sources")

	_, ok = Suggestions(nil, fields)
	assert.False(t, ok)
}
