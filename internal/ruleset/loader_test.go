// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ruleset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/selector"
)

func parse(t *testing.T, doc string) (*RuleSet, error) {
	t.Helper()
	return NewLoader(nil).Parse([]byte(doc), "test.yaml")
}

func mustParse(t *testing.T, doc string) *RuleSet {
	t.Helper()
	rs, err := parse(t, doc)
	require.NoError(t, err)
	return rs
}

func requireConfigError(t *testing.T, err error, target error) *ConfigError {
	t.Helper()
	require.Error(t, err)
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr), "want *ConfigError, got %T: %v", err, err)
	if target != nil {
		assert.ErrorIs(t, err, target)
	}
	return cerr
}

// --- Load ---

func TestLoadTestdata(t *testing.T) {
	rs, err := NewLoader(nil).Load(filepath.Join("testdata", "dublin-core.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "dublin-core", rs.Name)
	assert.Equal(t, "1.2", rs.Version)
	assert.Equal(t, selector.Version1, rs.XPathVersion)
	assert.Equal(t, "records", rs.IndexName())
	assert.True(t, rs.Index.Create)
	assert.False(t, rs.Index.DynamicMapping)
	assert.Equal(t, 1, rs.Index.Settings["number_of_shards"])
	assert.NotNil(t, rs.Applicability)

	var names []string
	for _, r := range rs.Fields() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"bbox", "contact", "id", "source", "subject", "title"}, names)
	assert.Equal(t, 8, rs.Len(), "six top-level rules plus two children")

	assert.Equal(t, "id", rs.IdentifierField().Name)
	require.NotNil(t, rs.LocationField())
	assert.Equal(t, "bbox", rs.LocationField().Name)

	bbox := rs.Field("bbox")
	assert.True(t, bbox.IsGeo())
	assert.Equal(t, "envelope", bbox.CoordinatesType)
	assert.Len(t, bbox.Coordinates, 2)
	assert.Equal(t, DefaultGeoType, bbox.Type())

	contact := rs.Field("contact")
	assert.True(t, contact.IsNested())
	assert.Equal(t, DefaultObjectType, contact.Type())
	children := rs.Children(contact)
	require.Len(t, children, 2)
	assert.Equal(t, "email", children[0].Name)
	assert.Equal(t, "contact.email", children[0].Path)
	assert.Equal(t, "keyword", children[0].Type())
	assert.Equal(t, DefaultLeafType, children[1].Type())

	source := rs.Field("source")
	assert.True(t, source.RawXML)
	assert.True(t, source.Output.OmitDeclaration)
	assert.False(t, source.Output.Indent)
	assert.Equal(t, "UTF-8", source.Output.Encoding)
	assert.Equal(t, false, source.Properties["index"])

	subject := rs.Field("subject")
	assert.Equal(t, ";", subject.Split)
	assert.Equal(t, []Replacement{{From: "_", To: " "}}, subject.Replacements)

	require.NotNil(t, rs.Suggest)
	assert.Equal(t, "suggest", rs.Suggest.Field)
	assert.Equal(t, []string{","}, rs.Suggest.Remove)
	require.Len(t, rs.Suggest.Exclude, 1)
	assert.True(t, rs.Suggest.Exclude[0].MatchString("2024"))
	assert.Equal(t, []SuggestSource{{Field: "title", Weight: 3, Separator: " "}}, rs.Suggest.Sources)
}

func TestLoadSampleRules(t *testing.T) {
	rs, err := NewLoader(nil).Load(filepath.Join("..", "..", "rules", "iso19139.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "iso19139", rs.Name)
	assert.Equal(t, "metadata", rs.IndexName())
	assert.Len(t, rs.Fields(), 10)
	assert.Equal(t, "id", rs.IdentifierField().Name)
	assert.Equal(t, "extent", rs.LocationField().Name)
	require.NotNil(t, rs.Suggest)
	require.Len(t, rs.Suggest.Sources, 2)
	assert.Equal(t, "keywords", rs.Suggest.Sources[0].Field)
	assert.Equal(t, ";", rs.Suggest.Sources[0].Separator)
	assert.Equal(t, 5, rs.Suggest.Sources[1].Weight)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(a, []byte(`mappings: {id: {xpath: "//id", identifier: true}}`), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(`{"name": "B", "mappings": {"id": {"xpath": "//id", "identifier": true}}}`), 0o644))

	sets, err := NewLoader(nil).LoadAll([]string{a, b})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "a", sets[0].Name, "name defaults to the file stem")
	assert.Equal(t, "a", sets[0].IndexName())
	assert.Equal(t, "B", sets[1].Name)
	assert.Equal(t, "b", sets[1].IndexName(), "index name defaults to the lower-cased rule set name")
}

// --- identifier and location invariants ---

func TestIdentifierCardinality(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		target error
		fields []string
	}{
		{
			name: "no identifier",
			doc: `
mappings:
  title: {xpath: "//title"}`,
			target: ErrNoIdentifier,
		},
		{
			name: "two identifiers",
			doc: `
mappings:
  a: {xpath: "//a", identifier: true}
  b: {xpath: "//b", identifier: true}`,
			target: ErrMultipleIdentifiers,
			fields: []string{"a", "b"},
		},
		{
			name: "nested identifier",
			doc: `
mappings:
  parent:
    xpath: "//p"
    children:
      id: {xpath: "id", identifier: true}`,
			target: ErrNestedIdentifier,
			fields: []string{"parent.id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.doc)
			cerr := requireConfigError(t, err, tt.target)
			assert.Equal(t, tt.fields, cerr.Fields)
		})
	}
}

func TestMultipleLocations(t *testing.T) {
	_, err := parse(t, `
mappings:
  id: {xpath: "//id", identifier: true}
  a: {xpath: "//a", location: true}
  b: {xpath: "//b", location: true}`)
	cerr := requireConfigError(t, err, ErrMultipleLocations)
	assert.Equal(t, []string{"a", "b"}, cerr.Fields)
	assert.Contains(t, err.Error(), `rule set "test" (a, b)`)
}

func TestNoLocationIsLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	loader := NewLoader(logger.Wrap(zap.New(core)))

	rs, err := loader.Parse([]byte(`
name: plain
mappings:
  id: {xpath: "//id", identifier: true}`), "plain.yaml")
	require.NoError(t, err)
	assert.Nil(t, rs.LocationField())
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Rule set has no location field", entry.Message)
	assert.Equal(t, "plain", entry.ContextMap()["rule_set"])
}

// --- coordinates ---

func TestCoordinatesValidation(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		target error
	}{
		{
			name: "missing type",
			field: `
    coordinates:
      points: [{lat: "@n", lon: "@w"}]`,
			target: ErrInvalidCoordinates,
		},
		{
			name: "missing points",
			field: `
    coordinates_type: envelope`,
			target: ErrInvalidCoordinates,
		},
		{
			name: "empty points",
			field: `
    coordinates_type: point
    coordinates: {points: []}`,
			target: ErrInvalidCoordinates,
		},
		{
			name: "half a pair",
			field: `
    coordinates_type: point
    coordinates:
      points: [{lat: "@n"}]`,
			target: ErrInvalidCoordinates,
		},
		{
			name: "bad expression",
			field: `
    coordinates_type: point
    coordinates:
      points: [{lat: "@n[", lon: "@w"}]`,
			target: ErrInvalidExpression,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `
mappings:
  id: {xpath: "//id", identifier: true}
  where:
    xpath: "//bbox"` + tt.field
			_, err := parse(t, doc)
			cerr := requireConfigError(t, err, tt.target)
			assert.Equal(t, []string{"where"}, cerr.Fields)
		})
	}
}

// --- expressions ---

func TestExpressionsCompiledEagerly(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		target error
	}{
		{
			name: "bad selection",
			doc: `
mappings:
  id: {xpath: "//id[", identifier: true}`,
			target: selector.ErrSyntax,
		},
		{
			name: "bad condition",
			doc: `
mappings:
  id: {xpath: "//id", identifier: true}
  title: {xpath: "//title", condition: "count(("}`,
			target: selector.ErrSyntax,
		},
		{
			name: "missing selection",
			doc: `
mappings:
  id: {identifier: true}`,
			target: ErrInvalidExpression,
		},
		{
			name: "2.0 function under 1.0",
			doc: `
mappings:
  id: {xpath: "lower-case(//id)", identifier: true}`,
			target: selector.ErrUnsupportedFunction,
		},
		{
			name: "unknown version",
			doc: `
xpathVersion: "3.1"
mappings:
  id: {xpath: "//id", identifier: true}`,
			target: selector.ErrUnsupportedVersion,
		},
		{
			name: "bad applicability",
			doc: `
applicability_xpath: "/*["
mappings:
  id: {xpath: "//id", identifier: true}`,
			target: selector.ErrSyntax,
		},
		{
			name: "bad child",
			doc: `
mappings:
  id: {xpath: "//id", identifier: true}
  contact:
    xpath: "//contact"
    children:
      name: {xpath: "name["}`,
			target: selector.ErrSyntax,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.doc)
			requireConfigError(t, err, tt.target)
		})
	}
}

func TestVersion2FunctionsAccepted(t *testing.T) {
	rs := mustParse(t, `
xpathVersion: "2.0"
mappings:
  id: {xpath: "lower-case(//id)", identifier: true}`)
	assert.Equal(t, selector.Version2, rs.XPathVersion)
}

func TestInvalidDocument(t *testing.T) {
	for name, doc := range map[string]string{
		"not yaml":    "mappings: [",
		"no mappings": "name: empty",
		"duplicate":   "mappings:\n  id: {xpath: a, identifier: true}\n  id: {xpath: b}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parse(t, doc)
			requireConfigError(t, err, ErrInvalidDocument)
		})
	}
}

func TestEmptyReplacementRejected(t *testing.T) {
	_, err := parse(t, `
mappings:
  id:
    xpath: "//id"
    identifier: true
    replacements: [{replace: "", with: "x"}]`)
	requireConfigError(t, err, ErrInvalidDocument)
}

// --- output properties ---

func TestOutputProperties(t *testing.T) {
	rs := mustParse(t, `
mappings:
  id: {xpath: "//id", identifier: true}
  raw:
    xpath: "/*"
    raw_xml: true
    output_properties:
      - {name: indent, value: "yes"}
      - {name: encoding, value: "latin1"}`)
	raw := rs.Field("raw")
	assert.True(t, raw.Output.Indent)
	assert.False(t, raw.Output.OmitDeclaration)
	assert.Equal(t, "ISO-8859-1", raw.Output.Encoding)

	defaults := mustParse(t, `
mappings:
  id: {xpath: "//id", identifier: true}
  raw: {xpath: "/*", raw_xml: true}`).Field("raw").Output
	assert.Equal(t, OutputProperties{Encoding: "UTF-8"}, defaults)
}

func TestOutputPropertiesInvalid(t *testing.T) {
	for name, prop := range map[string]string{
		"unknown encoding": `{name: encoding, value: "no-such-charset"}`,
		"bad flag":         `{name: indent, value: "maybe"}`,
		"unknown property": `{name: method, value: "html"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parse(t, `
mappings:
  id: {xpath: "//id", identifier: true}
  raw:
    xpath: "/*"
    raw_xml: true
    output_properties: [`+prop+`]`)
			requireConfigError(t, err, ErrInvalidOutput)
		})
	}
}

// --- suggest ---

func TestPerFieldSuggestMerged(t *testing.T) {
	rs := mustParse(t, `
suggest:
  separator: ","
  fields:
    title: {weight: 2}
mappings:
  id: {xpath: "//id", identifier: true}
  title: {xpath: "//title"}
  keywords:
    xpath: "//kw"
    suggest: {weight: 5, separator: ";"}`)
	require.NotNil(t, rs.Suggest)
	assert.Equal(t, "suggest", rs.Suggest.Field)
	assert.Equal(t, []SuggestSource{
		{Field: "keywords", Weight: 5, Separator: ";"},
		{Field: "title", Weight: 2, Separator: ","},
	}, rs.Suggest.Sources)
}

func TestPerFieldSuggestWithoutDescriptor(t *testing.T) {
	rs := mustParse(t, `
mappings:
  id: {xpath: "//id", identifier: true}
  title: {xpath: "//title", suggest: {}}`)
	require.NotNil(t, rs.Suggest)
	assert.Equal(t, []SuggestSource{{Field: "title", Weight: 1, Separator: " "}}, rs.Suggest.Sources)
}

func TestNoSuggest(t *testing.T) {
	rs := mustParse(t, `
mappings:
  id: {xpath: "//id", identifier: true}`)
	assert.Nil(t, rs.Suggest)
}

func TestSuggestInvalid(t *testing.T) {
	tests := map[string]string{
		"undeclared source": `
suggest: {fields: {missing: {weight: 1}}}
mappings:
  id: {xpath: "//id", identifier: true}`,
		"raw source": `
suggest: {fields: {raw: {weight: 1}}}
mappings:
  id: {xpath: "//id", identifier: true}
  raw: {xpath: "/*", raw_xml: true}`,
		"bad exclude": `
suggest: {exclude: ["("], fields: {id: {weight: 1}}}
mappings:
  id: {xpath: "//id", identifier: true}`,
		"output collides": `
suggest: {field: id, fields: {title: {}}}
mappings:
  id: {xpath: "//id", identifier: true}
  title: {xpath: "//title"}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parse(t, doc)
			requireConfigError(t, err, ErrInvalidSuggest)
		})
	}
}

// --- applicability ---

func TestApplies(t *testing.T) {
	rs := mustParse(t, `
applicability_xpath: "/*[local-name() = 'MD_Metadata']"
mappings:
  id: {xpath: "//id", identifier: true}`)

	match, err := xmlquery.Parse(strings.NewReader(`<MD_Metadata><id>1</id></MD_Metadata>`))
	require.NoError(t, err)
	other, err := xmlquery.Parse(strings.NewReader(`<record><id>1</id></record>`))
	require.NoError(t, err)

	ok, err := rs.Applies(match)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rs.Applies(other)
	require.NoError(t, err)
	assert.False(t, ok)

	all := mustParse(t, `mappings: {id: {xpath: "//id", identifier: true}}`)
	ok, err = all.Applies(other)
	require.NoError(t, err)
	assert.True(t, ok, "no applicability expression accepts every document")
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{RuleSet: "iso", Fields: []string{"a"}, Err: ErrNoIdentifier}
	assert.Equal(t, `rule set "iso" (a): no identifier field`, err.Error())
	assert.Equal(t, "rule set: no identifier field", (&ConfigError{Err: ErrNoIdentifier}).Error())
}
