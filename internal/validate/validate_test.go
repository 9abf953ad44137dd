// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const isoRecord = `<gmd:MD_Metadata xmlns:gmd="http://www.isotc211.org/2005/gmd" xmlns:gco="http://www.isotc211.org/2005/gco">
  <gmd:fileIdentifier><gco:CharacterString>rec-1</gco:CharacterString></gmd:fileIdentifier>
  <gmd:hierarchyLevel><gmd:MD_ScopeCode codeListValue="dataset"/></gmd:hierarchyLevel>
  <gmd:dateStamp><gco:Date>2024-05-01</gco:Date></gmd:dateStamp>
  <gmd:title><gco:CharacterString>Rivers of Europe</gco:CharacterString></gmd:title>
  <gmd:abstract><gco:CharacterString>Major rivers.</gco:CharacterString></gmd:abstract>
  <gmd:electronicMailAddress><gco:CharacterString>data@example.org</gco:CharacterString></gmd:electronicMailAddress>
</gmd:MD_Metadata>`

func parse(t *testing.T, xml string) *xmlquery.Node {
	t.Helper()
	doc, err := xmlquery.Parse(strings.NewReader(xml))
	require.NoError(t, err)
	return doc
}

func loadISO(t *testing.T) *RuleValidator {
	t.Helper()
	v, err := Load(filepath.Join("testdata", "iso19139.yaml"))
	require.NoError(t, err)
	return v
}

func TestValidRecord(t *testing.T) {
	v := loadISO(t)
	assert.Equal(t, "iso19139", v.Name())
	assert.True(t, v.MatchesNamespace("http://www.isotc211.org/2005/gmd"))
	assert.False(t, v.MatchesNamespace("http://purl.org/dc/elements/1.1/"))

	findings, err := v.Validate(parse(t, isoRecord))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestAdvisoryFindings(t *testing.T) {
	xml := strings.NewReplacer(
		"<gmd:abstract><gco:CharacterString>Major rivers.</gco:CharacterString></gmd:abstract>", "",
		"Rivers of Europe", "R",
		"data@example.org", "nobody",
	).Replace(isoRecord)

	findings, err := loadISO(t).Validate(parse(t, xml))
	require.NoError(t, err)
	require.Len(t, findings, 3)
	assert.True(t, strings.HasPrefix(findings[0], "recommended: "))
	assert.True(t, strings.HasPrefix(findings[1], "length: "))
	assert.Contains(t, findings[1], "length 1 outside [3, 200]")
	assert.Equal(t, `pattern: "nobody" does not match ^[^@]+@[^@]+$`, findings[2])
}

func TestFatalViolations(t *testing.T) {
	xml := strings.NewReplacer(
		"<gco:CharacterString>rec-1</gco:CharacterString>", "<gco:CharacterString> </gco:CharacterString>",
		`codeListValue="dataset"`, `codeListValue="map"`,
		"2024-05-01", "last tuesday",
		"<gmd:abstract><gco:CharacterString>Major rivers.</gco:CharacterString></gmd:abstract>", "",
	).Replace(isoRecord)

	findings, err := loadISO(t).Validate(parse(t, xml))
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "iso19139", verr.Validator)
	require.Len(t, verr.Violations, 3)
	assert.Equal(t, CodeRequired, verr.Violations[0].Code)
	assert.Equal(t, "fileIdentifier is required", verr.Violations[0].Message)
	assert.Equal(t, CodeEnum, verr.Violations[1].Code)
	assert.Equal(t, CodeType, verr.Violations[2].Code)
	assert.Contains(t, err.Error(), `enum: "map" is not one of dataset, series, service`)
	assert.Len(t, findings, 1, "advisory findings are still returned")
}

func TestCodeFatal(t *testing.T) {
	for code, fatal := range map[Code]bool{
		CodeRequired: true, CodeType: true, CodeEnum: true,
		CodeRecommended: false, CodePattern: false, CodeLength: false,
	} {
		assert.Equal(t, fatal, code.Fatal(), string(code))
	}
}

func TestConforms(t *testing.T) {
	tests := []struct {
		kind, val string
		want      bool
	}{
		{"number", "3.5", true},
		{"number", "x", false},
		{"integer", "42", true},
		{"integer", "4.2", false},
		{"boolean", "true", true},
		{"boolean", "yes", false},
		{"date", "2024-05-01", true},
		{"date", "2024-05-01T10:00:00Z", true},
		{"date", "2024", true},
		{"date", "01/05/2024", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, conforms(tt.kind, tt.val), "%s %q", tt.kind, tt.val)
	}
}

func TestNamespaceAgnosticValidator(t *testing.T) {
	v, err := Parse([]byte(`checks: [{code: required, xpath: "//id"}]`), "any.yaml")
	require.NoError(t, err)
	assert.Equal(t, "any", v.Name())
	assert.True(t, v.MatchesNamespace(""))
	assert.True(t, v.MatchesNamespace("urn:whatever"))
}

func TestParseInvalid(t *testing.T) {
	tests := map[string]string{
		"no checks":     `name: x`,
		"unknown code":  `checks: [{code: shiny, xpath: "//a"}]`,
		"bad xpath":     `checks: [{code: required, xpath: "//a["}]`,
		"enum values":   `checks: [{code: enum, xpath: "//a"}]`,
		"unknown type":  `checks: [{code: type, xpath: "//a", type: color}]`,
		"bad pattern":   `checks: [{code: pattern, xpath: "//a", pattern: "("}]`,
		"length bounds": `checks: [{code: length, xpath: "//a", min: 5, max: 2}]`,
		"not yaml":      `checks: [`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), "bad.yaml")
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"dc","checks":[{"code":"required","xpath":"//identifier"}]}`), 0o644))

	vs, err := LoadAll([]string{filepath.Join("testdata", "iso19139.yaml"), path})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "dc", vs[1].Name())

	_, err = LoadAll([]string{filepath.Join(dir, "missing.yaml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
