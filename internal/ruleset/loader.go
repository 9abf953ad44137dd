// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ruleset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/selector"
)

// Rule document structures. JSON documents parse through the same YAML decoder.
type document struct {
	Name               string              `yaml:"name"`
	Version            string              `yaml:"version"`
	XPathVersion       string              `yaml:"xpathVersion"`
	Namespaces         map[string]string   `yaml:"namespaces"`
	Index              indexDoc            `yaml:"index"`
	ApplicabilityXPath string              `yaml:"applicability_xpath"`
	Suggest            *suggestDoc         `yaml:"suggest"`
	Mappings           map[string]fieldDoc `yaml:"mappings"`
}

type indexDoc struct {
	Name           string         `yaml:"name"`
	Create         bool           `yaml:"create"`
	DynamicMapping bool           `yaml:"dynamic_mapping"`
	Type           string         `yaml:"type"`
	Settings       map[string]any `yaml:"settings"`
}

type fieldDoc struct {
	XPath            string              `yaml:"xpath"`
	Properties       map[string]any      `yaml:"properties"`
	Identifier       bool                `yaml:"identifier"`
	Location         bool                `yaml:"location"`
	RawXML           bool                `yaml:"raw_xml"`
	Condition        string              `yaml:"condition"`
	Coordinates      *coordinatesDoc     `yaml:"coordinates"`
	CoordinatesType  string              `yaml:"coordinates_type"`
	Replacements     []replacementDoc    `yaml:"replacements"`
	Split            string              `yaml:"split"`
	OutputProperties []outputPropertyDoc `yaml:"output_properties"`
	Children         map[string]fieldDoc `yaml:"children"`
	Suggest          *fieldSuggestDoc    `yaml:"suggest"`
}

type coordinatesDoc struct {
	Points []pointDoc `yaml:"points"`
}

type pointDoc struct {
	Lat string `yaml:"lat"`
	Lon string `yaml:"lon"`
}

type replacementDoc struct {
	Replace string `yaml:"replace"`
	With    string `yaml:"with"`
}

type outputPropertyDoc struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type suggestDoc struct {
	Field     string                     `yaml:"field"`
	Separator string                     `yaml:"separator"`
	Exclude   []string                   `yaml:"exclude"`
	Remove    []string                   `yaml:"remove"`
	Fields    map[string]fieldSuggestDoc `yaml:"fields"`
}

type fieldSuggestDoc struct {
	Weight    int    `yaml:"weight"`
	Separator string `yaml:"separator"`
}

const (
	defaultSuggestField     = "suggest"
	defaultSuggestSeparator = " "
	defaultSuggestWeight    = 1
)

// Loader parses rule documents into RuleSets.
type Loader struct {
	log logger.Logger
}

// NewLoader returns a loader that reports informational findings to log.
func NewLoader(log logger.Logger) *Loader {
	return &Loader{log: logger.OrNop(log)}
}

// Load reads and parses the rule document at path.
func (l *Loader) Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule document %s: %w", path, err)
	}
	return l.Parse(data, filepath.Base(path))
}

// LoadAll loads every document in paths, stopping at the first error.
func (l *Loader) LoadAll(paths []string) ([]*RuleSet, error) {
	sets := make([]*RuleSet, 0, len(paths))
	for _, p := range paths {
		rs, err := l.Load(p)
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}
	return sets, nil
}

// Parse builds a RuleSet from a YAML or JSON rule document. source names
// the document in errors when it declares no name.
func (l *Loader) Parse(data []byte, source string) (*RuleSet, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{RuleSet: source, Err: fmt.Errorf("%w: %v", ErrInvalidDocument, err)}
	}
	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(source, filepath.Ext(source))
	}
	if len(doc.Mappings) == 0 {
		return nil, &ConfigError{RuleSet: name, Err: fmt.Errorf("%w: no mappings", ErrInvalidDocument)}
	}

	compiler, err := selector.NewCompiler(doc.XPathVersion, doc.Namespaces)
	if err != nil {
		return nil, &ConfigError{RuleSet: name, Err: fmt.Errorf("%w: %w", ErrInvalidExpression, err)}
	}

	b := &builder{
		rs: &RuleSet{
			Name:         name,
			Version:      doc.Version,
			XPathVersion: compiler.Version(),
			Namespaces:   compiler.Namespaces(),
			Index: IndexSettings{
				Name:           doc.Index.Name,
				Type:           doc.Index.Type,
				Create:         doc.Index.Create,
				DynamicMapping: doc.Index.DynamicMapping,
				Settings:       doc.Index.Settings,
			},
			identifier: noRule,
			location:   noRule,
		},
		compiler: compiler,
	}
	if b.rs.Index.Name == "" {
		b.rs.Index.Name = strings.ToLower(name)
	}

	if doc.ApplicabilityXPath != "" {
		expr, err := compiler.Compile(doc.ApplicabilityXPath)
		if err != nil {
			return nil, b.fail(nil, fmt.Errorf("%w: applicability_xpath: %w", ErrInvalidExpression, err))
		}
		b.rs.Applicability = expr
	}

	top, err := b.addFields(doc.Mappings, "")
	if err != nil {
		return nil, err
	}
	b.rs.fields = top

	if err := b.resolveFlags(); err != nil {
		return nil, err
	}
	if b.rs.location == noRule {
		l.log.Info("Rule set has no location field", logger.String("rule_set", name))
	}
	if err := b.buildSuggest(doc.Suggest); err != nil {
		return nil, err
	}
	return b.rs, nil
}

type builder struct {
	rs       *RuleSet
	compiler *selector.Compiler
}

func (b *builder) fail(fields []string, err error) *ConfigError {
	return &ConfigError{RuleSet: b.rs.Name, Fields: fields, Err: err}
}

// addFields appends the rules of one mapping level to the arena and returns
// their ids sorted by field name.
func (b *builder) addFields(fields map[string]fieldDoc, prefix string) ([]RuleID, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make([]RuleID, 0, len(names))
	for _, name := range names {
		id, err := b.addField(name, prefix, fields[name])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *builder) addField(name, prefix string, fd fieldDoc) (RuleID, error) {
	path := name
	if prefix != "" {
		path = prefix + "." + name
	}
	fields := []string{path}

	if strings.TrimSpace(fd.XPath) == "" {
		return 0, b.fail(fields, fmt.Errorf("%w: xpath is required", ErrInvalidExpression))
	}
	sel, err := b.compiler.Compile(fd.XPath)
	if err != nil {
		return 0, b.fail(fields, fmt.Errorf("%w: xpath: %w", ErrInvalidExpression, err))
	}

	rule := FieldRule{
		Name:            name,
		Path:            path,
		Selection:       sel,
		Identifier:      fd.Identifier,
		Location:        fd.Location,
		RawXML:          fd.RawXML,
		CoordinatesType: fd.CoordinatesType,
		Split:           fd.Split,
	}

	if fd.Condition != "" {
		cond, err := b.compiler.Compile(fd.Condition)
		if err != nil {
			return 0, b.fail(fields, fmt.Errorf("%w: condition: %w", ErrInvalidExpression, err))
		}
		rule.Condition = cond
	}

	if fd.Coordinates != nil || fd.CoordinatesType != "" {
		pairs, err := b.compilePoints(fd)
		if err != nil {
			return 0, b.fail(fields, err)
		}
		rule.Coordinates = pairs
	}

	for _, r := range fd.Replacements {
		if r.Replace == "" {
			return 0, b.fail(fields, fmt.Errorf("%w: replacement with empty search string", ErrInvalidDocument))
		}
		rule.Replacements = append(rule.Replacements, Replacement{From: r.Replace, To: r.With})
	}

	if rule.RawXML {
		out, err := parseOutput(fd.OutputProperties)
		if err != nil {
			return 0, b.fail(fields, err)
		}
		rule.Output = out
	}

	if fd.Suggest != nil {
		rule.Suggest = &FieldSuggest{Weight: fd.Suggest.Weight, Separator: fd.Suggest.Separator}
	}

	rule.Properties = copyProperties(fd.Properties)
	if _, ok := rule.Properties["type"]; !ok {
		switch {
		case len(rule.Coordinates) > 0:
			rule.Properties["type"] = DefaultGeoType
		case len(fd.Children) > 0:
			rule.Properties["type"] = DefaultObjectType
		default:
			rule.Properties["type"] = DefaultLeafType
		}
	}

	// Reserve the slot before recursing so parents precede children.
	id := RuleID(len(b.rs.rules))
	b.rs.rules = append(b.rs.rules, rule)

	if len(fd.Children) > 0 {
		children, err := b.addFields(fd.Children, path)
		if err != nil {
			return 0, err
		}
		b.rs.rules[id].Children = children
	}
	return id, nil
}

func (b *builder) compilePoints(fd fieldDoc) ([]CoordinatePair, error) {
	if fd.Coordinates == nil || len(fd.Coordinates.Points) == 0 {
		return nil, fmt.Errorf("%w: no lat/lon points declared", ErrInvalidCoordinates)
	}
	if fd.CoordinatesType == "" {
		return nil, fmt.Errorf("%w: coordinates_type is required", ErrInvalidCoordinates)
	}
	pairs := make([]CoordinatePair, 0, len(fd.Coordinates.Points))
	for i, p := range fd.Coordinates.Points {
		if p.Lat == "" || p.Lon == "" {
			return nil, fmt.Errorf("%w: point %d needs both lat and lon", ErrInvalidCoordinates, i)
		}
		lat, err := b.compiler.Compile(p.Lat)
		if err != nil {
			return nil, fmt.Errorf("%w: point %d lat: %w", ErrInvalidExpression, i, err)
		}
		lon, err := b.compiler.Compile(p.Lon)
		if err != nil {
			return nil, fmt.Errorf("%w: point %d lon: %w", ErrInvalidExpression, i, err)
		}
		pairs = append(pairs, CoordinatePair{Lat: lat, Lon: lon})
	}
	return pairs, nil
}

// resolveFlags derives the identifier and location fields.
func (b *builder) resolveFlags() error {
	var idPaths, locPaths []string
	for i := range b.rs.rules {
		r := &b.rs.rules[i]
		if r.Identifier {
			idPaths = append(idPaths, r.Path)
			b.rs.identifier = RuleID(i)
		}
		if r.Location {
			locPaths = append(locPaths, r.Path)
			b.rs.location = RuleID(i)
		}
	}
	switch {
	case len(idPaths) == 0:
		return b.fail(nil, ErrNoIdentifier)
	case len(idPaths) > 1:
		return b.fail(idPaths, ErrMultipleIdentifiers)
	}
	if strings.Contains(idPaths[0], ".") {
		return b.fail(idPaths, ErrNestedIdentifier)
	}
	if len(locPaths) > 1 {
		return b.fail(locPaths, ErrMultipleLocations)
	}
	return nil
}

// buildSuggest merges the global descriptor with per-field suggest entries.
func (b *builder) buildSuggest(sd *suggestDoc) error {
	sources := make(map[string]SuggestSource)
	if sd != nil {
		for name, f := range sd.Fields {
			sources[name] = SuggestSource{Field: name, Weight: f.Weight, Separator: f.Separator}
		}
	}
	for _, r := range b.Fields() {
		if r.Suggest == nil {
			continue
		}
		sources[r.Name] = SuggestSource{Field: r.Name, Weight: r.Suggest.Weight, Separator: r.Suggest.Separator}
	}
	if sd == nil && len(sources) == 0 {
		return nil
	}

	s := &Suggest{Field: defaultSuggestField, Separator: defaultSuggestSeparator}
	if sd != nil {
		if sd.Field != "" {
			s.Field = sd.Field
		}
		if sd.Separator != "" {
			s.Separator = sd.Separator
		}
		for _, pattern := range sd.Exclude {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return b.fail(nil, fmt.Errorf("%w: exclude pattern %q: %v", ErrInvalidSuggest, pattern, err))
			}
			s.Exclude = append(s.Exclude, re)
		}
		s.Remove = append(s.Remove, sd.Remove...)
	}
	if b.rs.Field(s.Field) != nil {
		return b.fail([]string{s.Field}, fmt.Errorf("%w: output field collides with a mapped field", ErrInvalidSuggest))
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src := sources[name]
		r := b.rs.Field(name)
		if r == nil || r.IsGeo() || r.RawXML || r.IsNested() {
			return b.fail([]string{name}, fmt.Errorf("%w: source must be a plain top-level field", ErrInvalidSuggest))
		}
		if src.Weight <= 0 {
			src.Weight = defaultSuggestWeight
		}
		if src.Separator == "" {
			src.Separator = s.Separator
		}
		s.Sources = append(s.Sources, src)
	}
	b.rs.Suggest = s
	return nil
}

// Fields exposes the top-level rules while the set is being built.
func (b *builder) Fields() []*FieldRule { return b.rs.Fields() }

func parseOutput(props []outputPropertyDoc) (OutputProperties, error) {
	out := OutputProperties{Encoding: "UTF-8"}
	for _, p := range props {
		switch strings.ToLower(p.Name) {
		case "omit-xml-declaration":
			v, err := yesNo(p)
			if err != nil {
				return out, err
			}
			out.OmitDeclaration = v
		case "indent":
			v, err := yesNo(p)
			if err != nil {
				return out, err
			}
			out.Indent = v
		case "encoding":
			enc, err := ianaindex.IANA.Encoding(p.Value)
			if err != nil {
				return out, fmt.Errorf("%w: encoding %q: %v", ErrInvalidOutput, p.Value, err)
			}
			out.Encoding = strings.ToUpper(p.Value)
			if enc != nil {
				if canonical, err := ianaindex.MIME.Name(enc); err == nil {
					out.Encoding = canonical
				}
			}
		default:
			return out, fmt.Errorf("%w: unknown property %q", ErrInvalidOutput, p.Name)
		}
	}
	return out, nil
}

func yesNo(p outputPropertyDoc) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(p.Value)) {
	case "yes", "true":
		return true, nil
	case "no", "false", "":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s must be yes or no, got %q", ErrInvalidOutput, p.Name, p.Value)
}

func copyProperties(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
