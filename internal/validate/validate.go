// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks raw records against declarative assertion
// documents before they are mapped. Each check has a code; required, type
// and enum violations are fatal and drop the record, the other codes
// produce advisory findings.
package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/harvester/internal/selector"
)

// Code classifies a check.
type Code string

const (
	CodeRequired    Code = "required"
	CodeType        Code = "type"
	CodeEnum        Code = "enum"
	CodeRecommended Code = "recommended"
	CodePattern     Code = "pattern"
	CodeLength      Code = "length"
)

// Fatal reports whether a violation of c drops the record.
func (c Code) Fatal() bool {
	switch c {
	case CodeRequired, CodeType, CodeEnum:
		return true
	}
	return false
}

func (c Code) valid() bool {
	switch c {
	case CodeRequired, CodeType, CodeEnum, CodeRecommended, CodePattern, CodeLength:
		return true
	}
	return false
}

// ErrInvalidDocument is returned for validator documents that cannot be loaded.
var ErrInvalidDocument = errors.New("invalid validator document")

// Violation is one failed check.
type Violation struct {
	Code    Code
	XPath   string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// Error carries the fatal violations of one record.
type Error struct {
	Validator  string
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s: %s", e.Validator, strings.Join(parts, "; "))
}

type document struct {
	Name         string            `yaml:"name"`
	Namespace    string            `yaml:"namespace"`
	Namespaces   map[string]string `yaml:"namespaces"`
	XPathVersion string            `yaml:"xpath_version"`
	Checks       []checkDoc        `yaml:"checks"`
}

type checkDoc struct {
	Code    Code     `yaml:"code"`
	XPath   string   `yaml:"xpath"`
	Message string   `yaml:"message"`
	Values  []string `yaml:"values"`
	Type    string   `yaml:"type"`
	Pattern string   `yaml:"pattern"`
	Min     int      `yaml:"min"`
	Max     int      `yaml:"max"`
}

type check struct {
	code    Code
	expr    *selector.Expr
	message string
	values  []string
	kind    string
	pattern *regexp.Regexp
	min     int
	max     int
}

// RuleValidator validates records of one namespace.
type RuleValidator struct {
	name      string
	namespace string
	checks    []check
}

// Load reads a validator document.
func Load(path string) (*RuleValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading validator document %s: %w", path, err)
	}
	return Parse(data, filepath.Base(path))
}

// LoadAll loads every document in paths, stopping at the first error.
func LoadAll(paths []string) ([]*RuleValidator, error) {
	out := make([]*RuleValidator, 0, len(paths))
	for _, p := range paths {
		v, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Parse builds a validator from a YAML or JSON document.
func Parse(data []byte, source string) (*RuleValidator, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidDocument, source, err)
	}
	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(source, filepath.Ext(source))
	}
	if len(doc.Checks) == 0 {
		return nil, fmt.Errorf("%w %s: no checks", ErrInvalidDocument, name)
	}
	comp, err := selector.NewCompiler(doc.XPathVersion, doc.Namespaces)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidDocument, name, err)
	}

	v := &RuleValidator{name: name, namespace: doc.Namespace}
	for i, cd := range doc.Checks {
		c, err := compileCheck(comp, cd)
		if err != nil {
			return nil, fmt.Errorf("%w %s: check %d: %w", ErrInvalidDocument, name, i+1, err)
		}
		v.checks = append(v.checks, c)
	}
	return v, nil
}

func compileCheck(comp *selector.Compiler, cd checkDoc) (check, error) {
	if !cd.Code.valid() {
		return check{}, fmt.Errorf("unknown code %q", cd.Code)
	}
	expr, err := comp.Compile(cd.XPath)
	if err != nil {
		return check{}, err
	}
	c := check{code: cd.Code, expr: expr, message: cd.Message, values: cd.Values, kind: cd.Type, min: cd.Min, max: cd.Max}
	switch cd.Code {
	case CodeEnum:
		if len(cd.Values) == 0 {
			return check{}, errors.New("enum check needs values")
		}
	case CodeType:
		switch cd.Type {
		case "number", "integer", "boolean", "date":
		default:
			return check{}, fmt.Errorf("unknown type %q", cd.Type)
		}
	case CodePattern:
		if c.pattern, err = regexp.Compile(cd.Pattern); err != nil {
			return check{}, err
		}
	case CodeLength:
		if cd.Max > 0 && cd.Max < cd.Min {
			return check{}, fmt.Errorf("length max %d below min %d", cd.Max, cd.Min)
		}
	}
	return c, nil
}

// Name returns the validator name.
func (v *RuleValidator) Name() string { return v.name }

// MatchesNamespace reports whether the validator applies to records whose
// root is in uri. A validator without a namespace applies to every record.
func (v *RuleValidator) MatchesNamespace(uri string) bool {
	return v.namespace == "" || v.namespace == uri
}

// Validate runs every check against node. Advisory violations are
// returned as findings; fatal violations are returned as an *Error.
func (v *RuleValidator) Validate(node *xmlquery.Node) ([]string, error) {
	var (
		findings []string
		fatal    []Violation
	)
	for _, c := range v.checks {
		violations, err := c.run(node)
		if err != nil {
			return findings, fmt.Errorf("%s: evaluating %s: %w", v.name, c.expr, err)
		}
		for _, viol := range violations {
			if viol.Code.Fatal() {
				fatal = append(fatal, viol)
			} else {
				findings = append(findings, viol.String())
			}
		}
	}
	if len(fatal) > 0 {
		return findings, &Error{Validator: v.name, Violations: fatal}
	}
	return findings, nil
}

func (c check) run(node *xmlquery.Node) ([]Violation, error) {
	values, err := c.selected(node)
	if err != nil {
		return nil, err
	}
	fail := func(format string, args ...any) Violation {
		msg := c.message
		if msg == "" {
			msg = fmt.Sprintf(format, args...)
		}
		return Violation{Code: c.code, XPath: c.expr.String(), Message: msg}
	}

	switch c.code {
	case CodeRequired, CodeRecommended:
		if len(values) == 0 {
			return []Violation{fail("%s has no value", c.expr)}, nil
		}
		return nil, nil
	}

	var out []Violation
	for _, val := range values {
		switch c.code {
		case CodeEnum:
			if !slices.Contains(c.values, val) {
				out = append(out, fail("%q is not one of %s", val, strings.Join(c.values, ", ")))
			}
		case CodeType:
			if !conforms(c.kind, val) {
				out = append(out, fail("%q is not a %s", val, c.kind))
			}
		case CodePattern:
			if !c.pattern.MatchString(val) {
				out = append(out, fail("%q does not match %s", val, c.pattern))
			}
		case CodeLength:
			n := utf8.RuneCountInString(val)
			if n < c.min || (c.max > 0 && n > c.max) {
				out = append(out, fail("%s has length %d outside [%d, %d]", c.expr, n, c.min, c.max))
			}
		}
	}
	return out, nil
}

// selected returns the trimmed, non-empty string values selected by the check.
func (c check) selected(node *xmlquery.Node) ([]string, error) {
	items, isNodeSet, err := c.expr.NodeSet(node)
	if err != nil {
		return nil, err
	}
	if !isNodeSet {
		s, err := c.expr.StringValue(node)
		if err != nil {
			return nil, err
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil, nil
		}
		return []string{s}, nil
	}
	var out []string
	for _, it := range items {
		if s := strings.TrimSpace(it.Value); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01", "2006"}

func conforms(kind, val string) bool {
	switch kind {
	case "number":
		_, err := strconv.ParseFloat(val, 64)
		return err == nil
	case "integer":
		_, err := strconv.ParseInt(val, 10, 64)
		return err == nil
	case "boolean":
		switch val {
		case "true", "false", "1", "0":
			return true
		}
		return false
	case "date":
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, val); err == nil {
				return true
			}
		}
		return false
	}
	return false
}
