// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selector compiles XPath selection expressions and evaluates them
// against parsed XML records in node-set, string, and numeric modes.
package selector

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Supported expression-language versions.
const (
	Version1 = "1.0"
	Version2 = "2.0"
)

var (
	// ErrUnsupportedVersion is returned for an unknown expression-language version.
	ErrUnsupportedVersion = errors.New("unsupported xpath version")
	// ErrUnsupportedFunction is returned when an expression calls a function
	// the configured version does not provide.
	ErrUnsupportedFunction = errors.New("function not supported by xpath version")
	// ErrSyntax is returned for expressions that do not compile.
	ErrSyntax = errors.New("invalid xpath expression")
	// ErrEvaluation is returned when the engine fails while evaluating.
	ErrEvaluation = errors.New("xpath evaluation failed")
)

// version2Functions are available only when the rule set declares XPath 2.0.
var version2Functions = map[string]bool{
	"ends-with":   true,
	"lower-case":  true,
	"upper-case":  true,
	"matches":     true,
	"replace":     true,
	"string-join": true,
	"reverse":     true,
}

// nodeTests look like calls but are node tests, not functions.
var nodeTests = map[string]bool{
	"node":                   true,
	"text":                   true,
	"comment":                true,
	"processing-instruction": true,
}

var (
	stringLiteral = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	functionCall  = regexp.MustCompile(`([A-Za-z_][\w.-]*(?::[A-Za-z_][\w.-]*)?)\s*\(`)
)

// Compiler compiles expressions for one rule set.
type Compiler struct {
	version    string
	namespaces map[string]string
}

// NewCompiler returns a compiler for the given version ("" means 1.0) and
// prefix-to-URI namespace bindings. With no bindings, prefixed names match
// on the document's literal prefixes.
func NewCompiler(version string, namespaces map[string]string) (*Compiler, error) {
	switch version {
	case "":
		version = Version1
	case Version1, Version2:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	ns := make(map[string]string, len(namespaces))
	for k, v := range namespaces {
		ns[k] = v
	}
	return &Compiler{version: version, namespaces: ns}, nil
}

// Version returns the expression-language version.
func (c *Compiler) Version() string { return c.version }

// Namespaces returns a copy of the namespace bindings.
func (c *Compiler) Namespaces() map[string]string {
	out := make(map[string]string, len(c.namespaces))
	for k, v := range c.namespaces {
		out[k] = v
	}
	return out
}

// Compile checks expr against the configured version and compiles it.
func (c *Compiler) Compile(expr string) (*Expr, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	if c.version == Version1 {
		if fns := version2Calls(src); len(fns) > 0 {
			return nil, fmt.Errorf("%w %s: %s", ErrUnsupportedFunction, c.version, strings.Join(fns, ", "))
		}
	}

	var (
		compiled *xpath.Expr
		err      error
	)
	if len(c.namespaces) > 0 {
		compiled, err = compileWithNS(src, c.namespaces)
	} else {
		compiled, err = compile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrSyntax, src, err)
	}
	return &Expr{src: src, compiled: compiled}, nil
}

// compile guards against parser panics on malformed input.
func compile(src string) (e *xpath.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return xpath.Compile(src)
}

func compileWithNS(src string, ns map[string]string) (e *xpath.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return xpath.CompileWithNS(src, ns)
}

// version2Calls returns the XPath 2.0 functions called by src, sorted.
func version2Calls(src string) []string {
	stripped := stringLiteral.ReplaceAllString(src, `""`)
	seen := make(map[string]bool)
	for _, m := range functionCall.FindAllStringSubmatch(stripped, -1) {
		name := m[1]
		if nodeTests[name] {
			continue
		}
		if version2Functions[name] {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Expr is a compiled selection expression. Evaluation is not safe for
// concurrent use of the same Expr.
type Expr struct {
	src      string
	compiled *xpath.Expr
}

// String returns the expression source.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.src
}

// Item is one node matched by a node-set query, with its string value.
type Item struct {
	Node  *xmlquery.Node
	Value string
}

// NodeSet evaluates e as a node-set query against node. The boolean is
// false when the expression does not denote a node-set (a function or
// scalar expression), in which case callers fall back to String.
func (e *Expr) NodeSet(node *xmlquery.Node) (items []Item, isNodeSet bool, err error) {
	res, err := e.evaluate(node)
	if err != nil {
		return nil, false, err
	}
	iter, ok := res.(*xpath.NodeIterator)
	if !ok {
		return nil, false, nil
	}
	items, err = e.drain(iter)
	if err != nil {
		return nil, true, err
	}
	return items, true, nil
}

// First returns the first node selected by e, or nil.
func (e *Expr) First(node *xmlquery.Node) (*xmlquery.Node, error) {
	items, ok, err := e.NodeSet(node)
	if err != nil || !ok || len(items) == 0 {
		return nil, err
	}
	return items[0].Node, nil
}

// StringValue evaluates e as a string query, following XPath string() rules:
// a node-set yields the value of its first node.
func (e *Expr) StringValue(node *xmlquery.Node) (string, error) {
	res, err := e.evaluate(node)
	if err != nil {
		return "", err
	}
	switch v := res.(type) {
	case string:
		return v, nil
	case float64:
		return formatNumber(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case *xpath.NodeIterator:
		items, err := e.drain(v)
		if err != nil || len(items) == 0 {
			return "", err
		}
		return items[0].Value, nil
	}
	return "", nil
}

// Number evaluates e as a numeric query. The boolean is false when the
// result is not a number.
func (e *Expr) Number(node *xmlquery.Node) (float64, bool, error) {
	res, err := e.evaluate(node)
	if err != nil {
		return 0, false, err
	}
	var f float64
	switch v := res.(type) {
	case float64:
		f = v
	case string:
		f = parseNumber(v)
	case bool:
		if v {
			f = 1
		}
	case *xpath.NodeIterator:
		items, err := e.drain(v)
		if err != nil {
			return 0, false, err
		}
		if len(items) == 0 {
			return 0, false, nil
		}
		f = parseNumber(items[0].Value)
	default:
		return 0, false, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, nil
	}
	return f, true, nil
}

// Bool evaluates e as a boolean query: a non-empty node-set, a non-empty
// string, a non-zero number, or true.
func (e *Expr) Bool(node *xmlquery.Node) (bool, error) {
	res, err := e.evaluate(node)
	if err != nil {
		return false, err
	}
	switch v := res.(type) {
	case bool:
		return v, nil
	case string:
		return v != "", nil
	case float64:
		return v != 0 && !math.IsNaN(v), nil
	case *xpath.NodeIterator:
		return v.MoveNext(), nil
	}
	return false, nil
}

func (e *Expr) evaluate(node *xmlquery.Node) (res any, err error) {
	if node == nil {
		return nil, fmt.Errorf("%w: %s: nil context node", ErrEvaluation, e.src)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrEvaluation, e.src, r)
		}
	}()
	return e.compiled.Evaluate(xmlquery.CreateXPathNavigator(node)), nil
}

func (e *Expr) drain(iter *xpath.NodeIterator) (items []Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrEvaluation, e.src, r)
		}
	}()
	for iter.MoveNext() {
		nav := iter.Current()
		item := Item{Value: nav.Value()}
		if xn, ok := nav.(*xmlquery.NodeNavigator); ok {
			item.Node = xn.Current()
		}
		items = append(items, item)
	}
	return items, nil
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
