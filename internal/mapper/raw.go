// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapper

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/pkg/types"
)

const indentUnit = "  "

// Raw serializes the first node selected by rule as XML text.
func (e *Evaluator) Raw(rule *ruleset.FieldRule, node *xmlquery.Node) (EvalResult, bool, error) {
	pass, err := e.guard(rule, node)
	if err != nil || !pass {
		return EvalResult{}, false, err
	}
	target, err := rule.Selection.First(node)
	if err != nil || target == nil {
		return EvalResult{}, false, err
	}
	s := Serialize(target, rule.Output)
	if s == "" {
		return EvalResult{}, false, nil
	}
	return EvalResult{Name: rule.Name, Value: types.StringValue(s)}, true, nil
}

// Serialize renders n under the given output properties. Elements carry
// declarations for every namespace they use that is bound outside the
// subtree. Non-element nodes render as their text. The result is trimmed.
func Serialize(n *xmlquery.Node, out ruleset.OutputProperties) string {
	if n.Type == xmlquery.DocumentNode {
		if n = types.RootElement(n); n == nil {
			return ""
		}
	}
	if n.Type != xmlquery.ElementNode {
		return strings.TrimSpace(n.InnerText())
	}

	opts := []xmlquery.OutputOption{xmlquery.WithOutputSelf()}
	if out.Indent {
		opts = append(opts, xmlquery.WithIndentation(indentUnit), xmlquery.WithoutPreserveSpace())
	}
	body := strings.TrimSpace(declareNamespaces(n, n.OutputXMLWithOptions(opts...)))
	if out.OmitDeclaration {
		return body
	}

	encoding := out.Encoding
	if encoding == "" {
		encoding = "UTF-8"
	}
	sep := ""
	if out.Indent {
		sep = "\n"
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="%s"?>%s%s`, encoding, sep, body)
}

// declareNamespaces inserts xmlns attributes into the opening tag of n for
// prefixes the subtree uses but does not declare.
func declareNamespaces(n *xmlquery.Node, xml string) string {
	decls := undeclared(n)
	if len(decls) == 0 {
		return xml
	}
	open := "<" + qualifiedName(n)
	i := strings.Index(xml, open)
	if i < 0 {
		return xml
	}
	i += len(open)
	return xml[:i] + " " + strings.Join(decls, " ") + xml[i:]
}

func qualifiedName(n *xmlquery.Node) string {
	if n.Prefix == "" {
		return n.Data
	}
	return n.Prefix + ":" + n.Data
}

func undeclared(root *xmlquery.Node) []string {
	need := make(map[string]string)
	var walk func(n *xmlquery.Node, scope map[string]bool)
	walk = func(n *xmlquery.Node, scope map[string]bool) {
		if declared := declaredPrefixes(n); len(declared) > 0 {
			inner := make(map[string]bool, len(scope)+len(declared))
			for p := range scope {
				inner[p] = true
			}
			for _, p := range declared {
				inner[p] = true
			}
			scope = inner
		}
		if n.NamespaceURI != "" && !scope[n.Prefix] {
			if _, ok := need[n.Prefix]; !ok {
				need[n.Prefix] = n.NamespaceURI
			}
		}
		for _, a := range n.Attr {
			p := a.Name.Space
			if p == "" || p == "xmlns" || p == "xml" || a.NamespaceURI == "" || scope[p] {
				continue
			}
			if _, ok := need[p]; !ok {
				need[p] = a.NamespaceURI
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode {
				walk(c, scope)
			}
		}
	}
	walk(root, map[string]bool{})

	prefixes := make([]string, 0, len(need))
	for p := range need {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	decls := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		uri := html.EscapeString(need[p])
		if p == "" {
			decls = append(decls, fmt.Sprintf(`xmlns="%s"`, uri))
		} else {
			decls = append(decls, fmt.Sprintf(`xmlns:%s="%s"`, p, uri))
		}
	}
	return decls
}

// declaredPrefixes lists the prefixes bound by xmlns attributes on n; the
// default namespace is the empty prefix.
func declaredPrefixes(n *xmlquery.Node) []string {
	var out []string
	for _, a := range n.Attr {
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			out = append(out, "")
		case a.Name.Space == "xmlns":
			out = append(out, a.Name.Local)
		}
	}
	return out
}
