// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapper

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/internal/selector"
	"github.com/pdiddy/harvester/pkg/types"
)

// EvalResult is the value one rule produced for one node.
type EvalResult struct {
	Name  string
	Value types.Value
}

// Evaluator applies the rules of one RuleSet to document nodes. It holds no
// per-record state; an Evaluator must not be shared between goroutines
// because compiled expressions are not safe for concurrent evaluation.
type Evaluator struct {
	rs  *ruleset.RuleSet
	log logger.Logger
}

// NewEvaluator returns an evaluator for rs.
func NewEvaluator(rs *ruleset.RuleSet, log logger.Logger) *Evaluator {
	return &Evaluator{rs: rs, log: logger.OrNop(log)}
}

// Identifier extracts the record identifier as a trimmed string. The
// boolean is false when the identifier is empty or absent.
func (e *Evaluator) Identifier(node *xmlquery.Node) (string, bool, error) {
	s, err := e.rs.IdentifierField().Selection.StringValue(node)
	if err != nil {
		return "", false, err
	}
	s = strings.TrimSpace(s)
	return s, s != "", nil
}

// Evaluate applies a plain or nested rule to node. The boolean is false
// when the rule contributes nothing, which is not an error.
func (e *Evaluator) Evaluate(rule *ruleset.FieldRule, node *xmlquery.Node) (EvalResult, bool, error) {
	pass, err := e.guard(rule, node)
	if err != nil || !pass {
		return EvalResult{}, false, err
	}

	items, isNodeSet, err := rule.Selection.NodeSet(node)
	if err != nil {
		return EvalResult{}, false, err
	}

	if rule.IsNested() {
		if !isNodeSet {
			return EvalResult{}, false, nil
		}
		return e.evaluateNested(rule, items)
	}

	var value types.Value
	if isNodeSet {
		value = collapse(distinct(items))
	} else {
		s, err := rule.Selection.StringValue(node)
		if err != nil {
			return EvalResult{}, false, err
		}
		if s = strings.TrimSpace(s); s != "" {
			value = types.StringValue(s)
		}
	}
	if !value.IsValid() {
		return EvalResult{}, false, nil
	}

	value = replace(value, rule.Replacements)
	if rule.Split != "" {
		if _, ok := value.Str(); !ok {
			e.log.Warn("Split ignored for multi-valued field", logger.String("field", rule.Path))
		} else {
			value = split(value, rule.Split)
			if !value.IsValid() {
				return EvalResult{}, false, nil
			}
		}
	}
	return EvalResult{Name: rule.Name, Value: value}, true, nil
}

// guard evaluates the rule condition. An empty node-set, or a false
// non-node-set result, suppresses the rule.
func (e *Evaluator) guard(rule *ruleset.FieldRule, node *xmlquery.Node) (bool, error) {
	if rule.Condition == nil {
		return true, nil
	}
	items, isNodeSet, err := rule.Condition.NodeSet(node)
	if err != nil {
		return false, err
	}
	if isNodeSet {
		return len(items) > 0, nil
	}
	return rule.Condition.Bool(node)
}

func (e *Evaluator) evaluateNested(rule *ruleset.FieldRule, items []selector.Item) (EvalResult, bool, error) {
	var maps []types.Value
	for _, item := range items {
		if item.Node == nil {
			continue
		}
		m, err := e.evaluateChildren(rule, item.Node)
		if err != nil {
			return EvalResult{}, false, err
		}
		if m.Len() > 0 {
			maps = append(maps, types.MapValue(m))
		}
	}
	switch len(maps) {
	case 0:
		return EvalResult{}, false, nil
	case 1:
		return EvalResult{Name: rule.Name, Value: maps[0]}, true, nil
	}
	return EvalResult{Name: rule.Name, Value: types.ListValue(maps...)}, true, nil
}

func (e *Evaluator) evaluateChildren(rule *ruleset.FieldRule, node *xmlquery.Node) (*types.OrderedMap, error) {
	m := types.NewOrderedMap()
	for _, child := range e.rs.Children(rule) {
		res, ok, err := e.evaluateAny(child, node)
		if err != nil {
			return nil, err
		}
		if ok {
			m.Set(res.Name, res.Value)
		}
	}
	return m, nil
}

// evaluateAny dispatches on the rule kind.
func (e *Evaluator) evaluateAny(rule *ruleset.FieldRule, node *xmlquery.Node) (EvalResult, bool, error) {
	switch {
	case rule.IsGeo():
		return e.Geo(rule, node)
	case rule.RawXML:
		return e.Raw(rule, node)
	}
	return e.Evaluate(rule, node)
}

// distinct returns the distinct non-empty trimmed values of items in
// first-seen order.
func distinct(items []selector.Item) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		v := strings.TrimSpace(item.Value)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// collapse turns zero values into an invalid Value, one into a scalar and
// several into a list.
func collapse(values []string) types.Value {
	switch len(values) {
	case 0:
		return types.Value{}
	case 1:
		return types.StringValue(values[0])
	}
	return types.StringsValue(values)
}

func replace(v types.Value, replacements []ruleset.Replacement) types.Value {
	if len(replacements) == 0 {
		return v
	}
	apply := func(s string) string {
		for _, r := range replacements {
			s = strings.ReplaceAll(s, r.From, r.To)
		}
		return s
	}
	if s, ok := v.Str(); ok {
		return types.StringValue(apply(s))
	}
	values := v.Strings()
	for i, s := range values {
		values[i] = apply(s)
	}
	return types.StringsValue(values)
}

// split tokenizes a scalar string on sep, trimming tokens and dropping empty
// ones. The result is always a list, or invalid when no token remains.
func split(v types.Value, sep string) types.Value {
	s, _ := v.Str()
	var tokens []string
	for _, tok := range strings.Split(s, sep) {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return types.Value{}
	}
	return types.StringsValue(tokens)
}
