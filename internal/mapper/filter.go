// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapper

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/pdiddy/harvester/pkg/types"
)

// Filter decides whether a mapped record is kept.
type Filter interface {
	Accept(id string, fields *types.OrderedMap) (bool, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(id string, fields *types.OrderedMap) (bool, error)

// Accept calls f.
func (f FilterFunc) Accept(id string, fields *types.OrderedMap) (bool, error) {
	return f(id, fields)
}

// AcceptAll keeps every record.
var AcceptAll Filter = FilterFunc(func(string, *types.OrderedMap) (bool, error) {
	return true, nil
})

// celCostLimit bounds the work of one filter evaluation.
const celCostLimit = 100000

// CELFilter keeps records for which a CEL expression evaluates to true. The
// expression sees the record identifier as id and the mapped fields as doc,
// e.g. `has(doc.title) && doc.title.startsWith("Lake")`. A non-boolean
// result rejects the record.
type CELFilter struct {
	expr string
	prg  cel.Program
}

// NewCELFilter compiles expr.
func NewCELFilter(expr string) (*CELFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling filter %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("building filter program: %w", err)
	}
	return &CELFilter{expr: expr, prg: prg}, nil
}

// String returns the filter expression.
func (f *CELFilter) String() string { return f.expr }

// Accept evaluates the expression against one record.
func (f *CELFilter) Accept(id string, fields *types.OrderedMap) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{
		"id":  id,
		"doc": fields.Interface(),
	})
	if err != nil {
		return false, fmt.Errorf("evaluating filter %q: %w", f.expr, err)
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}
