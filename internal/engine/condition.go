package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
)

// Condition is a compiled boolean expression evaluated against the execution
// context. Expressions are compiled once at workflow compile time, not per
// step.
type Condition struct {
	raw         string
	code        *compiler.Code
	globalNames []string
}

// CompileCondition parses and compiles an expression. The global names are
// the identifiers the expression may reference: declared workflow variables
// and node output bindings.
func CompileCondition(raw string, globalNames []string) (*Condition, error) {
	ast, err := parser.Parse(context.Background(), raw)
	if err != nil {
		return nil, fmt.Errorf("parse condition %q: %w", raw, err)
	}
	names := make([]string, len(globalNames))
	copy(names, globalNames)
	sort.Strings(names)
	code, err := compiler.Compile(ast, compiler.WithGlobalNames(names))
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", raw, err)
	}
	return &Condition{raw: raw, code: code, globalNames: names}, nil
}

// Raw returns the original expression text.
func (c *Condition) Raw() string { return c.raw }

// Evaluate runs the compiled expression with the given variables and reports
// whether the result is truthy. Declared globals missing from vars evaluate
// as nil.
func (c *Condition) Evaluate(ctx context.Context, vars map[string]any) (bool, error) {
	globals := make(map[string]any, len(c.globalNames))
	for _, name := range c.globalNames {
		globals[name] = object.Nil
	}
	for k, v := range vars {
		if _, declared := globals[k]; declared && v != nil {
			globals[k] = v
		}
	}
	result, err := risor.EvalCode(ctx, c.code, risor.WithGlobals(globals))
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", c.raw, err)
	}
	return result.IsTruthy(), nil
}
