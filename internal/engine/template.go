package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/risor-io/risor"
)

var templatePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate evaluates ${...} expressions in s against the execution
// context. A string that is exactly one expression yields the expression's
// value with its type preserved; mixed text yields a concatenated string.
// Strings with no expressions are returned verbatim.
func Interpolate(ctx context.Context, s string, ec *ExecutionContext) (Value, error) {
	open := strings.Count(s, "${")
	if open == 0 {
		return String(s), nil
	}
	if open > strings.Count(s, "}") {
		return Null(), fmt.Errorf("unclosed template expression in %q", s)
	}

	matches := templatePattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return String(s), nil
	}
	globals := ec.Snapshot()

	// Whole-string single expression: preserve the value's type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		return evalExpression(ctx, s[matches[0][2]:matches[0][3]], globals)
	}

	var sb strings.Builder
	var lastEnd int
	for _, match := range matches {
		sb.WriteString(s[lastEnd:match[0]])
		v, err := evalExpression(ctx, s[match[2]:match[3]], globals)
		if err != nil {
			return Null(), err
		}
		sb.WriteString(v.String())
		lastEnd = match[1]
	}
	sb.WriteString(s[lastEnd:])
	return String(sb.String()), nil
}

// InterpolateAny walks strings nested inside maps and slices, interpolating
// each. Non-string leaves pass through unchanged.
func InterpolateAny(ctx context.Context, v any, ec *ExecutionContext) (Value, error) {
	switch t := v.(type) {
	case string:
		return Interpolate(ctx, t, ec)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			iv, err := InterpolateAny(ctx, item, ec)
			if err != nil {
				return Null(), err
			}
			out[k] = iv
		}
		return Map(out), nil
	case []any:
		out := make([]Value, len(t))
		for i, item := range t {
			iv, err := InterpolateAny(ctx, item, ec)
			if err != nil {
				return Null(), err
			}
			out[i] = iv
		}
		return Array(out...), nil
	default:
		return ValueOf(v), nil
	}
}

func evalExpression(ctx context.Context, expr string, globals map[string]any) (Value, error) {
	result, err := risor.Eval(ctx, expr, risor.WithGlobals(globals))
	if err != nil {
		return Null(), fmt.Errorf("evaluate template expression %q: %w", expr, err)
	}
	return ValueOf(result.Interface()), nil
}
