package filter

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// nullLiteral is the right-hand argument that turns eq/noteq into a null test.
const nullLiteral = "null"

// Compile compiles one serialized predicate against schema.
//
// Structural errors return a *ParseError and literal errors a *CoercionError.
// Field paths that do not resolve, and leaves with a single argument such as
// isnull(salary), compile to False; unknown comparison
// operators and non-equality null comparisons compile to True. Both keep the
// reader conservative: an unresolvable predicate never removes rows it cannot
// reason about, except that a missing field cannot match anything.
func Compile(filter string, schema *arrow.Schema) (Expression, error) {
	c := compiler{filter: filter, schema: schema}
	return c.compile(filter, 0)
}

// CompileAll compiles every predicate and joins the results with AND, in
// order. Returns nil, nil for an empty list.
func CompileAll(filters []string, schema *arrow.Schema) (Expression, error) {
	exprs := make([]Expression, 0, len(filters))
	for i, f := range filters {
		expr, err := Compile(f, schema)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		exprs = append(exprs, expr)
	}
	return Conjunction(exprs...), nil
}

type compiler struct {
	filter string
	schema *arrow.Schema
}

func (c *compiler) errorf(offset int, format string, args ...any) error {
	return &ParseError{Filter: c.filter, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// compile compiles s, which starts at byte offset base of the full filter.
func (c *compiler) compile(s string, base int) (Expression, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, c.errorf(base, "empty expression")
	}
	base += strings.Index(s, trimmed)
	s = trimmed

	open := strings.IndexByte(s, '(')
	if open < 0 {
		return nil, c.errorf(base, "expected op(args)")
	}
	if s[len(s)-1] != ')' {
		return nil, c.errorf(base+len(s)-1, "expected closing parenthesis")
	}

	op := Op(strings.TrimSpace(s[:open]))
	if op == "" {
		return nil, c.errorf(base, "missing operator")
	}
	inner := s[open+1 : len(s)-1]
	innerBase := base + open + 1

	if op == OpNot {
		child, err := c.compile(inner, innerBase)
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	}

	comma, err := splitPoint(inner)
	if err != nil {
		return nil, c.errorf(innerBase, "%s", err)
	}
	if comma < 0 {
		if op == OpAnd || op == OpOr {
			return nil, c.errorf(innerBase, "%s expects two arguments", op)
		}
		// A single-argument leaf such as isnull(salary) has no field path.
		return False, nil
	}
	left, right := inner[:comma], inner[comma+1:]
	rightBase := innerBase + comma + 1

	switch op {
	case OpAnd, OpOr:
		l, err := c.compile(left, innerBase)
		if err != nil {
			return nil, err
		}
		r, err := c.compile(right, rightBase)
		if err != nil {
			return nil, err
		}
		if op == OpAnd {
			return &And{Left: l, Right: r}, nil
		}
		return &Or{Left: l, Right: r}, nil
	}

	return c.compileLeaf(op, strings.TrimSpace(left), strings.TrimSpace(right))
}

func (c *compiler) compileLeaf(op Op, path, raw string) (Expression, error) {
	ref, ok := Resolve(path, c.schema)
	if !ok {
		return False, nil
	}

	if raw == nullLiteral {
		switch op {
		case OpEq:
			return &IsNull{Field: ref}, nil
		case OpNotEq:
			return &IsNull{Field: ref, Negated: true}, nil
		}
		return True, nil
	}

	if !op.IsComparison() {
		return True, nil
	}

	lit, err := Coerce(ref.Type(), raw)
	if err != nil {
		return nil, fmt.Errorf("%s(%s, ...): %w", op, path, err)
	}
	return &Comparison{Op: op, Field: ref, Literal: lit}, nil
}

// splitPoint returns the index of the first comma at parenthesis depth zero,
// or -1 if there is none. The whole of s must be balanced.
func splitPoint(s string) (int, error) {
	depth, comma := 0, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return -1, fmt.Errorf("unbalanced parenthesis at %d", i)
			}
		case ',':
			if depth == 0 && comma < 0 {
				comma = i
			}
		}
	}
	if depth != 0 {
		return -1, fmt.Errorf("%d unclosed parenthesis", depth)
	}
	return comma, nil
}
