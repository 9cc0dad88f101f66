package filter

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
)

func TestSplitPoint(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"lt(a.b.c, 2.0), gt(a.b.c, 3.0)", 14},
		{"id, 1", 2},
		{"eq(id, 1)", -1},
		{"and(eq(a, 1), eq(b, 2)), not(eq(c, 3))", 23},
	}

	for _, tt := range tests {
		got, err := splitPoint(tt.in)
		if err != nil {
			t.Fatalf("splitPoint(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("splitPoint(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"a), (b", "name, Binary{\"abc\"})", "id, f(1", "(a, b"} {
		if _, err := splitPoint(in); err == nil {
			t.Errorf("splitPoint(%q): expected error for unbalanced parenthesis", in)
		}
	}
}

func TestCompileNestedOr(t *testing.T) {
	expr := mustCompile(t, "or(lt(a.b.c, 2.0), gt(a.b.c, 3.0))")

	or, ok := expr.(*Or)
	if !ok {
		t.Fatalf("expected *Or, got %T", expr)
	}

	for i, side := range []Expression{or.Left, or.Right} {
		cmp, ok := side.(*Comparison)
		if !ok {
			t.Fatalf("side %d: expected *Comparison, got %T", i, side)
		}
		if cmp.Field.Path() != "a.b.c" {
			t.Errorf("side %d: expected path a.b.c, got %s", i, cmp.Field.Path())
		}
		if !arrow.TypeEqual(cmp.Literal.Type, arrow.PrimitiveTypes.Float64) {
			t.Errorf("side %d: expected float64 literal, got %s", i, cmp.Literal.Type)
		}
		if len(cmp.Field.Indices) != 3 || cmp.Field.Indices[0] != 8 {
			t.Errorf("side %d: unexpected indices %v", i, cmp.Field.Indices)
		}
	}

	if or.Left.(*Comparison).Op != OpLt || or.Right.(*Comparison).Op != OpGt {
		t.Error("operators not preserved")
	}
	if got, want := expr.String(), "or(lt(a.b.c, 2), gt(a.b.c, 3))"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCompileUnresolvedField(t *testing.T) {
	for _, f := range []string{"eq(missing, 1)", "gt(nope.deeper, 3)", "eq(missing, null)"} {
		expr := mustCompile(t, f)
		if c, ok := expr.(*Constant); !ok || c.Value {
			t.Errorf("Compile(%q) = %v, want false", f, expr)
		}
	}
}

func TestCompileSingleArgumentLeaf(t *testing.T) {
	expr := mustCompile(t, "not(isnull(name))")
	not, ok := expr.(*Not)
	if !ok {
		t.Fatalf("expected *Not, got %T", expr)
	}
	if not.Child != False {
		t.Errorf("expected not(false), got %v", expr)
	}

	for _, f := range []string{"eq(id)", "isnull(a.b.c)", "gt( )"} {
		if got := mustCompile(t, f); got != False {
			t.Errorf("Compile(%q) = %v, want false", f, got)
		}
	}
}

func TestCompileNullComparisons(t *testing.T) {
	tests := []struct {
		filter string
		check  func(Expression) bool
	}{
		{"eq(id, null)", func(e Expression) bool { n, ok := e.(*IsNull); return ok && !n.Negated }},
		{"noteq(id, null)", func(e Expression) bool { n, ok := e.(*IsNull); return ok && n.Negated }},
		{"gt(id, null)", func(e Expression) bool { return e == True }},
		{"lteq(a.b.c, null)", func(e Expression) bool { return e == True }},
		{"like(name, x)", func(e Expression) bool { return e == True }},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			expr := mustCompile(t, tt.filter)
			if !tt.check(expr) {
				t.Errorf("unexpected expression %T %v", expr, expr)
			}
		})
	}
}

func TestCompileDottedTopLevelName(t *testing.T) {
	expr := mustCompile(t, "eq(x.y, 20)")
	cmp, ok := expr.(*Comparison)
	if !ok {
		t.Fatalf("expected *Comparison, got %T", expr)
	}
	if cmp.Field.Nested() {
		t.Error("x.y should resolve to a top-level field")
	}
	if v, ok := cmp.Literal.Value.(int64); !ok || v != 20 {
		t.Errorf("expected int64 20, got %#v", cmp.Literal.Value)
	}
}

func TestCompileMalformed(t *testing.T) {
	tests := []string{
		"",
		"eq",
		"eq(id, 1",
		"(id, 1)",
		"and(eq(id, 1))",
		"and(eq(id, 1)))",
		`eq(name, Binary{"abc"}))`,
		"eq(id, f(1)",
		"or(eq(id, 1), eq(id, 2)))",
		"not(eq(id, 1)))",
		"or(eq(id, 1), bogus)",
		"not()",
	}

	for _, f := range tests {
		_, err := Compile(f, testSchema())
		if err == nil {
			t.Errorf("Compile(%q): expected error", f)
			continue
		}
		if !errors.Is(err, ErrMalformedFilter) {
			t.Errorf("Compile(%q): expected ErrMalformedFilter, got %v", f, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Compile(%q): expected *ParseError, got %T", f, err)
		}
	}
}

func TestCompileInvalidLiteral(t *testing.T) {
	for _, f := range []string{"eq(id, abc)", "gt(score, fast)", "eq(name, short)", "eq(flag, maybe)"} {
		_, err := Compile(f, testSchema())
		if !errors.Is(err, ErrInvalidLiteral) {
			t.Errorf("Compile(%q): expected ErrInvalidLiteral, got %v", f, err)
		}
		if errors.Is(err, ErrMalformedFilter) {
			t.Errorf("Compile(%q): literal error reported as malformed", f)
		}
	}
}

func TestCompileRoundTrip(t *testing.T) {
	filters := []string{
		"eq(id, 3)",
		"noteq(name, Binary{\"b\"})",
		"gteq(score, 1.5)",
		"lt(ts, 3000000)",
		"eq(data, [1, -2])",
		"eq(data, )",
		"eq(flag, true)",
		"lteq(day, 2)",
		"eq(u, 7)",
		"gt(amount, 250)",
		"eq(big, [1, 0])",
		"and(eq(id, null), not(noteq(a.b.c, null)))",
		"or(lt(a.b.c, 2.5), and(gt(small, -2), lt(small, 2)))",
	}

	for _, f := range filters {
		first := mustCompile(t, f)
		second := mustCompile(t, first.String())
		if !Equal(first, second) {
			t.Errorf("round trip of %q: %q != %q", f, first, second)
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	f := "and(or(eq(id, 1), gt(score, 2.0)), not(eq(name, Binary{\"x\"})))"
	a := mustCompile(t, f)
	b := mustCompile(t, f)
	if !Equal(a, b) {
		t.Errorf("compiling twice produced %q and %q", a, b)
	}
}

func TestCompileAll(t *testing.T) {
	expr, err := CompileAll(nil, testSchema())
	if err != nil || expr != nil {
		t.Fatalf("CompileAll(nil) = %v, %v; want nil, nil", expr, err)
	}

	expr, err = CompileAll([]string{"gt(id, 1)", "lt(id, 5)", "noteq(name, null)"}, testSchema())
	if err != nil {
		t.Fatalf("CompileAll failed: %v", err)
	}
	if got, want := expr.String(), "and(and(gt(id, 1), lt(id, 5)), noteq(name, null))"; got != want {
		t.Errorf("CompileAll = %q, want %q", got, want)
	}

	_, err = CompileAll([]string{"gt(id, 1)", "lt(id"}, testSchema())
	if !errors.Is(err, ErrMalformedFilter) {
		t.Errorf("expected ErrMalformedFilter, got %v", err)
	}
}
