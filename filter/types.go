package filter

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Op identifies a predicate operator as it appears in the serialized grammar.
type Op string

const (
	// Boolean combinators
	OpAnd Op = "and"
	OpOr  Op = "or"
	OpNot Op = "not"

	// Comparison operators
	OpEq    Op = "eq"
	OpNotEq Op = "noteq"
	OpGt    Op = "gt"
	OpGtEq  Op = "gteq"
	OpLt    Op = "lt"
	OpLtEq  Op = "lteq"
)

// IsComparison reports whether op is one of the six comparison operators.
func (op Op) IsComparison() bool {
	switch op {
	case OpEq, OpNotEq, OpGt, OpGtEq, OpLt, OpLtEq:
		return true
	}
	return false
}

// Expression is the interface implemented by all compiled predicate nodes.
// The set of implementations is closed: *Comparison, *IsNull, *Not, *And,
// *Or and *Constant. Use a type switch to walk a tree.
//
// Expressions are immutable after construction and safe for concurrent use.
type Expression interface {
	// String renders the expression back to the serialized predicate grammar.
	String() string

	// expressionMarker is a marker method to prevent external implementation.
	expressionMarker()
}

// FieldRef is a resolved reference to a possibly nested schema field.
type FieldRef struct {
	// Names holds one field name per nesting level, outermost first.
	Names []string

	// Indices holds the child index of each name within its parent.
	Indices []int

	// Field is the referenced (innermost) field.
	Field arrow.Field
}

// Path returns the dotted field path.
func (f *FieldRef) Path() string {
	return strings.Join(f.Names, ".")
}

// Type returns the declared type of the referenced field.
func (f *FieldRef) Type() arrow.DataType {
	return f.Field.Type
}

// Nested reports whether the reference enters at least one struct field.
func (f *FieldRef) Nested() bool {
	return len(f.Names) > 1
}

// Comparison compares a field with a typed literal.
type Comparison struct {
	Op      Op
	Field   *FieldRef
	Literal Literal
}

func (c *Comparison) String() string {
	return string(c.Op) + "(" + c.Field.Path() + ", " + c.Literal.Text() + ")"
}

func (c *Comparison) expressionMarker() {}

// IsNull tests a field for null. Negated turns it into IS NOT NULL.
type IsNull struct {
	Field   *FieldRef
	Negated bool
}

func (n *IsNull) String() string {
	op := OpEq
	if n.Negated {
		op = OpNotEq
	}
	return string(op) + "(" + n.Field.Path() + ", null)"
}

func (n *IsNull) expressionMarker() {}

// Not negates its child.
type Not struct {
	Child Expression
}

func (n *Not) String() string {
	return "not(" + n.Child.String() + ")"
}

func (n *Not) expressionMarker() {}

// And is the conjunction of two expressions.
type And struct {
	Left  Expression
	Right Expression
}

func (a *And) String() string {
	return "and(" + a.Left.String() + ", " + a.Right.String() + ")"
}

func (a *And) expressionMarker() {}

// Or is the disjunction of two expressions.
type Or struct {
	Left  Expression
	Right Expression
}

func (o *Or) String() string {
	return "or(" + o.Left.String() + ", " + o.Right.String() + ")"
}

func (o *Or) expressionMarker() {}

// Constant is a predicate with a fixed outcome.
type Constant struct {
	Value bool
}

// Shared constants. Constant nodes carry no state, so sharing is safe.
var (
	True  = &Constant{Value: true}
	False = &Constant{Value: false}
)

// String renders the constant as a bare true or false. The predicate grammar
// has no constant form, so the rendering is informational only.
func (c *Constant) String() string {
	if c.Value {
		return "true"
	}
	return "false"
}

func (c *Constant) expressionMarker() {}

// Conjunction folds exprs into a left-deep AND tree.
// Returns nil for an empty list.
func Conjunction(exprs ...Expression) Expression {
	var out Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = &And{Left: out, Right: e}
	}
	return out
}

// Equal reports whether two expression trees are structurally identical.
func Equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String() && sameShape(a, b)
}

func sameShape(a, b Expression) bool {
	switch x := a.(type) {
	case *Comparison:
		y, ok := b.(*Comparison)
		return ok && x.Op == y.Op && arrow.TypeEqual(x.Literal.Type, y.Literal.Type)
	case *IsNull:
		y, ok := b.(*IsNull)
		return ok && x.Negated == y.Negated
	case *Not:
		y, ok := b.(*Not)
		return ok && sameShape(x.Child, y.Child)
	case *And:
		y, ok := b.(*And)
		return ok && sameShape(x.Left, y.Left) && sameShape(x.Right, y.Right)
	case *Or:
		y, ok := b.(*Or)
		return ok && sameShape(x.Left, y.Left) && sameShape(x.Right, y.Right)
	case *Constant:
		y, ok := b.(*Constant)
		return ok && x.Value == y.Value
	}
	return false
}
