package filter

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// mask is a three-valued boolean vector. Rows with valid[i] == false are NULL.
type mask struct {
	val   []bool
	valid []bool
}

func newMask(n int) mask {
	return mask{val: make([]bool, n), valid: make([]bool, n)}
}

func constMask(n int, v bool) mask {
	m := newMask(n)
	for i := range n {
		m.val[i] = v
		m.valid[i] = true
	}
	return m
}

// Evaluate evaluates expr against every row of rec and returns a boolean
// array of rec.NumRows() entries. A NULL entry means the predicate is unknown
// for that row.
//
// Field references are looked up by name in rec, so rec must carry the fields
// expr was compiled against. The caller owns the returned array.
func Evaluate(ctx context.Context, expr Expression, rec arrow.RecordBatch, mem memory.Allocator) (*array.Boolean, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	e := evaluator{ctx: ctx, rec: rec, mem: mem, rows: int(rec.NumRows())}
	m, err := e.eval(expr)
	if err != nil {
		return nil, err
	}

	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.AppendValues(m.val, m.valid)
	return b.NewBooleanArray(), nil
}

// FilterBatch keeps the rows of rec for which expr is TRUE. Rows evaluating to
// FALSE or NULL are dropped. A nil expr keeps every row.
//
// The returned batch is always a new reference; the caller must release it.
func FilterBatch(ctx context.Context, expr Expression, rec arrow.RecordBatch, mem memory.Allocator) (arrow.RecordBatch, error) {
	if expr == nil {
		rec.Retain()
		return rec, nil
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	sel, err := Evaluate(ctx, expr, rec, mem)
	if err != nil {
		return nil, err
	}
	defer sel.Release()

	if sel.NullN() == 0 && allTrue(sel) {
		rec.Retain()
		return rec, nil
	}

	out, err := compute.FilterRecordBatch(compute.WithAllocator(ctx, mem), rec, sel, compute.DefaultFilterOptions())
	if err != nil {
		return nil, fmt.Errorf("filter batch: %w", err)
	}
	return out, nil
}

func allTrue(b *array.Boolean) bool {
	for i := 0; i < b.Len(); i++ {
		if !b.Value(i) {
			return false
		}
	}
	return true
}

type evaluator struct {
	ctx  context.Context
	rec  arrow.RecordBatch
	mem  memory.Allocator
	rows int
}

func (e *evaluator) eval(expr Expression) (mask, error) {
	switch x := expr.(type) {
	case *Constant:
		return constMask(e.rows, x.Value), nil

	case *IsNull:
		col, parentValid, err := e.column(x.Field)
		if err != nil {
			return mask{}, err
		}
		m := newMask(e.rows)
		for i := range e.rows {
			null := col.IsNull(i) || (parentValid != nil && !parentValid[i])
			m.val[i] = null != x.Negated
			m.valid[i] = true
		}
		return m, nil

	case *Comparison:
		return e.compare(x)

	case *Not:
		m, err := e.eval(x.Child)
		if err != nil {
			return mask{}, err
		}
		for i := range m.val {
			m.val[i] = !m.val[i]
		}
		return m, nil

	case *And:
		l, err := e.eval(x.Left)
		if err != nil {
			return mask{}, err
		}
		r, err := e.eval(x.Right)
		if err != nil {
			return mask{}, err
		}
		for i := range l.val {
			lf := l.valid[i] && !l.val[i]
			rf := r.valid[i] && !r.val[i]
			switch {
			case lf || rf:
				l.val[i], l.valid[i] = false, true
			case l.valid[i] && r.valid[i]:
				l.val[i] = true
			default:
				l.val[i], l.valid[i] = false, false
			}
		}
		return l, nil

	case *Or:
		l, err := e.eval(x.Left)
		if err != nil {
			return mask{}, err
		}
		r, err := e.eval(x.Right)
		if err != nil {
			return mask{}, err
		}
		for i := range l.val {
			lt := l.valid[i] && l.val[i]
			rt := r.valid[i] && r.val[i]
			switch {
			case lt || rt:
				l.val[i], l.valid[i] = true, true
			case l.valid[i] && r.valid[i]:
				l.val[i] = false
			default:
				l.val[i], l.valid[i] = false, false
			}
		}
		return l, nil
	}
	return mask{}, fmt.Errorf("%w: unknown expression %T", ErrUnsupportedComparison, expr)
}

// column locates the array a field reference points at. For nested fields it
// also returns the combined validity of the enclosing structs, since a struct
// child array does not necessarily carry its parent's nulls.
func (e *evaluator) column(ref *FieldRef) (arrow.Array, []bool, error) {
	idx := e.rec.Schema().FieldIndices(ref.Names[0])
	if len(idx) == 0 {
		return nil, nil, fmt.Errorf("%w: column %q not in batch", ErrUnsupportedComparison, ref.Names[0])
	}
	col := e.rec.Column(idx[0])

	var parentValid []bool
	for _, name := range ref.Names[1:] {
		st, ok := col.(*array.Struct)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q is not a struct", ErrUnsupportedComparison, ref.Path())
		}
		if parentValid == nil {
			parentValid = make([]bool, e.rows)
			for i := range parentValid {
				parentValid[i] = true
			}
		}
		for i := range parentValid {
			if st.IsNull(i) {
				parentValid[i] = false
			}
		}
		child, ok := st.DataType().(*arrow.StructType).FieldIdx(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: column %q not in batch", ErrUnsupportedComparison, ref.Path())
		}
		col = st.Field(child)
	}
	return col, parentValid, nil
}

func (e *evaluator) compare(c *Comparison) (mask, error) {
	col, parentValid, err := e.column(c.Field)
	if err != nil {
		return mask{}, err
	}
	lit := c.Literal

	// An uncoercible literal stays text; compare against the column as text.
	if s, ok := lit.Value.(string); ok && col.DataType().ID() != arrow.STRING {
		casted, err := compute.CastArray(compute.WithAllocator(e.ctx, e.mem), col, compute.SafeCastOptions(arrow.BinaryTypes.String))
		if err != nil {
			return mask{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedComparison, c, err)
		}
		defer casted.Release()
		return e.finish(compareString(c.Op, casted.(*array.String), s), parentValid), nil
	}

	if lit.Null {
		return newMask(e.rows), nil
	}

	var m mask
	switch arr := col.(type) {
	case *array.Boolean:
		v, ok := lit.Value.(bool)
		if !ok {
			return mask{}, mismatch(c, col)
		}
		m = compareWith(c.Op, arr, arr.Value, func(a bool) int { return cmpBool(a, v) })
	case *array.Int8:
		m, err = compareOrdered(c, arr, arr.Value)
	case *array.Int16:
		m, err = compareOrdered(c, arr, arr.Value)
	case *array.Int32:
		m, err = compareOrdered(c, arr, arr.Value)
	case *array.Int64:
		m, err = compareOrdered(c, arr, arr.Value)
	case *array.Date32:
		m, err = compareOrdered(c, arr, arr.Value)
	case *array.Float32:
		v, ok := lit.Value.(float32)
		if !ok {
			return mask{}, mismatch(c, col)
		}
		m = compareFloat(c.Op, arr, func(i int) float64 { return float64(arr.Value(i)) }, float64(v))
	case *array.Float64:
		v, ok := lit.Value.(float64)
		if !ok {
			return mask{}, mismatch(c, col)
		}
		m = compareFloat(c.Op, arr, arr.Value, v)
	case *array.Decimal128:
		v, ok := lit.Value.(decimal128.Num)
		if !ok {
			return mask{}, mismatch(c, col)
		}
		m = compareWith(c.Op, arr, arr.Value, func(a decimal128.Num) int { return cmpDecimal(a, v) })
	case *array.Binary:
		v, ok := lit.Value.([]byte)
		if !ok {
			return mask{}, mismatch(c, col)
		}
		m = compareWith(c.Op, arr, arr.Value, func(a []byte) int { return bytes.Compare(a, v) })
	case *array.String:
		v, ok := lit.Value.(string)
		if !ok {
			return mask{}, mismatch(c, col)
		}
		m = compareString(c.Op, arr, v)
	case *array.Timestamp:
		v, ok := lit.Value.(arrow.Timestamp)
		if !ok {
			return mask{}, mismatch(c, col)
		}
		unit := arr.DataType().(*arrow.TimestampType).Unit
		m = compareWith(c.Op, arr, arr.Value, func(a arrow.Timestamp) int {
			return compareTimestamp(int64(a), unit, int64(v))
		})
	default:
		return mask{}, mismatch(c, col)
	}
	if err != nil {
		return mask{}, err
	}
	return e.finish(m, parentValid), nil
}

func (e *evaluator) finish(m mask, parentValid []bool) mask {
	if parentValid == nil {
		return m
	}
	for i, ok := range parentValid {
		if !ok {
			m.val[i], m.valid[i] = false, false
		}
	}
	return m
}

func mismatch(c *Comparison, col arrow.Array) error {
	return fmt.Errorf("%w: %s against column of type %s", ErrUnsupportedComparison, c, col.DataType())
}

// compareWith builds a mask from a three-way comparison of each non-null row
// against the literal. cmpLit returns the sign of (row - literal).
func compareWith[T any](op Op, arr arrow.Array, value func(int) T, cmpLit func(T) int) mask {
	n := arr.Len()
	m := newMask(n)
	for i := range n {
		if arr.IsNull(i) {
			continue
		}
		m.val[i] = opHolds(op, cmpLit(value(i)))
		m.valid[i] = true
	}
	return m
}

func compareOrdered[T cmp.Ordered](c *Comparison, arr arrow.Array, value func(int) T) (mask, error) {
	v, ok := c.Literal.Value.(T)
	if !ok {
		return mask{}, mismatch(c, arr)
	}
	return compareWith(c.Op, arr, value, func(a T) int { return cmp.Compare(a, v) }), nil
}

// compareFloat follows IEEE semantics: every comparison involving NaN is
// false except noteq.
func compareFloat(op Op, arr arrow.Array, value func(int) float64, v float64) mask {
	n := arr.Len()
	m := newMask(n)
	for i := range n {
		if arr.IsNull(i) {
			continue
		}
		a := value(i)
		m.valid[i] = true
		if math.IsNaN(a) || math.IsNaN(v) {
			m.val[i] = op == OpNotEq
			continue
		}
		m.val[i] = opHolds(op, cmp.Compare(a, v))
	}
	return m
}

func compareString(op Op, arr *array.String, v string) mask {
	return compareWith(op, arr, arr.Value, func(a string) int { return strings.Compare(a, v) })
}

func opHolds(op Op, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNotEq:
		return c != 0
	case OpGt:
		return c > 0
	case OpGtEq:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLtEq:
		return c <= 0
	}
	return false
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

func cmpDecimal(a, b decimal128.Num) int {
	if c := cmp.Compare(a.HighBits(), b.HighBits()); c != 0 {
		return c
	}
	return cmp.Compare(a.LowBits(), b.LowBits())
}

// compareTimestamp returns the sign of (a - micros) where a is in unit.
// The comparison is exact: nothing is rounded and nothing overflows.
func compareTimestamp(a int64, unit arrow.TimeUnit, micros int64) int {
	switch unit {
	case arrow.Second:
		return compareScaled(a, micros, 1_000_000)
	case arrow.Millisecond:
		return compareScaled(a, micros, 1_000)
	case arrow.Nanosecond:
		return -compareScaled(micros, a, 1_000)
	}
	return cmp.Compare(a, micros)
}

// compareScaled returns the sign of (a*f - b) for f > 0.
func compareScaled(a, b, f int64) int {
	q, r := floorDivMod(b, f)
	if c := cmp.Compare(a, q); c != 0 {
		return c
	}
	if r == 0 {
		return 0
	}
	return -1
}

func floorDivMod(a, b int64) (q, r int64) {
	q, r = a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}
