package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
)

// DuckDBEncoder encodes compiled predicates to DuckDB SQL syntax.
//
// The encoding keeps the evaluation semantics of the predicate: comparisons
// against NULL stay unknown, and nested fields are read with struct_extract so
// that a NULL parent makes the child NULL.
type DuckDBEncoder struct {
	opts *EncoderOptions
}

// NewDuckDBEncoder creates a new DuckDB SQL encoder.
// If opts is nil, default options are used.
func NewDuckDBEncoder(opts *EncoderOptions) *DuckDBEncoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &DuckDBEncoder{opts: opts}
}

// EncodeFilters joins exprs with AND.
func (e *DuckDBEncoder) EncodeFilters(exprs []Expression) string {
	var parts []string
	for _, expr := range exprs {
		if encoded := e.Encode(expr); encoded != "" {
			parts = append(parts, encoded)
		}
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, ") AND (") + ")"
}

// Encode converts a single expression to SQL.
func (e *DuckDBEncoder) Encode(expr Expression) string {
	switch ex := expr.(type) {
	case nil:
		return ""
	case *Constant:
		if ex.Value {
			return "TRUE"
		}
		return "FALSE"
	case *IsNull:
		if ex.Negated {
			return e.encodeField(ex.Field) + " IS NOT NULL"
		}
		return e.encodeField(ex.Field) + " IS NULL"
	case *Comparison:
		return e.encodeComparison(ex)
	case *Not:
		return "NOT (" + e.Encode(ex.Child) + ")"
	case *And:
		return "(" + e.Encode(ex.Left) + " AND " + e.Encode(ex.Right) + ")"
	case *Or:
		return "(" + e.Encode(ex.Left) + " OR " + e.Encode(ex.Right) + ")"
	}
	return ""
}

func (e *DuckDBEncoder) encodeComparison(c *Comparison) string {
	left := e.encodeField(c.Field)
	if _, ok := c.Literal.Value.(string); ok && c.Field.Type().ID() != arrow.STRING {
		left = "CAST(" + left + " AS VARCHAR)"
	}
	return left + " " + sqlOperator(c.Op) + " " + e.formatLiteral(c.Literal)
}

func sqlOperator(op Op) string {
	switch op {
	case OpEq:
		return "="
	case OpNotEq:
		return "<>"
	case OpGt:
		return ">"
	case OpGtEq:
		return ">="
	case OpLt:
		return "<"
	case OpLtEq:
		return "<="
	}
	return string(op)
}

// encodeField encodes a field reference, honoring column options.
func (e *DuckDBEncoder) encodeField(ref *FieldRef) string {
	if expr, ok := e.opts.ColumnExpressions[ref.Path()]; ok {
		return "(" + expr + ")"
	}

	root := ref.Names[0]
	if mapped, ok := e.opts.ColumnMapping[root]; ok {
		root = mapped
	}
	out := quoteIdentifier(root)
	for _, name := range ref.Names[1:] {
		out = "struct_extract(" + out + ", " + quoteLiteral(name) + ")"
	}
	return out
}

func (e *DuckDBEncoder) formatLiteral(lit Literal) string {
	if lit.Null {
		return "NULL"
	}

	switch v := lit.Value.(type) {
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", v)
	case float32:
		return formatFloat(float64(v), 32, "FLOAT")
	case float64:
		return formatFloat(v, 64, "DOUBLE")
	case decimal128.Num:
		dt, ok := lit.Type.(*arrow.Decimal128Type)
		if !ok {
			return v.BigInt().String()
		}
		return fmt.Sprintf("CAST('%s' AS DECIMAL(%d,%d))", v.ToString(dt.Scale), dt.Precision, dt.Scale)
	case []byte:
		var sb strings.Builder
		sb.WriteByte('\'')
		for _, b := range v {
			fmt.Fprintf(&sb, "\\x%02X", b)
		}
		sb.WriteString("'::BLOB")
		return sb.String()
	case arrow.Date32:
		return "DATE '" + v.ToTime().Format(time.DateOnly) + "'"
	case arrow.Timestamp:
		return "make_timestamp(" + strconv.FormatInt(int64(v), 10) + ")"
	case string:
		return quoteLiteral(v)
	}
	return "NULL"
}

func formatFloat(v float64, bits int, typ string) string {
	switch {
	case math.IsNaN(v):
		return "'NaN'::" + typ
	case math.IsInf(v, 1):
		return "'Infinity'::" + typ
	case math.IsInf(v, -1):
		return "'-Infinity'::" + typ
	}
	return "CAST(" + strconv.FormatFloat(v, 'g', -1, bits) + " AS " + typ + ")"
}
