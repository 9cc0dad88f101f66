package filter

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

var (
	innerType = arrow.StructOf(arrow.Field{Name: "c", Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	outerType = arrow.StructOf(arrow.Field{Name: "b", Type: innerType, Nullable: true})
)

// testSchema covers every literal kind plus nested and dotted field names.
func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "ts", Type: &arrow.TimestampType{Unit: arrow.Millisecond}, Nullable: true},
		{Name: "data", Type: arrow.BinaryTypes.Binary, Nullable: true},
		{Name: "flag", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "u", Type: arrow.PrimitiveTypes.Uint32, Nullable: true},
		{Name: "a", Type: outerType, Nullable: true},
		{Name: "x.y", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "amount", Type: &arrow.Decimal128Type{Precision: 10, Scale: 2}, Nullable: true},
		{Name: "big", Type: &arrow.Decimal128Type{Precision: 38, Scale: 0}, Nullable: true},
		{Name: "small", Type: arrow.PrimitiveTypes.Int8, Nullable: true},
	}, nil)
}

const testRows = 6

// testRecord builds a six row batch over testSchema. Every column has at
// least one NULL; a.b.c is NULL in rows 2 (a NULL), 3 (b NULL) and 5.
func testRecord(t *testing.T) arrow.RecordBatch {
	t.Helper()

	mem := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(mem, testSchema())
	defer builder.Release()

	valid := func(nullAt int) []bool {
		v := make([]bool, testRows)
		for i := range v {
			v[i] = i != nullAt
		}
		return v
	}

	builder.Field(0).(*array.Int32Builder).AppendValues([]int32{1, 2, 3, 4, 5, 0}, valid(5))
	builder.Field(1).(*array.StringBuilder).AppendValues([]string{"a", "b", "c", "", "e", "f"}, valid(3))
	builder.Field(2).(*array.Float64Builder).AppendValues([]float64{1.5, math.NaN(), 3, 0, -1, 10}, valid(3))
	builder.Field(3).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{1000, 2000, 3000, 4000, 0, 6000}, valid(4))
	builder.Field(4).(*array.BinaryBuilder).AppendValues([][]byte{{0}, {0xff}, {1, 2}, nil, {}, {0x7f}}, valid(3))
	builder.Field(5).(*array.BooleanBuilder).AppendValues([]bool{true, false, true, false, false, true}, valid(3))
	builder.Field(6).(*array.Date32Builder).AppendValues([]arrow.Date32{0, 1, 2, 3, 4, 0}, valid(5))
	builder.Field(7).(*array.Uint32Builder).AppendValues([]uint32{7, 8, 9, 7, 0, 1}, valid(4))

	sb := builder.Field(8).(*array.StructBuilder)
	bb := sb.FieldBuilder(0).(*array.StructBuilder)
	cb := bb.FieldBuilder(0).(*array.Float64Builder)
	for row, c := range []float64{1, 2, 0, 0, 5, 0} {
		switch row {
		case 2:
			sb.AppendNull()
		case 3:
			sb.Append(true)
			bb.AppendNull()
		case 5:
			sb.Append(true)
			bb.Append(true)
			cb.AppendNull()
		default:
			sb.Append(true)
			bb.Append(true)
			cb.Append(c)
		}
	}

	builder.Field(9).(*array.Int64Builder).AppendValues([]int64{10, 20, 30, 40, 50, 60}, valid(-1))
	builder.Field(10).(*array.Decimal128Builder).AppendValues([]decimal128.Num{
		decimal128.FromI64(100), decimal128.FromI64(200), decimal128.FromI64(300),
		{}, decimal128.FromI64(500), decimal128.FromI64(600),
	}, valid(3))
	builder.Field(11).(*array.Decimal128Builder).AppendValues([]decimal128.Num{
		decimal128.FromI64(1), decimal128.FromI64(256), decimal128.FromI64(255),
		decimal128.FromI64(-1), {}, decimal128.FromI64(0),
	}, valid(4))
	builder.Field(12).(*array.Int8Builder).AppendValues([]int8{-3, -2, -1, 0, 1, 2}, valid(-1))

	rec := builder.NewRecordBatch()
	t.Cleanup(rec.Release)
	return rec
}

// mustCompile compiles filter against testSchema or fails the test.
func mustCompile(t *testing.T, filter string) Expression {
	t.Helper()
	expr, err := Compile(filter, testSchema())
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", filter, err)
	}
	return expr
}

// evalRows evaluates filter over testRecord and returns per-row outcomes as
// "T", "F" or "N".
func evalRows(t *testing.T, filter string) []string {
	t.Helper()
	rec := testRecord(t)
	res, err := Evaluate(t.Context(), mustCompile(t, filter), rec, memory.NewGoAllocator())
	if err != nil {
		t.Fatalf("Evaluate(%q) failed: %v", filter, err)
	}
	defer res.Release()

	out := make([]string, res.Len())
	for i := range out {
		switch {
		case res.IsNull(i):
			out[i] = "N"
		case res.Value(i):
			out[i] = "T"
		default:
			out[i] = "F"
		}
	}
	return out
}
