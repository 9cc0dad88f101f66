// Package filter compiles serialized pushdown predicates into typed expression
// trees bound to an Arrow schema, and evaluates those trees against decoded
// record batches and Parquet row-group statistics.
//
// Upstream writers render every predicate with a fixed grammar:
//
//	expr := op "(" args ")"
//	op   := and | or | not | eq | noteq | gt | gteq | lt | lteq
//
// and/or take two sub-expressions, not takes one, and the comparison
// operators take a field path and a literal (or the bare word null).
//
// # Basic Usage
//
// Compile a predicate against a table schema:
//
//	expr, err := filter.Compile(`or(lt(a.b.c, 2.0), gt(a.b.c, 3.0))`, schema)
//	if err != nil {
//	    return err // malformed predicate or literal of the wrong kind
//	}
//
//	mask, err := filter.Evaluate(ctx, expr, batch, mem)
//
// # Field Paths
//
// Field paths are dot separated and resolve through struct columns. Column
// names that themselves contain dots are supported. A path that does not
// resolve compiles to the constant false: the predicate simply cannot match.
//
// # Literals
//
// Literals are coerced to the Arrow type of the referenced field:
//   - BOOL, INT8-INT64, FLOAT, DOUBLE, DATE32: textual Go representations
//   - DECIMAL(p,s): integer text for p <= 18, big-endian byte list otherwise
//   - BINARY: byte list, e.g. [0, -1, 127]
//   - TIMESTAMP: microseconds since epoch, tagged with TimeZone
//   - STRING: framed as Binary{"value"}
//
// Any other field type keeps the raw text as an opaque string literal.
//
// # Null Handling
//
// Evaluation uses three-valued logic. eq(x, null) and noteq(x, null) compile
// to IS NULL and IS NOT NULL; other comparisons against null do not filter.
// Rows whose predicate evaluates to NULL are dropped by FilterBatch.
//
// # Encoding
//
// Every Expression renders back to the predicate grammar with String(). The
// DuckDBEncoder renders an Expression as a DuckDB WHERE clause body.
package filter
