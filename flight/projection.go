package flight

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ProjectSchema returns a projected schema containing only the specified columns.
// If columns is nil or empty, returns the full schema unchanged.
// Column order in the returned schema matches the order in columns slice.
// Unknown names are skipped; original schema metadata is preserved.
func ProjectSchema(schema *arrow.Schema, columns []string) *arrow.Schema {
	projected, _ := projection(schema, columns)
	return projected
}

// projection resolves columns against schema. The returned indices are nil
// when no projection applies.
func projection(schema *arrow.Schema, columns []string) (*arrow.Schema, []int) {
	if len(columns) == 0 {
		return schema, nil
	}

	fields := make([]arrow.Field, 0, len(columns))
	indices := make([]int, 0, len(columns))
	for _, col := range columns {
		if idx := schema.FieldIndices(col); len(idx) > 0 {
			fields = append(fields, schema.Field(idx[0]))
			indices = append(indices, idx[0])
		}
	}

	if len(fields) == 0 {
		// No matching columns - return original schema
		return schema, nil
	}

	meta := schema.Metadata()
	return arrow.NewSchema(fields, &meta), indices
}

// projectBatch returns a batch holding the columns at indices of rec, in
// that order. It consumes rec.
func projectBatch(rec arrow.RecordBatch, schema *arrow.Schema, indices []int) arrow.RecordBatch {
	if indices == nil {
		return rec
	}
	defer rec.Release()

	cols := make([]arrow.Array, len(indices))
	for i, idx := range indices {
		cols[i] = rec.Column(idx)
	}
	return array.NewRecord(schema, cols, rec.NumRows())
}
