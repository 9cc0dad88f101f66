package reader

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// conform returns a batch with exactly the fields of target, in target
// order. Columns are matched by name: missing ones become all-null, columns
// of a different type are cast, and struct columns are conformed child by
// child. The caller keeps its reference to rec and owns the result.
func conform(ctx context.Context, mem memory.Allocator, target *arrow.Schema, rec arrow.RecordBatch) (arrow.RecordBatch, error) {
	if target.Equal(rec.Schema()) {
		rec.Retain()
		return rec, nil
	}

	n := int(rec.NumRows())
	src := rec.Schema()
	cols := make([]arrow.Array, 0, target.NumFields())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for _, f := range target.Fields() {
		idx := src.FieldIndices(f.Name)
		if len(idx) == 0 {
			cols = append(cols, array.MakeArrayOfNull(mem, f.Type, n))
			continue
		}
		col, err := conformArray(ctx, mem, f, rec.Column(idx[0]))
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return array.NewRecord(target, cols, int64(n)), nil
}

func conformArray(ctx context.Context, mem memory.Allocator, f arrow.Field, arr arrow.Array) (arrow.Array, error) {
	if arrow.TypeEqual(f.Type, arr.DataType()) {
		arr.Retain()
		return arr, nil
	}

	if st, ok := f.Type.(*arrow.StructType); ok {
		if src, ok := arr.(*array.Struct); ok {
			return conformStruct(ctx, mem, st, src)
		}
		return nil, fmt.Errorf("column %q: cannot read %s as %s", f.Name, arr.DataType(), f.Type)
	}

	out, err := compute.CastArray(compute.WithAllocator(ctx, mem), arr, compute.SafeCastOptions(f.Type))
	if err != nil {
		return nil, fmt.Errorf("column %q: cast %s to %s: %w", f.Name, arr.DataType(), f.Type, err)
	}
	return out, nil
}

func conformStruct(ctx context.Context, mem memory.Allocator, dt *arrow.StructType, src *array.Struct) (arrow.Array, error) {
	n := src.Len()
	srcType := src.DataType().(*arrow.StructType)

	children := make([]arrow.Array, 0, dt.NumFields())
	defer func() {
		for _, c := range children {
			c.Release()
		}
	}()
	for _, f := range dt.Fields() {
		i, ok := srcType.FieldIdx(f.Name)
		if !ok {
			children = append(children, array.MakeArrayOfNull(mem, f.Type, n))
			continue
		}
		child, err := conformArray(ctx, mem, f, src.Field(i))
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	var validity *memory.Buffer
	if src.NullN() > 0 {
		validity = memory.NewResizableBuffer(mem)
		defer validity.Release()
		validity.Resize(int(bitutil.BytesForBits(int64(n))))
		bits := validity.Bytes()
		memory.Set(bits, 0)
		for i := 0; i < n; i++ {
			if src.IsValid(i) {
				bitutil.SetBit(bits, i)
			}
		}
	}

	childData := make([]arrow.ArrayData, len(children))
	for i, c := range children {
		childData[i] = c.Data()
	}
	data := array.NewData(dt, n, []*memory.Buffer{validity}, childData, src.NullN(), 0)
	defer data.Release()
	return array.MakeFromData(data), nil
}
