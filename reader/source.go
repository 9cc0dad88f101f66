package reader

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/hugr-lab/lakesoul-go/filter"
	"github.com/hugr-lab/lakesoul-go/storage"
)

// source reads one Parquet file. Its footer is read when the source is
// opened; column data is decoded lazily, batch by batch.
type source struct {
	path      string
	file      storage.File
	pf        *file.Reader
	fr        *pqarrow.FileReader
	columns   []int
	rowGroups []int
	pruned    int

	rr pqarrow.RecordReader

	// Used when none of the bound columns exist in the file: rows are
	// produced as all-null batches.
	nullRows  int64
	batchSize int64
}

type sourceOptions struct {
	schema    *arrow.Schema
	expr      filter.Expression
	batchSize int
	parallel  bool
	mem       memory.Allocator
}

// openSource reads the footer of path, selects the columns of the bound
// schema and prunes row groups. The file stays open until close.
func openSource(ctx context.Context, store storage.Store, path string, opts sourceOptions) (*source, error) {
	f, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	pf, err := file.NewParquetReader(f, file.WithReadProps(parquet.NewReaderProperties(opts.mem)))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read parquet footer %s: %w", path, err)
	}

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{
		Parallel:  opts.parallel,
		BatchSize: int64(opts.batchSize),
	}, opts.mem)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("read arrow schema %s: %w", path, err)
	}

	s := &source{
		path:      path,
		file:      f,
		pf:        pf,
		fr:        fr,
		batchSize: int64(opts.batchSize),
	}
	for _, field := range opts.schema.Fields() {
		if leaf := manifestLeaf(fr.Manifest, []string{field.Name}); leaf != nil {
			s.columns = leafColumns(leaf, s.columns)
		}
	}
	s.rowGroups, s.pruned = selectRowGroups(pf, fr.Manifest, opts.expr)

	if len(s.columns) == 0 {
		md := pf.MetaData()
		for _, rg := range s.rowGroups {
			s.nullRows += md.RowGroup(rg).NumRows()
		}
	}
	return s, nil
}

// next returns the next raw batch of the file, in file schema, or io.EOF.
func (s *source) next(ctx context.Context, target *arrow.Schema, mem memory.Allocator) (arrow.RecordBatch, error) {
	if len(s.rowGroups) == 0 {
		return nil, io.EOF
	}

	if len(s.columns) == 0 {
		if s.nullRows == 0 {
			return nil, io.EOF
		}
		n := min(s.nullRows, s.batchSize)
		s.nullRows -= n
		return nullBatch(mem, target, n), nil
	}

	if s.rr == nil {
		rr, err := s.fr.GetRecordReader(ctx, s.columns, s.rowGroups)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		s.rr = rr
	}

	if !s.rr.Next() {
		if err := s.rr.Err(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		return nil, io.EOF
	}
	rec := s.rr.RecordBatch()
	rec.Retain()
	return rec, nil
}

func (s *source) close() error {
	if s.rr != nil {
		s.rr.Release()
		s.rr = nil
	}
	if s.pf == nil {
		return nil
	}
	// The parquet reader closes the underlying file.
	err := s.pf.Close()
	s.pf, s.fr, s.file = nil, nil, nil
	return err
}

func nullBatch(mem memory.Allocator, schema *arrow.Schema, n int64) arrow.RecordBatch {
	cols := make([]arrow.Array, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = array.MakeArrayOfNull(mem, f.Type, int(n))
	}
	rec := array.NewRecord(schema, cols, n)
	for _, c := range cols {
		c.Release()
	}
	return rec
}
