package reader

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/metadata"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/hugr-lab/lakesoul-go/filter"
)

// rowGroupStats exposes the column-chunk statistics of one Parquet row group
// to the pruner.
//
// Statistics are only trusted when the file's column has the same Arrow type
// as the bound field. Timestamps of any unit are accepted and normalized to
// microseconds.
type rowGroupStats struct {
	manifest *pqarrow.SchemaManifest
	rg       *metadata.RowGroupMetaData
}

var _ filter.StatsProvider = (*rowGroupStats)(nil)

func (s *rowGroupStats) ColumnStats(ref *filter.FieldRef) (filter.ColumnStats, bool) {
	leaf := manifestLeaf(s.manifest, ref.Names)
	if leaf == nil || leaf.ColIndex < 0 {
		return filter.ColumnStats{}, false
	}

	fileType := leaf.Field.Type
	boundType := ref.Type()
	fileTS, fileIsTS := fileType.(*arrow.TimestampType)
	_, boundIsTS := boundType.(*arrow.TimestampType)
	if !arrow.TypeEqual(fileType, boundType) && !(fileIsTS && boundIsTS) {
		return filter.ColumnStats{}, false
	}

	chunk, err := s.rg.ColumnChunk(leaf.ColIndex)
	if err != nil {
		return filter.ColumnStats{}, false
	}
	if set, err := chunk.StatsSet(); err != nil || !set {
		return filter.ColumnStats{}, false
	}
	typed, err := chunk.Statistics()
	if err != nil || typed == nil {
		return filter.ColumnStats{}, false
	}

	out := filter.ColumnStats{
		HasNullCount: typed.HasNullCount(),
		NullCount:    typed.NullCount(),
		NumRows:      s.rg.NumRows(),
	}
	if !typed.HasMinMax() {
		return out, true
	}

	switch st := typed.(type) {
	case *metadata.BooleanStatistics:
		if boundType.ID() != arrow.BOOL {
			return out, true
		}
		out.Min, out.Max = st.Min(), st.Max()
	case *metadata.Int32Statistics:
		switch boundType.ID() {
		case arrow.INT8, arrow.INT16, arrow.INT32, arrow.DATE32:
		default:
			return out, true
		}
		out.Min, out.Max = int64(st.Min()), int64(st.Max())
	case *metadata.Int64Statistics:
		switch {
		case boundType.ID() == arrow.INT64:
			out.Min, out.Max = st.Min(), st.Max()
		case fileIsTS:
			lo, hi, ok := microBounds(st.Min(), st.Max(), fileTS.Unit)
			if !ok {
				return out, true
			}
			out.Min, out.Max = lo, hi
		default:
			return out, true
		}
	case *metadata.Float32Statistics:
		if boundType.ID() != arrow.FLOAT32 {
			return out, true
		}
		out.Min, out.Max = float64(st.Min()), float64(st.Max())
	case *metadata.Float64Statistics:
		if boundType.ID() != arrow.FLOAT64 {
			return out, true
		}
		out.Min, out.Max = st.Min(), st.Max()
	case *metadata.ByteArrayStatistics:
		switch boundType.ID() {
		case arrow.STRING, arrow.BINARY:
		default:
			return out, true
		}
		out.Min, out.Max = []byte(st.Min()), []byte(st.Max())
	default:
		return out, true
	}
	out.HasMinMax = true
	return out, true
}

// manifestLeaf walks the file's schema manifest along names.
func manifestLeaf(m *pqarrow.SchemaManifest, names []string) *pqarrow.SchemaField {
	if m == nil || len(names) == 0 {
		return nil
	}
	fields := m.Fields
	var cur *pqarrow.SchemaField
	for _, name := range names {
		cur = nil
		for i := range fields {
			if fields[i].Field.Name == name {
				cur = &fields[i]
				break
			}
		}
		if cur == nil {
			return nil
		}
		fields = cur.Children
	}
	return cur
}

// leafColumns returns the Parquet leaf column indices under f.
func leafColumns(f *pqarrow.SchemaField, out []int) []int {
	if len(f.Children) == 0 {
		if f.ColIndex >= 0 {
			out = append(out, f.ColIndex)
		}
		return out
	}
	for i := range f.Children {
		out = leafColumns(&f.Children[i], out)
	}
	return out
}

// selectRowGroups returns the row groups of pf that might hold a row matching
// expr, and how many were pruned.
func selectRowGroups(pf *file.Reader, manifest *pqarrow.SchemaManifest, expr filter.Expression) (keep []int, pruned int) {
	md := pf.MetaData()
	n := pf.NumRowGroups()
	keep = make([]int, 0, n)
	for i := 0; i < n; i++ {
		rg := md.RowGroup(i)
		if rg.NumRows() == 0 {
			pruned++
			continue
		}
		if expr != nil && !filter.MightMatch(expr, &rowGroupStats{manifest: manifest, rg: rg}) {
			pruned++
			continue
		}
		keep = append(keep, i)
	}
	return keep, pruned
}

// microBounds converts a timestamp min/max pair to microseconds, widening
// the range when the unit is finer so that it still covers every value.
// Reports false when a bound overflows.
func microBounds(lo, hi int64, unit arrow.TimeUnit) (int64, int64, bool) {
	var f int64
	switch unit {
	case arrow.Second:
		f = 1_000_000
	case arrow.Millisecond:
		f = 1_000
	case arrow.Nanosecond:
		return floorDiv(lo, 1_000), ceilDiv(hi, 1_000), true
	default:
		return lo, hi, true
	}
	if lo < math.MinInt64/f || hi > math.MaxInt64/f {
		return 0, 0, false
	}
	return lo * f, hi * f, true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a > 0 {
		q++
	}
	return q
}
