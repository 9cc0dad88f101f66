package filter

import (
	"bytes"
	"cmp"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// ColumnStats is the statistics summary of one column chunk.
//
// Min and Max are normalized: integers, dates and timestamps (in
// microseconds) as int64, floats as float64, strings and binaries as []byte,
// booleans as bool.
type ColumnStats struct {
	Min, Max     any
	HasMinMax    bool
	NullCount    int64
	HasNullCount bool
	NumRows      int64
}

// StatsProvider exposes column statistics for a unit of data, typically a
// Parquet row group.
type StatsProvider interface {
	// ColumnStats returns the statistics of the column ref points at.
	// Returns false when none are available or they cannot be trusted.
	ColumnStats(ref *FieldRef) (ColumnStats, bool)
}

// MightMatch reports whether any row summarized by stats could satisfy expr.
// A false result is a guarantee that no row matches; true means unknown.
func MightMatch(expr Expression, stats StatsProvider) bool {
	switch x := expr.(type) {
	case nil:
		return true
	case *Constant:
		return x.Value
	case *And:
		return MightMatch(x.Left, stats) && MightMatch(x.Right, stats)
	case *Or:
		return MightMatch(x.Left, stats) || MightMatch(x.Right, stats)
	case *Not:
		// Min/max bounds cannot prove the complement empty.
		return true
	case *IsNull:
		s, ok := stats.ColumnStats(x.Field)
		if !ok || !s.HasNullCount {
			return true
		}
		if x.Negated {
			return s.NullCount < s.NumRows
		}
		return s.NullCount > 0
	case *Comparison:
		return comparisonMightMatch(x, stats)
	}
	return true
}

func comparisonMightMatch(c *Comparison, stats StatsProvider) bool {
	if c.Literal.Null {
		return false
	}
	v, ok := statKey(c.Literal.Value)
	if !ok || (!arrow.TypeEqual(c.Literal.Type, c.Field.Type()) && c.Literal.Type != TimestampType) {
		return true
	}
	if f, isFloat := v.(float64); isFloat && math.IsNaN(f) {
		return true
	}

	s, ok := stats.ColumnStats(c.Field)
	if !ok {
		return true
	}
	if s.HasNullCount && s.NumRows > 0 && s.NullCount == s.NumRows {
		return false
	}
	if !s.HasMinMax {
		return true
	}

	lo, ok1 := compareKeys(s.Min, v)
	hi, ok2 := compareKeys(s.Max, v)
	if !ok1 || !ok2 {
		return true
	}

	switch c.Op {
	case OpEq:
		return lo <= 0 && hi >= 0
	case OpNotEq:
		// Float min/max ignore NaN, and NaN rows satisfy noteq.
		if _, isFloat := v.(float64); isFloat {
			return true
		}
		return !(lo == 0 && hi == 0)
	case OpGt:
		return hi > 0
	case OpGtEq:
		return hi >= 0
	case OpLt:
		return lo < 0
	case OpLtEq:
		return lo <= 0
	}
	return true
}

// statKey normalizes a literal value to the representation used by
// ColumnStats. Decimals are not normalized and never prune.
func statKey(v any) (any, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case arrow.Date32:
		return int64(x), true
	case arrow.Timestamp:
		return int64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	}
	return nil, false
}

// compareKeys returns the sign of (a - b) for two normalized statistic values.
func compareKeys(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		return cmp.Compare(x, y), ok
	case float64:
		y, ok := b.(float64)
		if !ok || math.IsNaN(x) {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case []byte:
		y, ok := b.([]byte)
		return bytes.Compare(x, y), ok
	case bool:
		y, ok := b.(bool)
		return cmpBool(x, y), ok
	}
	return 0, false
}
