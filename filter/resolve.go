package filter

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Resolve resolves a dotted field path against schema.
//
// A path naming a top-level field directly (even one containing dots) resolves
// to that field. Otherwise the path is walked segment by segment: segments are
// accumulated until they name a field at the current nesting level, at which
// point the walk enters that field. Struct fields open the next level; once a
// non-struct field is reached, remaining segments are ignored.
//
// Returns false when no segment matches, or when trailing segments name no
// child of the struct the walk stopped in.
func Resolve(path string, schema *arrow.Schema) (*FieldRef, bool) {
	if schema == nil || path == "" {
		return nil, false
	}

	if idx := schema.FieldIndices(path); len(idx) > 0 {
		f := schema.Field(idx[0])
		return &FieldRef{Names: []string{f.Name}, Indices: []int{idx[0]}, Field: f}, true
	}

	var (
		ref     *FieldRef
		pending string
		level   = schema.Fields()
	)

	for _, seg := range strings.Split(path, ".") {
		if pending == "" {
			pending = seg
		} else {
			pending += "." + seg
		}

		i := fieldIndex(level, pending)
		if i < 0 {
			continue
		}

		f := level[i]
		if ref == nil {
			ref = &FieldRef{}
		}
		ref.Names = append(ref.Names, f.Name)
		ref.Indices = append(ref.Indices, i)
		ref.Field = f
		pending = ""

		st, ok := f.Type.(*arrow.StructType)
		if !ok {
			return ref, true
		}
		level = st.Fields()
	}

	// Leftover segments inside a struct name a child that does not exist.
	if ref == nil || pending != "" {
		return nil, false
	}
	return ref, true
}

func fieldIndex(fields []arrow.Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
