package lakesoul

import (
	"fmt"
	"maps"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/lakesoul-go/flight"
	"github.com/hugr-lab/lakesoul-go/ioconfig"
	"github.com/hugr-lab/lakesoul-go/storage"
)

// Table is a served table. This is re-exported from the flight package for
// convenience.
type Table = flight.Table

// TableBuilder builds a Table using fluent API.
// Not thread-safe - use only during initialization.
type TableBuilder struct {
	table Table
	built bool
}

// NewTableBuilder starts defining the table name.
//
// Example:
//
//	orders, err := lakesoul.NewTableBuilder("orders").
//	    Schema(schema).
//	    Files("/data/orders/0.parquet").
//	    PrimaryKeys("id").
//	    Build()
func NewTableBuilder(name string) *TableBuilder {
	return &TableBuilder{table: Table{Name: name}}
}

// Schema sets the schema batches are bound to.
// Returns self for method chaining.
func (tb *TableBuilder) Schema(schema *arrow.Schema) *TableBuilder {
	tb.table.Schema = schema
	return tb
}

// Files appends data files, scanned in order.
// Returns self for method chaining.
func (tb *TableBuilder) Files(paths ...string) *TableBuilder {
	tb.table.Files = append(tb.table.Files, paths...)
	return tb
}

// PrimaryKeys sets the primary-key columns.
// Returns self for method chaining.
func (tb *TableBuilder) PrimaryKeys(keys ...string) *TableBuilder {
	tb.table.PrimaryKeys = keys
	return tb
}

// BatchSize sets the default rows per batch.
// Returns self for method chaining.
func (tb *TableBuilder) BatchSize(n int) *TableBuilder {
	tb.table.BatchSize = n
	return tb
}

// ThreadNum sets the per-scan worker count hint.
// Returns self for method chaining.
func (tb *TableBuilder) ThreadNum(n int) *TableBuilder {
	tb.table.ThreadNum = n
	return tb
}

// ObjectStoreOption sets one object-store option (see storage.Opt*).
// Returns self for method chaining.
func (tb *TableBuilder) ObjectStoreOption(key, value string) *TableBuilder {
	if tb.table.ObjectStore == nil {
		tb.table.ObjectStore = make(map[string]string)
	}
	tb.table.ObjectStore[key] = value
	return tb
}

// Store overrides how the table files are opened.
// Returns self for method chaining.
func (tb *TableBuilder) Store(store storage.Store) *TableBuilder {
	tb.table.Store = store
	return tb
}

// Build validates and returns the table.
// Can only be called once.
func (tb *TableBuilder) Build() (Table, error) {
	if tb.built {
		return Table{}, fmt.Errorf("table already built")
	}
	if tb.table.Name == "" {
		return Table{}, fmt.Errorf("%w: table name cannot be empty", ErrInvalidTable)
	}

	// Reuse the scan-config checks so a served table is always scannable.
	cfg := ioconfig.Config{
		Files:       tb.table.Files,
		Schema:      tb.table.Schema,
		PrimaryKeys: tb.table.PrimaryKeys,
		BatchSize:   tb.table.BatchSize,
		ThreadNum:   tb.table.ThreadNum,
	}
	if err := cfg.Validate(); err != nil {
		return Table{}, fmt.Errorf("%w: table %s: %v", ErrInvalidTable, tb.table.Name, err)
	}

	tb.built = true
	return tb.table, nil
}

// TableFromConfig turns a scan configuration into a served table. Filters
// and pre-compiled expressions of cfg are not carried over: each DoGet
// brings its own.
func TableFromConfig(name string, cfg *ioconfig.Config) (Table, error) {
	if cfg == nil {
		return Table{}, fmt.Errorf("%w: table %s: config is nil", ErrInvalidTable, name)
	}
	tb := NewTableBuilder(name).
		Schema(cfg.Schema).
		Files(cfg.Files...).
		PrimaryKeys(slices.Clone(cfg.PrimaryKeys)...).
		BatchSize(cfg.BatchSize).
		ThreadNum(cfg.ThreadNum)
	for _, k := range slices.Sorted(maps.Keys(cfg.ObjectStoreOptions)) {
		tb.ObjectStoreOption(k, cfg.ObjectStoreOptions[k])
	}
	return tb.Build()
}
