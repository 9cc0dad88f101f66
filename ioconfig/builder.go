package ioconfig

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/lakesoul-go/filter"
)

// Builder builds scan configs using fluent API.
// Not thread-safe - use only during initialization.
type Builder struct {
	cfg   Config
	built bool
}

// NewBuilder creates a new fluent config builder.
//
// Example:
//
//	cfg, err := ioconfig.NewBuilder().
//	    WithFile("s3://lake/orders/part-0.parquet").
//	    WithSchema(schema).
//	    WithPrimaryKeys("id").
//	    WithFilter("gt(amount, 100)").
//	    WithObjectStoreOption(storage.OptEndpoint, "http://minio:9000").
//	    Build()
func NewBuilder() *Builder {
	return &Builder{}
}

// WithFile appends an input file.
// Returns self for method chaining.
func (b *Builder) WithFile(path string) *Builder {
	b.cfg.Files = append(b.cfg.Files, path)
	return b
}

// WithFiles appends several input files, in order.
// Returns self for method chaining.
func (b *Builder) WithFiles(paths ...string) *Builder {
	b.cfg.Files = append(b.cfg.Files, paths...)
	return b
}

// WithSchema sets the target schema.
// Returns self for method chaining.
func (b *Builder) WithSchema(schema *arrow.Schema) *Builder {
	b.cfg.Schema = schema
	return b
}

// WithPrimaryKeys sets the primary-key columns.
// Returns self for method chaining.
func (b *Builder) WithPrimaryKeys(keys ...string) *Builder {
	b.cfg.PrimaryKeys = keys
	return b
}

// WithBatchSize sets the maximum rows per batch.
// Returns self for method chaining.
func (b *Builder) WithBatchSize(n int) *Builder {
	b.cfg.BatchSize = n
	return b
}

// WithFilter appends a serialized predicate.
// Returns self for method chaining.
func (b *Builder) WithFilter(predicate string) *Builder {
	b.cfg.Filters = append(b.cfg.Filters, predicate)
	return b
}

// WithExpression appends a predicate already compiled against the schema.
// Returns self for method chaining.
func (b *Builder) WithExpression(expr filter.Expression) *Builder {
	b.cfg.Expressions = append(b.cfg.Expressions, expr)
	return b
}

// WithThreadNum sets the worker count hint.
// Returns self for method chaining.
func (b *Builder) WithThreadNum(n int) *Builder {
	b.cfg.ThreadNum = n
	return b
}

// WithObjectStoreOption sets one object-store option.
// Returns self for method chaining.
func (b *Builder) WithObjectStoreOption(key, value string) *Builder {
	if b.cfg.ObjectStoreOptions == nil {
		b.cfg.ObjectStoreOptions = make(map[string]string)
	}
	b.cfg.ObjectStoreOptions[key] = value
	return b
}

// WithAllocator sets the Arrow allocator.
// Returns self for method chaining.
func (b *Builder) WithAllocator(mem memory.Allocator) *Builder {
	b.cfg.Allocator = mem
	return b
}

// WithLogger sets the logger.
// Returns self for method chaining.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.cfg.Logger = logger
	return b
}

// Build validates and returns the config with defaults applied.
// Can only be called once.
func (b *Builder) Build() (*Config, error) {
	if b.built {
		return nil, fmt.Errorf("config already built")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	b.built = true
	return b.cfg.WithDefaults(), nil
}
