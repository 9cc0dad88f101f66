// Package ioconfig describes a scan: which files to read, the schema to bind
// them to, the predicates to push down and how to reach the object store.
//
// A Config is built once, by hand, with the fluent Builder, from a YAML file
// (LoadFile) or from MessagePack (Decode), and is then handed to a reader.
// It must not be mutated after the reader starts.
package ioconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/lakesoul-go/filter"
)

const (
	// DefaultBatchSize is the number of rows per batch when BatchSize is 0.
	DefaultBatchSize = 8192

	// DefaultThreadNum is the worker count when ThreadNum is 0.
	DefaultThreadNum = 2
)

// ErrInvalidConfig indicates Config validation failed.
var ErrInvalidConfig = errors.New("invalid scan config")

// Config contains the configuration of one scan.
type Config struct {
	// Files lists the input files, read in order. Bare paths and file://
	// URIs are local; s3:// and s3a:// URIs go to the object store.
	// REQUIRED at start: a reader rejects an empty list when it starts.
	Files []string

	// Schema is the target schema every batch conforms to.
	// REQUIRED: MUST NOT be nil.
	Schema *arrow.Schema

	// PrimaryKeys names top-level columns forming the table's primary key.
	// OPTIONAL: each name MUST exist in Schema.
	PrimaryKeys []string

	// BatchSize bounds the rows per yielded batch.
	// OPTIONAL: Uses DefaultBatchSize if 0.
	BatchSize int

	// Filters holds serialized predicates, combined with AND.
	// OPTIONAL: no filtering if empty.
	Filters []string

	// Expressions holds predicates already compiled against Schema, combined
	// with Filters using AND.
	// OPTIONAL.
	Expressions []filter.Expression

	// ThreadNum sizes the background worker pool and enables parallel
	// column decoding when greater than 1.
	// OPTIONAL: Uses DefaultThreadNum if 0.
	ThreadNum int

	// ObjectStoreOptions holds object-store settings keyed by the
	// storage.Opt* constants (fs.s3a.access.key, fs.s3a.endpoint, ...).
	// OPTIONAL.
	ObjectStoreOptions map[string]string

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Validate checks the config without performing I/O.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.Schema == nil {
		return fmt.Errorf("%w: schema is required", ErrInvalidConfig)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch size %d is negative", ErrInvalidConfig, c.BatchSize)
	}
	if c.ThreadNum < 0 {
		return fmt.Errorf("%w: thread num %d is negative", ErrInvalidConfig, c.ThreadNum)
	}

	seen := make(map[string]bool, len(c.PrimaryKeys))
	for _, pk := range c.PrimaryKeys {
		if !c.Schema.HasField(pk) {
			return fmt.Errorf("%w: primary key %q is not in the schema", ErrInvalidConfig, pk)
		}
		if seen[pk] {
			return fmt.Errorf("%w: duplicate primary key %q", ErrInvalidConfig, pk)
		}
		seen[pk] = true
	}

	for i, f := range c.Files {
		if f == "" {
			return fmt.Errorf("%w: file %d is empty", ErrInvalidConfig, i)
		}
	}
	return nil
}

// WithDefaults returns a copy of c with zero-valued optional fields set to
// their defaults. Slices and maps are copied.
func (c *Config) WithDefaults() *Config {
	out := *c
	out.Files = slices.Clone(c.Files)
	out.PrimaryKeys = slices.Clone(c.PrimaryKeys)
	out.Filters = slices.Clone(c.Filters)
	out.Expressions = slices.Clone(c.Expressions)
	out.ObjectStoreOptions = maps.Clone(c.ObjectStoreOptions)

	if out.BatchSize == 0 {
		out.BatchSize = DefaultBatchSize
	}
	if out.ThreadNum == 0 {
		out.ThreadNum = DefaultThreadNum
	}
	if out.Allocator == nil {
		out.Allocator = memory.DefaultAllocator
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
