package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/lakesoul-go/filter"
	"github.com/hugr-lab/lakesoul-go/ioconfig"
	"github.com/hugr-lab/lakesoul-go/storage"
)

// State is the lifecycle stage of a Reader.
type State int

const (
	StateUnstarted State = iota
	StateRunning
	StateExhausted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateRunning:
		return "running"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures a Reader.
type Option func(*Reader)

// WithStore sets the store files are opened from. Defaults to a
// storage.Router over the config's object-store options.
func WithStore(store storage.Store) Option {
	return func(r *Reader) {
		r.store = store
	}
}

// WithMetrics records scan counters in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Reader) {
		r.metrics = m
	}
}

// WithFilterCache compiles the config's predicate strings through c.
func WithFilterCache(c *filter.Cache) Option {
	return func(r *Reader) {
		r.cache = c
	}
}

// Reader is a scan session over the files of one config.
type Reader struct {
	id      string
	cfg     *ioconfig.Config
	schema  *arrow.Schema
	expr    filter.Expression
	mem     memory.Allocator
	logger  *slog.Logger
	store   storage.Store
	metrics *Metrics
	cache   *filter.Cache

	mu      sync.Mutex
	state   State
	err     error
	sources []*source
	next    int
	cur     *source
	batches int64
	rows    int64
}

// New validates cfg and compiles its predicates. No I/O happens until Start.
func New(cfg *ioconfig.Config, opts ...Option) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	r := &Reader{
		id:     uuid.NewString(),
		cfg:    cfg,
		schema: cfg.Schema,
		mem:    cfg.Allocator,
		logger: cfg.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	var compiled filter.Expression
	var err error
	if r.cache != nil {
		compiled, err = r.cache.CompileAll(cfg.Filters, cfg.Schema)
	} else {
		compiled, err = filter.CompileAll(cfg.Filters, cfg.Schema)
	}
	if err != nil {
		return nil, err
	}
	r.expr = filter.Conjunction(append([]filter.Expression{compiled}, cfg.Expressions...)...)

	if r.store == nil {
		r.store = storage.NewRouter(cfg.ObjectStore(), storage.WithLogger(r.logger))
	}
	r.logger = r.logger.With("reader_id", r.id)
	return r, nil
}

// Filter returns the conjunction of every predicate of the scan, or nil.
func (r *Reader) Filter() filter.Expression {
	return r.expr
}

// Start opens every input file and reads its footer, using up to ThreadNum
// concurrent opens. The context bounds the opening phase only.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateClosed:
		return ErrClosed
	case StateUnstarted:
	default:
		return ErrAlreadyStarted
	}
	if len(r.cfg.Files) == 0 {
		return r.fail(ErrNoFiles)
	}

	r.logger.Info("Starting scan",
		"files", len(r.cfg.Files),
		"batch_size", r.cfg.BatchSize,
		"thread_num", r.cfg.ThreadNum,
		"filter", exprString(r.expr),
	)

	// Open handles outlive the errgroup context.
	openCtx := context.WithoutCancel(ctx)
	opts := sourceOptions{
		schema:    r.schema,
		expr:      r.expr,
		batchSize: r.cfg.BatchSize,
		parallel:  r.cfg.ThreadNum > 1,
		mem:       r.mem,
	}

	sources := make([]*source, len(r.cfg.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.ThreadNum)
	for i, path := range r.cfg.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := openSource(openCtx, r.store, path, opts)
			if err != nil {
				return err
			}
			sources[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, src := range sources {
			if src != nil {
				src.close()
			}
		}
		r.logger.Error("Failed to open scan files", "error", err)
		return r.fail(err)
	}

	read, pruned := 0, 0
	for _, src := range sources {
		read += len(src.rowGroups)
		pruned += src.pruned
		r.logger.Debug("Opened file",
			"path", src.path,
			"row_groups", len(src.rowGroups),
			"pruned_row_groups", src.pruned,
			"columns", len(src.columns),
		)
	}
	r.metrics.rowGroups(read, pruned)

	r.sources = sources
	r.state = StateRunning
	return nil
}

// NextBatch returns the next non-empty batch conforming to Schema, or io.EOF
// once every file is drained. The caller must release the batch.
//
// After an error other than io.EOF the reader is failed and every later call
// returns the same error.
func (r *Reader) NextBatch(ctx context.Context) (arrow.RecordBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateUnstarted:
		return nil, ErrNotStarted
	case StateExhausted:
		return nil, io.EOF
	case StateFailed:
		return nil, r.err
	case StateClosed:
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		if r.cur == nil {
			if r.next >= len(r.sources) {
				r.state = StateExhausted
				r.logger.Info("Scan completed", "batches", r.batches, "rows", r.rows)
				return nil, io.EOF
			}
			r.cur = r.sources[r.next]
			r.next++
		}

		raw, err := r.cur.next(context.WithoutCancel(ctx), r.schema, r.mem)
		if errors.Is(err, io.EOF) {
			r.cur.close()
			r.cur = nil
			continue
		}
		if err != nil {
			r.logger.Error("Scan failed", "path", r.cur.path, "error", err)
			return nil, r.fail(err)
		}

		batch, err := r.shape(ctx, raw)
		raw.Release()
		if err != nil {
			r.logger.Error("Scan failed", "path", r.cur.path, "error", err)
			return nil, r.fail(err)
		}
		if batch.NumRows() == 0 {
			batch.Release()
			continue
		}

		r.batches++
		r.rows += batch.NumRows()
		r.metrics.batch(batch.NumRows())
		r.logger.Debug("Yielding batch",
			"path", r.cur.path,
			"batch", r.batches,
			"rows_in_batch", batch.NumRows(),
			"total_rows", r.rows,
		)
		return batch, nil
	}
}

// shape conforms a raw file batch to the bound schema and applies the
// residual filter.
func (r *Reader) shape(ctx context.Context, raw arrow.RecordBatch) (arrow.RecordBatch, error) {
	bound, err := conform(ctx, r.mem, r.schema, raw)
	if err != nil {
		return nil, err
	}
	defer bound.Release()
	return filter.FilterBatch(ctx, r.expr, bound, r.mem)
}

func (r *Reader) fail(err error) error {
	r.state = StateFailed
	r.err = err
	r.metrics.failed()
	return err
}

// Schema returns the schema of every yielded batch.
func (r *Reader) Schema() *arrow.Schema {
	return r.schema
}

// State returns the current lifecycle stage.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close releases every open file. It is safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return nil
	}
	var errs []error
	for _, src := range r.sources {
		if err := src.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", src.path, err))
		}
	}
	r.sources, r.cur = nil, nil
	r.state = StateClosed
	return errors.Join(errs...)
}

func exprString(e filter.Expression) string {
	if e == nil {
		return ""
	}
	return e.String()
}
