package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"

	"github.com/hugr-lab/lakesoul-go/internal/serialize"
	"github.com/hugr-lab/lakesoul-go/ioconfig"
	"github.com/hugr-lab/lakesoul-go/reader"
)

type scanOptions struct {
	config    string
	filters   []string
	batchSize int
	threads   int
	async     bool
	print     bool
	out       string
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read every matching row of a scan configuration",
		Long: `Scan reads the files of a scan configuration, prunes row groups with the
configured filters plus any --filter flags, and prints the row count.

With --async batches are pulled through completion callbacks instead of
blocking calls. --out writes the batches as a zstd-compressed Arrow IPC stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "scan configuration file (YAML, JSON or TOML)")
	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "additional predicate, e.g. 'gt(id, 10)' (repeatable)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "override rows per batch")
	cmd.Flags().IntVar(&opts.threads, "threads", 0, "override worker count")
	cmd.Flags().BoolVar(&opts.async, "async", false, "pull batches through callbacks")
	cmd.Flags().BoolVar(&opts.print, "print", false, "print every batch")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write batches to this file as a zstd-compressed Arrow IPC stream")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// loadScanConfig reads the configuration file and applies flag overrides.
func loadScanConfig(root *rootOptions, path string, filters []string, batchSize, threads int) (*ioconfig.Config, error) {
	cfg, err := ioconfig.LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Filters = append(cfg.Filters, filters...)
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}
	if threads > 0 {
		cfg.ThreadNum = threads
	}
	logger, err := root.logger()
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	return cfg, cfg.Validate()
}

// batchSink consumes scan output.
type batchSink struct {
	w       io.Writer
	print   bool
	export  *serialize.StreamWriter
	rows    int64
	batches int
}

func (s *batchSink) consume(batch arrow.RecordBatch) error {
	s.batches++
	s.rows += batch.NumRows()
	if s.print {
		fmt.Fprintf(s.w, "batch %d (%d rows)\n", s.batches, batch.NumRows())
		for i, col := range batch.Columns() {
			fmt.Fprintf(s.w, "  %s: %v\n", batch.ColumnName(i), col)
		}
	}
	if s.export != nil {
		return s.export.Write(batch)
	}
	return nil
}

func runScan(cmd *cobra.Command, root *rootOptions, opts *scanOptions) error {
	cfg, err := loadScanConfig(root, opts.config, opts.filters, opts.batchSize, opts.threads)
	if err != nil {
		return err
	}

	r, err := reader.New(cfg)
	if err != nil {
		return err
	}
	sr, err := reader.NewSyncReader(r, cfg.ThreadNum)
	if err != nil {
		r.Close()
		return err
	}
	defer sr.Close()

	if err := sr.StartBlocking(); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}

	sink := &batchSink{w: cmd.OutOrStdout(), print: opts.print}
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return err
		}
		defer f.Close()
		sink.export, err = serialize.NewStreamWriter(f, sr.Schema(), cfg.Allocator)
		if err != nil {
			return err
		}
	}

	if opts.async {
		err = drainAsync(sr, sink)
	} else {
		err = drainBlocking(sr, sink)
	}
	if err != nil {
		return err
	}

	if sink.export != nil {
		if err := sink.export.Close(); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rows: %d\nbatches: %d\n", sink.rows, sink.batches)
	return nil
}

func drainBlocking(sr *reader.SyncReader, sink *batchSink) error {
	for {
		batch, err := sr.NextBatchBlocking()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		err = sink.consume(batch)
		batch.Release()
		if err != nil {
			return err
		}
	}
}

func drainAsync(sr *reader.SyncReader, sink *batchSink) error {
	for {
		var (
			done    bool
			scanErr error
		)
		h, err := sr.NextBatchAsync(func(batch arrow.RecordBatch, err error) {
			switch {
			case errors.Is(err, io.EOF):
				done = true
			case err != nil:
				scanErr = err
			default:
				scanErr = sink.consume(batch)
				batch.Release()
			}
		})
		if err != nil {
			return err
		}
		h.Wait()
		if scanErr != nil {
			return scanErr
		}
		if done {
			return nil
		}
	}
}
