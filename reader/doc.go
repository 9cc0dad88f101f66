// Package reader scans Parquet files into Arrow record batches that conform
// to a target schema, with predicate pushdown.
//
// A Reader is a pull-based scan session over an ioconfig.Config:
//
//	r, err := reader.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	if err := r.Start(ctx); err != nil {
//	    return err
//	}
//	for {
//	    batch, err := r.NextBatch(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // use batch
//	    batch.Release()
//	}
//
// Predicates are applied twice. Row groups whose column statistics prove
// that no row can match are skipped before decoding, and every decoded batch
// is filtered row by row. Batches left empty by filtering are never yielded.
//
// A Reader must not be used from several goroutines at once. SyncReader
// wraps one for callers that need blocking or callback delivery from
// arbitrary goroutines.
package reader
