package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/semaphore"

	"github.com/hugr-lab/lakesoul-go/internal/recovery"
)

// poolReleaseTimeout bounds how long Close waits for pool workers to exit.
const poolReleaseTimeout = 3 * time.Second

// BatchCallback receives the result of one asynchronous pull: a batch, or
// a nil batch with io.EOF at the end of the scan, or an error. The callback
// owns the batch and must release it.
type BatchCallback func(arrow.RecordBatch, error)

// SyncReader drives a Reader on a private worker pool so that callers on any
// goroutine can pull batches by blocking or by callback.
//
// Scheduled operations enter a FIFO queue drained by a single dispatcher.
// The dispatcher takes the single-slot semaphore before it hands a job to a
// worker, so pulls never overlap, run in scheduling order, and never hold a
// worker while they wait.
type SyncReader struct {
	r      *Reader
	pool   *ants.Pool
	sem    *semaphore.Weighted
	logger *slog.Logger

	schema atomic.Pointer[arrow.Schema]

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	qmu     sync.Mutex
	queue   []func()
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

// Handle tracks one asynchronous pull.
type Handle struct {
	done chan struct{}
}

// Wait blocks until the callback has returned.
func (h *Handle) Wait() {
	<-h.done
}

// Done returns a channel closed once the callback has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// NewSyncReader wraps r. threadNum sizes the worker pool; a non-positive
// value uses the thread count of r's config.
func NewSyncReader(r *Reader, threadNum int) (*SyncReader, error) {
	if r == nil {
		return nil, errors.New("reader is nil")
	}
	if threadNum <= 0 {
		threadNum = r.cfg.ThreadNum
	}

	s := &SyncReader{
		r:       r,
		sem:     semaphore.NewWeighted(1),
		logger:  r.logger,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	pool, err := ants.NewPool(threadNum, ants.WithPanicHandler(func(v any) {
		s.logger.Error("Reader worker panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	s.pool = pool
	go s.dispatch()
	return s, nil
}

// submit queues fn and returns without waiting for a worker. fn later runs
// on the pool with the semaphore held.
func (s *SyncReader) submit(fn func()) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	s.qmu.Lock()
	s.queue = append(s.queue, fn)
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// next pops the oldest queued job.
func (s *SyncReader) next() (func(), bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	fn := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return fn, true
}

// dispatch hands queued jobs to the pool one at a time until Close.
func (s *SyncReader) dispatch() {
	defer close(s.stopped)
	for {
		fn, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}

		// Background context: Acquire only fails on cancellation.
		_ = s.sem.Acquire(context.Background(), 1)
		job := func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			fn()
		}
		if err := s.pool.Submit(job); err != nil {
			s.logger.Warn("Worker pool rejected reader task; running it on the dispatcher", "error", err)
			job()
		}
	}
}

// StartBlocking starts the reader on the pool and waits for it.
func (s *SyncReader) StartBlocking() error {
	done := make(chan error, 1)
	err := s.submit(func() {
		_, err := recovery.RecoverToValue(s.logger, "Start", func() (struct{}, error) {
			return struct{}{}, s.r.Start(context.Background())
		})
		if err == nil {
			s.schema.Store(s.r.Schema())
		}
		done <- err
	})
	if err != nil {
		return err
	}
	return <-done
}

// NextBatchBlocking pulls one batch on the pool and waits for it. The end of
// the scan is reported as io.EOF.
func (s *SyncReader) NextBatchBlocking() (arrow.RecordBatch, error) {
	type result struct {
		batch arrow.RecordBatch
		err   error
	}
	done := make(chan result, 1)
	err := s.submit(func() {
		batch, err := s.pull()
		done <- result{batch, err}
	})
	if err != nil {
		return nil, err
	}
	res := <-done
	return res.batch, res.err
}

// NextBatchAsync schedules one pull and returns immediately. cb is called
// exactly once, on a pool worker, unless scheduling fails, in which case the
// error is returned and cb is never called.
//
// Scheduling never waits for a worker, even when every worker is busy.
// Callbacks of successive pulls run one at a time, in pull order. cb must
// not call the blocking methods of this SyncReader, but it may schedule the
// next NextBatchAsync. A panic in cb is logged and contained.
func (s *SyncReader) NextBatchAsync(cb BatchCallback) (*Handle, error) {
	if cb == nil {
		return nil, errors.New("callback is nil")
	}
	h := &Handle{done: make(chan struct{})}
	err := s.submit(func() {
		defer close(h.done)
		batch, err := s.pull()
		if recovery.Recover(s.logger, "NextBatchAsync callback", func() { cb(batch, err) }) {
			s.logger.Warn("Batch callback panicked; the batch may leak")
		}
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *SyncReader) pull() (arrow.RecordBatch, error) {
	return recovery.RecoverToValue(s.logger, "NextBatch", func() (arrow.RecordBatch, error) {
		return s.r.NextBatch(context.Background())
	})
}

// Schema returns the schema captured by StartBlocking, or nil before it.
func (s *SyncReader) Schema() *arrow.Schema {
	return s.schema.Load()
}

// Reader returns the wrapped reader.
func (s *SyncReader) Reader() *Reader {
	return s.r
}

// Close waits for scheduled pulls, stops the pool and closes the reader.
func (s *SyncReader) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	close(s.stop)
	<-s.stopped

	var errs []error
	if err := s.pool.ReleaseTimeout(poolReleaseTimeout); err != nil {
		errs = append(errs, fmt.Errorf("release worker pool: %w", err))
	}
	if err := s.r.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
