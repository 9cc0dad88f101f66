package reader

import (
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/lakesoul-go/ioconfig"
)

func newSyncReader(t *testing.T, f *fixture, cfg *ioconfig.Config) *SyncReader {
	t.Helper()
	return newSyncReaderThreads(t, f, cfg, 2)
}

func newSyncReaderThreads(t *testing.T, f *fixture, cfg *ioconfig.Config, threadNum int) *SyncReader {
	t.Helper()
	s, err := NewSyncReader(f.reader(t, cfg), threadNum)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSyncReaderBlocking(t *testing.T) {
	f := newFixture(t)
	s := newSyncReader(t, f, f.config(t, func(b *ioconfig.Builder) { b.WithFilter("gteq(id, 90)") }))

	assert.Nil(t, s.Schema())
	require.NoError(t, s.StartBlocking())
	require.NotNil(t, s.Schema())
	assert.True(t, s.Schema().Equal(orderSchema()))

	var ids []int64
	for {
		batch, err := s.NextBatchBlocking()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ids = append(ids, batchIDs(batch)...)
		batch.Release()
	}
	assert.Equal(t, matchingIDs(f.rows, func(r orderRow) bool { return r.id >= 90 }), ids)

	_, err := s.NextBatchBlocking()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSyncReaderAsync(t *testing.T) {
	f := newFixture(t)
	s := newSyncReader(t, f, f.config(t, nil))
	require.NoError(t, s.StartBlocking())

	var (
		ids  []int64
		done bool
	)
	for !done {
		h, err := s.NextBatchAsync(func(batch arrow.RecordBatch, err error) {
			if err == io.EOF {
				done = true
				return
			}
			if !assert.NoError(t, err) {
				done = true
				return
			}
			ids = append(ids, batchIDs(batch)...)
			batch.Release()
		})
		require.NoError(t, err)
		h.Wait()
	}
	assert.Len(t, ids, len(f.rows))
	assert.True(t, slices.IsSorted(ids))
}

func TestSyncReaderAsyncCallbacksRunInOrder(t *testing.T) {
	f := newFixture(t)
	s := newSyncReader(t, f, f.config(t, nil))
	require.NoError(t, s.StartBlocking())

	// 150 rows in batches of at most 32 over row groups of at least 10 rows
	// take at most 12 pulls; the rest see io.EOF.
	var (
		mu      sync.Mutex
		firsts  []int64
		eofs    int
		handles []*Handle
	)
	for range 20 {
		h, err := s.NextBatchAsync(func(batch arrow.RecordBatch, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err == io.EOF {
				eofs++
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			firsts = append(firsts, batchIDs(batch)[0])
			batch.Release()
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		<-h.Done()
	}

	assert.Equal(t, 20, len(firsts)+eofs)
	assert.Positive(t, eofs)
	assert.True(t, slices.IsSorted(firsts), "batches delivered out of order: %v", firsts)
}

func TestSyncReaderAsyncDoesNotBlockCaller(t *testing.T) {
	f := newFixture(t)
	s := newSyncReaderThreads(t, f, f.config(t, nil), 1)
	require.NoError(t, s.StartBlocking())

	var firstRows int64
	entered := make(chan struct{})
	release := make(chan struct{})
	first, err := s.NextBatchAsync(func(batch arrow.RecordBatch, err error) {
		if assert.NoError(t, err) {
			firstRows = batch.NumRows()
			batch.Release()
		}
		close(entered)
		<-release
	})
	require.NoError(t, err)
	<-entered

	// The only worker is busy in the first callback.
	scheduled := make(chan *Handle, 1)
	go func() {
		h, err := s.NextBatchAsync(func(batch arrow.RecordBatch, err error) {
			if assert.NoError(t, err) {
				assert.Equal(t, firstRows, batchIDs(batch)[0])
				batch.Release()
			}
		})
		assert.NoError(t, err)
		scheduled <- h
	}()

	var second *Handle
	select {
	case second = <-scheduled:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("NextBatchAsync blocked while the worker pool was busy")
	}
	select {
	case <-second.Done():
		t.Fatal("second callback ran before the first returned")
	default:
	}

	close(release)
	first.Wait()
	second.Wait()
}

func TestSyncReaderChainedAsync(t *testing.T) {
	f := newFixture(t)
	s := newSyncReaderThreads(t, f, f.config(t, nil), 1)
	require.NoError(t, s.StartBlocking())

	var (
		ids  []int64
		done = make(chan struct{})
		pull func()
	)
	pull = func() {
		_, err := s.NextBatchAsync(func(batch arrow.RecordBatch, err error) {
			if err != nil {
				assert.ErrorIs(t, err, io.EOF)
				close(done)
				return
			}
			ids = append(ids, batchIDs(batch)...)
			batch.Release()
			pull()
		})
		if !assert.NoError(t, err) {
			close(done)
		}
	}
	pull()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("chained NextBatchAsync did not reach the end of the scan")
	}
	assert.Equal(t, matchingIDs(f.rows, func(orderRow) bool { return true }), ids)
}

func TestSyncReaderConcurrentBlockingPulls(t *testing.T) {
	f := newFixture(t)
	s := newSyncReader(t, f, f.config(t, nil))
	require.NoError(t, s.StartBlocking())

	var (
		mu  sync.Mutex
		ids []int64
		wg  sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := s.NextBatchBlocking()
				if err != nil {
					assert.ErrorIs(t, err, io.EOF)
					return
				}
				mu.Lock()
				ids = append(ids, batchIDs(batch)...)
				mu.Unlock()
				batch.Release()
			}
		}()
	}
	wg.Wait()

	slices.Sort(ids)
	assert.Equal(t, matchingIDs(f.rows, func(orderRow) bool { return true }), ids)
}

func TestSyncReaderCallbackPanic(t *testing.T) {
	f := newFixture(t)
	s := newSyncReader(t, f, f.config(t, nil))
	require.NoError(t, s.StartBlocking())

	var first int64
	h, err := s.NextBatchAsync(func(batch arrow.RecordBatch, err error) {
		first = batch.NumRows()
		batch.Release()
		panic("callback failure")
	})
	require.NoError(t, err)
	h.Wait()

	batch, err := s.NextBatchBlocking()
	require.NoError(t, err)
	assert.Equal(t, first, batchIDs(batch)[0])
	batch.Release()
}

func TestSyncReaderStartErrors(t *testing.T) {
	f := newFixture(t)
	cfg, err := ioconfig.NewBuilder().WithSchema(orderSchema()).Build()
	require.NoError(t, err)

	s := newSyncReader(t, f, cfg)
	assert.ErrorIs(t, s.StartBlocking(), ErrNoFiles)
	assert.Nil(t, s.Schema())

	_, err = s.NextBatchBlocking()
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestSyncReaderClose(t *testing.T) {
	f := newFixture(t)
	s := newSyncReader(t, f, f.config(t, nil))
	require.NoError(t, s.StartBlocking())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.Reader().State())

	_, err := s.NextBatchBlocking()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.NextBatchAsync(func(arrow.RecordBatch, error) {
		t.Error("callback must not run after Close")
	})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.StartBlocking(), ErrClosed)
}

func TestNewSyncReaderRejectsNil(t *testing.T) {
	_, err := NewSyncReader(nil, 1)
	assert.Error(t, err)
}
