// Package serialize writes and reads scan results as ZStandard-compressed
// Arrow IPC streams, the export format of the scan CLI.
package serialize

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/zstd"
)

// StreamWriter writes record batches as a compressed IPC stream.
// Not safe for concurrent use.
type StreamWriter struct {
	encoder *zstd.Encoder
	writer  *ipc.Writer
	rows    int64
	batches int
}

// NewStreamWriter starts a stream of batches conforming to schema on w.
// Uses SpeedDefault (level 3) for balanced compression ratio and speed.
// Caller must call Close() to flush the stream; w itself is not closed.
func NewStreamWriter(w io.Writer, schema *arrow.Schema, mem memory.Allocator) (*StreamWriter, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	return &StreamWriter{
		encoder: encoder,
		writer:  ipc.NewWriter(encoder, ipc.WithSchema(schema), ipc.WithAllocator(mem)),
	}, nil
}

// Write appends one batch. The batch stays owned by the caller.
func (s *StreamWriter) Write(rec arrow.RecordBatch) error {
	if err := s.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write batch %d: %w", s.batches+1, err)
	}
	s.batches++
	s.rows += rec.NumRows()
	return nil
}

// Rows returns the number of rows written so far.
func (s *StreamWriter) Rows() int64 {
	return s.rows
}

// Close ends the IPC stream and flushes the compressor.
func (s *StreamWriter) Close() error {
	if err := s.writer.Close(); err != nil {
		s.encoder.Close()
		return fmt.Errorf("failed to close ipc stream: %w", err)
	}
	if err := s.encoder.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd stream: %w", err)
	}
	return nil
}

// StreamReader reads a stream written by StreamWriter.
type StreamReader struct {
	*ipc.Reader
	decoder *zstd.Decoder
}

// NewStreamReader opens a compressed IPC stream. Caller must call Release().
func NewStreamReader(r io.Reader, mem memory.Allocator) (*StreamReader, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	rdr, err := ipc.NewReader(decoder, ipc.WithAllocator(mem))
	if err != nil {
		decoder.Close()
		return nil, fmt.Errorf("failed to open ipc stream: %w", err)
	}
	return &StreamReader{Reader: rdr, decoder: decoder}, nil
}

// Release frees the reader and the decompressor.
func (s *StreamReader) Release() {
	s.Reader.Release()
	s.decoder.Close()
}
