package reader

import "errors"

var (
	// ErrNoFiles indicates Start was called on a config without input files.
	ErrNoFiles = errors.New("reader has no input files")

	// ErrNotStarted indicates NextBatch was called before a successful Start.
	ErrNotStarted = errors.New("reader not started")

	// ErrAlreadyStarted indicates Start was called more than once.
	ErrAlreadyStarted = errors.New("reader already started")

	// ErrClosed indicates the reader was used after Close.
	ErrClosed = errors.New("reader closed")
)
