// Package storage opens scan input files on the local filesystem or on an
// S3-compatible object store.
//
// Paths are routed by scheme: "s3://" and "s3a://" URIs go to the object
// store, "file://" URIs and bare paths to the local filesystem. Object-store
// connection settings use the Hadoop-style option keys upstream writers emit
// (fs.s3a.access.key, fs.s3a.endpoint, ...).
package storage

import (
	"context"
	"errors"
	"io"
)

// Object-store option keys.
const (
	OptAccessKey      = "fs.s3a.access.key"
	OptSecretKey      = "fs.s3a.secret.key"
	OptRegion         = "fs.s3a.region"
	OptBucket         = "fs.s3a.bucket"
	OptEndpoint       = "fs.s3a.endpoint"
	OptPathStyle      = "fs.s3a.path.style.access"
	OptSSLEnabled     = "fs.s3a.connection.ssl.enabled"
	OptSessionToken   = "fs.s3a.session.token"
	DefaultS3Endpoint = "s3.amazonaws.com"
)

var (
	// ErrUnsupportedScheme is returned for a path whose URI scheme no store
	// serves.
	ErrUnsupportedScheme = errors.New("unsupported storage scheme")

	// ErrInvalidPath is returned for a path that cannot name a file.
	ErrInvalidPath = errors.New("invalid storage path")
)

// File is an open, random-access scan input.
// It satisfies the Parquet decoder's reader contract.
type File interface {
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Store opens files by path.
type Store interface {
	// Open opens the file at path for random access.
	Open(ctx context.Context, path string) (File, error)
}
