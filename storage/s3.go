package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store opens objects from an S3-compatible object store.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store creates an object-store client from option key/value pairs.
// No connection is made until a file is opened.
func NewS3Store(opts map[string]string) (*S3Store, error) {
	endpoint, mopts, err := s3ClientOptions(opts)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, mopts)
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &S3Store{client: client, bucket: opts[OptBucket]}, nil
}

// s3ClientOptions translates option pairs into a minio endpoint and options.
// An endpoint URL scheme decides TLS; otherwise OptSSLEnabled does (default on).
func s3ClientOptions(opts map[string]string) (string, *minio.Options, error) {
	endpoint := opts[OptEndpoint]
	if endpoint == "" {
		endpoint = DefaultS3Endpoint
	}

	secure := true
	if v, ok := opts[OptSSLEnabled]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", OptSSLEnabled, err)
		}
		secure = b
	}

	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", OptEndpoint, err)
		}
		switch u.Scheme {
		case "http":
			secure = false
		case "https":
			secure = true
		default:
			return "", nil, fmt.Errorf("%s: unsupported scheme %q", OptEndpoint, u.Scheme)
		}
		endpoint = u.Host
	}

	lookup := minio.BucketLookupAuto
	if v, ok := opts[OptPathStyle]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", OptPathStyle, err)
		}
		if b {
			lookup = minio.BucketLookupPath
		}
	}

	return endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts[OptAccessKey], opts[OptSecretKey], opts[OptSessionToken]),
		Secure:       secure,
		Region:       opts[OptRegion],
		BucketLookup: lookup,
	}, nil
}

// Open opens an s3:// or s3a:// object. The URI host names the bucket; an
// empty host falls back to the configured bucket.
func (s *S3Store) Open(ctx context.Context, path string) (File, error) {
	bucket, key, err := parseS3Path(path, s.bucket)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	// GetObject is lazy; Stat surfaces missing objects and auth errors now.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat s3://%s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

func parseS3Path(path, defaultBucket string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %w", ErrInvalidPath, path, err)
	}
	if u.Scheme != "s3" && u.Scheme != "s3a" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	bucket = u.Host
	if bucket == "" {
		bucket = defaultBucket
	}
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s needs a bucket and a key", ErrInvalidPath, path)
	}
	return bucket, key, nil
}
