package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
)

func TestLocalStoreOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/part-0.parquet", []byte("PAR1 body PAR1"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.MkdirAll("/data/dir", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	store := NewLocalStore(fs)
	ctx := context.Background()

	for _, path := range []string{"/data/part-0.parquet", "file:///data/part-0.parquet"} {
		f, err := store.Open(ctx, path)
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", path, err)
		}
		size, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			t.Fatalf("Seek failed: %v", err)
		}
		if size != 14 {
			t.Errorf("expected size 14, got %d", size)
		}
		buf := make([]byte, 4)
		if _, err := f.ReadAt(buf, 0); err != nil {
			t.Fatalf("ReadAt failed: %v", err)
		}
		if string(buf) != "PAR1" {
			t.Errorf("expected PAR1, got %q", buf)
		}
		f.Close()
	}

	if _, err := store.Open(ctx, "/data/missing.parquet"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := store.Open(ctx, "/data/dir"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for directory, got %v", err)
	}
	if _, err := store.Open(ctx, "file://"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for empty path, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.Open(cancelled, "/data/part-0.parquet"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, defaultBucket string
		bucket, key         string
	}{
		{"s3://lake/tables/t1/part-0.parquet", "", "lake", "tables/t1/part-0.parquet"},
		{"s3a://lake/part-0.parquet", "other", "lake", "part-0.parquet"},
		{"s3:///part-0.parquet", "fallback", "fallback", "part-0.parquet"},
	}

	for _, tt := range tests {
		bucket, key, err := parseS3Path(tt.path, tt.defaultBucket)
		if err != nil {
			t.Fatalf("parseS3Path(%q) failed: %v", tt.path, err)
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("parseS3Path(%q) = %s, %s; want %s, %s", tt.path, bucket, key, tt.bucket, tt.key)
		}
	}

	if _, _, err := parseS3Path("s3://lake/", ""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if _, _, err := parseS3Path("gs://lake/x", ""); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestS3ClientOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     map[string]string
		endpoint string
		secure   bool
		lookup   minio.BucketLookupType
	}{
		{"defaults", map[string]string{}, DefaultS3Endpoint, true, minio.BucketLookupAuto},
		{"http endpoint", map[string]string{OptEndpoint: "http://localhost:9000"}, "localhost:9000", false, minio.BucketLookupAuto},
		{"https endpoint", map[string]string{OptEndpoint: "https://minio.local", OptSSLEnabled: "false"}, "minio.local", true, minio.BucketLookupAuto},
		{"ssl disabled", map[string]string{OptEndpoint: "minio:9000", OptSSLEnabled: "false"}, "minio:9000", false, minio.BucketLookupAuto},
		{"path style", map[string]string{OptEndpoint: "minio:9000", OptPathStyle: "true"}, "minio:9000", true, minio.BucketLookupPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint, opts, err := s3ClientOptions(tt.opts)
			if err != nil {
				t.Fatalf("s3ClientOptions failed: %v", err)
			}
			if endpoint != tt.endpoint {
				t.Errorf("expected endpoint %s, got %s", tt.endpoint, endpoint)
			}
			if opts.Secure != tt.secure {
				t.Errorf("expected secure=%v, got %v", tt.secure, opts.Secure)
			}
			if opts.BucketLookup != tt.lookup {
				t.Errorf("expected lookup %v, got %v", tt.lookup, opts.BucketLookup)
			}
		})
	}

	bad := []map[string]string{
		{OptSSLEnabled: "maybe"},
		{OptPathStyle: "sometimes"},
		{OptEndpoint: "ftp://host"},
	}
	for _, opts := range bad {
		if _, _, err := s3ClientOptions(opts); err == nil {
			t.Errorf("s3ClientOptions(%v): expected error", opts)
		}
	}
}

func TestNewS3StoreCarriesRegion(t *testing.T) {
	_, opts, err := s3ClientOptions(map[string]string{OptRegion: "us-east-1", OptAccessKey: "ak", OptSecretKey: "sk"})
	if err != nil {
		t.Fatalf("s3ClientOptions failed: %v", err)
	}
	if opts.Region != "us-east-1" {
		t.Errorf("expected region us-east-1, got %s", opts.Region)
	}

	store, err := NewS3Store(map[string]string{OptBucket: "lake", OptEndpoint: "http://127.0.0.1:9000"})
	if err != nil {
		t.Fatalf("NewS3Store failed: %v", err)
	}
	if store.bucket != "lake" {
		t.Errorf("expected default bucket lake, got %s", store.bucket)
	}
}

// stubStore records the paths it was asked to open.
type stubStore struct {
	opened []string
}

func (s *stubStore) Open(_ context.Context, path string) (File, error) {
	s.opened = append(s.opened, path)
	return nil, errors.New("stub")
}

func TestRouter(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/local.parquet", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	stub := &stubStore{}
	r := NewRouter(nil, WithFs(fs), WithObjectStore(stub))
	ctx := context.Background()

	f, err := r.Open(ctx, "/local.parquet")
	if err != nil {
		t.Fatalf("Open local failed: %v", err)
	}
	f.Close()

	f, err = r.Open(ctx, "file:///local.parquet")
	if err != nil {
		t.Fatalf("Open file:// failed: %v", err)
	}
	f.Close()

	r.Open(ctx, "s3://lake/a.parquet")
	r.Open(ctx, "s3a://lake/b.parquet")
	if len(stub.opened) != 2 {
		t.Errorf("expected 2 object-store opens, got %v", stub.opened)
	}

	if _, err := r.Open(ctx, "hdfs://nn/x.parquet"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}
