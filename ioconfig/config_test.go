package ioconfig

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/afero"

	"github.com/hugr-lab/lakesoul-go/filter"
	"github.com/hugr-lab/lakesoul-go/storage"
)

func orderSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "customer", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "amount", Type: &arrow.Decimal128Type{Precision: 12, Scale: 2}, Nullable: true},
		{Name: "created", Type: &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}, Nullable: true},
		{Name: "address", Type: arrow.StructOf(
			arrow.Field{Name: "city", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "zip", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		), Nullable: true},
	}, nil)
}

func TestBuilder(t *testing.T) {
	cfg, err := NewBuilder().
		WithFile("/data/part-0.parquet").
		WithFiles("/data/part-1.parquet", "s3://lake/part-2.parquet").
		WithSchema(orderSchema()).
		WithPrimaryKeys("id").
		WithFilter("gt(id, 10)").
		WithFilter("noteq(customer, null)").
		WithObjectStoreOption(storage.OptRegion, "us-east-1").
		WithObjectStoreOption(storage.OptEndpoint, "http://localhost:9000").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(cfg.Files) != 3 || cfg.Files[2] != "s3://lake/part-2.parquet" {
		t.Errorf("unexpected files %v", cfg.Files)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", DefaultBatchSize, cfg.BatchSize)
	}
	if cfg.ThreadNum != DefaultThreadNum {
		t.Errorf("expected default thread num %d, got %d", DefaultThreadNum, cfg.ThreadNum)
	}
	if cfg.Allocator == nil || cfg.Logger == nil {
		t.Error("expected allocator and logger defaults")
	}
	if len(cfg.Filters) != 2 {
		t.Errorf("expected 2 filters, got %d", len(cfg.Filters))
	}
	if cfg.ObjectStoreOptions[storage.OptRegion] != "us-east-1" {
		t.Errorf("unexpected object store options %v", cfg.ObjectStoreOptions)
	}
}

func TestBuilderOverrides(t *testing.T) {
	mem := memory.NewGoAllocator()
	expr := filter.True
	cfg, err := NewBuilder().
		WithSchema(orderSchema()).
		WithBatchSize(16).
		WithThreadNum(4).
		WithAllocator(mem).
		WithExpression(expr).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if cfg.BatchSize != 16 || cfg.ThreadNum != 4 {
		t.Errorf("overrides lost: batch=%d threads=%d", cfg.BatchSize, cfg.ThreadNum)
	}
	if cfg.Allocator != mem {
		t.Error("allocator override lost")
	}
	if len(cfg.Expressions) != 1 {
		t.Errorf("expected 1 expression, got %d", len(cfg.Expressions))
	}
}

func TestBuilderBuildTwice(t *testing.T) {
	b := NewBuilder().WithSchema(orderSchema())
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Error("expected error on second Build")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"no schema", &Config{Files: []string{"a"}}},
		{"negative batch", &Config{Schema: orderSchema(), BatchSize: -1}},
		{"negative threads", &Config{Schema: orderSchema(), ThreadNum: -2}},
		{"unknown primary key", &Config{Schema: orderSchema(), PrimaryKeys: []string{"nope"}}},
		{"nested primary key", &Config{Schema: orderSchema(), PrimaryKeys: []string{"address.city"}}},
		{"duplicate primary key", &Config{Schema: orderSchema(), PrimaryKeys: []string{"id", "id"}}},
		{"empty file", &Config{Schema: orderSchema(), Files: []string{"a", ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	ok := &Config{Schema: orderSchema(), PrimaryKeys: []string{"id", "customer"}}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
	empty := &Config{Schema: orderSchema()}
	if err := empty.Validate(); err != nil {
		t.Errorf("an empty file list is rejected at start, not by Validate: %v", err)
	}
}

func TestWithDefaultsCopies(t *testing.T) {
	orig := &Config{
		Schema:             orderSchema(),
		Files:              []string{"a"},
		ObjectStoreOptions: map[string]string{"k": "v"},
	}
	cp := orig.WithDefaults()
	cp.Files[0] = "changed"
	cp.ObjectStoreOptions["k"] = "changed"

	if orig.Files[0] != "a" || orig.ObjectStoreOptions["k"] != "v" {
		t.Error("WithDefaults shares slices or maps with the original")
	}
	if orig.BatchSize != 0 {
		t.Error("WithDefaults modified the original")
	}
}

func TestSchemaDeclarations(t *testing.T) {
	specs, err := FromArrow(orderSchema())
	if err != nil {
		t.Fatalf("FromArrow failed: %v", err)
	}
	if specs[2].Type != "decimal" || specs[2].Precision != 12 || specs[2].Scale != 2 {
		t.Errorf("unexpected decimal spec %+v", specs[2])
	}
	if specs[3].Unit != "ms" || specs[3].TimeZone != "UTC" {
		t.Errorf("unexpected timestamp spec %+v", specs[3])
	}

	back, err := ToArrow(specs)
	if err != nil {
		t.Fatalf("ToArrow failed: %v", err)
	}
	if !back.Equal(orderSchema()) {
		t.Errorf("schema round trip mismatch:\n%s\n%s", back, orderSchema())
	}
}

func TestSchemaDeclarationErrors(t *testing.T) {
	tests := []struct {
		name  string
		specs []FieldSpec
	}{
		{"empty name", []FieldSpec{{Type: "int32"}}},
		{"duplicate", []FieldSpec{{Name: "a", Type: "int32"}, {Name: "a", Type: "int64"}}},
		{"unknown type", []FieldSpec{{Name: "a", Type: "geometry"}}},
		{"bad decimal", []FieldSpec{{Name: "a", Type: "decimal", Precision: 40}}},
		{"bad unit", []FieldSpec{{Name: "a", Type: "timestamp", Unit: "minutes"}}},
		{"empty struct", []FieldSpec{{Name: "a", Type: "struct"}}},
		{"bad child", []FieldSpec{{Name: "a", Type: "struct", Fields: []FieldSpec{{Name: "b", Type: "?"}}}}},
	}

	for _, tt := range tests {
		if _, err := ToArrow(tt.specs); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
	}
}

const sampleYAML = `
files:
  - /data/part-0.parquet
  - s3://lake/orders/part-1.parquet
schema:
  - name: id
    type: int64
    nullable: false
  - name: customer
    type: string
  - name: address
    type: struct
    fields:
      - name: city
        type: string
primary_keys: [id]
batch_size: 1024
thread_num: 3
filters:
  - gt(id, 10)
  - noteq(address.city, null)
object_store:
  fs.s3a.endpoint: http://localhost:9000
  fs.s3a.region: us-east-1
  fs.s3a.path.style.access: "true"
`

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/scan.yaml", []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFileFs(fs, "/etc/scan.yaml")
	if err != nil {
		t.Fatalf("LoadFileFs failed: %v", err)
	}

	if len(cfg.Files) != 2 || cfg.Files[1] != "s3://lake/orders/part-1.parquet" {
		t.Errorf("unexpected files %v", cfg.Files)
	}
	if cfg.BatchSize != 1024 || cfg.ThreadNum != 3 {
		t.Errorf("unexpected batch=%d threads=%d", cfg.BatchSize, cfg.ThreadNum)
	}
	if len(cfg.Filters) != 2 || cfg.Filters[1] != "noteq(address.city, null)" {
		t.Errorf("unexpected filters %v", cfg.Filters)
	}
	if cfg.Schema.NumFields() != 3 || cfg.Schema.Field(0).Nullable {
		t.Errorf("unexpected schema %s", cfg.Schema)
	}
	if got := cfg.ObjectStoreOptions[storage.OptEndpoint]; got != "http://localhost:9000" {
		t.Errorf("endpoint option = %q", got)
	}
	if got := cfg.ObjectStoreOptions[storage.OptPathStyle]; got != "true" {
		t.Errorf("path style option = %q", got)
	}

	if _, err := LoadFileFs(fs, "/etc/missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEncodeDecode(t *testing.T) {
	cfg, err := NewBuilder().
		WithFiles("/a.parquet", "/b.parquet").
		WithSchema(orderSchema()).
		WithPrimaryKeys("id").
		WithBatchSize(100).
		WithFilter("gt(amount, 100)").
		WithObjectStoreOption(storage.OptBucket, "lake").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := Encode(cfg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !back.Schema.Equal(cfg.Schema) {
		t.Errorf("schema mismatch:\n%s\n%s", back.Schema, cfg.Schema)
	}
	if back.BatchSize != 100 || len(back.Files) != 2 || back.PrimaryKeys[0] != "id" {
		t.Errorf("unexpected decoded config %+v", back)
	}
	if back.ObjectStoreOptions[storage.OptBucket] != "lake" {
		t.Errorf("object store options lost: %v", back.ObjectStoreOptions)
	}

	if _, err := Decode([]byte{0x80}); err == nil {
		t.Error("expected error for config without schema")
	}
}
