package ioconfig

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/hugr-lab/lakesoul-go/internal/msgpack"
)

// EnvPrefix prefixes environment variables that override file settings,
// e.g. LAKESOUL_BATCH_SIZE.
const EnvPrefix = "LAKESOUL"

// keyDelimiter replaces viper's default "." so that object-store option keys,
// which contain dots, survive as single map keys.
const keyDelimiter = "::"

// Document is the serialized form of a Config, shared by YAML files and
// MessagePack payloads.
type Document struct {
	Files       []string          `mapstructure:"files" msgpack:"files"`
	Schema      []FieldSpec       `mapstructure:"schema" msgpack:"schema"`
	PrimaryKeys []string          `mapstructure:"primary_keys" msgpack:"primary_keys,omitempty"`
	BatchSize   int               `mapstructure:"batch_size" msgpack:"batch_size,omitempty"`
	Filters     []string          `mapstructure:"filters" msgpack:"filters,omitempty"`
	ThreadNum   int               `mapstructure:"thread_num" msgpack:"thread_num,omitempty"`
	ObjectStore map[string]string `mapstructure:"object_store" msgpack:"object_store,omitempty"`
}

// Config converts the document to a validated Config with defaults applied.
func (d *Document) Config() (*Config, error) {
	if len(d.Schema) == 0 {
		return nil, fmt.Errorf("%w: schema is required", ErrInvalidConfig)
	}
	schema, err := ToArrow(d.Schema)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Files:              slices.Clone(d.Files),
		Schema:             schema,
		PrimaryKeys:        slices.Clone(d.PrimaryKeys),
		BatchSize:          d.BatchSize,
		Filters:            slices.Clone(d.Filters),
		ThreadNum:          d.ThreadNum,
		ObjectStoreOptions: maps.Clone(d.ObjectStore),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.WithDefaults(), nil
}

// NewDocument converts a Config to its serialized form. Pre-compiled
// Expressions, the allocator and the logger are not serializable and are
// dropped.
func NewDocument(c *Config) (*Document, error) {
	if c == nil || c.Schema == nil {
		return nil, fmt.Errorf("%w: schema is required", ErrInvalidConfig)
	}
	specs, err := FromArrow(c.Schema)
	if err != nil {
		return nil, err
	}
	return &Document{
		Files:       slices.Clone(c.Files),
		Schema:      specs,
		PrimaryKeys: slices.Clone(c.PrimaryKeys),
		BatchSize:   c.BatchSize,
		Filters:     slices.Clone(c.Filters),
		ThreadNum:   c.ThreadNum,
		ObjectStore: maps.Clone(c.ObjectStore()),
	}, nil
}

// ObjectStore returns the object-store options, never nil.
func (c *Config) ObjectStore() map[string]string {
	if c.ObjectStoreOptions == nil {
		return map[string]string{}
	}
	return c.ObjectStoreOptions
}

// NewViper returns a viper instance set up for scan configuration files:
// "::" key delimiter and LAKESOUL_-prefixed environment overrides.
func NewViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	return v
}

// Unmarshal decodes the settings of v (or the sub-tree at key, if non-empty)
// into out. Comma-separated strings decode into string slices.
func Unmarshal(v *viper.Viper, key string, out any) error {
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))

	var err error
	if key == "" {
		err = v.Unmarshal(out, hook)
	} else {
		err = v.UnmarshalKey(key, out, hook)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LoadFile reads a scan configuration file (YAML, JSON or TOML, by
// extension) and returns the validated Config.
func LoadFile(path string) (*Config, error) {
	return LoadFileFs(afero.NewOsFs(), path)
}

// LoadFileFs is LoadFile reading from fs.
func LoadFileFs(fs afero.Fs, path string) (*Config, error) {
	v := NewViper()
	v.SetFs(fs)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var doc Document
	if err := Unmarshal(v, "", &doc); err != nil {
		return nil, err
	}
	return doc.Config()
}

// Encode serializes a Config to MessagePack.
func Encode(c *Config) ([]byte, error) {
	doc, err := NewDocument(c)
	if err != nil {
		return nil, err
	}
	return msgpack.Encode(doc)
}

// Decode deserializes a MessagePack Config. Unknown keys are rejected.
func Decode(data []byte) (*Config, error) {
	var doc Document
	if err := msgpack.DecodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return doc.Config()
}
