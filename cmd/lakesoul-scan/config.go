package main

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/hugr-lab/lakesoul-go"
	"github.com/hugr-lab/lakesoul-go/ioconfig"
)

// serveConfig is the file layout read by the serve command.
//
//	address: 0.0.0.0:50051
//	public_address: flight.example.com:50051
//	metrics_address: :9090
//	tokens:
//	  - {token: secret-token, identity: alice}
//	tables:
//	  - name: orders
//	    files: [s3://bucket/orders/0.parquet]
//	    schema:
//	      - {name: id, type: int64, nullable: false}
type serveConfig struct {
	Address         string          `mapstructure:"address"`
	PublicAddress   string          `mapstructure:"public_address"`
	MetricsAddress  string          `mapstructure:"metrics_address"`
	MaxMessageSize  int             `mapstructure:"max_message_size"`
	FilterCacheSize int             `mapstructure:"filter_cache_size"`
	Tokens          []tokenEntry    `mapstructure:"tokens"`
	Tables          []tableDocument `mapstructure:"tables"`
}

// tokenEntry maps a bearer token to an identity. Tokens are list values
// rather than map keys because viper lowercases keys.
type tokenEntry struct {
	Token    string `mapstructure:"token"`
	Identity string `mapstructure:"identity"`
}

type tableDocument struct {
	Name              string `mapstructure:"name"`
	ioconfig.Document `mapstructure:",squash"`
}

const defaultAddress = "127.0.0.1:50051"

func loadServeConfig(fs afero.Fs, path string) (*serveConfig, error) {
	v := ioconfig.NewViper()
	v.SetFs(fs)
	v.SetConfigFile(path)
	v.SetDefault("address", defaultAddress)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg serveConfig
	if err := ioconfig.Unmarshal(v, "", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("%w: no tables configured", lakesoul.ErrInvalidConfig)
	}
	return &cfg, nil
}

// tokens returns the token to identity map, nil when no tokens are set.
func (c *serveConfig) tokens() (map[string]string, error) {
	if len(c.Tokens) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(c.Tokens))
	for i, t := range c.Tokens {
		if t.Token == "" || t.Identity == "" {
			return nil, fmt.Errorf("%w: token %d needs a token and an identity", lakesoul.ErrInvalidConfig, i)
		}
		out[t.Token] = t.Identity
	}
	return out, nil
}

// tables builds the served tables, in file order.
func (c *serveConfig) tables() ([]lakesoul.Table, error) {
	out := make([]lakesoul.Table, 0, len(c.Tables))
	for i, doc := range c.Tables {
		if doc.Name == "" {
			return nil, fmt.Errorf("%w: table %d has no name", lakesoul.ErrInvalidTable, i)
		}
		cfg, err := doc.Config()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", doc.Name, err)
		}
		t, err := lakesoul.TableFromConfig(doc.Name, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
