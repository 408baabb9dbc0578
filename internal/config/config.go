// Package config loads binary configuration from YAML with environment
// overrides and opens the configured storage backend.
package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/murmur/store"
	"github.com/jacentio/murmur/store/dynamo"
	"github.com/jacentio/murmur/store/sqlite"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendDynamo = "dynamo"
)

// Config is the binary configuration.
type Config struct {
	// Backend selects the storage backend: "sqlite" or "dynamo".
	Backend string `yaml:"backend"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	Dynamo DynamoConfig `yaml:"dynamo"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DynamoConfig configures the DynamoDB backend.
type DynamoConfig struct {
	Region      string `yaml:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	TablePrefix string `yaml:"table_prefix,omitempty"`
	UniqueTable string `yaml:"unique_table,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Backend:  BackendSQLite,
		LogLevel: "info",
		SQLite:   SQLiteConfig{Path: "murmur.db"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// MURMUR_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("MURMUR_BACKEND", &c.Backend)
	set("MURMUR_LOG_LEVEL", &c.LogLevel)
	set("MURMUR_SQLITE_PATH", &c.SQLite.Path)
	set("MURMUR_DYNAMO_REGION", &c.Dynamo.Region)
	set("MURMUR_DYNAMO_ENDPOINT", &c.Dynamo.Endpoint)
	set("MURMUR_TABLE_PREFIX", &c.Dynamo.TablePrefix)
	set("MURMUR_UNIQUE_TABLE", &c.Dynamo.UniqueTable)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case BackendDynamo:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RequireBackend reports an error unless the configured backend is name.
func (c Config) RequireBackend(name string) error {
	if c.Backend != name {
		return fmt.Errorf("requires the %s backend, got %q", name, c.Backend)
	}
	return nil
}

// Logger returns a JSON logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

// TableConfig returns the DynamoDB table layout.
func (c Config) TableConfig() dynamo.Config {
	tc := dynamo.DefaultConfig()
	if c.Dynamo.TablePrefix != "" {
		tc.TablePrefix = c.Dynamo.TablePrefix
		tc.UniqueTable = c.Dynamo.TablePrefix + "unique_constraints"
	}
	if c.Dynamo.UniqueTable != "" {
		tc.UniqueTable = c.Dynamo.UniqueTable
	}
	return tc
}

// DynamoClient builds a DynamoDB client from the default AWS credential chain.
func (c Config) DynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Dynamo.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Dynamo.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.Dynamo.Endpoint != "" {
			o.BaseEndpoint = &c.Dynamo.Endpoint
		}
	}), nil
}

// OpenBackend opens the configured backend. The returned close function
// releases it.
func (c Config) OpenBackend(ctx context.Context) (store.Backend, func() error, error) {
	switch c.Backend {
	case BackendDynamo:
		client, err := c.DynamoClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return dynamo.New(client, c.TableConfig()), func() error { return nil }, nil
	case BackendSQLite:
		b, err := sqlite.Open(c.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}
