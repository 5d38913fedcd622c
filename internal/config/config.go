// Package config loads drugsecure settings from an optional YAML file with
// DRUGSECURE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"drugsecure/internal/blob"
	"drugsecure/internal/compliance"
	"drugsecure/internal/core"
	"drugsecure/pkg/domain"
)

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Mode  string `yaml:"mode"` // production | development
	Level string `yaml:"level"`
}

// AnalysisConfig configures the classification runs.
type AnalysisConfig struct {
	FeatureSet domain.FeatureSet `yaml:"feature_set"`
	Seed       uint64            `yaml:"seed"`
	Benchmark  string            `yaml:"benchmark"`
	// Benchmarks are extra threshold tables registered next to the default.
	Benchmarks []domain.Benchmarks `yaml:"benchmarks"`
}

// ExportConfig configures the report export worker.
type ExportConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
)

// MetricsConfig selects where service metrics are published. Prometheus is
// served at /metrics, expvar at /debug/vars.
type MetricsConfig struct {
	Backend string `yaml:"backend"`
}

// Config is the complete process configuration.
type Config struct {
	Storage  core.StorageConfig `yaml:"storage"`
	Blob     blob.Config        `yaml:"blob"`
	HTTP     HTTPConfig         `yaml:"http"`
	Log      LogConfig          `yaml:"log"`
	Analysis AnalysisConfig     `yaml:"analysis"`
	Export   ExportConfig       `yaml:"export"`
	Metrics  MetricsConfig      `yaml:"metrics"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Storage: core.StorageConfig{Driver: core.StorageSQLite},
		Blob:    blob.Config{Driver: blob.DriverFilesystem},
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:     LogConfig{Mode: "production", Level: "info"},
		Analysis: AnalysisConfig{
			FeatureSet: domain.FeatureSetExtended,
			Seed:       42,
			Benchmark:  domain.DefaultBenchmarkName,
		},
		Export:  ExportConfig{QueueSize: 32},
		Metrics: MetricsConfig{Backend: MetricsPrometheus},
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DRUGSECURE_* variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var driver, blobDriver, featureSet string
	str("DRUGSECURE_STORAGE_DRIVER", &driver)
	if driver != "" {
		c.Storage.Driver = core.StorageDriver(driver)
	}
	str("DRUGSECURE_SQLITE_PATH", &c.Storage.SQLitePath)
	str("DRUGSECURE_POSTGRES_DSN", &c.Storage.PostgresDSN)

	str("DRUGSECURE_BLOB_DRIVER", &blobDriver)
	if blobDriver != "" {
		c.Blob.Driver = blob.Driver(blobDriver)
	}
	str("DRUGSECURE_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("DRUGSECURE_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("DRUGSECURE_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("DRUGSECURE_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("DRUGSECURE_BLOB_S3_PREFIX", &c.Blob.S3.Prefix)
	str("DRUGSECURE_BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("DRUGSECURE_BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	if v, ok := lookup("DRUGSECURE_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DRUGSECURE_BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3.PathStyle = b
	}

	str("DRUGSECURE_HTTP_ADDR", &c.HTTP.Addr)
	str("DRUGSECURE_LOG_MODE", &c.Log.Mode)
	str("DRUGSECURE_LOG_LEVEL", &c.Log.Level)

	str("DRUGSECURE_FEATURE_SET", &featureSet)
	if featureSet != "" {
		c.Analysis.FeatureSet = domain.FeatureSet(featureSet)
	}
	if v, ok := lookup("DRUGSECURE_SEED"); ok && v != "" {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("DRUGSECURE_SEED: %w", err)
		}
		c.Analysis.Seed = seed
	}
	str("DRUGSECURE_BENCHMARK", &c.Analysis.Benchmark)
	str("DRUGSECURE_METRICS_BACKEND", &c.Metrics.Backend)
	return nil
}

// Validate checks cross-field consistency and normalises the feature set.
func (c *Config) Validate() error {
	var errs []error
	fs, err := domain.ParseFeatureSet(string(c.Analysis.FeatureSet))
	if err != nil {
		errs = append(errs, err)
	} else {
		c.Analysis.FeatureSet = fs
	}
	switch c.Storage.Driver {
	case "", core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	registry, err := c.Registry()
	if err != nil {
		errs = append(errs, err)
	} else if _, ok := registry.Lookup(c.Analysis.Benchmark); c.Analysis.Benchmark != "" && !ok {
		errs = append(errs, fmt.Errorf("benchmark %q is not defined", c.Analysis.Benchmark))
	}
	if c.Export.QueueSize < 0 {
		errs = append(errs, errors.New("export.queue_size must not be negative"))
	}
	switch c.Metrics.Backend {
	case "":
		c.Metrics.Backend = MetricsPrometheus
	case MetricsPrometheus, MetricsExpvar:
	default:
		errs = append(errs, fmt.Errorf("unknown metrics backend %q", c.Metrics.Backend))
	}
	return errors.Join(errs...)
}

// Registry builds the benchmark registry from the default and configured
// tables.
func (c Config) Registry() (*compliance.Registry, error) {
	return compliance.NewRegistry(c.Analysis.Benchmarks...)
}

// ServiceOptions translates the analysis settings into service options.
func (c Config) ServiceOptions() ([]core.ServiceOption, error) {
	registry, err := c.Registry()
	if err != nil {
		return nil, err
	}
	return []core.ServiceOption{
		core.WithFeatureSet(c.Analysis.FeatureSet),
		core.WithSeed(c.Analysis.Seed),
		core.WithBenchmarks(registry, c.Analysis.Benchmark),
	}, nil
}
