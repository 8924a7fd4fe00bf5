// Package config handles loading and parsing the application's configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Paths served by the operational endpoints; the suggest endpoint may not use them.
var reservedPaths = []string{"/healthz", "/stats", "/metrics", "/admin/reload"}

// Config holds all configuration for the application.
// Struct tags map both TOML and YAML keys, so either file format works.
type Config struct {
	Host      string       `toml:"host" yaml:"host"`
	Port      int          `toml:"port" yaml:"port"`
	Endpoint  string       `toml:"endpoint" yaml:"endpoint"` // Path the suggest API answers on
	LogLevel  string       `toml:"log_level" yaml:"log_level"`
	LogFormat string       `toml:"log_format" yaml:"log_format"` // "text" or "json"
	Source    SourceConfig `toml:"source" yaml:"source"`
	Limits    LimitsConfig `toml:"limits" yaml:"limits"`
	Admin     AdminConfig  `toml:"admin" yaml:"admin"`
}

// SourceConfig describes where the dataset comes from and how often it is reloaded.
type SourceConfig struct {
	Location        string        `toml:"location" yaml:"location"` // path, file://, s3:// or minio://
	Format          string        `toml:"format" yaml:"format"`     // "json", "jsonl" or empty to detect
	RefreshInterval time.Duration `toml:"refresh_interval" yaml:"refresh_interval"`
	Timeout         time.Duration `toml:"timeout" yaml:"timeout"` // Upper bound for one refresh cycle
	Lock            bool          `toml:"lock" yaml:"lock"`
	SkipUnchanged   bool          `toml:"skip_unchanged" yaml:"skip_unchanged"`
	S3              S3Config      `toml:"s3" yaml:"s3"`
	MinIO           MinIOConfig   `toml:"minio" yaml:"minio"`
}

// S3Config holds settings for s3:// locations. Credentials come from the AWS default chain.
type S3Config struct {
	Region    string `toml:"region" yaml:"region"`
	Endpoint  string `toml:"endpoint" yaml:"endpoint"`
	PathStyle bool   `toml:"path_style" yaml:"path_style"`
}

// MinIOConfig holds settings for minio:// locations.
type MinIOConfig struct {
	Endpoint  string `toml:"endpoint" yaml:"endpoint"`
	Region    string `toml:"region" yaml:"region"` // Skips the bucket location lookup when set
	AccessKey string `toml:"access_key" yaml:"access_key"`
	SecretKey string `toml:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl" yaml:"use_ssl"`
}

// LimitsConfig bounds what a single client can ask of the server.
type LimitsConfig struct {
	MaxBodyBytes      int64   `toml:"max_body_bytes" yaml:"max_body_bytes"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"` // 0 disables rate limiting
	Burst             int     `toml:"burst" yaml:"burst"`
}

// AdminConfig toggles the operational endpoints that change state.
type AdminConfig struct {
	ReloadEnabled bool `toml:"reload_enabled" yaml:"reload_enabled"`
}

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		Host:      "0.0.0.0",
		Port:      8080,
		Endpoint:  "/v1/api/suggest",
		LogLevel:  "info",
		LogFormat: "text",
		Source: SourceConfig{
			Location:        "json_source.json",
			RefreshInterval: time.Minute,
			Timeout:         30 * time.Second,
			Lock:            true,
		},
		Limits: LimitsConfig{
			MaxBodyBytes: 1 << 20,
		},
	}
}

// Load reads a configuration file from the given path and populates the Config struct.
// Files ending in .yaml or .yml are parsed as YAML, everything else as TOML.
func (c *Config) Load(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return errors.Wrap(err, "parse config")
		}
	default:
		if _, err := toml.DecodeFile(path, c); err != nil {
			return errors.Wrap(err, "parse config")
		}
	}
	return nil
}

// Addr is the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		return errors.Errorf("endpoint %q must start with /", c.Endpoint)
	}
	for _, reserved := range reservedPaths {
		if c.Endpoint == reserved {
			return errors.Errorf("endpoint %q is reserved", c.Endpoint)
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return errors.Errorf("log_format %q must be text or json", c.LogFormat)
	}

	if strings.TrimSpace(c.Source.Location) == "" {
		return errors.New("source location is required")
	}
	if c.Source.RefreshInterval <= 0 {
		return errors.New("source refresh_interval must be positive")
	}
	if c.Source.Timeout <= 0 {
		return errors.New("source timeout must be positive")
	}
	if strings.HasPrefix(c.Source.Location, "minio://") && c.Source.MinIO.Endpoint == "" {
		return errors.New("source minio endpoint is required for minio:// locations")
	}

	if c.Limits.MaxBodyBytes <= 0 {
		return errors.New("limits max_body_bytes must be positive")
	}
	if c.Limits.RequestsPerSecond < 0 {
		return errors.New("limits requests_per_second must not be negative")
	}
	return nil
}
