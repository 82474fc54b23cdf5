// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/course-crawler/internal/fetch"
	"github.com/jonathan/course-crawler/internal/schemas"
	"github.com/jonathan/course-crawler/internal/storage"
	"gopkg.in/yaml.v2"
)

// Defaults
const (
	DefaultDataDir  = "course-helper-web/public/data"
	DefaultPacing   = 2 * time.Second
	DefaultLogLevel = "info"
	DefaultLogFile  = "course_crawler.log"

	// LogFileDisabled as log_file turns off the log file sink.
	LogFileDisabled = "-"
)

// Environment variables that override config file values
const (
	EnvBaseURL     = "COURSE_CRAWLER_BASE_URL"
	EnvDataDir     = "COURSE_CRAWLER_DATA_DIR"
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "REDIS_URL"
)

// Config represents the CLI configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"required,url"`
	DataDir     string   `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	Pacing      Duration `json:"pacing,omitempty" yaml:"pacing,omitempty" validate:"gte=0"`
	Timeout     Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gt=0"`
	UserAgent   string   `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	LogLevel    string   `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFile     string   `json:"log_file,omitempty" yaml:"log_file,omitempty"`         // "-" disables the file sink
	MetricsFile string   `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"` // Prometheus textfile written after a pass

	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Backend       string `json:"backend,omitempty" yaml:"backend,omitempty" validate:"omitempty,oneof=file postgres redis"`
	DatabaseURL   string `json:"database_url,omitempty" yaml:"database_url,omitempty" validate:"required_if=Backend postgres"`
	RedisURL      string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" validate:"required_if=Backend redis"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:   fetch.DefaultBaseURL,
		DataDir:   DefaultDataDir,
		Pacing:    Duration(DefaultPacing),
		Timeout:   Duration(fetch.DefaultTimeout),
		UserAgent: fetch.DefaultUserAgent,
		LogLevel:  DefaultLogLevel,
		LogFile:   DefaultLogFile,
		Storage: StorageConfig{
			Backend: string(storage.BackendFile),
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file.
// ${VAR} references are expanded from the environment before decoding, and the
// decoded document is checked against the embedded schema.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	var (
		tree interface{}
		cfg  Config
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw interface{}
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
		tree = normalizeYAML(raw)
		if tree == nil {
			tree = map[string]interface{}{}
		}
		if err := checkSchema(tree); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(expanded, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
		if err := checkSchema(tree); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

func checkSchema(tree interface{}) error {
	if err := schemas.ValidateConfig(tree); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// normalizeYAML converts the map[interface{}]interface{} nodes produced by yaml.v2
// into map[string]interface{} so the tree can be checked as JSON.
func normalizeYAML(v interface{}) interface{} {
	switch node := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, val := range node {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		for i, val := range node {
			node[i] = normalizeYAML(val)
		}
		return node
	default:
		return v
	}
}

// ApplyEnv overrides fields with values from the environment when the variables are set.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvDataDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := os.LookupEnv(EnvDatabaseURL); ok && v != "" {
		c.Storage.DatabaseURL = v
	}
	if v, ok := os.LookupEnv(EnvRedisURL); ok && v != "" {
		c.Storage.RedisURL = v
	}
}

// Validate checks that the configuration has valid values.
// It is meant to run on the final merged configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			ve := validationErrors[0]
			return fmt.Errorf("config error: '%s' failed on '%s'", ve.Namespace(), ve.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.StorageBackend() == storage.BackendFile && c.DataDir == "" {
		return fmt.Errorf("config error: 'data_dir' is required for the file backend")
	}
	return nil
}

// StorageBackend returns the configured backend, defaulting to the file store.
func (c *Config) StorageBackend() storage.Backend {
	if c.Storage.Backend == "" {
		return storage.BackendFile
	}
	return storage.Backend(c.Storage.Backend)
}

// LogFilePath returns the log file path, or "" when the file sink is disabled.
func (c *Config) LogFilePath() string {
	if c.LogFile == LogFileDisabled {
		return ""
	}
	return c.LogFile
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFile == "" {
		result.LogFile = defaults.LogFile
	}
	if result.MetricsFile == "" {
		result.MetricsFile = defaults.MetricsFile
	}
	if result.Storage.Backend == "" {
		result.Storage.Backend = defaults.Storage.Backend
	}
	if result.Storage.DatabaseURL == "" {
		result.Storage.DatabaseURL = defaults.Storage.DatabaseURL
	}
	if result.Storage.RedisURL == "" {
		result.Storage.RedisURL = defaults.Storage.RedisURL
	}
	if result.Storage.RedisPassword == "" {
		result.Storage.RedisPassword = defaults.Storage.RedisPassword
	}

	// Duration fields: zero means unset, so disabling pacing takes the CLI flag
	if result.Pacing == 0 {
		result.Pacing = defaults.Pacing
	}
	if result.Timeout == 0 {
		result.Timeout = defaults.Timeout
	}

	return result
}
