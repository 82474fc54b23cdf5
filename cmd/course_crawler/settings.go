package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonathan/course-crawler/internal/config"
	"github.com/jonathan/course-crawler/internal/db"
	"github.com/jonathan/course-crawler/internal/logging"
	"github.com/jonathan/course-crawler/internal/storage"
	"github.com/spf13/cobra"
)

// settingsFlags holds the flags shared by commands that read the configuration.
type settingsFlags struct {
	configPath    string
	baseURL       string
	dataDir       string
	pacing        time.Duration
	timeout       time.Duration
	userAgent     string
	logLevel      string
	logFile       string
	metricsFile   string
	backend       string
	databaseURL   string
	redisURL      string
	redisPassword string
}

func addSettingsFlags(cmd *cobra.Command, f *settingsFlags) {
	// Config file flag (processed first)
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to a JSON or YAML config file (values can be overridden by other flags)")

	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Course listing endpoint")
	cmd.Flags().StringVarP(&f.dataDir, "data-dir", "d", "", "Directory for documents and raw archives (file backend)")
	cmd.Flags().DurationVar(&f.pacing, "pacing", 0, "Pause after every career (0 disables)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per request timeout")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "User-Agent header")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "Log file path (\"-\" disables)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write prometheus metrics to this file after the pass")
	cmd.Flags().StringVar(&f.backend, "storage", "", "Storage backend: file, postgres, redis")
	cmd.Flags().StringVar(&f.databaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	cmd.Flags().StringVar(&f.redisURL, "redis-url", "", "Redis connection URL (optional, defaults to REDIS_URL env var)")
	cmd.Flags().StringVar(&f.redisPassword, "redis-password", "", "Redis password")
}

// loadSettings resolves the configuration: config file, then environment, then
// defaults for unset values, then explicitly set flags.
func loadSettings(cmd *cobra.Command, f *settingsFlags) (config.Config, error) {
	// Step 1: Load config file if provided
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	// Step 2: Environment overrides
	cfg.ApplyEnv()

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.Defaults())

	// Step 4: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if flags.Changed("pacing") {
		cfg.Pacing = config.Duration(f.pacing)
	}
	if flags.Changed("timeout") {
		cfg.Timeout = config.Duration(f.timeout)
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = f.userAgent
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	if flags.Changed("storage") {
		cfg.Storage.Backend = f.backend
	}
	if flags.Changed("db-url") {
		cfg.Storage.DatabaseURL = f.databaseURL
	}
	if flags.Changed("redis-url") {
		cfg.Storage.RedisURL = f.redisURL
	}
	if flags.Changed("redis-password") {
		cfg.Storage.RedisPassword = f.redisPassword
	}

	// Step 5: Validate the merged result
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	logFile := cfg.LogFilePath()
	return logging.New(logging.Options{
		Level:   cfg.LogLevel,
		LogFile: logFile,
		Console: console,
	})
}

// openStore opens the configured backend. The Postgres schema is migrated on open.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch backend := cfg.StorageBackend(); backend {
	case storage.BackendFile:
		store, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		logger.Info("using file storage", "dir", store.Dir())
		return store, nil

	case storage.BackendPostgres:
		database, err := db.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			_ = database.Close()
			return nil, err
		}
		logger.Info("using postgres storage")
		return database, nil

	case storage.BackendRedis:
		store, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			URL:      cfg.Storage.RedisURL,
			Password: cfg.Storage.RedisPassword,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using redis storage")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
