package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"haccpcore/internal/blob"
	"haccpcore/internal/core"
)

// Config is the daemon configuration, loaded from a YAML file with
// environment overrides for the values deployments change most often.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`

	Storage struct {
		Driver      string `yaml:"driver"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"storage"`

	Blob struct {
		Driver string `yaml:"driver"`
		FSRoot string `yaml:"fs_root"`
	} `yaml:"blob"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Listen = ":8080"
	cfg.LogLevel = "info"
	cfg.Storage.Driver = string(core.StorageSQLite)
	cfg.Storage.SQLitePath = "haccpcore.db"
	cfg.Blob.Driver = string(blob.DriverFilesystem)
	cfg.Blob.FSRoot = "./blobdata"
	return cfg
}

// loadConfig reads the YAML file at path (optional) and applies environment
// overrides. An empty path yields the defaults plus overrides.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HACCPCORE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("HACCPCORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HACCPCORE_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("HACCPCORE_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("HACCPCORE_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("HACCPCORE_BLOB_DRIVER"); v != "" {
		cfg.Blob.Driver = v
	}
	if v := os.Getenv("HACCPCORE_BLOB_FS_ROOT"); v != "" {
		cfg.Blob.FSRoot = v
	}
}

func validateConfig(cfg Config) error {
	switch core.StorageDriver(cfg.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	switch blob.Driver(cfg.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverS3, blob.DriverMemory:
	default:
		return fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
