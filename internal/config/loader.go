package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (PROCSIGHT_*)
// 2. Config file (.procsight/config.yml or .procsight/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".procsight")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("PROCSIGHT")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., PROCSIGHT_STORAGE_DB_PATH)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("storage.db_path")
	v.BindEnv("report.customer")
	v.BindEnv("report.html_path")
	v.BindEnv("report.jsonl_path")
	v.BindEnv("analyzer.max_format_bytes")
	v.BindEnv("analyzer.workers")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("storage.db_path", defaults.Storage.DBPath)
	v.SetDefault("report.customer", defaults.Report.Customer)
	v.SetDefault("report.html_path", defaults.Report.HTMLPath)
	v.SetDefault("report.jsonl_path", defaults.Report.JSONLPath)
	v.SetDefault("analyzer.max_format_bytes", defaults.Analyzer.MaxFormatBytes)
	v.SetDefault("analyzer.workers", defaults.Analyzer.Workers)
}

// Validate checks configuration invariants the commands rely on.
func Validate(cfg *Config) error {
	if cfg.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path must not be empty")
	}
	if cfg.Analyzer.Workers < 0 {
		return fmt.Errorf("analyzer.workers must not be negative")
	}
	return nil
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
