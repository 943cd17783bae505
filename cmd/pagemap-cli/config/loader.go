// loader.go — Configuration loading with priority cascade.
// Priority: defaults < global config < project config < env vars < flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all resolved configuration values for the pagemap-cli
// binary.
type Config struct {
	Format        string `json:"format"`         // agent | json | diff
	TimeoutMillis int    `json:"timeout_millis"`
	MaxHTMLBytes  int64  `json:"max_html_bytes"`
	Locale        string `json:"locale"` // explicit override, empty means auto-resolve
}

// FlagOverrides holds values explicitly set via command-line flags.
// Nil pointer means the flag was not set (so lower-priority values are kept).
type FlagOverrides struct {
	Format        *string
	TimeoutMillis *int
	MaxHTMLBytes  *int64
	Locale        *string
}

// Defaults returns the base configuration with sensible defaults.
func Defaults() Config {
	return Config{
		Format:        "agent",
		TimeoutMillis: 30_000,
		MaxHTMLBytes:  5 * 1024 * 1024,
		Locale:        "",
	}
}

// Load builds the final configuration by applying the priority cascade:
// defaults < global (~/.pagemap/config.json) < project (.pagemap.json) < env vars < flags.
func Load(projectDir string, flags *FlagOverrides) (Config, error) {
	cfg := Defaults()

	home, err := os.UserHomeDir()
	if err == nil {
		pagemapDir := filepath.Join(home, ".pagemap")
		_ = loadJSONFile(&cfg, filepath.Join(pagemapDir, "config.json"))
	}

	if err := loadJSONFile(&cfg, filepath.Join(projectDir, ".pagemap.json")); err != nil {
		return cfg, fmt.Errorf("project config: %w", err)
	}

	loadEnvVars(&cfg)

	if flags != nil {
		applyFlags(&cfg, flags)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadJSONFile reads a JSON config file and merges non-zero values into cfg.
func loadJSONFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Missing config file is fine
		}
		return err
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fileCfg.Format != nil {
		cfg.Format = *fileCfg.Format
	}
	if fileCfg.TimeoutMillis != nil {
		cfg.TimeoutMillis = *fileCfg.TimeoutMillis
	}
	if fileCfg.MaxHTMLBytes != nil {
		cfg.MaxHTMLBytes = *fileCfg.MaxHTMLBytes
	}
	if fileCfg.Locale != nil {
		cfg.Locale = *fileCfg.Locale
	}

	return nil
}

// fileConfig uses pointers to distinguish "not set" from zero values.
type fileConfig struct {
	Format        *string `json:"format"`
	TimeoutMillis *int    `json:"timeout_millis"`
	MaxHTMLBytes  *int64  `json:"max_html_bytes"`
	Locale        *string `json:"locale"`
}

// loadEnvVars applies environment variable overrides.
func loadEnvVars(cfg *Config) {
	if v := os.Getenv("PAGEMAP_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("PAGEMAP_TIMEOUT_MILLIS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutMillis = n
		}
	}
	if v := os.Getenv("PAGEMAP_MAX_HTML_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxHTMLBytes = n
		}
	}
	if v := os.Getenv("PAGEMAP_LOCALE"); v != "" {
		cfg.Locale = v
	}
}

// applyFlags applies command-line flag overrides (highest priority).
func applyFlags(cfg *Config, flags *FlagOverrides) {
	if flags.Format != nil {
		cfg.Format = *flags.Format
	}
	if flags.TimeoutMillis != nil {
		cfg.TimeoutMillis = *flags.TimeoutMillis
	}
	if flags.MaxHTMLBytes != nil {
		cfg.MaxHTMLBytes = *flags.MaxHTMLBytes
	}
	if flags.Locale != nil {
		cfg.Locale = *flags.Locale
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c Config) Validate() error {
	validFormats := map[string]bool{"agent": true, "json": true, "diff": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("format must be agent, json, or diff, got %q", c.Format)
	}
	if c.TimeoutMillis <= 0 {
		return fmt.Errorf("timeout_millis must be positive, got %d", c.TimeoutMillis)
	}
	if c.MaxHTMLBytes <= 0 {
		return fmt.Errorf("max_html_bytes must be positive, got %d", c.MaxHTMLBytes)
	}
	return nil
}
