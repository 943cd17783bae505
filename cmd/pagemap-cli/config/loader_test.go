// loader_test.go — Tests for configuration loading cascade.
// Tests priority: defaults < .pagemap.json < env vars < flags.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := Defaults()

	if cfg.Format != "agent" {
		t.Errorf("expected default format 'agent', got %q", cfg.Format)
	}
	if cfg.TimeoutMillis != 30_000 {
		t.Errorf("expected default timeout 30000, got %d", cfg.TimeoutMillis)
	}
	if cfg.MaxHTMLBytes != 5*1024*1024 {
		t.Errorf("expected default max_html_bytes 5MiB, got %d", cfg.MaxHTMLBytes)
	}
	if cfg.Locale != "" {
		t.Errorf("expected empty default locale (auto-resolve), got %q", cfg.Locale)
	}
}

func TestLoadProjectConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	configPath := filepath.Join(dir, ".pagemap.json")
	err := os.WriteFile(configPath, []byte(`{
		"format": "json",
		"timeout_millis": 45000,
		"locale": "ko"
	}`), 0644)
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := Defaults()
	if err := loadJSONFile(&cfg, configPath); err != nil {
		t.Fatalf("loadJSONFile failed: %v", err)
	}

	if cfg.Format != "json" {
		t.Errorf("expected format 'json', got %q", cfg.Format)
	}
	if cfg.TimeoutMillis != 45000 {
		t.Errorf("expected timeout_millis 45000, got %d", cfg.TimeoutMillis)
	}
	if cfg.Locale != "ko" {
		t.Errorf("expected locale 'ko', got %q", cfg.Locale)
	}
}

func TestLoadProjectConfigMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg := Defaults()
	err := loadJSONFile(&cfg, filepath.Join(dir, ".pagemap.json"))
	if err != nil {
		t.Fatalf("missing config should not error, got: %v", err)
	}
	if cfg.Format != "agent" {
		t.Errorf("expected default format to be kept, got %q", cfg.Format)
	}
}

func TestLoadProjectConfigInvalidJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	configPath := filepath.Join(dir, ".pagemap.json")
	if err := os.WriteFile(configPath, []byte(`{bad json`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := Defaults()
	if err := loadJSONFile(&cfg, configPath); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadEnvVars(t *testing.T) {
	t.Setenv("PAGEMAP_FORMAT", "diff")
	t.Setenv("PAGEMAP_TIMEOUT_MILLIS", "60000")
	t.Setenv("PAGEMAP_LOCALE", "ja")

	cfg := Defaults()
	loadEnvVars(&cfg)

	if cfg.Format != "diff" {
		t.Errorf("expected format 'diff', got %q", cfg.Format)
	}
	if cfg.TimeoutMillis != 60000 {
		t.Errorf("expected timeout_millis 60000, got %d", cfg.TimeoutMillis)
	}
	if cfg.Locale != "ja" {
		t.Errorf("expected locale 'ja', got %q", cfg.Locale)
	}
}

func TestLoadEnvVarsInvalidTimeoutKeepsDefault(t *testing.T) {
	t.Setenv("PAGEMAP_TIMEOUT_MILLIS", "notanumber")

	cfg := Defaults()
	loadEnvVars(&cfg)

	if cfg.TimeoutMillis != 30_000 {
		t.Errorf("expected default timeout on invalid env, got %d", cfg.TimeoutMillis)
	}
}

func TestConfigPriorityOrder(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, ".pagemap.json")
	if err := os.WriteFile(configPath, []byte(`{"format": "json", "locale": "de"}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("PAGEMAP_FORMAT", "diff")

	cfg, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Format != "diff" {
		t.Errorf("expected env format 'diff' to override project, got %q", cfg.Format)
	}
	if cfg.Locale != "de" {
		t.Errorf("expected project locale 'de' (no env override), got %q", cfg.Locale)
	}
}

func TestFlagOverrides(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, ".pagemap.json")
	if err := os.WriteFile(configPath, []byte(`{"format": "json"}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	overrides := &FlagOverrides{
		Format:        strPtr("diff"),
		TimeoutMillis: intPtr(1000),
	}

	cfg, err := Load(dir, overrides)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Format != "diff" {
		t.Errorf("expected flag format 'diff', got %q", cfg.Format)
	}
	if cfg.TimeoutMillis != 1000 {
		t.Errorf("expected flag timeout_millis 1000, got %d", cfg.TimeoutMillis)
	}
}

func TestValidFormats(t *testing.T) {
	t.Parallel()

	valid := []string{"agent", "json", "diff"}
	for _, f := range valid {
		cfg := Config{Format: f, TimeoutMillis: 1000, MaxHTMLBytes: 1024}
		if err := cfg.Validate(); err != nil {
			t.Errorf("format %q should be valid, got: %v", f, err)
		}
	}

	cfg := Config{Format: "xml", TimeoutMillis: 1000, MaxHTMLBytes: 1024}
	if err := cfg.Validate(); err == nil {
		t.Error("format 'xml' should be invalid")
	}
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	t.Parallel()

	cfg := Config{Format: "agent", TimeoutMillis: 0, MaxHTMLBytes: 1024}
	if err := cfg.Validate(); err == nil {
		t.Error("timeout_millis 0 should be invalid")
	}
}

func TestLoadGlobalConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{"format": "json", "locale": "fr"}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := Defaults()
	if err := loadJSONFile(&cfg, configPath); err != nil {
		t.Fatalf("loadJSONFile failed: %v", err)
	}
	if cfg.Format != "json" {
		t.Errorf("expected format 'json', got %q", cfg.Format)
	}
	if cfg.Locale != "fr" {
		t.Errorf("expected locale 'fr', got %q", cfg.Locale)
	}
}

// Helper functions for creating pointers to values
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
