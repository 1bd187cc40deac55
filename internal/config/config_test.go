package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-pricing/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	d := types.DefaultConfig()
	assert.Equal(t, d.Timeout, cfg.Timeout)
	assert.Equal(t, d.RequestDelay, cfg.RequestDelay)
	assert.Equal(t, d.MaxConcurrentSessions, cfg.MaxConcurrentSessions)
	assert.True(t, cfg.UseHeadlessBrowser)
	assert.Equal(t, d.Retry, cfg.Retry)
	assert.Equal(t, "json", cfg.ExportFormat)
	assert.Equal(t, types.Bounds{Min: 50, Max: 5000}, cfg.BoundsFor(types.ProductWindows))

	require.Len(t, cfg.Suppliers, 3)
	s2, ok := cfg.Supplier("supplier2")
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, s2.RateLimit)
	assert.True(t, s2.LoginRequired)
	assert.Equal(t, []string{"single", "double", "triple", "low-e", "tempered"}, s2.Upgrades)
	assert.True(t, s2.Credentials.Empty())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "config.yaml", `
max_sessions: 4
export_format: CSV
retry:
  max_attempts: 5
  base_delay: 1s
suppliers:
  supplier1:
    base_url: https://s1.example
    credentials:
      username: buyer
      password: secret
    retry:
      max_attempts: 2
price_bounds:
  windows:
    min: 10
    max: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxConcurrentSessions)
	assert.Equal(t, "csv", cfg.ExportFormat)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 15*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, types.Bounds{Min: 10, Max: 20}, cfg.BoundsFor(types.ProductWindows))

	s1, ok := cfg.Supplier("supplier1")
	require.True(t, ok)
	assert.Equal(t, "https://s1.example", s1.BaseURL)
	assert.Equal(t, types.Credentials{Username: "buyer", Password: "secret"}, s1.Credentials)
	assert.Equal(t, 2*time.Second, s1.RateLimit)
	require.NotNil(t, s1.Retry)
	assert.Equal(t, 2, s1.RetryPolicyOr(cfg.Retry).MaxAttempts)

	s3, ok := cfg.Supplier("supplier3")
	require.True(t, ok)
	assert.Nil(t, s3.Retry)
	assert.Equal(t, 5, s3.RetryPolicyOr(cfg.Retry).MaxAttempts)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PRICING_MAX_SESSIONS", "5")
	t.Setenv("PRICING_SUPPLIERS_SUPPLIER2_BASE_URL", "https://s2.example")
	t.Setenv("SUPPLIER_1_USERNAME", "alice")
	t.Setenv("SUPPLIER_1_PASSWORD", "pw")
	t.Setenv("HEADLESS_MODE", "false")
	t.Setenv("MAX_RETRIES", "4")
	t.Setenv("TIMEOUT_SECONDS", "45")
	t.Setenv("DELAY_BETWEEN_REQUESTS", "2.5")
	t.Setenv("EXPORT_FORMAT", "excel")
	t.Setenv("OUTPUT_DIRECTORY", "./data/exports")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxConcurrentSessions)
	assert.False(t, cfg.UseHeadlessBrowser)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, "excel", cfg.ExportFormat)
	assert.Equal(t, "./data/exports", cfg.OutputDir)

	s1, _ := cfg.Supplier("supplier1")
	assert.Equal(t, types.Credentials{Username: "alice", Password: "pw"}, s1.Credentials)
	s2, _ := cfg.Supplier("supplier2")
	assert.Equal(t, "https://s2.example", s2.BaseURL)
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("EXPORT_FORMAT", "excel")
	t.Setenv("PRICING_EXPORT_FORMAT", "csv")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.ExportFormat)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad format", "export_format: pdf\n", "export format"},
		{"no sessions", "max_sessions: 0\n", "max_sessions"},
		{"inverted bounds", "price_bounds:\n  doors:\n    min: 900\n    max: 100\n", "price bounds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("legacy seconds", func(t *testing.T) {
		t.Setenv("TIMEOUT_SECONDS", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "TIMEOUT_SECONDS")
	})
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "SUPPLIER_2_USERNAME=bob\n")
	t.Setenv("SUPPLIER_2_USERNAME", "")
	os.Unsetenv("SUPPLIER_2_USERNAME")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "bob", os.Getenv("SUPPLIER_2_USERNAME"))
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
