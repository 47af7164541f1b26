package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "test-key", cfg.AI.APIKey)
	assert.Equal(t, DefaultGeminiBaseURL, cfg.AI.BaseURL)
	assert.Equal(t, "gemini-1.5-flash", cfg.AI.Model)
	assert.True(t, cfg.AI.BugDetection)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Zero(t, cfg.Server.RunRateLimit)
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "screenshots", cfg.Browser.ScreenshotDir)
	assert.Equal(t, BackendFile, cfg.History.Backend)
	assert.Equal(t, "history/test_history.json", cfg.History.Path)
	assert.Equal(t, 100, cfg.History.Limit)
	assert.Equal(t, []string{"http://*", "https://*"}, cfg.Targets.Allow)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qarunner.yaml")
	content := `
server:
  addr: ":8080"
browser:
  wait_timeout: 5s
history:
  backend: sqlite
  limit: 25
ai:
  model: gemini-2.0-flash
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("AI_MODEL", "gemini-env-model")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, BackendSQLite, cfg.History.Backend)
	assert.Equal(t, 25, cfg.History.Limit)
	assert.Equal(t, "gemini-env-model", cfg.AI.Model)
	assert.Equal(t, "from-env", cfg.AI.APIKey)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.AI.APIKey = ""

	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "bad base url",
			mutate: func(c *Config) { c.AI.BaseURL = "not a url" },
			errMsg: "invalid ai.base_url",
		},
		{
			name:   "missing model",
			mutate: func(c *Config) { c.AI.Model = "" },
			errMsg: "ai.model is required",
		},
		{
			name:   "non-positive wait timeout",
			mutate: func(c *Config) { c.Browser.WaitTimeout = 0 },
			errMsg: "browser.wait_timeout must be positive",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.History.Backend = "redis" },
			errMsg: "invalid history.backend",
		},
		{
			name:   "zero history limit",
			mutate: func(c *Config) { c.History.Limit = 0 },
			errMsg: "history.limit must be positive",
		},
		{
			name:   "artifacts without dir",
			mutate: func(c *Config) { c.Artifacts.Enabled = true; c.Artifacts.OutputDir = "" },
			errMsg: "artifacts.output_dir is required",
		},
		{
			name:   "sample ratio out of range",
			mutate: func(c *Config) { c.Telemetry.SampleRatio = 1.5 },
			errMsg: "telemetry.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
