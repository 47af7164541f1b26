package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the process-wide configuration, loaded and validated once at
// startup.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	History   HistoryConfig   `mapstructure:"history"`
	Targets   TargetsConfig   `mapstructure:"targets"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig identifies the running service in logs and traces.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`

	// RunRateLimit is the sustained number of runs per second accepted by
	// POST /api/qa_project (0 disables the limit); RunBurst is the bucket size
	RunRateLimit float64 `mapstructure:"run_rate_limit"`
	RunBurst     int     `mapstructure:"run_burst"`
}

// AIConfig configures the generative model used for reports.
type AIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	BugDetection   bool          `mapstructure:"bug_detection"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxPromptBytes int           `mapstructure:"max_prompt_bytes"`
}

// BrowserConfig configures both browser engines.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	AllowHeaded       bool          `mapstructure:"allow_headed"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	InstallPlaywright bool          `mapstructure:"install_playwright"`
	ChromePath        string        `mapstructure:"chrome_path"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir"`
}

// HistoryConfig selects and configures the history backend.
type HistoryConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Limit      int    `mapstructure:"limit"`
}

// TargetsConfig restricts which URLs may be tested.
type TargetsConfig struct {
	Allow []string `mapstructure:"allow"`
	Deny  []string `mapstructure:"deny"`
}

// ArtifactsConfig controls per-run artifact output.
type ArtifactsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// History backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrMissingAPIKey is returned by Validate when no AI credential is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable is required")

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return ErrMissingAPIKey
	}

	if c.AI.BaseURL != "" {
		if u, err := url.Parse(c.AI.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid ai.base_url: %q", c.AI.BaseURL)
		}
	}

	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if c.Browser.WaitTimeout <= 0 {
		return fmt.Errorf("browser.wait_timeout must be positive")
	}

	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive")
	}

	if c.Browser.ScreenshotDir == "" {
		return fmt.Errorf("browser.screenshot_dir is required")
	}

	switch c.History.Backend {
	case BackendFile:
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the file backend")
		}
	case BackendSQLite:
		if c.History.SQLitePath == "" {
			return fmt.Errorf("history.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid history.backend: %s (must be 'file' or 'sqlite')", c.History.Backend)
	}

	if c.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be positive")
	}

	if c.Server.RunRateLimit < 0 || c.Server.RunBurst < 0 {
		return fmt.Errorf("server run limits cannot be negative")
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts.output_dir is required when artifacts are enabled")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}

	return nil
}
