package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultGeminiBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// Load reads configuration from an optional YAML file, the environment and
// built-in defaults, in that order of precedence (environment wins).
//
// Environment keys use underscores for nesting, e.g. SERVER_ADDR. The AI
// credential is also read from GEMINI_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY", "AI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "qarunner")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.run_rate_limit", 0.0)
	v.SetDefault("server.run_burst", 2)

	v.SetDefault("ai.base_url", DefaultGeminiBaseURL)
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.bug_detection", true)
	v.SetDefault("ai.request_timeout", "60s")
	v.SetDefault("ai.max_prompt_bytes", 60000)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.allow_headed", false)
	v.SetDefault("browser.wait_timeout", "10s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.install_playwright", true)
	v.SetDefault("browser.screenshot_dir", "screenshots")

	v.SetDefault("history.backend", BackendFile)
	v.SetDefault("history.path", "history/test_history.json")
	v.SetDefault("history.sqlite_path", "history/test_history.db")
	v.SetDefault("history.limit", 100)

	v.SetDefault("targets.allow", []string{"http://*", "https://*"})
	v.SetDefault("targets.deny", []string{})

	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.output_dir", "test_results")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("telemetry.enable", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "qarunner")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}
