// Package config loads chat client and tool server settings from a YAML file,
// CHAT_-prefixed environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. CHAT_MODEL__NAME maps to model.name.
const EnvPrefix = "CHAT_"

// DefaultPath is the config file read when none is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Model        ModelConfig        `koanf:"model"`
	Tools        ToolsConfig        `koanf:"tools"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Session      SessionConfig      `koanf:"session"`
	ToolServer   ToolServerConfig   `koanf:"toolserver"`
	Logging      LoggingConfig      `koanf:"logging"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// ModelConfig selects the model backend.
type ModelConfig struct {
	Provider  string        `koanf:"provider"` // ollama, openai, anthropic
	BaseURL   string        `koanf:"base_url"`
	Name      string        `koanf:"name"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int           `koanf:"max_tokens"`
}

// ToolsConfig describes how the chat client reaches the tool server.
type ToolsConfig struct {
	Endpoint       string        `koanf:"endpoint"` // MCP SSE URL
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	CallTimeout    time.Duration `koanf:"call_timeout"`
}

type OrchestratorConfig struct {
	MaxRounds     int  `koanf:"max_rounds"`
	ParallelTools bool `koanf:"parallel_tools"`
}

type SessionConfig struct {
	Workers      int           `koanf:"workers"`
	ReplyTimeout time.Duration `koanf:"reply_timeout"`
}

type ToolServerConfig struct {
	Address        string `koanf:"address"`
	Port           int    `koanf:"port"`
	DatasetPath    string `koanf:"dataset_path"`
	WeatherBaseURL string `koanf:"weather_base_url"`
	UserAgent      string `koanf:"user_agent"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or text
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":                 8501,
	"model.provider":              "ollama",
	"model.timeout":               "30s",
	"model.max_tokens":            1024,
	"tools.endpoint":              "http://localhost:8080/sse",
	"tools.connect_timeout":       "10s",
	"tools.call_timeout":          "30s",
	"orchestrator.max_rounds":     8,
	"orchestrator.parallel_tools": false,
	"session.workers":             4,
	"session.reply_timeout":       "120s",
	"toolserver.address":          "0.0.0.0",
	"toolserver.port":             8080,
	"toolserver.dataset_path":     "data/dataset.csv",
	"toolserver.weather_base_url": "https://api.weather.gov",
	"toolserver.user_agent":       "weather-app/1.0",
	"logging.level":               "info",
	"logging.format":              "json",
	"telemetry.enabled":           false,
	"telemetry.service_name":      "mcp-chat",
}

var ollamaDefaults = map[string]any{
	"model.base_url": "http://localhost:11434",
	"model.name":     "qwen3:1.7b",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (a missing file is fine), then environment overrides, then
// fills defaults for anything still unset.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// The tool client historically read its endpoint from MCP_SSE_URL.
	if url := os.Getenv("MCP_SSE_URL"); url != "" {
		k.Set("tools.endpoint", url)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
	// The endpoint and model defaults only make sense for a local Ollama.
	if k.String("model.provider") == "ollama" {
		for key, value := range ollamaDefaults {
			if !k.Exists(key) {
				k.Set(key, value)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Model.APIKey = substituteEnvVars(cfg.Model.APIKey)
	cfg.Model.BaseURL = substituteEnvVars(cfg.Model.BaseURL)
	cfg.Tools.Endpoint = substituteEnvVars(cfg.Tools.Endpoint)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the client and server cannot run with.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Orchestrator.MaxRounds < 1 {
		return fmt.Errorf("orchestrator.max_rounds must be at least 1, got %d", c.Orchestrator.MaxRounds)
	}
	if c.Session.Workers < 1 {
		return fmt.Errorf("session.workers must be at least 1, got %d", c.Session.Workers)
	}
	for name, d := range map[string]time.Duration{
		"model.timeout":         c.Model.Timeout,
		"tools.connect_timeout": c.Tools.ConnectTimeout,
		"tools.call_timeout":    c.Tools.CallTimeout,
		"session.reply_timeout": c.Session.ReplyTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
