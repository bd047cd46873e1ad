package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AgentConfig        AgentConfig        `json:"agent"`
	LedgerConfig       LedgerConfig       `json:"ledger"`
	AIConfig           AIConfig           `json:"ai"`
	OKXConfig          OKXConfig          `json:"okx"`
	NotificationConfig NotificationConfig `json:"notification"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	ServerConfig       ServerConfig       `json:"server"`
}

// AgentConfig holds trading cycle configuration
type AgentConfig struct {
	Pairs         []string      `json:"pairs"`          // trading pairs, e.g. ["BTC-USDT"]
	Cycles        int           `json:"cycles"`         // cycles per run
	CycleInterval time.Duration `json:"cycle_interval"` // pause between cycles
	Workers       int           `json:"workers"`        // analysis fan-out width
}

// LedgerConfig holds ledger persistence and chart configuration
type LedgerConfig struct {
	Path         string `json:"path"`          // JSON ledger file
	TemplatePath string `json:"template_path"` // README template, optional
	OutputPath   string `json:"output_path"`   // rendered README target
	ChartBaseURL string `json:"chart_base_url"`
	ChartTheme   string `json:"chart_theme"`
}

// AIConfig holds LLM provider configuration
type AIConfig struct {
	Enabled        bool   `json:"enabled"`
	LLMProvider    string `json:"llm_provider"` // "claude", "openai", or "deepseek"
	ClaudeAPIKey   string `json:"claude_api_key"`
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`
	LLMModel       string `json:"llm_model"` // e.g., "claude-3-haiku-20240307"
}

// OKXConfig holds OKX exchange account configuration
type OKXConfig struct {
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase"`
	BaseURL    string `json:"base_url"`
	Simulated  bool   `json:"simulated"` // demo trading account
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // console writer instead of JSON
	Output string `json:"output"` // stdout, stderr, or file path
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// DefaultPairs is the pair set analyzed when none is configured.
var DefaultPairs = []string{"BTC-USDT", "ETH-USDT", "SOL-USDT", "ETH-BTC", "SOL-BTC", "SOL-ETH"}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Agent config
	if pairs := os.Getenv("AGENT_PAIRS"); pairs != "" {
		cfg.AgentConfig.Pairs = splitAndTrim(pairs)
	}
	if len(cfg.AgentConfig.Pairs) == 0 {
		cfg.AgentConfig.Pairs = DefaultPairs
	}
	cfg.AgentConfig.Cycles = getEnvIntOrDefault("AGENT_CYCLES", orInt(cfg.AgentConfig.Cycles, 1))
	cfg.AgentConfig.CycleInterval = getEnvDurationOrDefault("AGENT_CYCLE_INTERVAL", cfg.AgentConfig.CycleInterval)
	cfg.AgentConfig.Workers = getEnvIntOrDefault("AGENT_WORKERS", orInt(cfg.AgentConfig.Workers, 6))

	// Ledger config
	cfg.LedgerConfig.Path = getEnvOrDefault("LEDGER_PATH", orString(cfg.LedgerConfig.Path, "demo.json"))
	cfg.LedgerConfig.TemplatePath = getEnvOrDefault("LEDGER_TEMPLATE_PATH", orString(cfg.LedgerConfig.TemplatePath, "README.tpl.md"))
	cfg.LedgerConfig.OutputPath = getEnvOrDefault("LEDGER_OUTPUT_PATH", orString(cfg.LedgerConfig.OutputPath, "README.md"))
	cfg.LedgerConfig.ChartBaseURL = getEnvOrDefault("CHART_BASE_URL", orString(cfg.LedgerConfig.ChartBaseURL, "https://mermaid.ink"))
	cfg.LedgerConfig.ChartTheme = getEnvOrDefault("CHART_THEME", orString(cfg.LedgerConfig.ChartTheme, "dark"))

	// AI config
	cfg.AIConfig.Enabled = getEnvOrDefault("AI_ENABLED", "true") == "true"
	cfg.AIConfig.LLMProvider = getEnvOrDefault("AI_LLM_PROVIDER", orString(cfg.AIConfig.LLMProvider, "claude"))
	cfg.AIConfig.ClaudeAPIKey = getEnvOrDefault("AI_CLAUDE_API_KEY", cfg.AIConfig.ClaudeAPIKey)
	cfg.AIConfig.OpenAIAPIKey = getEnvOrDefault("AI_OPENAI_API_KEY", cfg.AIConfig.OpenAIAPIKey)
	cfg.AIConfig.DeepSeekAPIKey = getEnvOrDefault("AI_DEEPSEEK_API_KEY", cfg.AIConfig.DeepSeekAPIKey)
	cfg.AIConfig.LLMModel = getEnvOrDefault("AI_LLM_MODEL", orString(cfg.AIConfig.LLMModel, "claude-3-haiku-20240307"))

	// OKX config
	cfg.OKXConfig.APIKey = getEnvOrDefault("OKX_API_KEY", cfg.OKXConfig.APIKey)
	cfg.OKXConfig.SecretKey = getEnvOrDefault("OKX_SECRET_KEY", cfg.OKXConfig.SecretKey)
	cfg.OKXConfig.Passphrase = getEnvOrDefault("OKX_PASSPHRASE", cfg.OKXConfig.Passphrase)
	cfg.OKXConfig.BaseURL = getEnvOrDefault("OKX_BASE_URL", orString(cfg.OKXConfig.BaseURL, "https://www.okx.com"))
	cfg.OKXConfig.Simulated = getEnvOrDefault("OKX_SIMULATED", "true") == "true"

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", boolString(cfg.NotificationConfig.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", boolString(cfg.NotificationConfig.Telegram.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", orString(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", orString(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.Pretty = getEnvOrDefault("LOG_PRETTY", boolString(cfg.LoggingConfig.Pretty)) == "true"

	// Server config
	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", boolString(cfg.ServerConfig.Enabled)) == "true"
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", orInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", orString(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", orString(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", orInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", orInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", orInt(cfg.ServerConfig.ShutdownTimeout, 10))
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func orString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		AgentConfig: AgentConfig{
			Pairs:         DefaultPairs,
			Cycles:        1,
			CycleInterval: 0,
			Workers:       6,
		},
		LedgerConfig: LedgerConfig{
			Path:         "demo.json",
			TemplatePath: "README.tpl.md",
			OutputPath:   "README.md",
			ChartBaseURL: "https://mermaid.ink",
			ChartTheme:   "dark",
		},
		AIConfig: AIConfig{
			Enabled:     true,
			LLMProvider: "claude",
			LLMModel:    "claude-3-haiku-20240307",
		},
		OKXConfig: OKXConfig{
			APIKey:     "your_api_key_here",
			SecretKey:  "your_secret_key_here",
			Passphrase: "your_passphrase_here",
			BaseURL:    "https://www.okx.com",
			Simulated:  true,
		},
		NotificationConfig: NotificationConfig{
			Enabled: false,
			Telegram: TelegramConfig{
				Enabled:  false,
				BotToken: "",
				ChatID:   "",
			},
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			Pretty: false,
		},
		ServerConfig: ServerConfig{
			Enabled:        false,
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: "*",
			ReadTimeout:    30,
			WriteTimeout:   30,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
