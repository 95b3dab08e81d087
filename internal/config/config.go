package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// Database
	DatabaseURL string `json:"database_url"`

	// Pipeline
	MaxSchemaTables     int  `json:"max_schema_tables"`
	RowLimit            int  `json:"row_limit"`
	QueryTimeoutSeconds int  `json:"query_timeout_seconds"`
	SessionMaxTurns     int  `json:"session_max_turns"`
	ContextTurns        int  `json:"context_turns"`
	EnableExplanations  bool `json:"enable_explanations"`
	EnablePersonalize   bool `json:"enable_personalization"`
	EnableAuditLogging  bool `json:"enable_audit_logging"`

	// AI / LLM
	AnthropicAPIKey  string `json:"anthropic_api_key"`
	AnthropicBaseURL string `json:"anthropic_base_url"` // override for custom proxy
	Model            string `json:"model"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                DefaultHost,
		Port:                DefaultPort,
		Environment:         DefaultEnvironment,
		APIPrefix:           DefaultAPIPrefix,
		LogLevel:            DefaultLogLevel,
		CORSOrigins:         DefaultCORSOrigins,
		APIKeyHeader:        "X-API-Key",
		EnableAuth:          true,
		RateLimitPerMinute:  DefaultRateLimitPerMinute,
		MaxSchemaTables:     DefaultMaxSchemaTables,
		RowLimit:            DefaultRowLimit,
		QueryTimeoutSeconds: DefaultQueryTimeoutSeconds,
		SessionMaxTurns:     DefaultSessionMaxTurns,
		ContextTurns:        DefaultContextTurns,
		EnableExplanations:  true,
		EnablePersonalize:   true,
		EnableAuditLogging:  true,
	}

	// Load from JSON config file if specified
	if path := getEnv("TALK2SQL_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("TALK2SQL_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("TALK2SQL_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("TALK2SQL_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("TALK2SQL_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("TALK2SQL_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("DATABASE_URL", ""); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("TALK2SQL_MODEL", ""); v != "" {
		cfg.Model = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
	if v := getEnv("TALK2SQL_QUERY_TIMEOUT", ""); v != "" {
		if t, err := strconv.Atoi(v); err == nil {
			cfg.QueryTimeoutSeconds = t
		}
	}
	if v := getEnv("TALK2SQL_MAX_SCHEMA_TABLES", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSchemaTables = n
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
