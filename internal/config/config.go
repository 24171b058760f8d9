package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	LogLevel         string
	HTTPListenAddr   string
	DatabaseURL      string
	DatabaseSchema   string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisTLS         bool
	CatalogCacheTTL  time.Duration
	MetricsNamespace string

	AIPrimary          string
	AIFunctionURL      string
	AIFunctionKey      string
	GeminiAPIKeys      []string
	GeminiModel        string
	GeminiCooldown     time.Duration
	AITimeout          time.Duration
	AISecondaryBaseURL string
	AISecondaryModel   string
	AIRateLimit        int
	AIRateWindow       time.Duration

	DuplicatePolicy    string
	QuoteMarkupPercent float64
	QuoteTaxPercent    float64
	Location           *time.Location
	SessionIdleTTL     time.Duration

	WhatsAppEnabled   bool
	WhatsAppStorePath string
	WhatsAppLogLevel  string
}

// Primary provider kinds accepted in AI_PRIMARY.
const (
	PrimaryFunction = "function"
	PrimaryGemini   = "gemini"
	PrimaryNone     = "none"
)

// Load returns configuration populated from environment variables with fallbacks.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:             getenvDefault("APP_ENV", "development"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		HTTPListenAddr:     getenvDefault("HTTP_LISTEN_ADDR", ":8080"),
		DatabaseURL:        trimmedEnv("DATABASE_URL"),
		DatabaseSchema:     getenvDefault("DATABASE_SCHEMA", "public"),
		RedisAddr:          trimmedEnv("REDIS_ADDR"),
		RedisPassword:      trimmedEnv("REDIS_PASSWORD"),
		MetricsNamespace:   getenvDefault("METRICS_NAMESPACE", "bot_crm"),
		AIPrimary:          strings.ToLower(getenvDefault("AI_PRIMARY", PrimaryFunction)),
		AIFunctionURL:      trimmedEnv("AI_FUNCTION_URL"),
		AIFunctionKey:      trimmedEnv("AI_FUNCTION_KEY"),
		GeminiAPIKeys:      splitAndTrim(trimmedEnv("GEMINI_KEYS")),
		GeminiModel:        getenvDefault("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		AISecondaryBaseURL: getenvDefault("AI_SECONDARY_BASE_URL", "https://api.groq.com/openai/v1"),
		AISecondaryModel:   getenvDefault("AI_SECONDARY_MODEL", "llama-3.3-70b-versatile"),
		DuplicatePolicy:    strings.ToLower(getenvDefault("DUPLICATE_POLICY", "phone")),
		WhatsAppStorePath:  getenvDefault("WHATSAPP_STORE_PATH", "data/wa-store.db"),
		WhatsAppLogLevel:   getenvDefault("WHATSAPP_LOG_LEVEL", "INFO"),
	}

	var err error
	if cfg.CatalogCacheTTL, err = parseDuration("CATALOG_CACHE_TTL", "2m"); err != nil {
		return nil, err
	}
	if cfg.GeminiCooldown, err = parseDuration("GEMINI_COOLDOWN", "1h"); err != nil {
		return nil, err
	}
	if cfg.AITimeout, err = parseDuration("AI_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.AIRateWindow, err = parseDuration("AI_RATE_WINDOW", "10m"); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = parseDuration("SESSION_IDLE_TTL", "12h"); err != nil {
		return nil, err
	}

	if redisDBStr := getenvDefault("REDIS_DB", "0"); redisDBStr != "" {
		db, convErr := strconv.Atoi(redisDBStr)
		if convErr != nil {
			return nil, fmt.Errorf("invalid REDIS_DB value: %w", convErr)
		}
		cfg.RedisDB = db
	}
	cfg.RedisTLS = strings.EqualFold(getenvDefault("REDIS_TLS", "false"), "true")
	cfg.WhatsAppEnabled = strings.EqualFold(getenvDefault("WHATSAPP_ENABLED", "false"), "true")

	limit, convErr := strconv.Atoi(getenvDefault("AI_RATE_LIMIT", "20"))
	if convErr != nil {
		return nil, fmt.Errorf("invalid AI_RATE_LIMIT value: %w", convErr)
	}
	if limit < 0 {
		limit = 0
	}
	cfg.AIRateLimit = limit

	if cfg.QuoteMarkupPercent, err = parsePercent("QUOTE_MARKUP_PERCENT", "20"); err != nil {
		return nil, err
	}
	if cfg.QuoteTaxPercent, err = parsePercent("QUOTE_TAX_PERCENT", "18"); err != nil {
		return nil, err
	}

	tz := getenvDefault("TIMEZONE", "Asia/Kolkata")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	switch cfg.AIPrimary {
	case PrimaryFunction:
		if cfg.AIFunctionURL == "" {
			return nil, fmt.Errorf("AI_FUNCTION_URL is required when AI_PRIMARY=function")
		}
	case PrimaryGemini:
		if len(cfg.GeminiAPIKeys) == 0 {
			return nil, fmt.Errorf("GEMINI_KEYS cannot be empty when AI_PRIMARY=gemini")
		}
	case PrimaryNone:
	default:
		return nil, fmt.Errorf("invalid AI_PRIMARY %q", cfg.AIPrimary)
	}
	switch cfg.DuplicatePolicy {
	case "phone", "phone_or_name":
	default:
		return nil, fmt.Errorf("invalid DUPLICATE_POLICY %q", cfg.DuplicatePolicy)
	}

	cfg.AISecondaryBaseURL = strings.TrimRight(cfg.AISecondaryBaseURL, "/")

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	dur, err := time.ParseDuration(getenvDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return dur, nil
}

func parsePercent(key, fallback string) (float64, error) {
	val, err := strconv.ParseFloat(getenvDefault(key, fallback), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	if val < 0 {
		val = 0
	}
	return val, nil
}

func getenvDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func splitAndTrim(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

func trimmedEnv(key string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return ""
}
