package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bridge.
type Config struct {
	App      AppConfig
	Telegram TelegramConfig
	Desk     DeskConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	WebhookURL            string
}

// TelegramConfig holds chat platform settings.
type TelegramConfig struct {
	BotToken       string
	GroupChatID    string
	APIEndpoint    string
	TimeoutSeconds int
}

// DeskConfig holds ticket system settings.
type DeskConfig struct {
	OrgID          string
	DepartmentID   string
	AccessToken    string
	RefreshToken   string
	ClientID       string
	ClientSecret   string
	APIDomain      string
	AccountsURL    string
	TimeoutSeconds int
}

// PostgresConfig holds DB connection values for the relay journal.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the association store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// CacheConfig bounds the message-to-ticket association cache.
type CacheConfig struct {
	Capacity   int
	TTLMinutes int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig guards admin endpoints.
type AuthConfig struct {
	AdminJWTSecret       string
	AdminTokenTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "desk-bridge"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("PORT", getEnv("APP_PORT", "5000")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			WebhookURL:            strings.TrimRight(os.Getenv("WEBHOOK_URL"), "/"),
		},
		Telegram: TelegramConfig{
			BotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
			GroupChatID:    strings.TrimSpace(os.Getenv("TELEGRAM_GROUP_CHAT_ID")),
			APIEndpoint:    getEnv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
			TimeoutSeconds: getEnvAsInt("TELEGRAM_HTTP_TIMEOUT_SECONDS", 15),
		},
		Desk: DeskConfig{
			OrgID:          os.Getenv("ZOHO_ORG_ID"),
			DepartmentID:   os.Getenv("ZOHO_DEPARTMENT_ID"),
			AccessToken:    os.Getenv("ZOHO_ACCESS_TOKEN"),
			RefreshToken:   os.Getenv("ZOHO_REFRESH_TOKEN"),
			ClientID:       os.Getenv("ZOHO_CLIENT_ID"),
			ClientSecret:   os.Getenv("ZOHO_CLIENT_SECRET"),
			APIDomain:      strings.TrimRight(getEnv("ZOHO_API_DOMAIN", "https://desk.zoho.com"), "/"),
			AccountsURL:    getEnv("ZOHO_ACCOUNTS_URL", "https://accounts.zoho.com/oauth/v2/token"),
			TimeoutSeconds: getEnvAsInt("ZOHO_HTTP_TIMEOUT_SECONDS", 20),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 5)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "desk-bridge:msg:"),
		},
		Cache: CacheConfig{
			Capacity:   getEnvAsInt("ASSOCIATION_CACHE_CAPACITY", 1000),
			TTLMinutes: getEnvAsInt("ASSOCIATION_CACHE_TTL_MINUTES", 24*60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AdminJWTSecret:       os.Getenv("ADMIN_JWT_SECRET"),
			AdminTokenTTLMinutes: getEnvAsInt("ADMIN_TOKEN_TTL_MINUTES", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that cannot be used at all. Missing platform credentials are
// tolerated so the health endpoint can report them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if c.Telegram.GroupChatID != "" {
		if _, err := c.Telegram.ChatID(); err != nil {
			return fmt.Errorf("invalid TELEGRAM_GROUP_CHAT_ID: %w", err)
		}
	}
	if !strings.Contains(c.Telegram.APIEndpoint, "%s") {
		return errors.New("TELEGRAM_API_ENDPOINT must contain %s placeholders for token and method")
	}
	if c.Cache.Capacity < 1 {
		return errors.New("ASSOCIATION_CACHE_CAPACITY must be >= 1")
	}
	if c.Cache.TTLMinutes <= 0 {
		return errors.New("ASSOCIATION_CACHE_TTL_MINUTES must be > 0")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ChatID parses the configured group chat id.
func (t TelegramConfig) ChatID() (int64, error) {
	return strconv.ParseInt(t.GroupChatID, 10, 64)
}

// Configured reports whether the bot token and group are set.
func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.GroupChatID != ""
}

// Timeout returns the outbound HTTP timeout for Telegram calls.
func (t TelegramConfig) Timeout() time.Duration {
	return seconds(t.TimeoutSeconds, 15)
}

// Configured reports whether org, department and an access token are set.
func (d DeskConfig) Configured() bool {
	return d.OrgID != "" && d.DepartmentID != "" && d.AccessToken != ""
}

// Timeout returns the outbound HTTP timeout for desk calls.
func (d DeskConfig) Timeout() time.Duration {
	return seconds(d.TimeoutSeconds, 20)
}

// TTL returns the association retention period.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
