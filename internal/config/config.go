package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Sentry      SentryConfig    `mapstructure:"sentry"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds SQL storage settings for both supported drivers.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
	ApplicationName string `mapstructure:"application_name"`
	ConnectTimeout  int    `mapstructure:"connect_timeout"`
	SQLitePath      string `mapstructure:"sqlite_path"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TelegramConfig holds bot credentials and the login flow timings.
type TelegramConfig struct {
	BotToken          string        `mapstructure:"bot_token"`
	BotUsername       string        `mapstructure:"bot_username"`
	Mode              string        `mapstructure:"mode"`
	APIBaseURL        string        `mapstructure:"api_base_url"`
	WebhookURL        string        `mapstructure:"webhook_url"`
	WebhookSecret     string        `mapstructure:"webhook_secret"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout"`
	MaxAuthAge        time.Duration `mapstructure:"max_auth_age"`
	MiniAppMaxAuthAge time.Duration `mapstructure:"miniapp_max_auth_age"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SessionStore      string        `mapstructure:"session_store"`
}

// AuthConfig holds credential issuing settings.
type AuthConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret"`
	TokenTTL            time.Duration `mapstructure:"token_ttl"`
	TelegramDefaultRole string        `mapstructure:"telegram_default_role"`
	BcryptCost          int           `mapstructure:"bcrypt_cost"`
}

// SentryConfig holds error reporting settings. An empty DSN disables Sentry.
type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	Release          string  `mapstructure:"release"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// RateLimitConfig bounds requests against the auth endpoints.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

const (
	TelegramModePolling  = "polling"
	TelegramModeWebhook  = "webhook"
	TelegramModeDisabled = "disabled"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	developmentJWTSecret = "development-only-secret-change-me"
	minJWTSecretLength   = 32
)

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Addr returns the redis host:port pair.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from defaults, an optional config file, a .env
// file and the process environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".adminboard"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "change-me-in-production")
	v.SetDefault("database.dbname", "adminboard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")
	v.SetDefault("database.application_name", "adminboard-api")
	v.SetDefault("database.connect_timeout", 10)
	v.SetDefault("database.sqlite_path", "adminboard.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.bot_username", "")
	v.SetDefault("telegram.mode", TelegramModePolling)
	v.SetDefault("telegram.api_base_url", "https://api.telegram.org")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.poll_timeout", "30s")
	v.SetDefault("telegram.max_auth_age", "300s")
	v.SetDefault("telegram.miniapp_max_auth_age", "300s")
	v.SetDefault("telegram.session_ttl", "5m")
	v.SetDefault("telegram.sweep_interval", "5m")
	v.SetDefault("telegram.session_store", SessionStoreMemory)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "5h")
	v.SetDefault("auth.telegram_default_role", "Viewer")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.traces_sample_rate", 0.1)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", "1m")
}

// bindLegacyEnv accepts the short variable names used by older deployments.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("database.sqlite_path", "DATABASE_SQLITE_PATH", "SQLITE_PATH")
	_ = v.BindEnv("database.database_url", "DATABASE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("telegram.bot_username", "TELEGRAM_BOT_USERNAME", "TELEGRAM_BOT_USER")
	_ = v.BindEnv("sentry.dsn", "SENTRY_DSN")
}

func (c *Config) validate() error {
	driver := strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("database.driver must be one of sqlite, postgres (got %q)", c.Database.Driver)
	}
	c.Database.Driver = driver
	if driver == "sqlite" && strings.TrimSpace(c.Database.SQLitePath) == "" {
		return errors.New("database.sqlite_path is required when database.driver is sqlite")
	}

	switch c.Telegram.Mode {
	case TelegramModePolling, TelegramModeWebhook, TelegramModeDisabled:
	default:
		return fmt.Errorf("telegram.mode must be one of polling, webhook, disabled (got %q)", c.Telegram.Mode)
	}
	if c.Telegram.Mode == TelegramModeWebhook && c.Telegram.WebhookURL == "" {
		return errors.New("telegram.webhook_url is required when telegram.mode is webhook")
	}

	switch c.Telegram.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if !c.Redis.Enabled {
			return errors.New("telegram.session_store redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("telegram.session_store must be one of memory, redis (got %q)", c.Telegram.SessionStore)
	}
	if c.Telegram.SessionTTL <= 0 || c.Telegram.SweepInterval <= 0 {
		return errors.New("telegram.session_ttl and telegram.sweep_interval must be positive")
	}

	switch c.Auth.TelegramDefaultRole {
	case "Admin", "Editor", "Viewer":
	default:
		return fmt.Errorf("auth.telegram_default_role must be one of Admin, Editor, Viewer (got %q)", c.Auth.TelegramDefaultRole)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}

	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("auth.jwt_secret is required in production")
		}
		c.Auth.JWTSecret = developmentJWTSecret
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters in production", minJWTSecretLength)
	}

	return nil
}
