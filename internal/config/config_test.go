package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Struct(t *testing.T) {
	config := Config{
		Environment: "test",
		LogLevel:    "debug",
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       5432,
			DBName:     "test_db",
			SQLitePath: "data/test.db",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Telegram: TelegramConfig{
			BotToken:    "test_token",
			BotUsername: "admin_board_bot",
			WebhookURL:  "https://example.com/webhook",
		},
	}

	assert.Equal(t, "test", config.Environment)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, "localhost:6379", config.Redis.Addr())
	assert.Equal(t, "admin_board_bot", config.Telegram.BotUsername)
	assert.False(t, config.IsProduction())
}

func TestLoad_WithDefaults(t *testing.T) {
	os.Clearenv()

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, config.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, "adminboard.db", config.Database.SQLitePath)
	assert.Equal(t, 25, config.Database.MaxOpenConns)
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, 6379, config.Redis.Port)

	assert.Equal(t, "", config.Telegram.BotToken)
	assert.Equal(t, TelegramModePolling, config.Telegram.Mode)
	assert.Equal(t, 300*time.Second, config.Telegram.MaxAuthAge)
	assert.Equal(t, 300*time.Second, config.Telegram.MiniAppMaxAuthAge)
	assert.Equal(t, 5*time.Minute, config.Telegram.SessionTTL)
	assert.Equal(t, 5*time.Minute, config.Telegram.SweepInterval)
	assert.Equal(t, SessionStoreMemory, config.Telegram.SessionStore)

	assert.Equal(t, 5*time.Hour, config.Auth.TokenTTL)
	assert.Equal(t, "Viewer", config.Auth.TelegramDefaultRole)
	assert.Equal(t, developmentJWTSecret, config.Auth.JWTSecret)
	assert.Equal(t, 12, config.Auth.BcryptCost)

	assert.True(t, config.RateLimit.Enabled)
	assert.Equal(t, time.Minute, config.RateLimit.Window)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	os.Clearenv()

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_HOST", "prod-db.example.com")
	t.Setenv("DATABASE_PORT", "5433")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "prod-redis.example.com")
	t.Setenv("TELEGRAM_BOT_TOKEN", "prod_bot_token")
	t.Setenv("TELEGRAM_BOT_USERNAME", "prod_bot")
	t.Setenv("TELEGRAM_MODE", "webhook")
	t.Setenv("TELEGRAM_WEBHOOK_URL", "https://prod-api.example.com/api/telegram/webhook")
	t.Setenv("TELEGRAM_SESSION_STORE", "redis")
	t.Setenv("TELEGRAM_SESSION_TTL", "10m")
	t.Setenv("AUTH_JWT_SECRET", "ci-test-secret-key-should-be-32-chars!!")
	t.Setenv("AUTH_TOKEN_TTL", "2h")

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.True(t, config.IsProduction())
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, "prod-db.example.com", config.Database.Host)
	assert.Equal(t, 5433, config.Database.Port)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "prod-redis.example.com", config.Redis.Host)
	assert.Equal(t, "prod_bot_token", config.Telegram.BotToken)
	assert.Equal(t, "prod_bot", config.Telegram.BotUsername)
	assert.Equal(t, TelegramModeWebhook, config.Telegram.Mode)
	assert.Equal(t, SessionStoreRedis, config.Telegram.SessionStore)
	assert.Equal(t, 10*time.Minute, config.Telegram.SessionTTL)
	assert.Equal(t, "ci-test-secret-key-should-be-32-chars!!", config.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, config.Auth.TokenTTL)
}

func TestLoad_LegacyVariableNames(t *testing.T) {
	os.Clearenv()
	t.Setenv("PORT", "5000")
	t.Setenv("JWT_SECRET", "legacy-secret")
	t.Setenv("TELEGRAM_BOT_USER", "legacy_bot")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, config.Server.Port)
	assert.Equal(t, "legacy-secret", config.Auth.JWTSecret)
	assert.Equal(t, "legacy_bot", config.Telegram.BotUsername)
}

func TestLoad_WithInvalidDatabaseDriver(t *testing.T) {
	os.Clearenv()
	t.Setenv("DATABASE_DRIVER", "mysql")

	config, err := Load()
	assert.Nil(t, config)
	assert.ErrorContains(t, err, "database.driver must be one of")
}

func TestLoad_SQLiteDriverRejectsWhitespacePath(t *testing.T) {
	os.Clearenv()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "   ")

	config, err := Load()
	assert.Nil(t, config)
	assert.ErrorContains(t, err, "database.sqlite_path is required")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown telegram mode",
			env:     map[string]string{"TELEGRAM_MODE": "carrier-pigeon"},
			wantErr: "telegram.mode must be one of",
		},
		{
			name:    "webhook without url",
			env:     map[string]string{"TELEGRAM_MODE": "webhook"},
			wantErr: "telegram.webhook_url is required",
		},
		{
			name:    "redis session store without redis",
			env:     map[string]string{"TELEGRAM_SESSION_STORE": "redis"},
			wantErr: "requires redis.enabled",
		},
		{
			name:    "unknown session store",
			env:     map[string]string{"TELEGRAM_SESSION_STORE": "memcached"},
			wantErr: "telegram.session_store must be one of",
		},
		{
			name:    "unknown default role",
			env:     map[string]string{"AUTH_TELEGRAM_DEFAULT_ROLE": "Owner"},
			wantErr: "auth.telegram_default_role must be one of",
		},
		{
			name:    "production without secret",
			env:     map[string]string{"ENVIRONMENT": "production"},
			wantErr: "auth.jwt_secret is required in production",
		},
		{
			name:    "production with short secret",
			env:     map[string]string{"ENVIRONMENT": "production", "AUTH_JWT_SECRET": "short"},
			wantErr: "at least 32 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := Load()
			assert.Nil(t, config)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_ConfigFileInHomeDir(t *testing.T) {
	os.Clearenv()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".adminboard")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "server:\n  port: 9999\ntelegram:\n  bot_username: file_bot\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "file_bot", config.Telegram.BotUsername)
}

func TestLoad_EnvTakesPrecedenceOverConfigFile(t *testing.T) {
	os.Clearenv()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".adminboard")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9999\n"), 0o644))

	t.Setenv("SERVER_PORT", "7000")
	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, config.Server.Port)
}
