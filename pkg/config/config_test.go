package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MAX_GUEST_MESSAGES", "")
	t.Setenv("DB_DRIVER", "")

	cfg := LoadConfig()

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5, cfg.MaxGuestMessages)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, 500, cfg.OpenAIMaxTokens)
	assert.InDelta(t, 0.7, cfg.OpenAITemperature, 0.0001)
	assert.Equal(t, 60*time.Second, cfg.CompletionTimeout)
	assert.Empty(t, cfg.OpenAIKey)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MAX_GUEST_MESSAGES", "3")
	t.Setenv("COMPLETION_TIMEOUT", "5s")
	t.Setenv("LANGUAGE_DETECTION", "true")
	t.Setenv("SERVER_PORT", "9090")

	cfg := LoadConfig()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 3, cfg.MaxGuestMessages)
	assert.Equal(t, 5*time.Second, cfg.CompletionTimeout)
	assert.True(t, cfg.LanguageDetection)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_GUEST_MESSAGES", "many")
	t.Setenv("PERSIST_TIMEOUT", "soon")

	cfg := LoadConfig()

	assert.Equal(t, 5, cfg.MaxGuestMessages)
	assert.Equal(t, 15*time.Second, cfg.PersistTimeout)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresUser:     "kataba",
		PostgresPassword: "secret",
		PostgresDB:       "chat",
	}
	assert.Equal(t, "host=db port=5433 user=kataba password=secret dbname=chat sslmode=disable", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://u:p@h/d"
	assert.Equal(t, "postgres://u:p@h/d", cfg.PostgresDSN())
}
