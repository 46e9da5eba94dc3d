package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DBDriver         string
	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	SQLitePath       string

	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAIMaxTokens   int
	OpenAITemperature float32
	LanguageDetection bool

	CompletionTimeout time.Duration
	PersistTimeout    time.Duration
	MaxGuestMessages  int
	GuestSessionTTL   time.Duration

	JWTSigningKey string
	JWTTTL        time.Duration

	ServerHost string
	ServerPort string
	CORSOrigin string
	LogLevel   string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Warn(".env file not found, using environment only")
	}

	return &Config{
		DBDriver:          getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		PostgresHost:      getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:      getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:      getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:  getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:        getEnv("POSTGRES_DB", "kataba"),
		SQLitePath:        getEnv("SQLITE_PATH", "kataba.db"),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIMaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 500),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
		LanguageDetection: getEnvBool("LANGUAGE_DETECTION", false),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT", 60*time.Second),
		PersistTimeout:    getEnvDuration("PERSIST_TIMEOUT", 15*time.Second),
		MaxGuestMessages:  getEnvInt("MAX_GUEST_MESSAGES", 5),
		GuestSessionTTL:   getEnvDuration("GUEST_SESSION_TTL", 24*time.Hour),
		JWTSigningKey:     getEnv("JWT_SIGNING_KEY", "change-me-signing-key"),
		JWTTTL:            getEnvDuration("JWT_TTL", 24*time.Hour),
		ServerHost:        getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		CORSOrigin:        getEnv("CORS_ORIGIN", "*"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// PostgresDSN returns DATABASE_URL when set, otherwise a key/value DSN built
// from the POSTGRES_* settings.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB)
}

func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("invalid integer in %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float32) float32 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 32)
	if err != nil {
		logrus.Warnf("invalid number in %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return float32(f)
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("invalid boolean in %s=%q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logrus.Warnf("invalid duration in %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
