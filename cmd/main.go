package main

import (
	"os"
	"strings"

	"kataba/internal/completion"
	"kataba/pkg/config"
	"kataba/pkg/db"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:          "kataba",
	Short:        "Backend for the Kataba conversational assistant",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("driver", "", "database driver (postgres, sqlite), overrides DB_DRIVER")
	rootCmd.PersistentFlags().String("dsn", "", "postgres URL or sqlite path, overrides DATABASE_URL/SQLITE_PATH")
	rootCmd.PersistentFlags().String("log-level", "", "log level, overrides LOG_LEVEL")

	for _, name := range []string{"driver", "dsn", "log-level"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, chatCmd)
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig() *config.Config {
	cfg := config.LoadConfig()

	if v := viper.GetString("driver"); v != "" {
		cfg.DBDriver = v
	}
	if v := viper.GetString("dsn"); v != "" {
		if cfg.DBDriver == db.DriverSQLite {
			cfg.SQLitePath = v
		} else {
			cfg.DatabaseURL = v
		}
	}
	if v := viper.GetString("port"); v != "" {
		cfg.ServerPort = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}

	setupLogging(cfg.LogLevel)
	return cfg
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// newProvider returns nil when no API key is configured so the server can
// still start and report the problem per request.
func newProvider(cfg *config.Config) completion.Provider {
	p, err := completion.NewOpenAI(completion.OpenAIConfig{
		APIKey:         cfg.OpenAIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.OpenAIModel,
		MaxTokens:      cfg.OpenAIMaxTokens,
		Temperature:    cfg.OpenAITemperature,
		DetectLanguage: cfg.LanguageDetection,
	})
	if err != nil {
		logrus.Warnf("completion provider disabled: %v", err)
		return nil
	}
	return p
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
