package main

import (
	"kataba/pkg/db"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()

		database, err := db.NewDB(cfg)
		if err != nil {
			logrus.Errorf("failed to connect to database: %v", err)
			return err
		}
		defer database.Close()

		if err := db.Migrate(cmd.Context(), database); err != nil {
			logrus.Errorf("failed to migrate database: %v", err)
			return err
		}
		logrus.Infof("%s schema is up to date", cfg.DBDriver)
		return nil
	},
}
