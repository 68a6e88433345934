package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/visitorlog/internal/account"
	"github.com/dukerupert/visitorlog/internal/database"
	"github.com/dukerupert/visitorlog/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed the admin account, then exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if _, err := account.SeedAdmin(store.NewUserStore(db), cfg.AdminUsername, cfg.AdminPassword, logger); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}

		version, err := database.Version(db)
		if err != nil {
			return err
		}
		logger.Info("database migrated", "path", cfg.DBPath, "version", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
