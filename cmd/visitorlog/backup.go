package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dukerupert/visitorlog/internal/backup"
	"github.com/dukerupert/visitorlog/internal/config"
	"github.com/dukerupert/visitorlog/internal/database"
)

func backupService(c *config.Config) *backup.Service {
	b := c.Backup
	return backup.New(backup.Config{
		Dir:        b.Dir,
		Passphrase: b.Passphrase,
		S3: backup.S3Config{
			Endpoint:  b.S3Endpoint,
			Region:    b.S3Region,
			Bucket:    b.S3Bucket,
			Prefix:    b.S3Prefix,
			AccessKey: b.S3AccessKey,
			SecretKey: b.S3SecretKey,
		},
	}, logger.With("component", "backup"))
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a snapshot of the database to the backup directory and bucket",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		svc := backupService(cfg)
		if cfg.Backup.Passphrase == "" {
			logger.Warn("backup passphrase not set, snapshot holds national ids in clear text")
		}
		res, err := svc.Create(cmd.Context(), db)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Name)
		return nil
	},
}

var restoreFromS3 bool

var restoreCmd = &cobra.Command{
	Use:   "restore <file-or-key>",
	Short: "Replace the database with a snapshot; stop the server first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		if restoreFromS3 {
			tmpDir, err := os.MkdirTemp("", "visitorlog-restore-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmpDir)

			local := filepath.Join(tmpDir, filepath.Base(src))
			if err := backupService(cfg).Fetch(cmd.Context(), src, local); err != nil {
				return err
			}
			src = local
		}

		if err := backup.Restore(src, cfg.DBPath, cfg.Backup.Passphrase); err != nil {
			return fmt.Errorf("restore: %w", err)
		}

		// Bring an older snapshot up to the current schema.
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open restored database: %w", err)
		}
		defer db.Close()

		version, err := database.Version(db)
		if err != nil {
			return err
		}
		logger.Info("database restored", "from", args[0], "path", cfg.DBPath, "version", version)
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreFromS3, "s3", false, "treat the argument as a bucket key and download it first")
	rootCmd.AddCommand(backupCmd, restoreCmd)
}
