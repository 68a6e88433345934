package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dukerupert/visitorlog/internal/config"
	"github.com/dukerupert/visitorlog/internal/logging"
)

var (
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"port":       config.KeyPort,
	"db":         config.KeyDBPath,
	"log-level":  config.KeyLogLevel,
	"log-format": config.KeyLogFormat,
}

var rootCmd = &cobra.Command{
	Use:   "visitorlog",
	Short: "Front desk visitor sign-in log",
	Long: `visitorlog records visitors signing in and out at a front desk,
keeps deleted records recoverable for a short grace period, and serves
the reception screen and JSON API.

Settings come from VISITORLOG_* environment variables, an optional .env
file and the flags below.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file to load")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (VISITORLOG_DB_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (VISITORLOG_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "text or json (VISITORLOG_LOG_FORMAT)")
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	v := config.NewViper()
	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return nil
}

// bindFlags binds the flags present on cmd. Only flags the user set override
// the environment.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
