// Package config reads runtime settings from the environment, an optional
// .env file and command-line flags bound by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "VISITORLOG"

const (
	KeyPort           = "port"
	KeyDBPath         = "db_path"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
	KeyTimezone       = "timezone"
	KeyAdminUsername  = "admin_username"
	KeyAdminPassword  = "admin_password"
	KeyCookieSecure   = "cookie_secure"
	KeyLoginRateLimit = "login_rate_limit"
	KeyWSOrigins      = "ws_origins"

	KeyBackupDir        = "backup_dir"
	KeyBackupPassphrase = "backup_passphrase"
	KeyS3Endpoint       = "s3_endpoint"
	KeyS3Region         = "s3_region"
	KeyS3Bucket         = "s3_bucket"
	KeyS3Prefix         = "s3_prefix"
	KeyS3AccessKey      = "s3_access_key"
	KeyS3SecretKey      = "s3_secret_key"
)

type Config struct {
	Port           int
	DBPath         string
	LogLevel       string
	LogFormat      string
	Timezone       string
	Location       *time.Location
	AdminUsername  string
	AdminPassword  string
	CookieSecure   bool
	LoginRateLimit int
	// WSOrigins lists extra host patterns allowed to open /ws.
	WSOrigins []string

	Backup Backup
}

// Backup configures database snapshots. Uploads are enabled when the bucket
// and both keys are set.
type Backup struct {
	Dir         string
	Passphrase  string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// NewViper returns a viper instance with defaults and VISITORLOG_* env
// lookup configured.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDBPath, "visitors.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyTimezone, "Local")
	v.SetDefault(KeyAdminUsername, "admin")
	v.SetDefault(KeyAdminPassword, "admin1234")
	v.SetDefault(KeyCookieSecure, false)
	v.SetDefault(KeyLoginRateLimit, 10)
	v.SetDefault(KeyWSOrigins, "")
	v.SetDefault(KeyBackupDir, "backups")
	v.SetDefault(KeyBackupPassphrase, "")
	v.SetDefault(KeyS3Endpoint, "")
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyS3Bucket, "")
	v.SetDefault(KeyS3Prefix, "visitorlog/")
	v.SetDefault(KeyS3AccessKey, "")
	v.SetDefault(KeyS3SecretKey, "")
	return v
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetInt(KeyPort),
		DBPath:         strings.TrimSpace(v.GetString(KeyDBPath)),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		Timezone:       strings.TrimSpace(v.GetString(KeyTimezone)),
		AdminUsername:  strings.TrimSpace(v.GetString(KeyAdminUsername)),
		AdminPassword:  v.GetString(KeyAdminPassword),
		CookieSecure:   v.GetBool(KeyCookieSecure),
		LoginRateLimit: v.GetInt(KeyLoginRateLimit),
		WSOrigins:      splitList(v.GetString(KeyWSOrigins)),
		Backup: Backup{
			Dir:         strings.TrimSpace(v.GetString(KeyBackupDir)),
			Passphrase:  v.GetString(KeyBackupPassphrase),
			S3Endpoint:  strings.TrimSpace(v.GetString(KeyS3Endpoint)),
			S3Region:    strings.TrimSpace(v.GetString(KeyS3Region)),
			S3Bucket:    strings.TrimSpace(v.GetString(KeyS3Bucket)),
			S3Prefix:    strings.TrimSpace(v.GetString(KeyS3Prefix)),
			S3AccessKey: v.GetString(KeyS3AccessKey),
			S3SecretKey: v.GetString(KeyS3SecretKey),
		},
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range 1-65535", cfg.Port)
	}
	if cfg.DBPath == "" {
		return nil, errors.New("db path is empty")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("log format %q: want text or json", cfg.LogFormat)
	}
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil, errors.New("admin username and password must be set")
	}
	if cfg.LoginRateLimit < 1 {
		return nil, fmt.Errorf("login rate limit %d must be positive", cfg.LoginRateLimit)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
