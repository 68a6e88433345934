package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "visitors.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, "admin1234", cfg.AdminPassword)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, 10, cfg.LoginRateLimit)
	assert.Empty(t, cfg.WSOrigins)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "backups", cfg.Backup.Dir)
	assert.Equal(t, "us-east-1", cfg.Backup.S3Region)
	assert.Equal(t, "visitorlog/", cfg.Backup.S3Prefix)
	assert.Empty(t, cfg.Backup.S3Bucket)
}

func TestLoadBackupFromEnv(t *testing.T) {
	t.Setenv("VISITORLOG_BACKUP_PASSPHRASE", "gizli")
	t.Setenv("VISITORLOG_S3_BUCKET", "resepsiyon-yedek")
	t.Setenv("VISITORLOG_S3_ENDPOINT", "https://minio.local:9000")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "gizli", cfg.Backup.Passphrase)
	assert.Equal(t, "resepsiyon-yedek", cfg.Backup.S3Bucket)
	assert.Equal(t, "https://minio.local:9000", cfg.Backup.S3Endpoint)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VISITORLOG_PORT", "9090")
	t.Setenv("VISITORLOG_DB_PATH", "/var/lib/visitorlog/v.db")
	t.Setenv("VISITORLOG_LOG_FORMAT", "JSON")
	t.Setenv("VISITORLOG_TIMEZONE", "Europe/Istanbul")
	t.Setenv("VISITORLOG_COOKIE_SECURE", "true")
	t.Setenv("VISITORLOG_WS_ORIGINS", "desk1.local, desk2.local,")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/var/lib/visitorlog/v.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "Europe/Istanbul", cfg.Location.String())
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []string{"desk1.local", "desk2.local"}, cfg.WSOrigins)
}

func TestLoadOverrideWinsOverEnv(t *testing.T) {
	t.Setenv("VISITORLOG_PORT", "9090")
	v := NewViper()
	v.Set(KeyPort, 7070)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"port zero", KeyPort, 0},
		{"port too high", KeyPort, 70000},
		{"unknown timezone", KeyTimezone, "Mars/Olympus_Mons"},
		{"bad log format", KeyLogFormat, "xml"},
		{"empty db path", KeyDBPath, "  "},
		{"empty admin password", KeyAdminPassword, ""},
		{"zero rate limit", KeyLoginRateLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VISITORLOG_ADMIN_USERNAME=resepsiyon\n"), 0o600))

	// Register cleanup for the variable godotenv is about to set.
	t.Setenv("VISITORLOG_ADMIN_USERNAME", "")
	require.NoError(t, os.Unsetenv("VISITORLOG_ADMIN_USERNAME"))

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "resepsiyon", cfg.AdminUsername)
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
