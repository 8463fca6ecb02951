// Package config loads settings for the ct command from defaults, an
// optional YAML config file, CT_* environment variables and bound flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys
const (
	KeyDB              = "db"
	KeyExportDir       = "export.dir"
	KeyServerPort      = "server.port"
	KeyCaseSensitive   = "search.case_sensitive"
	KeyCreateIfMissing = "import.create_if_missing"
	KeyLogFile         = "log.file"
	KeyLogMaxSizeMB    = "log.max_size_mb"
	KeyLogMaxBackups   = "log.max_backups"
	KeyLogMaxAgeDays   = "log.max_age_days"
	KeyBackupBucket    = "backup.bucket"
	KeyBackupPrefix    = "backup.prefix"
	KeyBackupRegion    = "backup.region"
	KeyBackupEndpoint  = "backup.endpoint"
	KeyBackupPathStyle = "backup.path_style"
)

// DefaultDir is the directory holding the database and the config file.
const DefaultDir = ".contacts"

// Config is the resolved configuration.
type Config struct {
	DB              string
	ExportDir       string
	ServerPort      int
	CaseSensitive   bool
	CreateIfMissing bool
	Log             LogConfig
	Backup          BackupConfig

	// File is the config file that was read, empty when none was found.
	File string
}

// LogConfig controls where log output goes and how it is rotated.
type LogConfig struct {
	// File is the log file path (empty = stderr)
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// BackupConfig locates the S3 bucket holding snapshots.
type BackupConfig struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyDB, filepath.Join(DefaultDir, "contacts.db"))
	v.SetDefault(KeyExportDir, filepath.Join("data", "contacts"))
	v.SetDefault(KeyServerPort, 8000)
	v.SetDefault(KeyCaseSensitive, false)
	v.SetDefault(KeyCreateIfMissing, false)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)
	v.SetDefault(KeyBackupBucket, "")
	v.SetDefault(KeyBackupPrefix, "contacts")
	v.SetDefault(KeyBackupRegion, "us-east-1")
	v.SetDefault(KeyBackupEndpoint, "")
	v.SetDefault(KeyBackupPathStyle, false)

	v.SetEnvPrefix("CT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// BindFlag binds a command-line flag to a key. The flag wins over the file
// and environment only when it was set explicitly.
func BindFlag(v *viper.Viper, key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for %s", key)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
	}
	return nil
}

// Load reads the config file and resolves every key. An explicit path must
// exist; without one, .contacts/config.yaml is read when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		DB:              v.GetString(KeyDB),
		ExportDir:       v.GetString(KeyExportDir),
		ServerPort:      v.GetInt(KeyServerPort),
		CaseSensitive:   v.GetBool(KeyCaseSensitive),
		CreateIfMissing: v.GetBool(KeyCreateIfMissing),
		Log: LogConfig{
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAgeDays),
		},
		Backup: BackupConfig{
			Bucket:    v.GetString(KeyBackupBucket),
			Prefix:    v.GetString(KeyBackupPrefix),
			Region:    v.GetString(KeyBackupRegion),
			Endpoint:  v.GetString(KeyBackupEndpoint),
			PathStyle: v.GetBool(KeyBackupPathStyle),
		},
		File: v.ConfigFileUsed(),
	}

	if cfg.DB == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyDB)
	}
	if cfg.ServerPort < 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("%s out of range: %d", KeyServerPort, cfg.ServerPort)
	}
	return cfg, nil
}

// WriteDefault writes a commented config file with the default values to
// path unless one already exists. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultFile), 0644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}

const defaultFile = `# ct configuration. Environment variables override these values
# (CT_DB, CT_EXPORT_DIR, CT_SERVER_PORT, ...).

db: .contacts/contacts.db

export:
  dir: data/contacts

server:
  port: 8000

search:
  # Match search terms exactly instead of ignoring ASCII case.
  case_sensitive: false

import:
  create_if_missing: false

log:
  # Empty logs to stderr.
  file: ""
  max_size_mb: 10
  max_backups: 3
  max_age_days: 28

backup:
  # S3 bucket for ct backup. Credentials come from the usual AWS
  # environment variables or shared config.
  bucket: ""
  prefix: contacts
  region: us-east-1
  # Set for MinIO or other S3-compatible servers.
  endpoint: ""
  path_style: false
`
