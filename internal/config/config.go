package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// DefaultConfigPath is read when no --config flag is given. A missing
// default file is not an error.
const DefaultConfigPath = "config/storage.yaml"

// Storage provider types
const (
	StorageFilesystem = "filesystem"
	StorageDatabase   = "database"
	StorageS3         = "s3"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Display DisplayConfig `mapstructure:"display"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	Type       string           `mapstructure:"type"`
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Database   DatabaseConfig   `mapstructure:"database"`
	// Watch clears the cache when the archive tree changes.
	Watch bool `mapstructure:"watch"`
}

type FilesystemConfig struct {
	Path           string `mapstructure:"path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the scan timeout.
func (f FilesystemConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

type CacheConfig struct {
	// TTLSeconds <= 0 disables caching.
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// TTL returns the cache lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type DisplayConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the display timezone.
func (d DisplayConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid display timezone %q", d.Timezone)
	}
	return loc, nil
}

// AdminConfig seeds the admin account guarding /api/admin.
type AdminConfig struct {
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	TOTPSecret string `mapstructure:"totp_secret"`
}

// Enabled reports whether admin credentials were provided.
func (a AdminConfig) Enabled() bool {
	return a.User != "" && a.Password != ""
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

// envBindings maps config keys to their environment variables, in
// precedence order.
var envBindings = map[string][]string{
	"server.host":                        {"CIVERS_SERVER_HOST", "HOST"},
	"server.port":                        {"CIVERS_SERVER_PORT", "PORT"},
	"storage.type":                       {"CIVERS_STORAGE_TYPE"},
	"storage.filesystem.path":            {"CIVERS_FILESYSTEM_PATH"},
	"storage.filesystem.timeout_seconds": {"CIVERS_FILESYSTEM_TIMEOUT_SECONDS"},
	"storage.cache.ttl_seconds":          {"CIVERS_CACHE_TTL_SECONDS", "SCANNER_CACHE_TTL"},
	"storage.database.path":              {"CIVERS_DATABASE_PATH", "DB_PATH"},
	"storage.watch":                      {"CIVERS_STORAGE_WATCH"},
	"display.timezone":                   {"CIVERS_DISPLAY_TIMEZONE"},
	"admin.user":                         {"CIVERS_ADMIN_USER"},
	"admin.password":                     {"CIVERS_ADMIN_PASSWORD"},
	"admin.totp_secret":                  {"CIVERS_ADMIN_TOTP_SECRET"},
	"log.level":                          {"CIVERS_LOG_LEVEL", "LOG_LEVEL"},
	"log.dev":                            {"CIVERS_LOG_DEV"},
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("storage.type", StorageFilesystem)
	v.SetDefault("storage.filesystem.path", "archives")
	v.SetDefault("storage.filesystem.timeout_seconds", 10)
	v.SetDefault("storage.cache.ttl_seconds", 60)
	v.SetDefault("storage.database.path", "data/archive-ui.db")
	v.SetDefault("storage.watch", true)
	v.SetDefault("display.timezone", "UTC")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)
}

// Load reads configuration into a Config. Values come, lowest precedence
// first, from defaults, the YAML file at path, the environment and flags
// set on the command line. An explicit path must exist; the default one
// may not.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrapf(err, "bind env for %s", key)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Storage.Type = strings.ToLower(strings.TrimSpace(cfg.Storage.Type))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}

// Validate checks value ranges and the storage type.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.Newf("invalid port (must be between 1-65535 inclusive): %d", c.Server.Port)
	}
	switch c.Storage.Type {
	case StorageFilesystem, StorageDatabase, StorageS3:
	default:
		return errors.Newf("unknown storage provider type: %q", c.Storage.Type)
	}
	if c.Storage.Type == StorageFilesystem && c.Storage.Filesystem.Path == "" {
		return errors.New("storage.filesystem.path is required")
	}
	if c.Storage.Filesystem.TimeoutSeconds < 0 {
		return errors.Newf("storage.filesystem.timeout_seconds must not be negative: %d", c.Storage.Filesystem.TimeoutSeconds)
	}
	if c.Storage.Database.Path == "" {
		return errors.New("storage.database.path is required")
	}
	if _, err := c.Display.Location(); err != nil {
		return err
	}
	if c.Admin.TOTPSecret != "" && !c.Admin.Enabled() {
		return errors.New("admin.totp_secret requires admin.user and admin.password")
	}
	return nil
}
