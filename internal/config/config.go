// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName                    string   `mapstructure:"appname"`
	AppPort                    string   `mapstructure:"appport"`
	Environment                string   `mapstructure:"environment"`
	LogLevel                   LogLevel `mapstructure:"loglevel"`
	PrivateKey                 string   `mapstructure:"privatekey"`
	LoginSessionTimeoutSeconds int      `mapstructure:"loginsessiontimeoutseconds"`
	TokenTTLSeconds            int      `mapstructure:"tokenttlseconds"`
	Domain                     string   `mapstructure:"domain"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	GeoLiteAccountID      string `mapstructure:"geoliteaccountid"`
	GeoLiteLicenseKey     string `mapstructure:"geolitelicensekey"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`
	AuditLogFile     string `mapstructure:"auditlogfile"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Profile cache settings
	ProfileCacheTTLSeconds int    `mapstructure:"profilecachettlseconds"`
	RedisAddr              string `mapstructure:"redisaddr"`
	RedisPassword          string `mapstructure:"redispassword"`
	RedisDB                int    `mapstructure:"redisdb"`

	// Avatar settings
	AvatarURLPrefix   string `mapstructure:"avatarurlprefix"`
	AvatarMaxBytes    int64  `mapstructure:"avatarmaxbytes"`
	AvatarEdgePixels  int    `mapstructure:"avataredgepixels"`
	AvatarJPEGQuality int    `mapstructure:"avatarjpegquality"`

	// Job scheduling settings
	JobIntervalSeconds int  `mapstructure:"jobintervalseconds"`
	AuditRetentionDays int  `mapstructure:"auditretentiondays"`
	OrphanAvatarSweep  bool `mapstructure:"orphanavatarsweep"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "profilehub")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("loginsessiontimeoutseconds", 604800) // 1 week
		v.SetDefault("tokenttlseconds", 2592000)           // 30 days
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("auditlogfile", "audit.log")
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("profilecachettlseconds", 600)
		v.SetDefault("redisdb", 0)
		v.SetDefault("avatarurlprefix", "/avatars/")
		v.SetDefault("avatarmaxbytes", 5*1024*1024)
		v.SetDefault("avataredgepixels", 512)
		v.SetDefault("avatarjpegquality", 85)
		v.SetDefault("jobintervalseconds", 3600)
		v.SetDefault("auditretentiondays", 365)
		v.SetDefault("orphanavatarsweep", true)

		v.BindEnv("appname", "PROFILEHUB_APP_NAME")
		v.BindEnv("appport", "PROFILEHUB_APP_PORT")
		v.BindEnv("environment", "PROFILEHUB_ENV")
		v.BindEnv("loglevel", "PROFILEHUB_LOG_LEVEL")
		v.BindEnv("privatekey", "PROFILEHUB_PRIVATE_KEY")
		v.BindEnv("loginsessiontimeoutseconds", "PROFILEHUB_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("tokenttlseconds", "PROFILEHUB_TOKEN_TTL_SECONDS")
		v.BindEnv("domain", "PROFILEHUB_DOMAIN")
		v.BindEnv("storagepath", "PROFILEHUB_STORAGE_PATH")
		v.BindEnv("geodbpath", "PROFILEHUB_GEO_DB_PATH")
		v.BindEnv("geoliteaccountid", "PROFILEHUB_GEOLITE_ACCOUNT_ID")
		v.BindEnv("geolitelicensekey", "PROFILEHUB_GEOLITE_LICENSE_KEY")
		v.BindEnv("publicdir", "PROFILEHUB_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "PROFILEHUB_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "PROFILEHUB_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "PROFILEHUB_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "PROFILEHUB_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "PROFILEHUB_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("auditlogfile", "PROFILEHUB_AUDIT_LOG_FILE")
		v.BindEnv("dbtype", "PROFILEHUB_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "PROFILEHUB_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "PROFILEHUB_DB_MAX_IDLE_CONNS")
		v.BindEnv("profilecachettlseconds", "PROFILEHUB_PROFILE_CACHE_TTL_SECONDS")
		v.BindEnv("redisaddr", "PROFILEHUB_REDIS_ADDR")
		v.BindEnv("redispassword", "PROFILEHUB_REDIS_PASSWORD")
		v.BindEnv("redisdb", "PROFILEHUB_REDIS_DB")
		v.BindEnv("avatarurlprefix", "PROFILEHUB_AVATAR_URL_PREFIX")
		v.BindEnv("avatarmaxbytes", "PROFILEHUB_AVATAR_MAX_BYTES")
		v.BindEnv("avataredgepixels", "PROFILEHUB_AVATAR_EDGE_PIXELS")
		v.BindEnv("avatarjpegquality", "PROFILEHUB_AVATAR_JPEG_QUALITY")
		v.BindEnv("jobintervalseconds", "PROFILEHUB_JOB_INTERVAL_SECONDS")
		v.BindEnv("auditretentiondays", "PROFILEHUB_AUDIT_RETENTION_DAYS")
		v.BindEnv("orphanavatarsweep", "PROFILEHUB_ORPHAN_AVATAR_SWEEP")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique PROFILEHUB_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.AvatarJPEGQuality < 1 || c.AvatarJPEGQuality > 100 {
		return fmt.Errorf("avatar jpeg quality must be between 1 and 100, got %d", c.AvatarJPEGQuality)
	}
	if c.AvatarEdgePixels < 32 {
		return fmt.Errorf("avatar edge must be at least 32 pixels, got %d", c.AvatarEdgePixels)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"job interval seconds", c.JobIntervalSeconds},
		{"profile cache ttl seconds", c.ProfileCacheTTLSeconds},
		{"token ttl seconds", c.TokenTTLSeconds},
		{"login session timeout seconds", c.LoginSessionTimeoutSeconds},
		{"audit retention days", c.AuditRetentionDays},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// AvatarDirectory is where uploaded avatars are written.
func (c *Config) AvatarDirectory() string {
	return filepath.Join(c.DatabasePath, "avatars")
}

// AuditLogPath is the rotating JSON-lines file mirroring the audit table.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.LogsDirectory, c.AuditLogFile)
}

// GeoLiteConfigured reports whether MaxMind credentials for automatic downloads are set.
func (c *Config) GeoLiteConfigured() bool {
	return c.GeoLiteAccountID != "" && c.GeoLiteLicenseKey != ""
}

// ProfileCacheTTL returns the repository cache expiry.
func (c *Config) ProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTLSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued bearer tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetLoginSessionTimeout returns the login session timeout in seconds.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise 1 in test and 10 elsewhere.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
